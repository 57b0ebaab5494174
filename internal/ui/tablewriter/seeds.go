package tablewriter

import (
	"fmt"
	"io"
	"time"

	"ns-keys/internal/keystore"
	"ns-keys/internal/models"
)

func formatMS(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func pathLines(paths []models.KeyPath) []string {
	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", p.Path, p.Alias, p.Address))
	}
	return lines
}

// Seeds 输出种子列表及其派生路径
func Seeds(out io.Writer, infos []keystore.SeedInfo) error {
	tw := New(Col("alias"), Col("pk"), Col("created"), Col("updated"), NestedCol("ns"), NestedCol("btc"))
	for _, info := range infos {
		tw.Write(map[string]interface{}{
			"alias":   info.Alias,
			"pk":      info.PK,
			"created": formatMS(info.CreatedAt),
			"updated": formatMS(info.UpdatedAt),
			"ns":      pathLines(info.NsPaths),
			"btc":     pathLines(info.BtcPaths),
		})
	}
	return tw.Flush(out)
}
