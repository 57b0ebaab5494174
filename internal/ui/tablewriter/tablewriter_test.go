package tablewriter

import (
	"bytes"
	"strings"
	"testing"

	"ns-keys/internal/keystore"
	"ns-keys/internal/models"
)

func TestFlush(t *testing.T) {
	tw := New(Col("name"), Col("value"), NestedCol("extra"))
	tw.Write(map[string]interface{}{"name": "a", "value": 1, "extra": []string{"x", "y"}})
	tw.Write(map[string]interface{}{"name": "bb", "value": 22})

	var buf bytes.Buffer
	if err := tw.Flush(&buf); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.HasPrefix(lines[2], "  extra") || !strings.HasPrefix(lines[4], "bb") {
		t.Fatalf("unexpected layout:\n%s", buf.String())
	}
}

func TestSeeds(t *testing.T) {
	infos := []keystore.SeedInfo{{
		PK:        "abcd",
		Alias:     "main",
		CreatedAt: 0,
		UpdatedAt: 1700000000000,
		NsPaths:   []models.KeyPath{{Alias: "key1", Path: "m/42'/0'/0'/1/0", Address: "0x01"}},
	}}
	var buf bytes.Buffer
	if err := Seeds(&buf, infos); err != nil {
		t.Fatalf("Seeds: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"main", "abcd", "2023-11-14T22:13:20Z", "m/42'/0'/0'/1/0", "key1", "0x01"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
