package tablewriter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Column 表格列
// Nested 列不出现在表头，每个值在所属行下方单独缩进输出
type Column struct {
	Name   string
	Nested bool
}

func Col(name string) Column { return Column{Name: name} }

func NestedCol(name string) Column { return Column{Name: name, Nested: true} }

type row struct {
	cells  map[string]string
	nested map[string][]string
}

// TableWriter 表格写入器
type TableWriter struct {
	cols []Column
	rows []row
}

func New(cols ...Column) *TableWriter {
	return &TableWriter{cols: cols}
}

// Write 写入一行；Nested 列的值为 []string，其余列用 fmt.Sprint 格式化
func (w *TableWriter) Write(r map[string]interface{}) {
	out := row{cells: make(map[string]string), nested: make(map[string][]string)}
	for k, v := range r {
		if lines, ok := v.([]string); ok {
			out.nested[k] = lines
			continue
		}
		out.cells[k] = fmt.Sprint(v)
	}
	w.rows = append(w.rows, out)
}

// Flush 输出表格
func (w *TableWriter) Flush(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	var header []string
	for _, col := range w.cols {
		if !col.Nested {
			header = append(header, strings.ToUpper(col.Name))
		}
	}
	if len(header) > 0 {
		if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
			return err
		}
	}

	for _, r := range w.rows {
		fields := make([]string, 0, len(header))
		for _, col := range w.cols {
			if !col.Nested {
				fields = append(fields, r.cells[col.Name])
			}
		}
		if len(fields) > 0 {
			if _, err := fmt.Fprintln(tw, strings.Join(fields, "\t")); err != nil {
				return err
			}
		}
		for _, col := range w.cols {
			if !col.Nested {
				continue
			}
			for _, line := range r.nested[col.Name] {
				if _, err := fmt.Fprintf(tw, "  %s\t%s\n", col.Name, line); err != nil {
					return err
				}
			}
		}
	}
	return tw.Flush()
}
