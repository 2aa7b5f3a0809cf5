// Package report turns evaluation results into files: CSV tables, static
// plots (gonum/plot), interactive HTML charts (go-echarts), JSON summaries
// and plain-text metric lists.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Table is a set of equally long named float64 columns in insertion order.
type Table struct {
	names   []string
	columns map[string][]float64
	rows    int
}

// NewTable creates a table with the given column names.
func NewTable(names ...string) *Table {
	t := &Table{columns: make(map[string][]float64, len(names))}
	for _, n := range names {
		if _, dup := t.columns[n]; dup {
			continue
		}
		t.names = append(t.names, n)
		t.columns[n] = nil
	}
	return t
}

// Append adds one row. values must match the column count.
func (t *Table) Append(values ...float64) error {
	if len(values) != len(t.names) {
		return fmt.Errorf("table row has %d values, want %d", len(values), len(t.names))
	}
	for i, n := range t.names {
		t.columns[n] = append(t.columns[n], values[i])
	}
	t.rows++
	return nil
}

// Column returns the named column, or nil if there is none. The slice is
// shared with the table.
func (t *Table) Column(name string) []float64 { return t.columns[name] }

// Names returns the column names in order.
func (t *Table) Names() []string { return append([]string(nil), t.names...) }

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// WriteCSV writes a header row followed by every row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.names); err != nil {
		return err
	}
	rec := make([]string, len(t.names))
	for r := 0; r < t.rows; r++ {
		for i, n := range t.names {
			rec[i] = strconv.FormatFloat(t.columns[n][r], 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
