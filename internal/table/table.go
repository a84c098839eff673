package table

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownColumn is returned when a requested column does not exist.
var ErrUnknownColumn = errors.New("unknown column")

// Table is an immutable column-major frame of float64 observations indexed by row.
// Missing observations are stored as NaN.
type Table struct {
	names []string
	index map[string]int
	data  [][]float64
	rows  int
}

// New builds a table from row-major values. Every row must have one value per column.
func New(columns []string, rows [][]float64) (*Table, error) {
	data := make([][]float64, len(columns))
	for c := range data {
		data[c] = make([]float64, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", r, len(row), len(columns))
		}
		for c, v := range row {
			data[c][r] = v
		}
	}
	return build(columns, data, len(rows))
}

// FromColumns builds a table from column slices. Slices are copied.
func FromColumns(columns []string, values [][]float64) (*Table, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("%d column names for %d columns", len(columns), len(values))
	}
	rows := 0
	if len(values) > 0 {
		rows = len(values[0])
	}
	data := make([][]float64, len(values))
	for c, col := range values {
		if len(col) != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", columns[c], len(col), rows)
		}
		data[c] = append([]float64(nil), col...)
	}
	return build(columns, data, rows)
}

// Empty returns a table without columns or rows.
func Empty() *Table {
	return &Table{index: map[string]int{}}
}

func build(columns []string, data [][]float64, rows int) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		index[name] = i
	}
	return &Table{
		names: append([]string(nil), columns...),
		index: index,
		data:  data,
		rows:  rows,
	}, nil
}

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), t.data[i]...), true
}

// Row returns a copy of row r in column order.
func (t *Table) Row(r int) []float64 {
	if t == nil || r < 0 || r >= t.rows {
		return nil
	}
	row := make([]float64, len(t.names))
	for c := range t.data {
		row[c] = t.data[c][r]
	}
	return row
}

// Rows returns a row-major copy of the table values.
func (t *Table) Rows() [][]float64 {
	if t == nil {
		return nil
	}
	out := make([][]float64, t.rows)
	for r := range out {
		out[r] = t.Row(r)
	}
	return out
}

// Select returns a table restricted to the named columns in the given order.
func (t *Table) Select(names []string) (*Table, error) {
	if t == nil {
		return nil, fmt.Errorf("select from nil table")
	}
	data := make([][]float64, len(names))
	for i, name := range names {
		c, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("select %q: %w", name, ErrUnknownColumn)
		}
		data[i] = append([]float64(nil), t.data[c]...)
	}
	return build(names, data, t.rows)
}

// Rename returns a copy of the table with columns renamed through fn.
func (t *Table) Rename(fn func(string) string) (*Table, error) {
	if t == nil {
		return nil, fmt.Errorf("rename nil table")
	}
	names := make([]string, len(t.names))
	for i, name := range t.names {
		names[i] = fn(name)
	}
	return build(names, t.cloneData(), t.rows)
}

// Concat appends the rows of other below the rows of t. Both tables must carry the same
// column set; other's columns are matched by name.
func (t *Table) Concat(other *Table) (*Table, error) {
	if t == nil || other == nil {
		return nil, fmt.Errorf("concat nil table")
	}
	if len(t.names) != len(other.names) {
		return nil, fmt.Errorf("concat: %d columns vs %d", len(t.names), len(other.names))
	}
	data := make([][]float64, len(t.names))
	for c, name := range t.names {
		oc, ok := other.index[name]
		if !ok {
			return nil, fmt.Errorf("concat %q: %w", name, ErrUnknownColumn)
		}
		col := make([]float64, 0, t.rows+other.rows)
		col = append(col, t.data[c]...)
		col = append(col, other.data[oc]...)
		data[c] = col
	}
	return build(t.names, data, t.rows+other.rows)
}

// Tail returns the trailing n rows, or every row when fewer than n exist.
func (t *Table) Tail(n int) *Table {
	if t == nil {
		return Empty()
	}
	if n < 0 {
		n = 0
	}
	start := t.rows - n
	if start < 0 {
		start = 0
	}
	data := make([][]float64, len(t.data))
	for c, col := range t.data {
		data[c] = append([]float64(nil), col[start:]...)
	}
	out, _ := build(t.names, data, t.rows-start)
	return out
}

// MapColumns returns a new table whose columns are fn applied to copies of the originals.
// fn must return a slice with the same length as its input.
func (t *Table) MapColumns(fn func(name string, values []float64) []float64) (*Table, error) {
	if t == nil {
		return nil, fmt.Errorf("map nil table")
	}
	data := t.cloneData()
	for c, name := range t.names {
		mapped := fn(name, data[c])
		if len(mapped) != t.rows {
			return nil, fmt.Errorf("map %q: got %d rows, want %d", name, len(mapped), t.rows)
		}
		data[c] = mapped
	}
	return build(t.names, data, t.rows)
}

// Missing counts NaN entries across the table.
func (t *Table) Missing() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, col := range t.data {
		for _, v := range col {
			if math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}

func (t *Table) cloneData() [][]float64 {
	data := make([][]float64, len(t.data))
	for c, col := range t.data {
		data[c] = append([]float64(nil), col...)
	}
	return data
}
