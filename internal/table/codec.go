package table

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// IndexColumn is the optional leading CSV column holding row labels (usually timestamps).
// It is dropped on read.
const IndexColumn = "timestamp"

type wireTable struct {
	Columns []string     `json:"columns"`
	Rows    [][]*float64 `json:"rows"`
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...]]} with null for
// missing values.
func (t *Table) MarshalJSON() ([]byte, error) {
	wire := wireTable{Columns: t.Columns(), Rows: make([][]*float64, t.NumRows())}
	if wire.Columns == nil {
		wire.Columns = []string{}
	}
	for r := range wire.Rows {
		row := t.Row(r)
		out := make([]*float64, len(row))
		for c, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			v := v
			out[c] = &v
		}
		wire.Rows[r] = out
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (t *Table) UnmarshalJSON(data []byte) error {
	var wire wireTable
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	rows := make([][]float64, len(wire.Rows))
	for r, row := range wire.Rows {
		values := make([]float64, len(row))
		for c, v := range row {
			if v == nil {
				values[c] = math.NaN()
				continue
			}
			values[c] = *v
		}
		rows[r] = values
	}
	parsed, err := New(wire.Columns, rows)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// ReadCSV parses a header row followed by numeric rows. Empty cells, "NaN", "null" and
// "NA" are read as missing. A leading "timestamp" column, or a leading column with a blank
// header as written for a dataframe index, is ignored.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: missing header")
		}
		return nil, fmt.Errorf("csv header: %w", err)
	}
	skip := 0
	if first := strings.TrimSpace(header[0]); first == "" || strings.EqualFold(first, IndexColumn) {
		skip = 1
	}
	columns := make([]string, 0, len(header)-skip)
	for _, name := range header[skip:] {
		columns = append(columns, strings.TrimSpace(name))
	}

	var rows [][]float64
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		row := make([]float64, 0, len(columns))
		for c, cell := range record[skip:] {
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("csv line %d column %q: %w", line, columns[c], err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return New(columns, rows)
}

// WriteCSV writes the table with a header row. Missing values are written as empty cells.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns()); err != nil {
		return err
	}
	for r := 0; r < t.NumRows(); r++ {
		row := t.Row(r)
		record := make([]string, len(row))
		for c, v := range row {
			if math.IsNaN(v) {
				continue
			}
			record[c] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "nan", "null", "na":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}
