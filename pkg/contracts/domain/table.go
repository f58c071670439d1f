package domain

import "strings"

// Table is a sheet read from a data source: a header row of column names
// and one row of cell text per source record. A cell whose trimmed text is
// empty or one of MissingTokens is a missing value.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// MissingTokens are cell texts that spreadsheet exports use for "no value".
// Matching is exact and case-sensitive on the trimmed cell, so "Na" or
// "none" are ordinary values.
var MissingTokens = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {},
	"-1.#IND": {}, "-1.#QNAN": {}, "1.#IND": {}, "1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "NaN": {}, "nan": {},
	"<NA>": {}, "N/A": {}, "NA": {}, "n/a": {},
	"NULL": {}, "null": {}, "None": {},
}

// IsMissing reports whether cell text holds no value
func IsMissing(cell string) bool {
	v := strings.TrimSpace(cell)
	if v == "" {
		return true
	}
	_, ok := MissingTokens[v]
	return ok
}

// NewTable creates a table with the given header and no rows
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: make([][]string, 0)}
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the index of the named column. Names are matched exactly.
func (t *Table) Column(name string) (int, bool) {
	if t == nil {
		return -1, false
	}
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Value returns the trimmed cell of row i in the named column and whether
// it holds a value. Short rows and MissingTokens read as missing.
func (t *Table) Value(i int, name string) (string, bool) {
	idx, ok := t.Column(name)
	if !ok || i < 0 || i >= len(t.Rows) {
		return "", false
	}
	row := t.Rows[i]
	if idx >= len(row) {
		return "", false
	}
	if IsMissing(row[idx]) {
		return "", false
	}
	return strings.TrimSpace(row[idx]), true
}

// Missing returns the names from cols that the table does not carry
func (t *Table) Missing(cols ...string) []string {
	var missing []string
	for _, c := range cols {
		if _, ok := t.Column(c); !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// AddRow appends a row, padding or cutting it to the header width
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}
