package roster

import "strings"

// Cell is one spreadsheet cell: either a value or nothing at all.
type Cell struct {
	value string
	valid bool
}

// Missing is the absent cell.
var Missing = Cell{}

// Text returns a present cell holding s.
func Text(s string) Cell {
	return Cell{value: s, valid: true}
}

// Present reports whether the source supplied a value for the cell.
func (c Cell) Present() bool { return c.valid }

// String returns the trimmed value, "" when absent.
func (c Cell) String() string {
	if !c.valid {
		return ""
	}
	return strings.TrimSpace(c.value)
}

// Row is one line of the source table.
type Row []Cell

// RowOf builds a row of present cells.
func RowOf(values ...string) Row {
	row := make(Row, 0, len(values))
	for _, v := range values {
		row = append(row, Text(v))
	}
	return row
}

// at returns the i-th cell, Missing when out of range.
func (r Row) at(i int) Cell {
	if i < 0 || i >= len(r) {
		return Missing
	}
	return r[i]
}
