package workbook

import "strings"

// Sheet is an addressable grid of typed cells.
type Sheet struct {
	Name  string
	Index int
	rows  [][]Cell
	cols  int
}

// NewSheet builds a sheet from rows of cells. Rows may be ragged.
func NewSheet(name string, index int, rows [][]Cell) *Sheet {
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return &Sheet{Name: name, Index: index, rows: rows, cols: cols}
}

// RowCount is the number of rows, including blank rows inside the grid.
func (s *Sheet) RowCount() int { return len(s.rows) }

// ColCount is the width of the widest row.
func (s *Sheet) ColCount() int { return s.cols }

// Cell returns the cell at (r, c); out-of-range coordinates are empty.
func (s *Sheet) Cell(r, c int) Cell {
	if r < 0 || r >= len(s.rows) || c < 0 || c >= len(s.rows[r]) {
		return Cell{}
	}
	return s.rows[r][c]
}

// Row returns the cells of row r padded to ColCount.
func (s *Sheet) Row(r int) []Cell {
	out := make([]Cell, s.cols)
	if r >= 0 && r < len(s.rows) {
		copy(out, s.rows[r])
	}
	return out
}

// RowText joins the non-empty cells of row r with single spaces.
func (s *Sheet) RowText(r int) string {
	if r < 0 || r >= len(s.rows) {
		return ""
	}
	parts := make([]string, 0, len(s.rows[r]))
	for _, c := range s.rows[r] {
		if t := c.Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// IsBlankRow reports whether every cell of row r is empty.
func (s *Sheet) IsBlankRow(r int) bool {
	if r < 0 || r >= len(s.rows) {
		return true
	}
	for _, c := range s.rows[r] {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
