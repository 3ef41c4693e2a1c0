package workbook

import (
	"strconv"
	"strings"
	"time"

	"github.com/roach88/pamana/internal/ir"
)

// CellKind is the type of a cell value.
type CellKind int

const (
	Empty CellKind = iota
	String
	Number
	Date
)

func (k CellKind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Date:
		return "date"
	default:
		return "empty"
	}
}

// Cell is one typed grid value.
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
	Date time.Time
}

// StringCell returns a trimmed string cell, or an empty cell for blank text.
func StringCell(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: String, Str: s}
}

// NumberCell returns a number cell.
func NumberCell(f float64) Cell {
	return Cell{Kind: Number, Num: f}
}

// DateCell returns a date cell with the time-of-day dropped.
func DateCell(t time.Time) Cell {
	return Cell{Kind: Date, Date: ir.DateOnly(t)}
}

// IsEmpty reports whether the cell holds nothing.
func (c Cell) IsEmpty() bool {
	return c.Kind == Empty
}

// Text renders the cell for token matching and string parsing.
func (c Cell) Text() string {
	switch c.Kind {
	case String:
		return c.Str
	case Number:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case Date:
		return c.Date.Format("2006-01-02")
	default:
		return ""
	}
}

// textDateLayouts are the renderings the legacy reader produces for
// date-formatted cells, tried before the report date formats.
var textDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006.01.02",
}

// ClassifyText types a cell whose source only offers text: numeric text
// becomes a number, recognized date text becomes a date, anything else
// stays a string. Digits with a leading zero are codes and stay strings.
func ClassifyText(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{}
	}
	if isZeroPaddedCode(s) {
		return Cell{Kind: String, Str: s}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return NumberCell(f)
	}
	for _, layout := range textDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateCell(t)
		}
	}
	return Cell{Kind: String, Str: s}
}

func isZeroPaddedCode(s string) bool {
	if len(s) < 2 || s[0] != '0' || s[1] == '.' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
