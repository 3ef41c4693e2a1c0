package layout

import (
	"regexp"
	"strings"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/workbook"
)

const (
	maxHeaderRowLen = 150
	// headerZone bounds the rows searched for "NAME (NNN)" local names.
	headerZone = 15
)

var (
	isolatedDCode = regexp.MustCompile(`(?:^|\D)(\d{5})(?:\D|$)`)
	isolatedLCode = regexp.MustCompile(`(?:^|\D)(\d{1,4})(?:\D|$)`)
	yearPattern   = regexp.MustCompile(`(?:^|\D)((?:19|20)\d\d)(?:\D|$)`)
	namedCode     = regexp.MustCompile(`^([\p{L}][\p{L} .'-]*?)\s*\((\d{1,4})\)$`)
	alphabetic    = regexp.MustCompile(`^[\p{L}][\p{L} .'-]*$`)

	dcodeLabel = regexp.MustCompile(`(?i)\b(?:DCODE|DISTRICT CODE)\b`)
	lcodeLabel = regexp.MustCompile(`(?i)\b(?:LCODE|LOCAL CODE)\b`)
	localLabel = regexp.MustCompile(`(?i)^(?:LOKAL|LOCAL|LOCAL NAME|PANGALAN NG LOKAL)\s*:?$`)
	yearLabel  = regexp.MustCompile(`(?i)\b(?:YEAR|TAON)\b`)
	dateLabel  = regexp.MustCompile(`(?i)PETSA NG PAG-?UULAT`)

	headerFieldLabel = regexp.MustCompile(`(?i)^(?:DCODE|DISTRICT CODE|LCODE|LOCAL CODE|YEAR|TAON|PETSA NG PAG-?UULAT|LOKAL|LOCAL NAME|PANGALAN NG LOKAL|LOCAL\s*:?$)`)
)

// scanHeader scans every sheet row by row for the report header. The
// first match of each field wins.
func (r *Recognizer) scanHeader(wb *workbook.Workbook) (HeaderPlan, []ir.Warning) {
	var h HeaderPlan
	var warnings []ir.Warning

	for _, sheet := range wb.Sheets {
		for row := 0; row < sheet.RowCount(); row++ {
			cells := sheet.Row(row)
			if h.DCode == nil {
				h.DCode = findDCode(sheet, row, cells)
			}
			if h.LCode == nil {
				if ref, raw := findLCode(sheet, row, cells); ref != nil {
					if alias, ok := r.aliases[raw]; ok {
						raw = alias
					}
					code, suspicious := ir.NormalizeLCode(raw)
					if suspicious {
						warnings = append(warnings, ir.Warning{
							Code:    ir.WarnSuspiciousCode,
							Sheet:   sheet.Name,
							Row:     row,
							Message: "local code " + quote(raw) + " is not 1-4 digits; using " + ir.DefaultLCode,
						})
					}
					ref.Value = code
					h.LCode = ref
				}
			}
			if h.LocalName == nil {
				h.LocalName = findLocalName(sheet, row, cells)
			}
			if h.Year == nil {
				h.Year = findYear(sheet, row, cells)
			}
			if h.DateReported == nil {
				h.DateReported = findDateReported(sheet, row, cells)
			}
		}
	}

	h.Values.DCode = ir.DefaultDCode
	if h.DCode != nil {
		h.Values.DCode = h.DCode.Value
	} else {
		warnings = append(warnings, ir.Warning{Code: ir.WarnAmbiguousHeader, Row: -1, Message: "no district code found; using " + ir.DefaultDCode})
	}
	h.Values.LCode = ir.DefaultLCode
	if h.LCode != nil {
		h.Values.LCode = h.LCode.Value
	} else {
		warnings = append(warnings, ir.Warning{Code: ir.WarnAmbiguousHeader, Row: -1, Message: "no local code found; using " + ir.DefaultLCode})
	}
	if h.LocalName != nil {
		h.Values.LocalName = h.LocalName.Value
	}
	if h.Year != nil {
		h.Values.Year = atoi(h.Year.Value)
	}
	if h.DateReported != nil {
		if t, ok := ir.ParseDate(h.DateReported.Value); ok {
			h.Values.DateReported = &t
		}
	}
	return h, warnings
}

func findDCode(sheet *workbook.Sheet, row int, cells []workbook.Cell) *CellRef {
	if col, after := labelValue(cells, dcodeLabel); col >= 0 {
		if digits := ir.FirstNumber(after); digits != "" {
			return &CellRef{Sheet: sheet.Name, Row: row, Col: col, Value: ir.NormalizeDCode(digits)}
		}
	}
	if len(sheet.RowText(row)) >= maxHeaderRowLen {
		return nil
	}
	for c, cell := range cells {
		if cell.Kind != workbook.String {
			continue
		}
		if m := isolatedDCode.FindStringSubmatch(cell.Str); m != nil {
			return &CellRef{Sheet: sheet.Name, Row: row, Col: c, Value: m[1]}
		}
	}
	return nil
}

// findLCode returns the local-code cell and its raw text on a row that
// carries an LCODE label.
func findLCode(sheet *workbook.Sheet, row int, cells []workbook.Cell) (*CellRef, string) {
	col, after := labelValue(cells, lcodeLabel)
	if col < 0 {
		return nil, ""
	}
	raw := strings.TrimSpace(after)
	if raw == "" {
		text := lcodeLabel.ReplaceAllString(sheet.RowText(row), " ")
		m := isolatedLCode.FindStringSubmatch(text)
		if m == nil {
			return nil, ""
		}
		raw = m[1]
	}
	if fields := strings.Fields(raw); len(fields) > 0 {
		raw = fields[0]
	}
	return &CellRef{Sheet: sheet.Name, Row: row, Col: col}, raw
}

// findLocalName reads the local's name from a "NAME (NNN)" cell or from a
// LOKAL label row. Both are header-zone only, and a label row must lead
// with the label and carry no numbers.
func findLocalName(sheet *workbook.Sheet, row int, cells []workbook.Cell) *CellRef {
	if row >= headerZone {
		return nil
	}
	for c, cell := range cells {
		if cell.Kind != workbook.String {
			continue
		}
		if m := namedCode.FindStringSubmatch(cell.Str); m != nil && !lcodeLabel.MatchString(m[1]) {
			return &CellRef{Sheet: sheet.Name, Row: row, Col: c, Value: strings.TrimSpace(m[1])}
		}
	}

	labelCol, first := firstNonEmpty(cells)
	if first.Kind != workbook.String || hasNumber(cells) {
		return nil
	}
	if strings.HasPrefix(strings.ToUpper(first.Str), "LOKAL:") {
		if v := strings.TrimSpace(first.Str[len("LOKAL:"):]); alphabetic.MatchString(v) {
			return &CellRef{Sheet: sheet.Name, Row: row, Col: labelCol, Value: v}
		}
	}
	if !localLabel.MatchString(first.Str) {
		return nil
	}
	best, bestCol := "", -1
	for c, cell := range cells {
		if c == labelCol || cell.Kind != workbook.String {
			continue
		}
		if alphabetic.MatchString(cell.Str) && len(cell.Str) > len(best) {
			best, bestCol = cell.Str, c
		}
	}
	if bestCol < 0 {
		return nil
	}
	return &CellRef{Sheet: sheet.Name, Row: row, Col: bestCol, Value: best}
}

// isHeaderFieldRow reports whether a row belongs to the report header
// block: it leads with a field label and holds little beyond label/value
// pairs. Column-header rows are wider and never lead with a field label.
func isHeaderFieldRow(cells []workbook.Cell) bool {
	_, first := firstNonEmpty(cells)
	if first.Kind != workbook.String {
		return false
	}
	if !headerFieldLabel.MatchString(first.Str) && !namedCode.MatchString(first.Str) {
		return false
	}
	labels, filled := 0, 0
	for _, cell := range cells {
		if cell.IsEmpty() {
			continue
		}
		filled++
		if cell.Kind == workbook.String && (headerFieldLabel.MatchString(cell.Str) || namedCode.MatchString(cell.Str)) {
			labels++
		}
	}
	return filled <= 2*labels
}

func findYear(sheet *workbook.Sheet, row int, cells []workbook.Cell) *CellRef {
	col, after := labelValue(cells, yearLabel)
	if col < 0 {
		return nil
	}
	if m := yearPattern.FindStringSubmatch(after); m != nil {
		return &CellRef{Sheet: sheet.Name, Row: row, Col: col, Value: m[1]}
	}
	return nil
}

func findDateReported(sheet *workbook.Sheet, row int, cells []workbook.Cell) *CellRef {
	col, after := labelValue(cells, dateLabel)
	if col < 0 {
		return nil
	}
	if _, ok := ir.ParseDate(after); !ok {
		return nil
	}
	return &CellRef{Sheet: sheet.Name, Row: row, Col: col, Value: after}
}

// labelValue finds the first cell matching label and returns its column
// and the value that follows the label: the rest of the same cell, or the
// next non-empty cell to the right. col is -1 when no cell matches.
func labelValue(cells []workbook.Cell, label *regexp.Regexp) (col int, value string) {
	for c, cell := range cells {
		if cell.Kind != workbook.String {
			continue
		}
		loc := label.FindStringIndex(cell.Str)
		if loc == nil {
			continue
		}
		rest := strings.TrimLeft(cell.Str[loc[1]:], " :.#-\t")
		if strings.TrimSpace(rest) != "" {
			return c, strings.TrimSpace(rest)
		}
		for _, next := range cells[c+1:] {
			if !next.IsEmpty() {
				return c, next.Text()
			}
		}
		return c, ""
	}
	return -1, ""
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func quote(s string) string {
	return "\"" + s + "\""
}
