package workbook

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// openXLSX reads every sheet with raw cell values and types numeric cells
// whose style carries a date number format as dates.
func openXLSX(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	styles := &dateStyles{f: f, cache: map[int]bool{}}
	wb := &Workbook{Format: FormatXLSX}
	for i, name := range f.GetSheetList() {
		raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		rows := make([][]Cell, len(raw))
		for r, values := range raw {
			cells := make([]Cell, len(values))
			for c, v := range values {
				cell := ClassifyText(v)
				if cell.Kind == Number {
					ref, err := excelize.CoordinatesToCellName(c+1, r+1)
					if err != nil {
						return nil, fmt.Errorf("sheet %q: %w", name, err)
					}
					if isTextCell(f, name, ref) {
						cell = StringCell(v)
					} else if styles.isDate(name, ref) {
						if t, err := excelize.ExcelDateToTime(cell.Num, date1904); err == nil {
							cell = DateCell(t)
						}
					}
				}
				cells[c] = cell
			}
			rows[r] = cells
		}
		wb.Sheets = append(wb.Sheets, NewSheet(name, i, rows))
	}
	return wb, nil
}

// isTextCell reports whether a numeric-looking value was stored as text.
func isTextCell(f *excelize.File, sheet, ref string) bool {
	t, err := f.GetCellType(sheet, ref)
	if err != nil {
		return false
	}
	return t == excelize.CellTypeSharedString || t == excelize.CellTypeInlineString
}

// dateStyles caches whether a style index formats numbers as dates.
type dateStyles struct {
	f     *excelize.File
	cache map[int]bool
}

func (d *dateStyles) isDate(sheet, ref string) bool {
	id, err := d.f.GetCellStyle(sheet, ref)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := d.cache[id]; ok {
		return v
	}
	v := false
	if style, err := d.f.GetStyle(id); err == nil && style != nil {
		v = isDateNumFmt(style.NumFmt)
		if style.CustomNumFmt != nil {
			v = isDateFormatCode(*style.CustomNumFmt)
		}
	}
	d.cache[id] = v
	return v
}

// isDateNumFmt reports whether a built-in number format id is a date.
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

var (
	quotedOrBracketed = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)
	dateTokens        = regexp.MustCompile(`(?i)[dy]|m{3,}`)
)

// isDateFormatCode reports whether a custom number format renders a date.
// A lone "m" is ambiguous with minutes, so a day or year token is required.
func isDateFormatCode(code string) bool {
	code = quotedOrBracketed.ReplaceAllString(code, "")
	if code == "" || code == "General" || code == "@" {
		return false
	}
	if _, err := strconv.ParseFloat(code, 64); err == nil {
		return false
	}
	return dateTokens.MatchString(code)
}
