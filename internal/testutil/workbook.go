package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// SheetSpec describes one fixture sheet. Rows are written from the top-left
// corner; Cells places values at zero-based (row, col) coordinates and wins
// over Rows. A nil value leaves the cell blank.
type SheetSpec struct {
	Name  string
	Rows  [][]any
	Cells map[[2]int]any
}

// WriteXLSX writes a fixture workbook into dir and returns its path.
// Values may be strings, ints, float64s or time.Time; times are stored
// as date-formatted serials.
func WriteXLSX(t testing.TB, dir, name string, sheets ...SheetSpec) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatalf("new date style: %v", err)
	}

	for i, spec := range sheets {
		sheetName := spec.Name
		if sheetName == "" {
			sheetName = "Sheet" + string(rune('1'+i))
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheetName); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sheetName); err != nil {
			t.Fatalf("new sheet %q: %v", sheetName, err)
		}

		set := func(r, c int, v any) {
			if v == nil {
				return
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheetName, ref, v); err != nil {
				t.Fatalf("set %s!%s: %v", sheetName, ref, err)
			}
			if _, ok := v.(time.Time); ok {
				if err := f.SetCellStyle(sheetName, ref, ref, dateStyle); err != nil {
					t.Fatalf("style %s!%s: %v", sheetName, ref, err)
				}
			}
		}
		for r, row := range spec.Rows {
			for c, v := range row {
				set(r, c, v)
			}
		}
		for rc, v := range spec.Cells {
			set(rc[0], rc[1], v)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
	return path
}

// Blank returns n nil cells, for padding fixture rows.
func Blank(n int) []any {
	return make([]any, n)
}

// Row concatenates fixture cell groups into one row.
func Row(parts ...any) []any {
	var out []any
	for _, p := range parts {
		if group, ok := p.([]any); ok {
			out = append(out, group...)
			continue
		}
		out = append(out, p)
	}
	return out
}
