package workbook

import (
	"fmt"

	"github.com/extrame/xls"
)

// openXLS reads a BIFF8 workbook. The legacy reader renders every cell as
// text, so cells are typed by ClassifyText.
func openXLS(path string) (*Workbook, error) {
	f, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}

	wb := &Workbook{Format: FormatXLS}
	for i := 0; i < f.NumSheets(); i++ {
		ws := f.GetSheet(i)
		if ws == nil {
			continue
		}
		rows := make([][]Cell, 0, int(ws.MaxRow)+1)
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			last := row.LastCol()
			cells := make([]Cell, 0, last+1)
			for c := 0; c <= last; c++ {
				cells = append(cells, ClassifyText(row.Col(c)))
			}
			rows = append(rows, trimTrailing(cells))
		}
		wb.Sheets = append(wb.Sheets, NewSheet(ws.Name, len(wb.Sheets), trimTrailingRows(rows)))
	}
	return wb, nil
}

func trimTrailing(cells []Cell) []Cell {
	n := len(cells)
	for n > 0 && cells[n-1].IsEmpty() {
		n--
	}
	return cells[:n]
}

func trimTrailingRows(rows [][]Cell) [][]Cell {
	n := len(rows)
	for n > 0 && len(rows[n-1]) == 0 {
		n--
	}
	return rows[:n]
}
