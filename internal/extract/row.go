package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/layout"
	"github.com/roach88/pamana/internal/workbook"
)

var numericText = regexp.MustCompile(`^\(?\s*(?:₱|PHP)?\s*-?\d[\d,]*(?:\.\d+)?\s*\)?$`)

// rowView reads one source row through a column map and collects the
// warnings raised while parsing it.
type rowView struct {
	sheet    string
	row      int
	section  ir.Section
	cells    []workbook.Cell
	cols     map[layout.Role]int
	warnings []ir.Warning
}

func newRowView(sheet string, row int, section ir.Section, cells []workbook.Cell, cols map[layout.Role]int) *rowView {
	own := make(map[layout.Role]int, len(cols))
	for k, v := range cols {
		own[k] = v
	}
	return &rowView{sheet: sheet, row: row, section: section, cells: cells, cols: own}
}

func (v *rowView) cell(role layout.Role) workbook.Cell {
	c, ok := v.cols[role]
	if !ok || c < 0 || c >= len(v.cells) {
		return workbook.Cell{}
	}
	return v.cells[c]
}

func (v *rowView) has(role layout.Role) bool {
	return !v.cell(role).IsEmpty()
}

func (v *rowView) str(role layout.Role) string {
	return strings.TrimSpace(v.cell(role).Text())
}

func (v *rowView) money(role layout.Role) (decimal.Decimal, error) {
	cell := v.cell(role)
	switch cell.Kind {
	case workbook.Empty:
		return decimal.Zero, nil
	case workbook.Number:
		return ir.MoneyFromFloat(cell.Num), nil
	case workbook.String:
		d, err := ir.ParseMoney(cell.Str)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", role, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%s: date where an amount was expected", role)
	}
}

// date returns nil for blank or unparseable cells. Numeric cells are read
// as spreadsheet serials.
func (v *rowView) date(role layout.Role) *time.Time {
	cell := v.cell(role)
	switch cell.Kind {
	case workbook.Date:
		d := cell.Date
		return &d
	case workbook.String:
		if d, ok := ir.ParseDate(cell.Str); ok {
			return &d
		}
	case workbook.Number:
		if cell.Num >= 1 && cell.Num < 100000 {
			if t, err := excelize.ExcelDateToTime(cell.Num, false); err == nil {
				d := ir.DateOnly(t)
				return &d
			}
		}
	}
	return nil
}

// qty parses a quantity, flooring non-integers with a warning.
func (v *rowView) qty(role layout.Role) (int, error) {
	cell := v.cell(role)
	var (
		n       int
		floored bool
		err     error
	)
	switch cell.Kind {
	case workbook.Empty:
		return 0, nil
	case workbook.Number:
		n, floored, err = ir.QuantityFromFloat(cell.Num)
	case workbook.String:
		n, floored, err = ir.ParseQuantity(cell.Str)
	default:
		return 0, fmt.Errorf("%s: date where a quantity was expected", role)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", role, err)
	}
	if floored {
		v.warn(ir.WarnNonIntegerQuantity, fmt.Sprintf("%s %s floored to %d", role, cell.Text(), n))
	}
	return n, nil
}

// year reads a four-digit year from a number, date or text cell.
func (v *rowView) year(role layout.Role) int {
	cell := v.cell(role)
	switch cell.Kind {
	case workbook.Number:
		if y := int(cell.Num); y >= 1900 && y < 2200 {
			return y
		}
	case workbook.Date:
		return cell.Date.Year()
	case workbook.String:
		if d := ir.FirstNumber(cell.Str); len(d) == 4 {
			y, _ := strconv.Atoi(d)
			return y
		}
	}
	return 0
}

func (v *rowView) warn(code ir.WarningCode, msg string) {
	v.warnings = append(v.warnings, ir.Warning{Code: code, Sheet: v.sheet, Row: v.row, Message: msg})
}

func (v *rowView) skip(reason ir.SkipReason, detail string) *ir.Skip {
	return &ir.Skip{Sheet: v.sheet, Row: v.row, Section: v.section, Reason: reason, Detail: detail}
}

// missing returns the first required role whose cell is blank.
func (v *rowView) missing(required []layout.Role) (layout.Role, bool) {
	for _, role := range required {
		if !v.has(role) {
			return role, true
		}
	}
	return "", false
}

// blank reports whether every cell between the first and last mapped
// column is empty.
func (v *rowView) blank() bool {
	lo, hi := columnRange(v.cols)
	for c := lo; c <= hi && c < len(v.cells); c++ {
		if !v.cells[c].IsEmpty() {
			return false
		}
	}
	return true
}

func columnRange(cols map[layout.Role]int) (lo, hi int) {
	lo, hi = -1, -1
	for _, c := range cols {
		if lo < 0 || c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	if lo < 0 {
		lo = 0
	}
	return lo, hi
}

func isNumeric(c workbook.Cell) bool {
	return c.Kind == workbook.Number || (c.Kind == workbook.String && numericText.MatchString(c.Str))
}

// applyWindow re-anchors the numeric roles of window to the right when a
// row carries more numbers outside the fixed columns than inside the window
// columns, which happens when merged or shifted cells push values out of
// place. The last number becomes the last window role, the one before it
// the role before that, and so on. Window roles left without a number are
// dropped from the row.
func (v *rowView) applyWindow(window []layout.Role) {
	if len(window) == 0 {
		return
	}
	inWindow := make(map[layout.Role]bool, len(window))
	for _, r := range window {
		inWindow[r] = true
	}
	fixed := map[int]bool{}
	windowCols := map[int]bool{}
	for role, c := range v.cols {
		if inWindow[role] {
			windowCols[c] = true
		} else {
			fixed[c] = true
		}
	}

	lo, hi := columnRange(v.cols)
	if len(v.cells)-1 > hi {
		hi = len(v.cells) - 1
	}
	var numbers []int
	placed := 0
	for c := lo; c <= hi && c < len(v.cells); c++ {
		if fixed[c] || !isNumeric(v.cells[c]) {
			continue
		}
		numbers = append(numbers, c)
		if windowCols[c] {
			placed++
		}
	}
	if len(numbers) <= placed {
		return
	}

	sort.Ints(numbers)
	if len(numbers) > len(window) {
		numbers = numbers[len(numbers)-len(window):]
	}
	offset := len(window) - len(numbers)
	for i, role := range window {
		if i < offset {
			delete(v.cols, role)
			continue
		}
		v.cols[role] = numbers[i-offset]
	}
}

func sortedRoles[T any](m map[layout.Role]T) []layout.Role {
	roles := make([]layout.Role, 0, len(m))
	for r := range m {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
