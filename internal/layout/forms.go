package layout

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/workbook"
)

var (
	floorLabel = regexp.MustCompile(`(?i)^(?:floor|palapag|flr)\.?\s*(?:no\.?)?\s*:?$`)
	unitLabel  = regexp.MustCompile(`(?i)^(?:unit|yunit)\s*(?:no\.?|number|#)?\s*:?$`)
)

// unitInventoryPlan reads the housing-unit header of a P-7-H form from the
// template's fixed coordinates.
func (r *Recognizer) unitInventoryPlan(sheet *workbook.Sheet, ref sheetRef) Plan {
	t := r.templates.UnitInventory
	if sheet.Index != t.Sheet {
		return &UnknownPlan{sheetRef: ref}
	}

	fields := make(map[string]CellRef, len(t.Header))
	cells := make(map[string]workbook.Cell, len(t.Header))
	for name, at := range t.Header {
		cell := sheet.Cell(at.Row, at.Col)
		cells[name] = cell
		fields[name] = CellRef{Sheet: sheet.Name, Row: at.Row, Col: at.Col, Value: cell.Text()}
	}
	text := func(name string) string { return strings.TrimSpace(fields[name].Value) }

	unit := ir.HousingUnit{
		HousingUnitName: text("housing_unit_name"),
		BuildingName:    text("building"),
		Floor:           text("floor"),
		Address:         text("address"),
		Occupant:        strings.Join(strings.Fields(text("occupant")), " "),
		Department:      text("department"),
		Section:         text("section"),
		JobTitle:        text("job_title"),
	}
	if floorLabel.MatchString(unit.Floor) {
		unit.Floor = ""
	}

	number := text("unit_number")
	if unitLabel.MatchString(number) {
		number = ""
	}
	if d := ir.FirstNumber(number); d != "" {
		unit.UnitNumber = d
	} else {
		unit.UnitNumber = ir.FirstNumber(unit.HousingUnitName)
	}

	unit.DateReported = ir.DateOnly(r.now())
	switch cell := cells["date_reported"]; cell.Kind {
	case workbook.Date:
		unit.DateReported = cell.Date
	case workbook.String:
		if d, ok := ir.ParseDate(stripPrefix(cell.Str, t.DatePrefix)); ok {
			unit.DateReported = d
		}
	}

	last, ignore := r.bodyRows(sheet, t.FirstItemRow)
	return &UnitInventoryPlan{
		sheetRef:          ref,
		Fields:            fields,
		Unit:              unit,
		FirstItemRow:      t.FirstItemRow,
		LastItemRow:       last,
		Columns:           copyColumns(t.Columns),
		DefaultUsefulLife: r.usefulLife,
		Ignore:            ignore,
	}
}

// buildingRegisterPlan recognizes a gusali register sheet by a building
// code in its code column. The year cell of the form overrides the year
// found by the header scan.
func (r *Recognizer) buildingRegisterPlan(sheet *workbook.Sheet, ref sheetRef, header *HeaderPlan) Plan {
	t := r.templates.BuildingRegister

	codes := make(map[string]ir.BuildingClass, len(t.Codes))
	for code, class := range t.Codes {
		codes[strings.ToUpper(code)] = ir.BuildingClass(class)
	}

	codeCol := t.Columns["code"]
	found := false
	for row := t.FirstRow; row < sheet.RowCount() && !found; row++ {
		_, found = codes[strings.ToUpper(sheet.Cell(row, codeCol).Text())]
	}
	if !found {
		return &UnknownPlan{sheetRef: ref}
	}

	if year, ok := yearCell(sheet.Cell(t.Year.Row, t.Year.Col)); ok {
		header.Year = &CellRef{Sheet: sheet.Name, Row: t.Year.Row, Col: t.Year.Col, Value: strconv.Itoa(year)}
		header.Values.Year = year
	}

	return &BuildingRegisterPlan{
		sheetRef:     ref,
		FirstRow:     t.FirstRow,
		Columns:      copyColumns(t.Columns),
		Codes:        codes,
		DonatedToken: strings.ToUpper(t.DonatedToken),
	}
}

// equipmentRegisterPlan maps the first sheet of a kagamitan register to
// existing items and the added sheet to added items.
func (r *Recognizer) equipmentRegisterPlan(sheet *workbook.Sheet, ref sheetRef) Plan {
	t := r.templates.EquipmentRegister

	var kind ir.ItemKind
	switch sheet.Index {
	case 0:
		kind = ir.ItemExisting
	case t.AddedSheet:
		kind = ir.ItemAdded
	default:
		return &UnknownPlan{sheetRef: ref}
	}
	last, ignore := r.bodyRows(sheet, t.FirstRow)
	return &EquipmentRegisterPlan{
		sheetRef:  ref,
		ItemKind:  kind,
		FirstRow:  t.FirstRow,
		LastRow:   last,
		Columns:   copyColumns(t.Columns),
		SkipToken: strings.ToUpper(t.SkipToken),
		Ignore:    ignore,
	}
}

// bodyRows bounds the data rows of a fixed form: they end before the first
// signature-block row, and totals rows inside are ignored.
func (r *Recognizer) bodyRows(sheet *workbook.Sheet, first int) (last int, ignore map[int]bool) {
	stop := newTokenMatcher(r.templates.Annual.StopTokens)
	totals := newTokenMatcher(r.templates.Annual.TotalsTokens)

	last = sheet.RowCount() - 1
	for row := first; row <= last; row++ {
		cells := sheet.Row(row)
		if rowMatches(cells, stop) {
			return row - 1, ignore
		}
		if rowMatches(cells, totals) {
			if ignore == nil {
				ignore = map[int]bool{}
			}
			ignore[row] = true
		}
	}
	return last, ignore
}

func yearCell(cell workbook.Cell) (int, bool) {
	switch cell.Kind {
	case workbook.Number:
		y := int(cell.Num)
		return y, y >= 1900 && y < 2200
	case workbook.Date:
		return cell.Date.Year(), true
	case workbook.String:
		if m := yearPattern.FindStringSubmatch(cell.Str); m != nil {
			return atoi(m[1]), true
		}
	}
	return 0, false
}

func stripPrefix(s, prefix string) string {
	s = strings.TrimSpace(s)
	if prefix != "" && len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return strings.TrimSpace(s[len(prefix):])
	}
	return s
}

func copyColumns(cols map[Role]int) map[Role]int {
	out := make(map[Role]int, len(cols))
	for k, v := range cols {
		out[k] = v
	}
	return out
}
