package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/workbook"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestRecognizer(opts ...Option) *Recognizer {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(DefaultTemplates(), opts...)
}

func cellOf(v any) workbook.Cell {
	switch x := v.(type) {
	case nil:
		return workbook.Cell{}
	case string:
		return workbook.StringCell(x)
	case int:
		return workbook.NumberCell(float64(x))
	case float64:
		return workbook.NumberCell(x)
	case time.Time:
		return workbook.DateCell(x)
	}
	panic("unsupported fixture value")
}

// grid builds a sheet from literal rows.
func grid(name string, index int, rows ...[]any) *workbook.Sheet {
	cells := make([][]workbook.Cell, len(rows))
	for r, row := range rows {
		cells[r] = make([]workbook.Cell, len(row))
		for c, v := range row {
			cells[r][c] = cellOf(v)
		}
	}
	return workbook.NewSheet(name, index, cells)
}

// placed builds a sheet from values at (row, col) coordinates.
func placed(name string, index int, values map[[2]int]any) *workbook.Sheet {
	maxRow := 0
	for rc := range values {
		if rc[0] > maxRow {
			maxRow = rc[0]
		}
	}
	rows := make([][]any, maxRow+1)
	for rc, v := range values {
		for len(rows[rc[0]]) <= rc[1] {
			rows[rc[0]] = append(rows[rc[0]], nil)
		}
		rows[rc[0]][rc[1]] = v
	}
	return grid(name, index, rows...)
}

func book(sheets ...*workbook.Sheet) *workbook.Workbook {
	return &workbook.Workbook{Format: workbook.FormatXLSX, Sheets: sheets}
}

func warningCodes(ws []ir.Warning) []ir.WarningCode {
	out := make([]ir.WarningCode, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

func TestRecognizeHeader(t *testing.T) {
	wb := book(grid("Page 1", 0,
		[]any{"DCODE: 01009"},
		[]any{"LCODE", "3"},
		[]any{"LOKAL", "San Pedro"},
		[]any{"YEAR: 2024"},
		[]any{"Petsa ng Pag-uulat:", "January 5, 2024"},
	))

	l := newTestRecognizer().Recognize(wb, ir.KindAnnualP7)

	assert.Empty(t, l.Warnings)
	assert.Equal(t, "01009", l.Header.Values.DCode)
	assert.Equal(t, "003", l.Header.Values.LCode)
	assert.Equal(t, "San Pedro", l.Header.Values.LocalName)
	assert.Equal(t, 2024, l.Header.Values.Year)
	require.NotNil(t, l.Header.Values.DateReported)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), *l.Header.Values.DateReported)

	require.NotNil(t, l.Header.DCode)
	assert.Equal(t, 0, l.Header.DCode.Row)
	require.NotNil(t, l.Header.LCode)
	assert.Equal(t, 1, l.Header.LCode.Row)
}

func TestRecognizeHeaderNamedCode(t *testing.T) {
	wb := book(grid("Sheet1", 0,
		[]any{"Distrito 01009"},
		[]any{"Local Code: 12"},
		[]any{"SAN ROQUE (012)"},
	))

	l := newTestRecognizer().Recognize(wb, ir.KindAnnualP7)

	assert.Equal(t, "01009", l.Header.Values.DCode)
	assert.Equal(t, "012", l.Header.Values.LCode)
	assert.Equal(t, "SAN ROQUE", l.Header.Values.LocalName)
}

func TestRecognizeHeaderFallbacks(t *testing.T) {
	wb := book(grid("Sheet1", 0, []any{"Hello"}))

	l := newTestRecognizer().Recognize(wb, ir.KindAnnualP7)

	assert.Equal(t, ir.DefaultDCode, l.Header.Values.DCode)
	assert.Equal(t, ir.DefaultLCode, l.Header.Values.LCode)
	assert.Equal(t, 2025, l.Header.Values.Year, "year falls back to the ingestion year")
	assert.Equal(t, []ir.WarningCode{ir.WarnAmbiguousHeader, ir.WarnAmbiguousHeader, ir.WarnAmbiguousHeader}, warningCodes(l.Warnings))
}

func TestRecognizeHeaderSuspiciousLCode(t *testing.T) {
	wb := book(grid("Sheet1", 0,
		[]any{"DCODE: 01009"},
		[]any{"LCODE: 12345"},
		[]any{"YEAR: 2024"},
	))

	l := newTestRecognizer().Recognize(wb, ir.KindAnnualP7)

	assert.Equal(t, "01009", l.Header.Values.DCode)
	assert.Equal(t, ir.DefaultLCode, l.Header.Values.LCode)
	assert.Equal(t, []ir.WarningCode{ir.WarnSuspiciousCode}, warningCodes(l.Warnings))
}

func TestRecognizeHeaderPadsAndAliasesLCode(t *testing.T) {
	wb := book(grid("Sheet1", 0,
		[]any{"DCODE: 01009"},
		[]any{"LCODE: 1"},
		[]any{"YEAR: 2024"},
	))

	l := newTestRecognizer().Recognize(wb, ir.KindAnnualP7)
	assert.Equal(t, "001", l.Header.Values.LCode)

	l = newTestRecognizer(WithLCodeAliases(map[string]string{"1": "17"})).Recognize(wb, ir.KindAnnualP7)
	assert.Equal(t, "017", l.Header.Values.LCode)
}

func TestRecognizeHeaderLocalNameOnlyFromLabelRows(t *testing.T) {
	rows := [][]any{
		{"DCODE: 01009"},
		{"LCODE: 3"},
		{"YEAR: 2024"},
		{"KAPILYA"},
		{"Main Chapel", "A-1", nil, 300, "Local", 500000, 100000, 10000, 0, 0, 0, 5000, "leak", 105000},
		{"LOKAL", "Annex", 12},
	}
	for len(rows) < headerZone {
		rows = append(rows, []any{})
	}
	rows = append(rows, []any{"LOKAL", "Far Below"})

	l := newTestRecognizer().Recognize(book(grid("Page 1", 0, rows...)), ir.KindAnnualP7)

	assert.Nil(t, l.Header.LocalName)
	assert.Empty(t, l.Header.Values.LocalName)
	assert.Equal(t, "003", l.Header.Values.LCode)
}

func TestIsHeaderFieldRow(t *testing.T) {
	tests := []struct {
		name string
		row  []any
		want bool
	}{
		{"label and value in one cell", []any{"DCODE: 01009"}, true},
		{"numeric value beside label", []any{"LCODE:", 3}, true},
		{"two pairs on one row", []any{"DCODE:", "01009", "YEAR:", 2024}, true},
		{"named local", []any{"SAN ROQUE (012)"}, true},
		{"local label", []any{"LOKAL", "San Pedro"}, true},
		{"column headers", []any{"IIN", "DATE", "QTY", "ITEM", "AMOUNT"}, false},
		{"building headers mention year", []any{"NAME", "LAST YEAR", "TOTAL COST"}, false},
		{"data row", []any{"Main Chapel", "A-1", nil, 300, "Local"}, false},
		{"label with trailing data", []any{"YEAR", 2024, "x", "y", "z"}, false},
		{"empty", []any{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cells := make([]workbook.Cell, len(tt.row))
			for i, v := range tt.row {
				cells[i] = cellOf(v)
			}
			assert.Equal(t, tt.want, isHeaderFieldRow(cells))
		})
	}
}

func TestAnnualSingleSectionBelowHeaderBlock(t *testing.T) {
	wb := book(grid("Page 2", 0,
		[]any{"DCODE:", "01009"},
		[]any{"LCODE:", 3},
		[]any{"YEAR:", 2024},
		[]any{"IIN", "DATE", "QTY", "ITEM", "BRAND", "MODEL", "MAKE", "COLOR", "SIZE", "SERIAL", "UNIT PRICE", "AMOUNT", "REMARKS"},
		[]any{"12-002", nil, 1, "Stove", "La Germania", nil, nil, nil, nil, nil, 8000, 8000},
	))

	l := newTestRecognizer().Recognize(wb, ir.KindAnnualP7)
	assert.Equal(t, "003", l.Header.Values.LCode)
	assert.Equal(t, 2024, l.Header.Values.Year)

	plan := l.Plans[0].(*AnnualPlan)
	require.Len(t, plan.Sections, 1)
	sec := plan.Sections[0]
	assert.Equal(t, 3, sec.HeaderRow, "numeric header values do not end the column-header search")
	assert.Equal(t, 4, sec.StartRow)
	assert.Equal(t, 4, sec.EndRow)
	assert.Equal(t, 11, sec.Columns["amount"])
}

func TestClassifyAnnual(t *testing.T) {
	tests := []struct {
		name  string
		sheet *workbook.Sheet
		want  ir.SheetClass
	}{
		{"by name", grid("Page 3", 0), ir.SheetP7Page3},
		{"by tagalog name", grid("Pahina 5", 0), ir.SheetP7Page5},
		{"by short name", grid("P4", 0), ir.SheetP7Page4},
		{"by IIN header", grid("Sheet1", 0, []any{"DCODE: 01009"}, []any{"IIN", "PETSA", "DAMI"}), ir.SheetP7Page2},
		{"by added heading", grid("Sheet1", 0, []any{"MGA NADAGDAG NA KAGAMITAN"}, []any{"IIN"}), ir.SheetP7Page3},
		{"by chapel heading", grid("Sheet1", 0, []any{"KAPILYA"}), ir.SheetP7Page1},
		{"by land heading", grid("Sheet1", 0, []any{"LUPA"}), ir.SheetP7Page5},
		{"unknown", grid("Notes", 0, []any{"Hello"}), ir.SheetUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyAnnual(tt.sheet))
		})
	}
}

func TestAnnualBuildingSections(t *testing.T) {
	header := []any{nil, "NAME", "CLASS", "DATE BUILT", "CAPACITY", "FUNDED BY", "ORIGINAL COST",
		"LAST YEAR", "CONSTRUCTION", "RENOVATION", "GENERAL REPAIR", "OTHER ADD", "DEDUCTION",
		"REASON", "TOTAL COST", "REMARKS"}
	wb := book(grid("Page 1", 0,
		[]any{"DCODE: 01009"},
		[]any{"LCODE: 3"},
		[]any{"LOKAL", "San Pedro"},
		[]any{"YEAR: 2024"},
		[]any{"KAPILYA"},
		header,
		[]any{nil, "Main Chapel", "A-1", nil, 300, "Local", 500000, 100000, 10000, 0, 0, 0, 5000, "leak", 105000},
		[]any{nil, "TOTAL", nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, 105000},
		[]any{"PASTORAL HOUSE"},
		[]any{"Pastoral", "B-2", nil, nil, nil, 0, 50000},
		[]any{"Prepared by:"},
		[]any{"OTHER BUILDINGS"},
	))

	l := newTestRecognizer().Recognize(wb, ir.KindAnnualP7)
	require.Len(t, l.Plans, 1)
	plan, ok := l.Plans[0].(*AnnualPlan)
	require.True(t, ok)
	assert.Equal(t, ir.SheetP7Page1, plan.Class())
	require.Len(t, plan.Sections, 2, "rows after the stop token are ignored")

	chapel := plan.Sections[0]
	assert.Equal(t, ir.SectionChapel, chapel.Kind)
	assert.Equal(t, 5, chapel.HeaderRow)
	assert.Equal(t, 6, chapel.StartRow)
	assert.Equal(t, 7, chapel.EndRow)
	assert.Equal(t, 1, chapel.Columns["name"], "header labels relocate roles")
	assert.Equal(t, 14, chapel.Columns["total"])
	assert.Equal(t, map[int]bool{7: true}, chapel.Ignore)

	pastoral := plan.Sections[1]
	assert.Equal(t, ir.SectionPastoralHouse, pastoral.Kind)
	assert.Equal(t, -1, pastoral.HeaderRow)
	assert.Equal(t, 9, pastoral.StartRow)
	assert.Equal(t, 9, pastoral.EndRow)
	assert.Equal(t, 0, pastoral.Columns["name"], "default columns without a header row")
}

func TestAnnualItemSectionLabels(t *testing.T) {
	wb := book(grid("P2", 0,
		[]any{"IIN", "DATE", "QTY", "ITEM", "BRAND", "MODEL", "MAKE", "COLOR", "SIZE", "SERIAL", "UNIT PRICE", "AMOUNT", "REMARKS"},
		[]any{"KUSINA"},
		[]any{"12-001", nil, 2, "Electric fan", "Asahi", nil, nil, nil, nil, nil, 1500, 3000},
		[]any{"TOTAL", nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, 3000},
	))

	l := newTestRecognizer().Recognize(wb, ir.KindAnnualP7)
	plan := l.Plans[0].(*AnnualPlan)
	require.Len(t, plan.Sections, 1)

	sec := plan.Sections[0]
	assert.Equal(t, ir.SectionItem, sec.Kind)
	assert.Equal(t, 0, sec.HeaderRow)
	assert.Equal(t, 1, sec.StartRow)
	assert.Equal(t, 3, sec.EndRow)
	assert.Equal(t, map[int]string{1: "KUSINA"}, sec.Labels)
	assert.Equal(t, map[int]bool{3: true}, sec.Ignore)
	assert.Equal(t, 10, sec.Columns["unit_price"])
	assert.Equal(t, []Role{"name"}, sec.Required)
}

func TestRelocateDropsShadowedRoles(t *testing.T) {
	cols := map[Role]int{"a": 0, "b": 1, "c": 2}
	relocate(cols, map[Role]int{"a": 1})
	assert.Equal(t, map[Role]int{"a": 1, "c": 2}, cols)
}

func unitInventorySheet(unitNumber any) *workbook.Sheet {
	return placed("P-7-H", 0, map[[2]int]any{
		{1, 47}: "Petsa ng Pag-uulat: January 5, 2024",
		{4, 12}: "Juan  Dela Cruz",
		{4, 33}: "Finance",
		{4, 42}: "Payroll",
		{4, 54}: "Clerk",
		{5, 5}:  "Unit 22",
		{5, 14}: "Bldg A",
		{5, 20}: "2F",
		{5, 25}: unitNumber,
		{5, 31}: "Central Office",
	})
}

func TestUnitInventoryPlan(t *testing.T) {
	l := newTestRecognizer().Recognize(book(unitInventorySheet("Unit no.")), ir.KindInventory)

	assert.Empty(t, l.Warnings, "inventory forms carry no report header")
	require.Len(t, l.Plans, 1)
	plan, ok := l.Plans[0].(*UnitInventoryPlan)
	require.True(t, ok)

	u := plan.Unit
	assert.Equal(t, "22", u.UnitNumber, "digits come from the housing-unit name")
	assert.Equal(t, "Unit 22", u.HousingUnitName)
	assert.Equal(t, "Juan Dela Cruz", u.Occupant)
	assert.Equal(t, "2F", u.Floor)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), u.DateReported)
	assert.Equal(t, 9, plan.FirstItemRow)
	assert.Equal(t, 45, plan.Columns["acquisition_cost"])
}

func TestUnitInventoryPlanUnitNumberCell(t *testing.T) {
	l := newTestRecognizer().Recognize(book(unitInventorySheet("Unit no. 7")), ir.KindInventory)
	assert.Equal(t, "7", l.Plans[0].(*UnitInventoryPlan).Unit.UnitNumber)
}

func TestUnitInventoryPlanDefaults(t *testing.T) {
	sheet := placed("P-7-H", 0, map[[2]int]any{
		{4, 12}: "Ana Reyes",
		{5, 20}: "Floor",
	})
	other := grid("Notes", 1, []any{"x"})

	l := newTestRecognizer().Recognize(book(sheet, other), ir.KindInventory)

	plan := l.Plans[0].(*UnitInventoryPlan)
	assert.Equal(t, "", plan.Unit.Floor, "a label-only floor cell is blank")
	assert.Equal(t, ir.DateOnly(fixedNow), plan.Unit.DateReported)
	assert.Equal(t, ir.SheetUnknown, l.Plans[1].Class())
}

func TestBuildingRegisterPlan(t *testing.T) {
	sheet := placed("Gusali", 0, map[[2]int]any{
		{0, 0}: "DCODE: 01009",
		{1, 0}: "LCODE: 3",
		{3, 6}: 2023,
		{6, 0}: "A",
		{6, 1}: "Main Chapel",
	})
	empty := grid("Sheet2", 1, []any{"nothing here"})

	l := newTestRecognizer().Recognize(book(sheet, empty), ir.KindBuildingRegister)

	assert.Equal(t, 2023, l.Header.Values.Year)
	require.NotNil(t, l.Header.Year)
	assert.Equal(t, 3, l.Header.Year.Row)
	assert.Empty(t, l.Warnings)

	plan, ok := l.Plans[0].(*BuildingRegisterPlan)
	require.True(t, ok)
	assert.Equal(t, ir.ClassChapel, plan.Codes["A"])
	assert.Equal(t, "HANDOG", plan.DonatedToken)
	assert.Equal(t, 18, plan.Columns["total"])
	assert.Equal(t, ir.SheetUnknown, l.Plans[1].Class())
}

func TestEquipmentRegisterPlans(t *testing.T) {
	wb := book(
		grid("Existing", 0, []any{"Year", 2024, "Lcode", "3"}),
		grid("Added", 1),
		grid("Extra", 2),
	)

	l := newTestRecognizer().Recognize(wb, ir.KindEquipmentRegister)

	require.Len(t, l.Plans, 3)
	assert.Equal(t, ir.ItemExisting, l.Plans[0].(*EquipmentRegisterPlan).ItemKind)
	assert.Equal(t, ir.ItemAdded, l.Plans[1].(*EquipmentRegisterPlan).ItemKind)
	assert.Equal(t, ir.SheetUnknown, l.Plans[2].Class())
	assert.Equal(t, 2024, l.Header.Values.Year)
	assert.Equal(t, "003", l.Header.Values.LCode)
}

func TestLoadTemplatesOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forms.cue")
	require.NoError(t, os.WriteFile(path, []byte("unit_inventory: first_item_row: 12\n"), 0o600))

	tmpl, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Equal(t, 12, tmpl.UnitInventory.FirstItemRow)
	assert.Equal(t, Coord{Row: 4, Col: 12}, tmpl.UnitInventory.Header["occupant"], "unchanged fields keep their defaults")
	assert.Equal(t, "HANDOG", tmpl.BuildingRegister.DonatedToken)
	assert.Len(t, tmpl.Annual.Sections, 10)
}

func TestLoadTemplatesRejectsNegativeCoordinates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte("unit_inventory: first_item_row: -1\n"), 0o600))

	_, err := LoadTemplates(path)
	assert.Error(t, err)
}

func TestDescribeUnitInventoryGolden(t *testing.T) {
	l := newTestRecognizer().Recognize(book(unitInventorySheet("Unit no.")), ir.KindInventory)

	got, err := Describe(l)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "unit_inventory_layout", got)
}
