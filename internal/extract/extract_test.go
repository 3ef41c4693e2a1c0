package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/layout"
	"github.com/roach88/pamana/internal/workbook"
)

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

func pad(n int, v ...any) []any {
	return append(make([]any, n), v...)
}

func run(t *testing.T, kind ir.Kind, sheets ...*workbook.Sheet) Collected {
	t.Helper()
	wb := &workbook.Workbook{Format: workbook.FormatXLSX, Sheets: sheets}
	rec := layout.New(layout.DefaultTemplates(), layout.WithClock(func() time.Time {
		return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	}))
	return Collect(Workbook(wb, rec.Recognize(wb, kind)))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

var reportHeader = [][]any{
	{"DCODE: 01009"},
	{"LCODE: 003"},
	{"YEAR: 2024"},
}

func page(name string, rows ...[]any) *workbook.Sheet {
	return grid(name, 0, append(append([][]any{}, reportHeader...), rows...)...)
}

func TestChapelTotal(t *testing.T) {
	got := run(t, ir.KindAnnualP7, page("Page 1",
		[]any{"KAPILYA"},
		[]any{"Main Chapel", "A-1", nil, 300, "Local", 500000, 100000, 10000, 0, 0, 0, 5000, "leak", 105000},
	))

	assert.Empty(t, got.Skips)
	assert.Empty(t, got.Warnings)
	require.Len(t, got.Records, 2)

	hdr := got.Records[0]
	assert.Equal(t, ir.SectionHeader, hdr.Section)
	assert.Equal(t, -1, hdr.Row)
	h := hdr.Data.(*ir.Header)
	assert.Equal(t, "01009", h.DCode)
	assert.Equal(t, "003", h.LCode)
	assert.Equal(t, 2024, h.Year)

	rec := got.Records[1]
	assert.Equal(t, ir.SectionChapel, rec.Section)
	assert.Equal(t, 4, rec.Row)
	b := rec.Data.(*ir.Building)
	assert.Equal(t, ir.ClassChapel, b.Class)
	assert.Equal(t, "Main Chapel", b.Name)
	assert.Equal(t, "A-1", b.Classification)
	assert.Equal(t, 300, b.SeatingCapacity)
	assertDec(t, "100000", b.LastYearCost)
	assertDec(t, "10000", b.AddConstruction)
	assertDec(t, "5000", b.Deduction)
	assertDec(t, "105000", b.TotalCostThisYear)
}

func TestBuildingRightAnchoredWindow(t *testing.T) {
	row := []any{"Hall", "A-1", nil, nil, nil, 200000}
	row = append(row, make([]any, 9)...)
	row = append(row, 100000, 10000, 110000)

	got := run(t, ir.KindAnnualP7, page("Page 1", []any{"OFFICE"}, row))

	require.Len(t, got.Records, 2)
	b := got.Records[1].Data.(*ir.Building)
	assertDec(t, "200000", b.OriginalCost)
	assertDec(t, "100000", b.LastYearCost)
	assertDec(t, "10000", b.AddConstruction)
	assertDec(t, "110000", b.TotalCostThisYear)
	assert.Empty(t, got.Warnings)
}

func TestBuildingWarnings(t *testing.T) {
	got := run(t, ir.KindAnnualP7, page("Page 1",
		[]any{"IBA PANG GUSALI"},
		[]any{"Shed", nil, nil, nil, nil, nil, 1000, nil, nil, nil, nil, 5000},
		[]any{"Garage", nil, nil, nil, nil, nil, 1000, 500, nil, nil, nil, nil, nil, 999},
	))

	require.Len(t, got.Records, 3)
	assert.Equal(t, ir.SectionOtherBuilding, got.Records[1].Section)
	assertDec(t, "0", got.Records[1].Data.(*ir.Building).TotalCostThisYear)
	assertDec(t, "1500", got.Records[2].Data.(*ir.Building).TotalCostThisYear)

	require.Len(t, got.Warnings, 2)
	assert.Equal(t, ir.WarnNegativeTotal, got.Warnings[0].Code)
	assert.Equal(t, 4, got.Warnings[0].Row)
	assert.Equal(t, ir.WarnTotalMismatch, got.Warnings[1].Code)
	assert.Equal(t, 5, got.Warnings[1].Row)
}

func TestItemsWithKaukulanAndDerivedAmounts(t *testing.T) {
	got := run(t, ir.KindAnnualP7, page("Page 2",
		[]any{"IIN", "DATE", "QTY", "ITEM", "BRAND", "MODEL", "MAKE", "COLOR", "SIZE", "SERIAL", "UNIT PRICE", "AMOUNT", "REMARKS"},
		[]any{"KUSINA"},
		[]any{"12-001", "January 5, 2020", 2.5, "Electric fan", "Asahi", nil, nil, nil, nil, nil, 100},
		[]any{"12-002", nil, 2, "Stove", nil, nil, nil, nil, nil, nil, 100, 250},
		[]any{"TOTAL", nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, 450},
		[]any{"KORO"},
		[]any{"12-003", nil, 1, nil, nil, nil, nil, nil, nil, nil, 50, 50},
		[]any{"12-004", nil, 1, "Chair", nil, nil, nil, nil, nil, nil, "abc", 50},
		[]any{"12-005", nil, 4, "Bench", nil, nil, nil, nil, nil, nil, "₱1,250.00", "PHP 5,000"},
	))

	require.Len(t, got.Records, 4, "header plus three items")
	fan := got.Records[1].Data.(*ir.Item)
	assert.Equal(t, "KUSINA", got.Records[1].Kaukulan)
	assert.Equal(t, "KUSINA", fan.Kaukulan)
	assert.Equal(t, ir.ItemExisting, fan.Kind)
	assert.Equal(t, 2, fan.Quantity)
	assertDec(t, "200", fan.Amount, "amount derived from quantity and unit price")
	require.NotNil(t, fan.DateReceived)
	assert.Equal(t, time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC), *fan.DateReceived)

	stove := got.Records[2].Data.(*ir.Item)
	assertDec(t, "250", stove.Amount, "a stated amount is kept")

	bench := got.Records[3].Data.(*ir.Item)
	assert.Equal(t, "KORO", bench.Kaukulan)
	assertDec(t, "1250", bench.UnitPrice)
	assertDec(t, "5000", bench.Amount)

	codes := []ir.WarningCode{}
	for _, w := range got.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []ir.WarningCode{ir.WarnNonIntegerQuantity, ir.WarnAmountMismatch}, codes)

	require.Len(t, got.Skips, 2)
	assert.Equal(t, ir.SkipMissingRequiredColumn, got.Skips[0].Reason)
	assert.Equal(t, 9, got.Skips[0].Row)
	assert.Equal(t, ir.SkipRowParseFailed, got.Skips[1].Reason)
	assert.Equal(t, 10, got.Skips[1].Row)
}

func TestItemsBelowNumericHeaderBlock(t *testing.T) {
	got := run(t, ir.KindAnnualP7, grid("Page 2", 0,
		[]any{"DCODE:", "01009"},
		[]any{"LCODE:", 3},
		[]any{"YEAR:", 2024},
		[]any{"IIN", "DATE", "QTY", "ITEM", "BRAND", "MODEL", "MAKE", "COLOR", "SIZE", "SERIAL", "UNIT PRICE", "AMOUNT", "REMARKS"},
		[]any{"12-002", nil, 1, "Stove", "La Germania", nil, nil, nil, nil, nil, 8000, 8000},
	))

	assert.Empty(t, got.Skips, "header and column-header rows are not data")
	require.Len(t, got.Records, 2)
	h := got.Records[0].Data.(*ir.Header)
	assert.Equal(t, "003", h.LCode)
	assert.Equal(t, 2024, h.Year)

	rec := got.Records[1]
	assert.Equal(t, ir.SectionItem, rec.Section)
	assert.Equal(t, 4, rec.Row)
	it := rec.Data.(*ir.Item)
	assert.Equal(t, "Stove", it.Name)
	assertDec(t, "8000", it.Amount)
}

func TestAddedAndRemovedItems(t *testing.T) {
	got := run(t, ir.KindAnnualP7,
		grid("Page 3", 0,
			[]any{"IIN", "DATE", "QTY", "ITEM", "BRAND", "MAKE", "COLOR", "SIZE", "SERIAL", "UNIT PRICE", "AMOUNT", "APPROVAL", "REMARKS"},
			[]any{"13-001", nil, 1, "Projector", nil, nil, nil, nil, nil, 20000, 20000, "AP-7"},
		),
		grid("Page 4", 1,
			[]any{"SOURCE", "IIN", "DATE", "QTY", "ITEM", "UNIT PRICE", "AMOUNT", "REASON", "APPROVAL"},
			[]any{"Kapilya", "10-009", nil, 1, "Old fan", 500, 500, "broken", "AP-9"},
		),
	)

	require.Len(t, got.Records, 3)
	added := got.Records[1].Data.(*ir.Item)
	assert.Equal(t, ir.SectionAddedItem, got.Records[1].Section)
	assert.Equal(t, ir.ItemAdded, added.Kind)
	assert.Equal(t, "AP-7", added.ApprovalNumber)

	removed := got.Records[2].Data.(*ir.Item)
	assert.Equal(t, ir.SectionRemovedItem, got.Records[2].Section)
	assert.Equal(t, ir.ItemRemoved, removed.Kind)
	assert.Equal(t, "Kapilya", removed.SourcePlace)
	assert.Equal(t, "broken", removed.Reason)
	assertDec(t, "500", removed.Amount)
}

func TestPageFiveAssets(t *testing.T) {
	got := run(t, ir.KindAnnualP7, page("Page 5",
		[]any{"LUPA"},
		[]any{"Purok 1, San Pedro", 250, nil, 750000, "Kapilya"},
		[]any{"PANANIM"},
		[]any{"Mangga", "Fruit tree", 7, 3, nil, 100},
		[]any{"SASAKYAN"},
		[]any{"Toyota Hiace", "ABC 123", 2019, nil, "Bro. Cruz", "Driver", 1200000},
	))

	assert.Empty(t, got.Skips)
	require.Len(t, got.Records, 4)

	land := got.Records[1].Data.(*ir.Land)
	assertDec(t, "250", land.AreaSqm)
	assertDec(t, "750000", land.Value)
	assert.Equal(t, "Kapilya", land.BuildingOnLand)

	plant := got.Records[2].Data.(*ir.Plant)
	assert.Equal(t, 10, plant.TotalQuantity)
	assertDec(t, "1000", plant.TotalValue)

	vehicle := got.Records[3].Data.(*ir.Vehicle)
	assert.Equal(t, "2019", vehicle.YearModel)
	assertDec(t, "1200000", vehicle.Cost)
}

func TestEmptySheetYieldsOnlyHeader(t *testing.T) {
	got := run(t, ir.KindAnnualP7, grid("Page 1", 0))
	require.Len(t, got.Records, 1)
	assert.Equal(t, ir.SectionHeader, got.Records[0].Section)
	assert.Empty(t, got.Skips)
}

func unitSheet(occupant string, items ...[]any) *workbook.Sheet {
	rows := make([][]any, 9)
	rows[1] = pad(47, "Petsa ng Pag-uulat: January 5, 2024")
	rows[4] = pad(12, occupant)
	rows[5] = append(pad(5, "Unit 22"), make([]any, 20)...)
	rows[5][25] = "Unit no."
	return grid("P-7-H", 0, append(rows, items...)...)
}

func inventoryRow(code, name string, qty, cost, life any) []any {
	row := make([]any, 53)
	row[1] = code
	row[7] = qty
	row[9] = name
	row[45] = cost
	row[49] = life
	return row
}

func TestUnitInventory(t *testing.T) {
	got := run(t, ir.KindInventory, unitSheet("Juan Dela Cruz",
		inventoryRow("INV-1", "Bed", 2, 1000, 4),
		inventoryRow("INV-2", "", 1, 500, nil),
		inventoryRow("INV-3", "Cabinet", 1, 3000, nil),
		pad(1, "Inihanda ni:"),
		inventoryRow("INV-4", "After footer", 1, 1, 1),
	))

	require.Len(t, got.Records, 3)
	unit := got.Records[0]
	assert.Equal(t, ir.SectionHousingUnit, unit.Section)
	u := unit.Data.(*ir.HousingUnit)
	assert.Equal(t, "22", u.UnitNumber)
	assert.Equal(t, "Juan Dela Cruz", u.Occupant)

	bed := got.Records[1].Data.(*ir.InventoryItem)
	assert.Equal(t, ir.SectionInventoryItem, got.Records[1].Section)
	assert.Equal(t, "INV-1", bed.ItemCode)
	assert.Equal(t, 2, bed.Quantity)
	assert.Equal(t, 4, bed.UsefulLife)
	assertDec(t, "1000", bed.AcquisitionCost)

	cabinet := got.Records[2].Data.(*ir.InventoryItem)
	assert.Equal(t, layout.DefaultUsefulLife, cabinet.UsefulLife)

	require.Len(t, got.Skips, 1)
	assert.Equal(t, 10, got.Skips[0].Row)
}

func TestUnitInventoryWithoutOccupant(t *testing.T) {
	got := run(t, ir.KindInventory, unitSheet("", inventoryRow("INV-1", "Bed", 1, 1000, 4)))

	assert.Empty(t, got.Records)
	require.Len(t, got.Skips, 1)
	assert.Equal(t, ir.SectionHousingUnit, got.Skips[0].Section)
	assert.Equal(t, ir.SkipMissingRequiredColumn, got.Skips[0].Reason)
}

func TestBuildingRegister(t *testing.T) {
	rows := make([][]any, 6)
	rows[0] = []any{"DCODE: 01009"}
	rows[1] = []any{"LCODE: 3"}
	rows[3] = pad(6, 2024)
	rows = append(rows,
		[]any{"A", "Main Chapel", 500000, "A-1", "HANDOG", nil, nil, "Local", 300, 100000, 10000, 0, 0, 0, 10000, "", "roof", 5000, 105000},
		[]any{"X", "not a building"},
		[]any{"D", "Storage", 0, nil, "Binili", nil, nil, nil, nil, 20000, nil, nil, nil, nil, nil, nil, nil, nil, 20000},
	)

	got := run(t, ir.KindBuildingRegister, grid("Gusali", 0, rows...))

	assert.Empty(t, got.Skips)
	assert.Empty(t, got.Warnings)
	require.Len(t, got.Records, 3)
	assert.Equal(t, 2024, got.Records[0].Data.(*ir.Header).Year)

	chapel := got.Records[1].Data.(*ir.Building)
	assert.Equal(t, ir.SectionChapel, got.Records[1].Section)
	assert.Equal(t, "A", chapel.Code)
	assert.True(t, chapel.Donated)
	assert.Equal(t, "roof", chapel.DeductionReason)
	assertDec(t, "105000", chapel.TotalCostThisYear)

	other := got.Records[2].Data.(*ir.Building)
	assert.Equal(t, ir.ClassOther, other.Class)
	assert.False(t, other.Donated)
	assertDec(t, "20000", other.TotalCostThisYear)
}

func TestEquipmentRegister(t *testing.T) {
	existing := [][]any{
		{"Year", 2024, "Lcode", "3"},
		{"Dcode", "01009"},
		nil, nil, nil,
		{"Location", "Property No.", "Year", "Qty", "Item"},
		{"Kapilya", "P-001", 2019, 2, "Electric fan", "Asahi", nil, "plastic", "white", "16in", 1500, nil, 3000},
		{"Kapilya", "P-002", 2020, 1, nil},
	}
	added := [][]any{nil, nil, nil, nil, nil,
		{"Opisina", "P-010", 2024, 1, "Printer", "Epson", "L3210", nil, nil, nil, nil, 9000, 9000},
	}

	got := run(t, ir.KindEquipmentRegister, grid("Existing", 0, existing...), grid("Added", 1, added...))

	require.Len(t, got.Records, 3)
	fan := got.Records[1].Data.(*ir.Item)
	assert.Equal(t, ir.ItemExisting, fan.Kind)
	assert.Equal(t, "Kapilya", fan.Kaukulan)
	assert.Equal(t, "P-001", fan.IIN)
	assert.Equal(t, 2019, fan.AcquisitionYear)
	assert.Equal(t, "plastic", fan.Make)
	assertDec(t, "1500", fan.UnitPrice, "unit price falls back to the alternate column")
	assertDec(t, "3000", fan.Amount)

	printer := got.Records[2].Data.(*ir.Item)
	assert.Equal(t, ir.SectionAddedItem, got.Records[2].Section)
	assert.Equal(t, ir.ItemAdded, printer.Kind)

	require.Len(t, got.Skips, 1)
	assert.Equal(t, 7, got.Skips[0].Row)
}

func TestWorkbookStopsEarly(t *testing.T) {
	wb := &workbook.Workbook{Format: workbook.FormatXLSX, Sheets: []*workbook.Sheet{page("Page 1",
		[]any{"KAPILYA"},
		[]any{"A", nil, nil, nil, nil, nil, 1},
		[]any{"B", nil, nil, nil, nil, nil, 2},
	)}}
	l := layout.New(layout.DefaultTemplates()).Recognize(wb, ir.KindAnnualP7)

	n := 0
	for range Workbook(wb, l) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
