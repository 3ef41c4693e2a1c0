package extract

import (
	"strings"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/layout"
	"github.com/roach88/pamana/internal/workbook"
)

// unitInventory yields the housing-unit record, then one record per item
// row. A unit without an occupant is skipped along with its items.
func unitInventory(sheet *workbook.Sheet, p *layout.UnitInventoryPlan, yield func(Result) bool) {
	unitRow := newRowView(sheet.Name, -1, ir.SectionHousingUnit, nil, nil)
	if p.Unit.Occupant == "" {
		yield(Result{Skip: unitRow.skip(ir.SkipMissingRequiredColumn, "occupant is blank")})
		return
	}
	unit := p.Unit
	if !emit(yield, unitRow, &unit, "", nil) {
		return
	}

	for row := p.FirstItemRow; row <= p.LastItemRow; row++ {
		if p.Ignore[row] {
			continue
		}
		v := newRowView(sheet.Name, row, ir.SectionInventoryItem, sheet.Row(row), p.Columns)
		if v.blank() {
			continue
		}
		var (
			rec  ir.Record
			skip *ir.Skip
		)
		if !v.has("item_name") {
			skip = v.skip(ir.SkipMissingRequiredColumn, "item_name is blank")
		} else {
			item, err := parseInventoryItem(v, p.DefaultUsefulLife)
			if err != nil {
				skip = v.skip(ir.SkipRowParseFailed, err.Error())
			} else {
				rec = item
			}
		}
		if !emit(yield, v, rec, "", skip) {
			return
		}
	}
}

func parseInventoryItem(v *rowView, defaultLife int) (*ir.InventoryItem, error) {
	it := &ir.InventoryItem{
		ItemCode:     v.str("item_code"),
		DateAcquired: v.date("date_acquired"),
		Name:         v.str("item_name"),
		Brand:        v.str("brand"),
		Model:        v.str("model"),
		Make:         v.str("make"),
		Color:        v.str("color"),
		Size:         v.str("size"),
		Serial:       v.str("serial"),
		Remarks:      v.str("remarks"),
	}
	if it.DateAcquired != nil {
		it.AcquisitionYear = it.DateAcquired.Year()
	} else {
		it.AcquisitionYear = v.year("date_acquired")
	}

	var err error
	if it.Quantity, err = v.qty("quantity"); err != nil {
		return nil, err
	}
	if it.AcquisitionCost, err = v.money("acquisition_cost"); err != nil {
		return nil, err
	}
	it.UsefulLife = defaultLife
	if v.has("useful_life") {
		if it.UsefulLife, err = v.qty("useful_life"); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// buildingRegister yields one building per row whose code column holds a
// known building code. Other rows are not data.
func buildingRegister(sheet *workbook.Sheet, p *layout.BuildingRegisterPlan, yield func(Result) bool) {
	for row := p.FirstRow; row < sheet.RowCount(); row++ {
		cells := sheet.Row(row)
		code := strings.ToUpper(strings.TrimSpace(cellAt(cells, p.Columns["code"]).Text()))
		class, ok := p.Codes[code]
		if !ok {
			continue
		}
		v := newRowView(sheet.Name, row, class.Section(), cells, p.Columns)
		b, err := parseRegisterBuilding(v, class, code, p.DonatedToken)
		var skip *ir.Skip
		if err != nil {
			skip = v.skip(ir.SkipRowParseFailed, err.Error())
		}
		var rec ir.Record
		if b != nil {
			rec = b
		}
		if !emit(yield, v, rec, "", skip) {
			return
		}
	}
}

func parseRegisterBuilding(v *rowView, class ir.BuildingClass, code, donatedToken string) (*ir.Building, error) {
	b, err := parseBuilding(v, class)
	if err != nil {
		return nil, err
	}
	b.Code = code
	b.Donated = donatedToken != "" && strings.Contains(strings.ToUpper(v.str("donation_status")), donatedToken)
	b.DateDonated = v.date("date_donated")
	b.DateOwned = v.date("date_owned")
	return b, nil
}

// equipmentRegister yields one item per data row. Repeated header rows,
// whose location cell holds the skip token, are not data.
func equipmentRegister(sheet *workbook.Sheet, p *layout.EquipmentRegisterPlan, yield func(Result) bool) {
	section := p.ItemKind.Section()
	for row := p.FirstRow; row <= p.LastRow; row++ {
		if p.Ignore[row] {
			continue
		}
		v := newRowView(sheet.Name, row, section, sheet.Row(row), p.Columns)
		if v.blank() {
			continue
		}
		if p.SkipToken != "" && strings.Contains(strings.ToUpper(v.str("location")), p.SkipToken) {
			continue
		}

		var (
			rec  ir.Record
			skip *ir.Skip
		)
		if !v.has("item_name") {
			skip = v.skip(ir.SkipMissingRequiredColumn, "item_name is blank")
		} else {
			it, err := parseRegisterItem(v, p.ItemKind)
			if err != nil {
				skip = v.skip(ir.SkipRowParseFailed, err.Error())
			} else {
				rec = it
			}
		}
		if !emit(yield, v, rec, v.str("location"), skip) {
			return
		}
	}
}

func parseRegisterItem(v *rowView, kind ir.ItemKind) (*ir.Item, error) {
	it := &ir.Item{
		Kind:            kind,
		Kaukulan:        v.str("location"),
		IIN:             v.str("property_number"),
		AcquisitionYear: v.year("year"),
		Name:            v.str("item_name"),
		Brand:           v.str("brand"),
		Model:           v.str("model"),
		Make:            v.str("material"),
		Color:           v.str("color"),
		Size:            v.str("size"),
		Remarks:         v.str("remarks"),
	}
	var err error
	if it.Quantity, err = v.qty("quantity"); err != nil {
		return nil, err
	}
	priceRole := layout.Role("unit_price")
	if !v.has(priceRole) {
		priceRole = "unit_price_alt"
	}
	if it.UnitPrice, err = v.money(priceRole); err != nil {
		return nil, err
	}
	if it.Amount, err = v.money("total"); err != nil {
		return nil, err
	}
	deriveAmount(v, it, v.has("total"))
	return it, nil
}

func cellAt(cells []workbook.Cell, c int) workbook.Cell {
	if c < 0 || c >= len(cells) {
		return workbook.Cell{}
	}
	return cells[c]
}
