package extract

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/layout"
	"github.com/roach88/pamana/internal/workbook"
)

// centavo is the tolerance for comparing stated and derived amounts.
var centavo = decimal.New(1, -2)

func annual(sheet *workbook.Sheet, p *layout.AnnualPlan, yield func(Result) bool) {
	for _, sec := range p.Sections {
		kaukulan := ""
		for row := sec.StartRow; row <= sec.EndRow; row++ {
			if label, ok := sec.Labels[row]; ok {
				kaukulan = label
				continue
			}
			if sec.Ignore[row] {
				continue
			}
			v := newRowView(sheet.Name, row, sec.Kind, sheet.Row(row), sec.Columns)
			if v.blank() {
				continue
			}
			v.applyWindow(sec.Window)

			var (
				rec  ir.Record
				skip *ir.Skip
			)
			if role, ok := v.missing(sec.Required); ok {
				skip = v.skip(ir.SkipMissingRequiredColumn, string(role)+" is blank")
			} else {
				var err error
				rec, err = parseSection(v, sec.Kind, kaukulan)
				if err != nil {
					skip = v.skip(ir.SkipRowParseFailed, err.Error())
				}
			}
			if !emit(yield, v, rec, kaukulan, skip) {
				return
			}
		}
	}
}

func parseSection(v *rowView, kind ir.Section, kaukulan string) (ir.Record, error) {
	if class, ok := kind.BuildingClass(); ok {
		return parseBuilding(v, class)
	}
	if ik, ok := kind.ItemKind(); ok {
		return parseItem(v, ik, kaukulan)
	}
	switch kind {
	case ir.SectionLand:
		return parseLand(v)
	case ir.SectionPlant:
		return parsePlant(v)
	case ir.SectionVehicle:
		return parseVehicle(v)
	}
	return nil, fmt.Errorf("no parser for section %s", kind)
}

// moneyFields parses each role into its destination, stopping at the
// first failure.
func moneyFields(v *rowView, fields map[layout.Role]*decimal.Decimal) error {
	for _, role := range sortedRoles(fields) {
		d, err := v.money(role)
		if err != nil {
			return err
		}
		*fields[role] = d
	}
	return nil
}

func parseBuilding(v *rowView, class ir.BuildingClass) (*ir.Building, error) {
	b := &ir.Building{
		Class:           class,
		Name:            v.str("name"),
		Classification:  ir.NormalizeClassification(v.str("classification")),
		DateBuilt:       v.date("date_built"),
		FundedBy:        v.str("funded_by"),
		DeductionReason: v.str("deduction_reason"),
		Remarks:         v.str("remarks"),
	}
	capacity, err := v.qty("seating_capacity")
	if err != nil {
		return nil, err
	}
	b.SeatingCapacity = capacity

	if err := moneyFields(v, map[layout.Role]*decimal.Decimal{
		"original_cost":      &b.OriginalCost,
		"last_year_cost":     &b.LastYearCost,
		"add_construction":   &b.AddConstruction,
		"add_renovation":     &b.AddRenovation,
		"add_general_repair": &b.AddGeneralRepair,
		"add_other":          &b.AddOther,
		"deduction":          &b.Deduction,
	}); err != nil {
		return nil, err
	}
	if v.has("total") {
		stated, err := v.money("total")
		if err != nil {
			return nil, err
		}
		b.StatedTotal = &stated
	}
	deriveBuilding(v, b)
	return b, nil
}

// deriveBuilding computes the building total and reports clamping or a
// disagreeing stated total.
func deriveBuilding(v *rowView, b *ir.Building) {
	if b.Derive() {
		v.warn(ir.WarnNegativeTotal, fmt.Sprintf("%s: total %s clamped to 0",
			b.Name, b.LastYearCost.Add(b.TotalAdded()).Sub(b.Deduction).StringFixed(2)))
		return
	}
	if b.StatedTotal != nil && b.StatedTotal.Sub(b.TotalCostThisYear).Abs().GreaterThanOrEqual(centavo) {
		v.warn(ir.WarnTotalMismatch, fmt.Sprintf("%s: stated total %s, derived %s",
			b.Name, b.StatedTotal.StringFixed(2), b.TotalCostThisYear.StringFixed(2)))
	}
}

func parseItem(v *rowView, kind ir.ItemKind, kaukulan string) (*ir.Item, error) {
	it := &ir.Item{
		Kind:           kind,
		Kaukulan:       kaukulan,
		IIN:            v.str("iin"),
		DateReceived:   v.date("date_received"),
		Name:           v.str("name"),
		Brand:          v.str("brand"),
		Model:          v.str("model"),
		Make:           v.str("make"),
		Color:          v.str("color"),
		Size:           v.str("size"),
		Serial:         v.str("serial"),
		ApprovalNumber: v.str("approval_number"),
		SourcePlace:    v.str("source_place"),
		Reason:         v.str("reason"),
		Remarks:        v.str("remarks"),
	}
	qty, err := v.qty("quantity")
	if err != nil {
		return nil, err
	}
	it.Quantity = qty
	if err := moneyFields(v, map[layout.Role]*decimal.Decimal{
		"unit_price": &it.UnitPrice,
		"amount":     &it.Amount,
	}); err != nil {
		return nil, err
	}
	deriveAmount(v, it, v.has("amount"))
	return it, nil
}

// deriveAmount fills a missing amount from quantity and unit price, and
// reports a stated amount that disagrees with them.
func deriveAmount(v *rowView, it *ir.Item, stated bool) {
	if it.Quantity <= 0 || it.UnitPrice.IsZero() {
		return
	}
	expected := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	if !stated {
		it.Amount = expected
		return
	}
	if it.Amount.Sub(expected).Abs().GreaterThanOrEqual(centavo) {
		v.warn(ir.WarnAmountMismatch, fmt.Sprintf("%s: amount %s, quantity %d x unit price %s = %s",
			it.Name, it.Amount.StringFixed(2), it.Quantity, it.UnitPrice.StringFixed(2), expected.StringFixed(2)))
	}
}

func parseLand(v *rowView) (*ir.Land, error) {
	l := &ir.Land{
		Address:        v.str("address"),
		DateAcquired:   v.date("date_acquired"),
		BuildingOnLand: v.str("building_on_land"),
		Remarks:        v.str("remarks"),
	}
	if err := moneyFields(v, map[layout.Role]*decimal.Decimal{
		"area_sqm": &l.AreaSqm,
		"value":    &l.Value,
	}); err != nil {
		return nil, err
	}
	return l, nil
}

func parsePlant(v *rowView) (*ir.Plant, error) {
	p := &ir.Plant{
		Name:      v.str("name"),
		PlantType: v.str("plant_type"),
		Remarks:   v.str("remarks"),
	}
	var err error
	if p.FruitBearing, err = v.qty("fruit_bearing"); err != nil {
		return nil, err
	}
	if p.NonFruitBearing, err = v.qty("non_fruit_bearing"); err != nil {
		return nil, err
	}
	if err := moneyFields(v, map[layout.Role]*decimal.Decimal{
		"unit_price":  &p.UnitPrice,
		"total_value": &p.TotalValue,
	}); err != nil {
		return nil, err
	}
	p.Derive()
	return p, nil
}

func parseVehicle(v *rowView) (*ir.Vehicle, error) {
	veh := &ir.Vehicle{
		MakeType:      v.str("make_type"),
		PlateNumber:   v.str("plate_number"),
		YearModel:     v.str("year_model"),
		DatePurchased: v.date("date_purchased"),
		AssignedUser:  v.str("assigned_user"),
		Designation:   v.str("designation"),
		Remarks:       v.str("remarks"),
	}
	cost, err := v.money("cost")
	if err != nil {
		return nil, err
	}
	veh.Cost = cost
	return veh, nil
}
