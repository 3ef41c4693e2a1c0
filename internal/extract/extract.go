package extract

import (
	"iter"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/layout"
	"github.com/roach88/pamana/internal/workbook"
)

// Result is one extraction outcome. Exactly one field is set.
type Result struct {
	Record  *ir.RawRecord
	Skip    *ir.Skip
	Warning *ir.Warning
}

// Workbook extracts every sheet of wb with its plan from l. Report kinds
// yield the header record first. Plans and sheets are paired by position.
func Workbook(wb *workbook.Workbook, l *layout.Layout) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		if l.Kind.ProducesReport() {
			h := l.Header.Values
			if !yield(Result{Record: &ir.RawRecord{Section: ir.SectionHeader, Row: -1, Data: &h}}) {
				return
			}
		}
		for i, plan := range l.Plans {
			sheet := wb.Sheet(i)
			if sheet == nil {
				return
			}
			for res := range Sheet(sheet, plan) {
				if !yield(res) {
					return
				}
			}
		}
	}
}

// Sheet extracts one sheet according to its plan.
func Sheet(sheet *workbook.Sheet, plan layout.Plan) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		switch p := plan.(type) {
		case *layout.AnnualPlan:
			annual(sheet, p, yield)
		case *layout.UnitInventoryPlan:
			unitInventory(sheet, p, yield)
		case *layout.BuildingRegisterPlan:
			buildingRegister(sheet, p, yield)
		case *layout.EquipmentRegisterPlan:
			equipmentRegister(sheet, p, yield)
		}
	}
}

// emit yields a row's warnings, then its record or skip. It returns false
// when the consumer stopped.
func emit(yield func(Result) bool, v *rowView, rec ir.Record, kaukulan string, skip *ir.Skip) bool {
	for i := range v.warnings {
		if !yield(Result{Warning: &v.warnings[i]}) {
			return false
		}
	}
	if skip != nil {
		return yield(Result{Skip: skip})
	}
	if rec == nil {
		return true
	}
	return yield(Result{Record: &ir.RawRecord{
		Section:  v.section,
		Sheet:    v.sheet,
		Row:      v.row,
		Kaukulan: kaukulan,
		Data:     rec,
	}})
}

// Collected is the materialized form of an extraction.
type Collected struct {
	Records  []ir.RawRecord
	Skips    []ir.Skip
	Warnings []ir.Warning
}

// Collect drains seq.
func Collect(seq iter.Seq[Result]) Collected {
	c := Collected{Records: []ir.RawRecord{}, Skips: []ir.Skip{}, Warnings: []ir.Warning{}}
	for res := range seq {
		switch {
		case res.Record != nil:
			c.Records = append(c.Records, *res.Record)
		case res.Skip != nil:
			c.Skips = append(c.Skips, *res.Skip)
		case res.Warning != nil:
			c.Warnings = append(c.Warnings, *res.Warning)
		}
	}
	return c
}
