package materialize

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
)

// Rollover opens the next year's report of a local from the report at
// from. Every building is carried over with its year-end total as the new
// last-year cost and its additions and deductions cleared. Buildings
// already on the next year's report are replaced; its other sections are
// left alone.
func (m *Materializer) Rollover(ctx context.Context, from store.ReportKey) (store.Report, ir.Summary, error) {
	var (
		next store.Report
		sum  ir.Summary
	)
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		prev, err := tx.ReportByKey(ctx, from)
		if err != nil {
			return fmt.Errorf("rollover %s-%s %d: %w", from.DCode, from.LCode, from.Year, err)
		}
		buildings, err := tx.Buildings(ctx, prev.ID)
		if err != nil {
			return err
		}
		if next, err = tx.UpsertReport(ctx, prev.LocalID, prev.Year+1, nil, m.now()); err != nil {
			return err
		}
		if err := clearSections(ctx, tx, next.ID, ir.BuildingSections); err != nil {
			return err
		}

		seq := map[ir.BuildingClass]int{}
		for i := range buildings {
			b := carryOver(buildings[i])
			if err := tx.InsertBuilding(ctx, next.ID, seq[b.Class], &b); err != nil {
				return err
			}
			seq[b.Class]++
		}

		if sum, err = Summarize(ctx, tx, next.ID); err != nil {
			return err
		}
		return tx.UpsertSummary(ctx, next.ID, &sum, m.now())
	})
	if err != nil {
		return store.Report{}, ir.Summary{}, err
	}
	m.log.WithFields(logrus.Fields{
		"dcode":     from.DCode,
		"lcode":     from.LCode,
		"year":      next.Year,
		"report_id": next.ID,
	}).Info("report rolled over")
	return next, sum, nil
}

func carryOver(b ir.Building) ir.Building {
	b.LastYearCost = b.TotalCostThisYear
	b.AddConstruction = decimal.Zero
	b.AddRenovation = decimal.Zero
	b.AddGeneralRepair = decimal.Zero
	b.AddOther = decimal.Zero
	b.Deduction = decimal.Zero
	b.DeductionReason = ""
	b.StatedTotal = nil
	b.Derive()
	return b
}
