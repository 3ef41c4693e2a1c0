package materialize

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
)

// sectionsOf lists the sections a report kind rebuilds.
func sectionsOf(kind ir.Kind) []ir.Section {
	switch kind {
	case ir.KindAnnualP7:
		out := append([]ir.Section{}, ir.BuildingSections...)
		out = append(out, ir.ItemSections...)
		return append(out, ir.AssetSections...)
	case ir.KindBuildingRegister:
		return ir.BuildingSections
	case ir.KindEquipmentRegister:
		return []ir.Section{ir.SectionItem, ir.SectionAddedItem}
	}
	return nil
}

func (w *writer) report(ctx context.Context) error {
	h, err := header(w.in.Records)
	if err != nil {
		return err
	}
	d, err := w.m.resolver.District(ctx, w.tx, h.DCode, w.m.now())
	if err != nil {
		return err
	}
	local, cf, err := w.m.resolver.Local(ctx, w.tx, d, h.LCode, h.LocalName, w.m.now())
	if err != nil {
		return err
	}
	w.conflict(cf)

	if err := w.supersede(ctx, local, h); err != nil {
		return err
	}
	rep, err := w.tx.UpsertReport(ctx, local.ID, h.Year, h.DateReported, w.m.now())
	if err != nil {
		return err
	}
	w.res.ReportID = rep.ID
	w.log = w.log.WithField("report_id", rep.ID)
	if err := w.tx.SetReportSource(ctx, rep.ID, w.in.Kind, w.in.FileHash); err != nil {
		return err
	}

	sections := sectionsOf(w.in.Kind)
	if err := clearSections(ctx, w.tx, rep.ID, sections); err != nil {
		return err
	}
	if err := w.insertRecords(ctx, rep.ID, sections); err != nil {
		return err
	}

	sum, err := Summarize(ctx, w.tx, rep.ID)
	if err != nil {
		return err
	}
	if err := w.tx.UpsertSummary(ctx, rep.ID, &sum, w.m.now()); err != nil {
		return err
	}
	w.res.Summary = &sum
	return nil
}

func header(records []ir.RawRecord) (*ir.Header, error) {
	for _, r := range records {
		if h, ok := r.Data.(*ir.Header); ok {
			return h, nil
		}
	}
	return nil, ir.NewInvariantError(0, "report import carries no header record")
}

// supersede enforces that a report takes each kind from one file unless
// the import is forced.
func (w *writer) supersede(ctx context.Context, local store.Local, h *ir.Header) error {
	rep, err := w.tx.ReportFor(ctx, local.ID, h.Year)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	prior, err := w.tx.ReportSource(ctx, rep.ID, w.in.Kind)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if prior != w.in.FileHash && !w.in.Force {
		return ir.NewInvariantError(w.in.ImportID,
			"report %s-%s %d already has %s data from another file; re-ingest with force to supersede",
			h.DCode, h.LCode, h.Year, w.in.Kind)
	}
	if prior != w.in.FileHash {
		w.log.WithField("prior_hash", prior).Info("superseding report source")
	}
	return nil
}

func clearSections(ctx context.Context, tx *store.Tx, reportID int64, sections []ir.Section) error {
	var (
		classes []ir.BuildingClass
		kinds   []ir.ItemKind
		assets  bool
	)
	for _, s := range sections {
		if c, ok := s.BuildingClass(); ok {
			classes = append(classes, c)
		}
		if k, ok := s.ItemKind(); ok {
			kinds = append(kinds, k)
		}
		if s == ir.SectionLand || s == ir.SectionPlant || s == ir.SectionVehicle {
			assets = true
		}
	}
	if err := tx.DeleteBuildings(ctx, reportID, classes...); err != nil {
		return err
	}
	if err := tx.DeleteItems(ctx, reportID, kinds...); err != nil {
		return err
	}
	if assets {
		return tx.DeleteAssets(ctx, reportID)
	}
	return nil
}

// insertRecords writes records of the rebuilt sections in source order.
// seq counts rows per section.
func (w *writer) insertRecords(ctx context.Context, reportID int64, sections []ir.Section) error {
	rebuilt := make(map[ir.Section]bool, len(sections))
	for _, s := range sections {
		rebuilt[s] = true
	}
	seq := map[ir.Section]int{}

	for _, r := range w.in.Records {
		if r.Section == ir.SectionHeader {
			continue
		}
		if !rebuilt[r.Section] {
			w.log.WithFields(logrus.Fields{"sheet": r.Sheet, "row": r.Row + 1, "section": r.Section}).
				Debug("row outside the sections of this kind")
			continue
		}
		n := seq[r.Section]
		seq[r.Section] = n + 1

		var err error
		switch rec := r.Data.(type) {
		case *ir.Building:
			rec.Derive()
			err = w.tx.InsertBuilding(ctx, reportID, n, rec)
		case *ir.Item:
			if rec.Kaukulan == "" {
				rec.Kaukulan = r.Kaukulan
			}
			err = w.tx.InsertItem(ctx, reportID, n, rec)
		case *ir.Land:
			err = w.tx.InsertLand(ctx, reportID, n, rec)
		case *ir.Plant:
			rec.Derive()
			err = w.tx.InsertPlant(ctx, reportID, n, rec)
		case *ir.Vehicle:
			err = w.tx.InsertVehicle(ctx, reportID, n, rec)
		default:
			err = fmt.Errorf("unexpected %T record in section %s", r.Data, r.Section)
		}
		if err != nil {
			return fmt.Errorf("%s row %d: %w", r.Sheet, r.Row+1, err)
		}
		w.res.Records++
	}
	return nil
}

// Querier is the read surface Summarize needs; both *store.Store and
// *store.Tx satisfy it.
type Querier interface {
	Buildings(ctx context.Context, reportID int64) ([]ir.Building, error)
	Items(ctx context.Context, reportID int64) ([]ir.Item, error)
	Lands(ctx context.Context, reportID int64) ([]ir.Land, error)
	Plants(ctx context.Context, reportID int64) ([]ir.Plant, error)
	Vehicles(ctx context.Context, reportID int64) ([]ir.Vehicle, error)
}

// Summarize computes a report's summary from its stored rows.
func Summarize(ctx context.Context, q Querier, reportID int64) (ir.Summary, error) {
	var sum ir.Summary
	buildings, err := q.Buildings(ctx, reportID)
	if err != nil {
		return sum, err
	}
	for i := range buildings {
		sum.AddBuilding(&buildings[i])
	}
	items, err := q.Items(ctx, reportID)
	if err != nil {
		return sum, err
	}
	for i := range items {
		sum.AddItem(&items[i])
	}
	lands, err := q.Lands(ctx, reportID)
	if err != nil {
		return sum, err
	}
	for i := range lands {
		sum.AddLand(&lands[i])
	}
	plants, err := q.Plants(ctx, reportID)
	if err != nil {
		return sum, err
	}
	for i := range plants {
		sum.AddPlant(&plants[i])
	}
	vehicles, err := q.Vehicles(ctx, reportID)
	if err != nil {
		return sum, err
	}
	for i := range vehicles {
		sum.AddVehicle(&vehicles[i])
	}
	sum.Finish()
	return sum, nil
}
