package materialize

import (
	"context"
	"fmt"

	"github.com/roach88/pamana/internal/inventory"
	"github.com/roach88/pamana/internal/ir"
)

const unknownProperty = "Unknown property"

// housingUnit writes a per-unit inventory form: the unit is upserted on
// its property and its inventory is rebuilt from the form's items.
func (w *writer) housingUnit(ctx context.Context) error {
	var unit *ir.HousingUnit
	for _, r := range w.in.Records {
		if u, ok := r.Data.(*ir.HousingUnit); ok {
			unit = u
			break
		}
	}
	if unit == nil {
		// The extractor skipped the unit; its skip already makes this partial.
		return nil
	}
	if unit.DateReported.IsZero() {
		unit.DateReported = ir.DateOnly(w.m.now())
	}

	site, building := unit.Site()
	if site == "" {
		site = unknownProperty
		w.warn(ir.WarnAmbiguousHeader, "", -1, "housing unit %q has no building or address", unit.Label())
	}
	if unit.Label() == "" {
		w.warn(ir.WarnAmbiguousHeader, "", -1, "housing unit has neither a unit number nor a name")
	}

	propertyID, err := w.tx.EnsureProperty(ctx, site, unit.Address, w.m.now())
	if err != nil {
		return err
	}
	var buildingID int64
	if building != "" {
		if buildingID, err = w.tx.EnsurePropertyBuilding(ctx, propertyID, building); err != nil {
			return err
		}
	}
	unitID, err := w.tx.UpsertHousingUnit(ctx, propertyID, buildingID, building, unit, w.m.now())
	if err != nil {
		return err
	}
	w.res.UnitID = unitID
	w.res.Records++
	w.log = w.log.WithField("unit_id", unitID)

	if err := w.tx.DeleteUnitInventory(ctx, unitID); err != nil {
		return err
	}
	seq := 0
	for _, r := range w.in.Records {
		it, ok := r.Data.(*ir.InventoryItem)
		if !ok {
			continue
		}
		inventory.Value(it)
		if _, err := w.tx.InsertInventoryItem(ctx, unitID, seq, "", it); err != nil {
			return fmt.Errorf("%s row %d: %w", r.Sheet, r.Row+1, err)
		}
		seq++
		w.res.Records++
	}
	return nil
}
