package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamana/internal/ir"
)

// HousingUnit is a canonical housing unit with its property context.
// BuildingKey is the building row the unit hangs off, '' when the unit
// stands alone; BuildingName keeps the name as read from the form.
type HousingUnit struct {
	ID           int64
	PropertyID   int64
	PropertyName string
	BuildingKey  string
	// ArrivalSeq is the arrival of the latest import that wrote the unit,
	// zero when none did.
	ArrivalSeq int64
	ir.HousingUnit
}

// InventoryRow is a stored housing-unit inventory item. UnitID is zero for
// items held in storage.
type InventoryRow struct {
	ID     int64
	UnitID int64
	Status string
	ir.InventoryItem
}

// Transfer is a row of the item_transfers log.
type Transfer struct {
	ID            int64
	ItemID        int64
	ItemName      string
	Type          string
	Quantity      int
	FromUnitID    int64
	ToUnitID      int64
	ToItemID      int64
	Status        string
	SellValue     decimal.Decimal
	Loss          decimal.Decimal
	TransferredBy string
	TransferredAt time.Time
}

// EnsureProperty returns the id of the named property, creating it when
// missing. Names match case-insensitively.
func (c conn) EnsureProperty(ctx context.Context, name, address string, now time.Time) (int64, error) {
	if _, err := c.q.ExecContext(ctx, `
		INSERT INTO properties (name, address, created_at) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, name, address, timestamp(now)); err != nil {
		return 0, fmt.Errorf("ensure property: insert: %w", err)
	}
	var id int64
	if err := c.q.QueryRowContext(ctx,
		`SELECT id FROM properties WHERE name = ? COLLATE NOCASE`, name,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure property: select: %w", err)
	}
	return id, nil
}

// EnsurePropertyBuilding returns the id of a named building of a property.
func (c conn) EnsurePropertyBuilding(ctx context.Context, propertyID int64, name string) (int64, error) {
	if _, err := c.q.ExecContext(ctx, `
		INSERT INTO property_buildings (property_id, name) VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, propertyID, name); err != nil {
		return 0, fmt.Errorf("ensure property building: insert: %w", err)
	}
	var id int64
	if err := c.q.QueryRowContext(ctx,
		`SELECT id FROM property_buildings WHERE property_id = ? AND name = ? COLLATE NOCASE`, propertyID, name,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure property building: select: %w", err)
	}
	return id, nil
}

// UpsertHousingUnit stores a unit keyed on (property, building, unit key)
// and refreshes its occupant fields when it already exists.
func (c conn) UpsertHousingUnit(ctx context.Context, propertyID, buildingID int64, buildingKey string, u *ir.HousingUnit, now time.Time) (int64, error) {
	unitKey := u.UnitNumber
	if unitKey == "" {
		unitKey = u.HousingUnitName
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO housing_units (property_id, building_id, building_key, building_name, unit_key,
			unit_number, housing_unit_name, floor, address, occupant, department, section, job_title,
			date_reported, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(property_id, building_key, unit_key) DO UPDATE SET
			building_id = excluded.building_id,
			building_name = excluded.building_name,
			unit_number = excluded.unit_number,
			housing_unit_name = excluded.housing_unit_name,
			floor = excluded.floor,
			address = excluded.address,
			occupant = excluded.occupant,
			department = excluded.department,
			section = excluded.section,
			job_title = excluded.job_title,
			date_reported = excluded.date_reported,
			updated_at = excluded.updated_at
	`, propertyID, nullID(buildingID), buildingKey, u.BuildingName, unitKey, u.UnitNumber,
		u.HousingUnitName, u.Floor, u.Address, u.Occupant, u.Department, u.Section, u.JobTitle,
		u.DateReported.UTC().Format(dateLayout), timestamp(now))
	if err != nil {
		return 0, fmt.Errorf("upsert housing unit: %w", err)
	}
	var id int64
	if err := c.q.QueryRowContext(ctx, `
		SELECT id FROM housing_units WHERE property_id = ? AND building_key = ? AND unit_key = ?
	`, propertyID, buildingKey, unitKey).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert housing unit: select: %w", err)
	}
	return id, nil
}

const housingUnitColumns = `
	u.id, u.property_id, p.name, u.building_key, u.building_name, u.unit_number, u.housing_unit_name,
	u.floor, u.address, u.occupant, u.department, u.section, u.job_title, u.date_reported,
	COALESCE((SELECT MAX(f.arrival_seq) FROM imported_files f WHERE f.unit_id = u.id), 0)`

func scanHousingUnit(row interface{ Scan(...any) error }) (HousingUnit, error) {
	var (
		u        HousingUnit
		reported string
	)
	if err := row.Scan(&u.ID, &u.PropertyID, &u.PropertyName, &u.BuildingKey, &u.BuildingName, &u.UnitNumber,
		&u.HousingUnitName, &u.Floor, &u.Address, &u.Occupant, &u.Department, &u.Section,
		&u.JobTitle, &reported, &u.ArrivalSeq); err != nil {
		return HousingUnit{}, err
	}
	t, err := time.Parse(dateLayout, reported)
	if err != nil {
		return HousingUnit{}, fmt.Errorf("parse date %q: %w", reported, err)
	}
	u.DateReported = t
	return u, nil
}

// HousingUnitByID returns a canonical housing unit or ErrNotFound.
func (c conn) HousingUnitByID(ctx context.Context, id int64) (HousingUnit, error) {
	u, err := scanHousingUnit(c.q.QueryRowContext(ctx, `
		SELECT `+housingUnitColumns+`
		FROM housing_units u JOIN properties p ON p.id = u.property_id
		WHERE u.id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return HousingUnit{}, ErrNotFound
	}
	if err != nil {
		return HousingUnit{}, fmt.Errorf("housing unit: %w", err)
	}
	return u, nil
}

// HousingUnits returns every canonical housing unit ordered by id.
func (c conn) HousingUnits(ctx context.Context) ([]HousingUnit, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+housingUnitColumns+`
		FROM housing_units u JOIN properties p ON p.id = u.property_id
		ORDER BY u.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query housing units: %w", err)
	}
	defer rows.Close()

	out := []HousingUnit{}
	for rows.Next() {
		u, err := scanHousingUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan housing unit: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate housing units: %w", err)
	}
	return out, nil
}

// DeleteUnitInventory removes every item of a unit.
func (c conn) DeleteUnitInventory(ctx context.Context, unitID int64) error {
	if _, err := c.q.ExecContext(ctx,
		`DELETE FROM housing_unit_inventory WHERE unit_id = ?`, unitID,
	); err != nil {
		return fmt.Errorf("delete unit inventory: %w", err)
	}
	return nil
}

// InsertInventoryItem stores an item for a unit, or in storage when unitID
// is zero, and returns its id.
func (c conn) InsertInventoryItem(ctx context.Context, unitID int64, seq int, status string, it *ir.InventoryItem) (int64, error) {
	if status == "" {
		status = "good"
	}
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO housing_unit_inventory (unit_id, seq, item_code, date_acquired, acquisition_year,
			quantity, name, brand, model, make, color, size, serial, acquisition_cost, useful_life,
			net_book_value, amount, status, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullID(unitID), seq, it.ItemCode, dateArg(it.DateAcquired), it.AcquisitionYear,
		it.Quantity, it.Name, it.Brand, it.Model, it.Make, it.Color, it.Size, it.Serial,
		money(it.AcquisitionCost), it.UsefulLife, money(it.NetBookValue), money(it.Amount), status, it.Remarks)
	if err != nil {
		return 0, fmt.Errorf("insert inventory item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert inventory item: last insert id: %w", err)
	}
	return id, nil
}

// UpdateInventoryValuation rewrites an item's quantity and derived values.
func (c conn) UpdateInventoryValuation(ctx context.Context, id int64, it *ir.InventoryItem) error {
	_, err := c.q.ExecContext(ctx, `
		UPDATE housing_unit_inventory SET quantity = ?, net_book_value = ?, amount = ?
		WHERE id = ?
	`, it.Quantity, money(it.NetBookValue), money(it.Amount), id)
	if err != nil {
		return fmt.Errorf("update inventory valuation: %w", err)
	}
	return nil
}

const inventoryColumns = `
	id, COALESCE(unit_id, 0), status, item_code, date_acquired, acquisition_year, quantity,
	name, brand, model, make, color, size, serial, acquisition_cost, useful_life,
	net_book_value, amount, remarks`

func scanInventory(row interface{ Scan(...any) error }) (InventoryRow, error) {
	var (
		r                 InventoryRow
		acquired          sql.NullString
		cost, nbv, amount string
	)
	if err := row.Scan(&r.ID, &r.UnitID, &r.Status, &r.ItemCode, &acquired, &r.AcquisitionYear,
		&r.Quantity, &r.Name, &r.Brand, &r.Model, &r.Make, &r.Color, &r.Size, &r.Serial,
		&cost, &r.UsefulLife, &nbv, &amount, &r.Remarks); err != nil {
		return InventoryRow{}, err
	}
	var err error
	if r.DateAcquired, err = scanDate(acquired); err != nil {
		return InventoryRow{}, err
	}
	if r.AcquisitionCost, err = scanMoney(cost); err != nil {
		return InventoryRow{}, err
	}
	if r.NetBookValue, err = scanMoney(nbv); err != nil {
		return InventoryRow{}, err
	}
	if r.Amount, err = scanMoney(amount); err != nil {
		return InventoryRow{}, err
	}
	return r, nil
}

// InventoryItem returns one inventory row or ErrNotFound.
func (c conn) InventoryItem(ctx context.Context, id int64) (InventoryRow, error) {
	r, err := scanInventory(c.q.QueryRowContext(ctx,
		`SELECT `+inventoryColumns+` FROM housing_unit_inventory WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return InventoryRow{}, ErrNotFound
	}
	if err != nil {
		return InventoryRow{}, fmt.Errorf("inventory item: %w", err)
	}
	return r, nil
}

// FindInventoryItemByName returns the first item of a unit (or storage,
// when unitID is zero) with the given name, matched case-insensitively.
func (c conn) FindInventoryItemByName(ctx context.Context, unitID int64, name string) (InventoryRow, error) {
	var row *sql.Row
	if unitID == 0 {
		row = c.q.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM housing_unit_inventory
			WHERE unit_id IS NULL AND name = ? COLLATE NOCASE ORDER BY id ASC LIMIT 1`, name)
	} else {
		row = c.q.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM housing_unit_inventory
			WHERE unit_id = ? AND name = ? COLLATE NOCASE ORDER BY id ASC LIMIT 1`, unitID, name)
	}
	r, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return InventoryRow{}, ErrNotFound
	}
	if err != nil {
		return InventoryRow{}, fmt.Errorf("find inventory item: %w", err)
	}
	return r, nil
}

// UnitInventory returns a unit's items in source order. unitID zero lists
// storage.
func (c conn) UnitInventory(ctx context.Context, unitID int64) ([]InventoryRow, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if unitID == 0 {
		rows, err = c.q.QueryContext(ctx, `SELECT `+inventoryColumns+` FROM housing_unit_inventory
			WHERE unit_id IS NULL ORDER BY seq ASC, id ASC`)
	} else {
		rows, err = c.q.QueryContext(ctx, `SELECT `+inventoryColumns+` FROM housing_unit_inventory
			WHERE unit_id = ? ORDER BY seq ASC, id ASC`, unitID)
	}
	if err != nil {
		return nil, fmt.Errorf("query unit inventory: %w", err)
	}
	defer rows.Close()

	out := []InventoryRow{}
	for rows.Next() {
		r, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unit inventory: %w", err)
	}
	return out, nil
}

// InsertTransfer appends to the transfer log and returns the new id.
func (c conn) InsertTransfer(ctx context.Context, t *Transfer) (int64, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO item_transfers (item_id, item_name, transfer_type, quantity, from_unit_id,
			to_unit_id, to_item_id, status, sell_value, loss, transferred_by, transferred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullID(t.ItemID), t.ItemName, t.Type, t.Quantity, nullID(t.FromUnitID),
		nullID(t.ToUnitID), nullID(t.ToItemID), t.Status, money(t.SellValue), money(t.Loss),
		t.TransferredBy, timestamp(t.TransferredAt))
	if err != nil {
		return 0, fmt.Errorf("insert transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert transfer: last insert id: %w", err)
	}
	return id, nil
}

// Transfers returns the log entries of an item, oldest first.
func (c conn) Transfers(ctx context.Context, itemID int64) ([]Transfer, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, COALESCE(item_id, 0), item_name, transfer_type, quantity,
			COALESCE(from_unit_id, 0), COALESCE(to_unit_id, 0), COALESCE(to_item_id, 0),
			status, sell_value, loss, transferred_by, transferred_at
		FROM item_transfers WHERE item_id = ? ORDER BY id ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	out := []Transfer{}
	for rows.Next() {
		var (
			t              Transfer
			sell, loss, at string
		)
		if err := rows.Scan(&t.ID, &t.ItemID, &t.ItemName, &t.Type, &t.Quantity,
			&t.FromUnitID, &t.ToUnitID, &t.ToItemID,
			&t.Status, &sell, &loss, &t.TransferredBy, &at); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if t.SellValue, err = scanMoney(sell); err != nil {
			return nil, err
		}
		if t.Loss, err = scanMoney(loss); err != nil {
			return nil, err
		}
		if t.TransferredAt, err = scanTimestamp(at); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return out, nil
}
