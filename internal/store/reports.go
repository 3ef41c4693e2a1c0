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

// Report is a row of the reports table.
type Report struct {
	ID           int64
	LocalID      int64
	Year         int
	DateReported *time.Time
}

// ReportKey names a report by its codes, as users refer to it.
type ReportKey struct {
	DCode string
	LCode string
	Year  int
}

// UpsertReport returns the report for (local, year), creating it when
// missing. A non-nil dateReported replaces the stored one.
func (c conn) UpsertReport(ctx context.Context, localID int64, year int, dateReported *time.Time, now time.Time) (Report, error) {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO reports (local_id, year, date_reported, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(local_id, year) DO UPDATE SET
			date_reported = COALESCE(excluded.date_reported, reports.date_reported),
			updated_at = excluded.updated_at
	`, localID, year, dateArg(dateReported), timestamp(now), timestamp(now))
	if err != nil {
		return Report{}, fmt.Errorf("upsert report: %w", err)
	}
	r, err := c.ReportFor(ctx, localID, year)
	if err != nil {
		return Report{}, fmt.Errorf("upsert report: %w", err)
	}
	return r, nil
}

// ReportFor returns the report of a local for a year or ErrNotFound.
func (c conn) ReportFor(ctx context.Context, localID int64, year int) (Report, error) {
	return c.report(ctx, `WHERE local_id = ? AND year = ?`, localID, year)
}

// ReportByID returns a report by primary key.
func (c conn) ReportByID(ctx context.Context, id int64) (Report, error) {
	return c.report(ctx, `WHERE id = ?`, id)
}

// ReportByKey looks a report up by district code, local code and year.
func (c conn) ReportByKey(ctx context.Context, key ReportKey) (Report, error) {
	return c.report(ctx, `
		WHERE year = ? AND local_id = (
			SELECT l.id FROM locals l JOIN districts d ON d.id = l.district_id
			WHERE d.dcode = ? AND l.lcode = ?
		)`, key.Year, key.DCode, key.LCode)
}

func (c conn) report(ctx context.Context, where string, args ...any) (Report, error) {
	var (
		r    Report
		date sql.NullString
	)
	err := c.q.QueryRowContext(ctx,
		`SELECT id, local_id, year, date_reported FROM reports `+where, args...,
	).Scan(&r.ID, &r.LocalID, &r.Year, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("report: %w", err)
	}
	if r.DateReported, err = scanDate(date); err != nil {
		return Report{}, fmt.Errorf("report %d: %w", r.ID, err)
	}
	return r, nil
}

// ReportSource returns the fingerprint of the file that supplied kind to
// the report, or ErrNotFound.
func (c conn) ReportSource(ctx context.Context, reportID int64, kind ir.Kind) (string, error) {
	var hash string
	err := c.q.QueryRowContext(ctx,
		`SELECT file_hash FROM report_sources WHERE report_id = ? AND kind = ?`,
		reportID, string(kind),
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("report source: %w", err)
	}
	return hash, nil
}

// SetReportSource records fileHash as the source of kind for the report.
func (c conn) SetReportSource(ctx context.Context, reportID int64, kind ir.Kind, fileHash string) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO report_sources (report_id, kind, file_hash) VALUES (?, ?, ?)
		ON CONFLICT(report_id, kind) DO UPDATE SET file_hash = excluded.file_hash
	`, reportID, string(kind), fileHash)
	if err != nil {
		return fmt.Errorf("set report source: %w", err)
	}
	return nil
}

// DeleteBuildings removes the report's buildings of the given classes.
func (c conn) DeleteBuildings(ctx context.Context, reportID int64, classes ...ir.BuildingClass) error {
	for _, class := range classes {
		if _, err := c.q.ExecContext(ctx,
			`DELETE FROM report_buildings WHERE report_id = ? AND class = ?`, reportID, string(class),
		); err != nil {
			return fmt.Errorf("delete buildings %s: %w", class, err)
		}
	}
	return nil
}

// DeleteItems removes the report's items of the given kinds.
func (c conn) DeleteItems(ctx context.Context, reportID int64, kinds ...ir.ItemKind) error {
	for _, kind := range kinds {
		if _, err := c.q.ExecContext(ctx,
			`DELETE FROM report_items WHERE report_id = ? AND kind = ?`, reportID, string(kind),
		); err != nil {
			return fmt.Errorf("delete items %s: %w", kind, err)
		}
	}
	return nil
}

// DeleteAssets removes the report's lands, plants and vehicles.
func (c conn) DeleteAssets(ctx context.Context, reportID int64) error {
	for _, table := range []string{"lands", "plants", "vehicles"} {
		if _, err := c.q.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE report_id = ?`, reportID,
		); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// InsertBuilding stores one building row. seq orders rows within a class.
func (c conn) InsertBuilding(ctx context.Context, reportID int64, seq int, b *ir.Building) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO report_buildings (
			report_id, seq, class, code, name, classification, date_built,
			seating_capacity, funded_by, donated, date_donated, date_owned,
			original_cost, last_year_cost, add_construction, add_renovation,
			add_general_repair, add_other, deduction_amount, deduction_reason,
			total_cost_this_year, remarks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		reportID, seq, string(b.Class), b.Code, b.Name, b.Classification, dateArg(b.DateBuilt),
		b.SeatingCapacity, b.FundedBy, boolInt(b.Donated), dateArg(b.DateDonated), dateArg(b.DateOwned),
		money(b.OriginalCost), money(b.LastYearCost), money(b.AddConstruction), money(b.AddRenovation),
		money(b.AddGeneralRepair), money(b.AddOther), money(b.Deduction), b.DeductionReason,
		money(b.TotalCostThisYear), b.Remarks,
	)
	if err != nil {
		return fmt.Errorf("insert building: %w", err)
	}
	return nil
}

// Buildings returns the report's buildings in page order: class, then
// source order.
func (c conn) Buildings(ctx context.Context, reportID int64) ([]ir.Building, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT class, code, name, classification, date_built, seating_capacity,
			funded_by, donated, date_donated, date_owned, original_cost,
			last_year_cost, add_construction, add_renovation, add_general_repair,
			add_other, deduction_amount, deduction_reason, total_cost_this_year, remarks
		FROM report_buildings
		WHERE report_id = ?
		ORDER BY CASE class
			WHEN 'chapel' THEN 0 WHEN 'pastoral_house' THEN 1
			WHEN 'office' THEN 2 ELSE 3 END, seq ASC, id ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query buildings: %w", err)
	}
	defer rows.Close()

	out := []ir.Building{}
	for rows.Next() {
		var (
			b                           ir.Building
			class                       string
			donated                     int
			built, donatedOn, owned     sql.NullString
			orig, last, cons, reno, gen string
			other, deduction, total     string
		)
		if err := rows.Scan(&class, &b.Code, &b.Name, &b.Classification, &built, &b.SeatingCapacity,
			&b.FundedBy, &donated, &donatedOn, &owned, &orig,
			&last, &cons, &reno, &gen,
			&other, &deduction, &b.DeductionReason, &total, &b.Remarks); err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		b.Class = ir.BuildingClass(class)
		b.Donated = donated != 0
		if err := scanBuildingValues(&b, built, donatedOn, owned,
			[]string{orig, last, cons, reno, gen, other, deduction, total}); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buildings: %w", err)
	}
	return out, nil
}

func scanBuildingValues(b *ir.Building, built, donatedOn, owned sql.NullString, amounts []string) error {
	var err error
	if b.DateBuilt, err = scanDate(built); err != nil {
		return err
	}
	if b.DateDonated, err = scanDate(donatedOn); err != nil {
		return err
	}
	if b.DateOwned, err = scanDate(owned); err != nil {
		return err
	}
	fields := []*decimal.Decimal{
		&b.OriginalCost, &b.LastYearCost, &b.AddConstruction, &b.AddRenovation,
		&b.AddGeneralRepair, &b.AddOther, &b.Deduction, &b.TotalCostThisYear,
	}
	for i, f := range fields {
		if *f, err = scanMoney(amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

// InsertItem stores one item row.
func (c conn) InsertItem(ctx context.Context, reportID int64, seq int, it *ir.Item) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO report_items (
			report_id, seq, kind, kaukulan, iin, date_received, acquisition_year,
			quantity, name, brand, model, make, color, size, serial, unit_price,
			amount, approval_number, source_place, reason, remarks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		reportID, seq, string(it.Kind), it.Kaukulan, it.IIN, dateArg(it.DateReceived), it.AcquisitionYear,
		it.Quantity, it.Name, it.Brand, it.Model, it.Make, it.Color, it.Size, it.Serial, money(it.UnitPrice),
		money(it.Amount), it.ApprovalNumber, it.SourcePlace, it.Reason, it.Remarks,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// Items returns the report's items by kind, then source order.
func (c conn) Items(ctx context.Context, reportID int64) ([]ir.Item, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT kind, kaukulan, iin, date_received, acquisition_year, quantity, name,
			brand, model, make, color, size, serial, unit_price, amount,
			approval_number, source_place, reason, remarks
		FROM report_items
		WHERE report_id = ?
		ORDER BY CASE kind WHEN 'existing' THEN 0 WHEN 'added' THEN 1 ELSE 2 END, seq ASC, id ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	out := []ir.Item{}
	for rows.Next() {
		var (
			it            ir.Item
			kind          string
			received      sql.NullString
			price, amount string
		)
		if err := rows.Scan(&kind, &it.Kaukulan, &it.IIN, &received, &it.AcquisitionYear, &it.Quantity, &it.Name,
			&it.Brand, &it.Model, &it.Make, &it.Color, &it.Size, &it.Serial, &price, &amount,
			&it.ApprovalNumber, &it.SourcePlace, &it.Reason, &it.Remarks); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Kind = ir.ItemKind(kind)
		if it.DateReceived, err = scanDate(received); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = scanMoney(price); err != nil {
			return nil, err
		}
		if it.Amount, err = scanMoney(amount); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

// InsertLand stores one land row.
func (c conn) InsertLand(ctx context.Context, reportID int64, seq int, l *ir.Land) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO lands (report_id, seq, address, area_sqm, date_acquired, value, building_on_land, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, reportID, seq, l.Address, money(l.AreaSqm), dateArg(l.DateAcquired), money(l.Value), l.BuildingOnLand, l.Remarks)
	if err != nil {
		return fmt.Errorf("insert land: %w", err)
	}
	return nil
}

// Lands returns the report's lands in source order.
func (c conn) Lands(ctx context.Context, reportID int64) ([]ir.Land, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT address, area_sqm, date_acquired, value, building_on_land, remarks
		FROM lands WHERE report_id = ? ORDER BY seq ASC, id ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query lands: %w", err)
	}
	defer rows.Close()

	out := []ir.Land{}
	for rows.Next() {
		var (
			l           ir.Land
			area, value string
			acquired    sql.NullString
		)
		if err := rows.Scan(&l.Address, &area, &acquired, &value, &l.BuildingOnLand, &l.Remarks); err != nil {
			return nil, fmt.Errorf("scan land: %w", err)
		}
		if l.AreaSqm, err = scanMoney(area); err != nil {
			return nil, err
		}
		if l.Value, err = scanMoney(value); err != nil {
			return nil, err
		}
		if l.DateAcquired, err = scanDate(acquired); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lands: %w", err)
	}
	return out, nil
}

// InsertPlant stores one plant row. The table's CHECK constraint rejects a
// total quantity that is not the sum of the two counts.
func (c conn) InsertPlant(ctx context.Context, reportID int64, seq int, p *ir.Plant) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO plants (report_id, seq, name, plant_type, fruit_bearing, non_fruit_bearing,
			total_quantity, unit_price, total_value, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, reportID, seq, p.Name, p.PlantType, p.FruitBearing, p.NonFruitBearing,
		p.TotalQuantity, money(p.UnitPrice), money(p.TotalValue), p.Remarks)
	if err != nil {
		return fmt.Errorf("insert plant: %w", err)
	}
	return nil
}

// Plants returns the report's plants in source order.
func (c conn) Plants(ctx context.Context, reportID int64) ([]ir.Plant, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT name, plant_type, fruit_bearing, non_fruit_bearing, total_quantity,
			unit_price, total_value, remarks
		FROM plants WHERE report_id = ? ORDER BY seq ASC, id ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query plants: %w", err)
	}
	defer rows.Close()

	out := []ir.Plant{}
	for rows.Next() {
		var (
			p            ir.Plant
			price, total string
		)
		if err := rows.Scan(&p.Name, &p.PlantType, &p.FruitBearing, &p.NonFruitBearing, &p.TotalQuantity,
			&price, &total, &p.Remarks); err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		if p.UnitPrice, err = scanMoney(price); err != nil {
			return nil, err
		}
		if p.TotalValue, err = scanMoney(total); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plants: %w", err)
	}
	return out, nil
}

// InsertVehicle stores one vehicle row.
func (c conn) InsertVehicle(ctx context.Context, reportID int64, seq int, v *ir.Vehicle) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO vehicles (report_id, seq, make_type, plate_number, year_model, date_purchased,
			assigned_user, designation, cost, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, reportID, seq, v.MakeType, v.PlateNumber, v.YearModel, dateArg(v.DatePurchased),
		v.AssignedUser, v.Designation, money(v.Cost), v.Remarks)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

// Vehicles returns the report's vehicles in source order.
func (c conn) Vehicles(ctx context.Context, reportID int64) ([]ir.Vehicle, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT make_type, plate_number, year_model, date_purchased, assigned_user,
			designation, cost, remarks
		FROM vehicles WHERE report_id = ? ORDER BY seq ASC, id ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	out := []ir.Vehicle{}
	for rows.Next() {
		var (
			v         ir.Vehicle
			purchased sql.NullString
			cost      string
		)
		if err := rows.Scan(&v.MakeType, &v.PlateNumber, &v.YearModel, &purchased, &v.AssignedUser,
			&v.Designation, &cost, &v.Remarks); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		if v.DatePurchased, err = scanDate(purchased); err != nil {
			return nil, err
		}
		if v.Cost, err = scanMoney(cost); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicles: %w", err)
	}
	return out, nil
}

// UpsertSummary replaces the report's derived summary.
func (c conn) UpsertSummary(ctx context.Context, reportID int64, s *ir.Summary, now time.Time) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO report_summaries (report_id, chapels, pastoral_houses, office_buildings,
			other_buildings, p1, p2, p3, p4, land, plants, vehicles, p5, total, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(report_id) DO UPDATE SET
			chapels = excluded.chapels,
			pastoral_houses = excluded.pastoral_houses,
			office_buildings = excluded.office_buildings,
			other_buildings = excluded.other_buildings,
			p1 = excluded.p1, p2 = excluded.p2, p3 = excluded.p3, p4 = excluded.p4,
			land = excluded.land, plants = excluded.plants, vehicles = excluded.vehicles,
			p5 = excluded.p5, total = excluded.total, computed_at = excluded.computed_at
	`, reportID, money(s.Chapels), money(s.PastoralHouses), money(s.OfficeBuildings),
		money(s.OtherBuildings), money(s.P1), money(s.P2), money(s.P3), money(s.P4),
		money(s.Land), money(s.Plants), money(s.Vehicles), money(s.P5), money(s.Total), timestamp(now))
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// Summary returns the report's derived summary or ErrNotFound.
func (c conn) Summary(ctx context.Context, reportID int64) (ir.Summary, error) {
	var cols [13]string
	err := c.q.QueryRowContext(ctx, `
		SELECT chapels, pastoral_houses, office_buildings, other_buildings,
			p1, p2, p3, p4, land, plants, vehicles, p5, total
		FROM report_summaries WHERE report_id = ?
	`, reportID).Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5], &cols[6],
		&cols[7], &cols[8], &cols[9], &cols[10], &cols[11], &cols[12])
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Summary{}, ErrNotFound
	}
	if err != nil {
		return ir.Summary{}, fmt.Errorf("summary: %w", err)
	}

	var s ir.Summary
	fields := []*decimal.Decimal{
		&s.Chapels, &s.PastoralHouses, &s.OfficeBuildings, &s.OtherBuildings,
		&s.P1, &s.P2, &s.P3, &s.P4, &s.Land, &s.Plants, &s.Vehicles, &s.P5, &s.Total,
	}
	for i, f := range fields {
		if *f, err = scanMoney(cols[i]); err != nil {
			return ir.Summary{}, fmt.Errorf("summary: %w", err)
		}
	}
	return s, nil
}
