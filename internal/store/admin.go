package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Worker is a row of the admin workers table.
type Worker struct {
	ID           int64
	IdentityHash string
	FirstName    string
	MiddleName   string
	LastName     string
	FirstNorm    string
	MiddleNorm   string
	LastNorm     string
	Category     string
	JobTitle     string
	DepartmentID int64
	SectionID    int64
}

// Assignment links a worker to a derived housing unit.
type Assignment struct {
	ID        int64
	WorkerID  int64
	UnitID    int64
	StartDate time.Time
	EndDate   *time.Time
	IsCurrent bool

	// SourceArrival is the arrival of the latest import behind the unit.
	SourceArrival int64
}

// ensureNamed inserts name into a NOCASE-unique table and returns the id of
// the matching row. created reports whether this call inserted it.
func (c conn) ensureNamed(ctx context.Context, insert, selectID string, args ...any) (int64, bool, error) {
	res, err := c.q.ExecContext(ctx, insert, args...)
	if err != nil {
		return 0, false, fmt.Errorf("insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}
	var id int64
	if err := c.q.QueryRowContext(ctx, selectID, args...).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("select: %w", err)
	}
	return id, n > 0, nil
}

// EnsureDepartment matches a department case-insensitively, creating it
// with the given casing when missing.
func (c conn) EnsureDepartment(ctx context.Context, name string) (int64, bool, error) {
	id, created, err := c.ensureNamed(ctx,
		`INSERT INTO departments (name) VALUES (?) ON CONFLICT DO NOTHING`,
		`SELECT id FROM departments WHERE name = ? COLLATE NOCASE`, name)
	if err != nil {
		return 0, false, fmt.Errorf("ensure department: %w", err)
	}
	return id, created, nil
}

// EnsureSection matches a section of a department case-insensitively.
func (c conn) EnsureSection(ctx context.Context, departmentID int64, name string) (int64, bool, error) {
	id, created, err := c.ensureNamed(ctx,
		`INSERT INTO sections (department_id, name) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		`SELECT id FROM sections WHERE department_id = ? AND name = ? COLLATE NOCASE`, departmentID, name)
	if err != nil {
		return 0, false, fmt.Errorf("ensure section: %w", err)
	}
	return id, created, nil
}

// EnsureHousingSite matches a site by name case-insensitively.
func (c conn) EnsureHousingSite(ctx context.Context, name string) (int64, bool, error) {
	id, created, err := c.ensureNamed(ctx,
		`INSERT INTO housing_sites (name) VALUES (?) ON CONFLICT DO NOTHING`,
		`SELECT id FROM housing_sites WHERE name = ? COLLATE NOCASE`, name)
	if err != nil {
		return 0, false, fmt.Errorf("ensure housing site: %w", err)
	}
	return id, created, nil
}

// EnsureHousingBuilding matches a building of a site case-insensitively.
func (c conn) EnsureHousingBuilding(ctx context.Context, siteID int64, name string) (int64, bool, error) {
	id, created, err := c.ensureNamed(ctx,
		`INSERT INTO housing_buildings (site_id, name) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		`SELECT id FROM housing_buildings WHERE site_id = ? AND name = ? COLLATE NOCASE`, siteID, name)
	if err != nil {
		return 0, false, fmt.Errorf("ensure housing building: %w", err)
	}
	return id, created, nil
}

// EnsureAdminUnit upserts the derived unit identified by (site, building,
// label). The source unit link is refreshed on every call.
func (c conn) EnsureAdminUnit(ctx context.Context, siteID, buildingID int64, buildingKey, label string, sourceUnitID int64) (int64, bool, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO admin_housing_units (site_id, building_id, building_key, unit_label, source_unit_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(site_id, building_key, unit_label) DO NOTHING
	`, siteID, nullID(buildingID), buildingKey, label, nullID(sourceUnitID))
	if err != nil {
		return 0, false, fmt.Errorf("ensure admin unit: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("ensure admin unit: rows affected: %w", err)
	}
	if n == 0 {
		if _, err := c.q.ExecContext(ctx, `
			UPDATE admin_housing_units SET building_id = ?, source_unit_id = ?
			WHERE site_id = ? AND building_key = ? AND unit_label = ?
		`, nullID(buildingID), nullID(sourceUnitID), siteID, buildingKey, label); err != nil {
			return 0, false, fmt.Errorf("ensure admin unit: refresh: %w", err)
		}
	}
	var id int64
	if err := c.q.QueryRowContext(ctx, `
		SELECT id FROM admin_housing_units WHERE site_id = ? AND building_key = ? AND unit_label = ?
	`, siteID, buildingKey, label).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("ensure admin unit: select: %w", err)
	}
	return id, n > 0, nil
}

// CountAdminUnits returns the number of derived units.
func (c conn) CountAdminUnits(ctx context.Context) (int, error) {
	var n int
	if err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_housing_units`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admin units: %w", err)
	}
	return n, nil
}

// AdminUnitIDBySource returns the derived unit linked to a housing unit
// or ErrNotFound.
func (c conn) AdminUnitIDBySource(ctx context.Context, sourceUnitID int64) (int64, error) {
	var id int64
	err := c.q.QueryRowContext(ctx,
		`SELECT id FROM admin_housing_units WHERE source_unit_id = ?`, sourceUnitID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("admin unit by source: %w", err)
	}
	return id, nil
}

const workerColumns = `
	id, identity_hash, first_name, middle_name, last_name, first_norm, middle_norm,
	last_norm, category, job_title, COALESCE(department_id, 0), COALESCE(section_id, 0)`

func scanWorker(row interface{ Scan(...any) error }) (Worker, error) {
	var w Worker
	err := row.Scan(&w.ID, &w.IdentityHash, &w.FirstName, &w.MiddleName, &w.LastName,
		&w.FirstNorm, &w.MiddleNorm, &w.LastNorm, &w.Category, &w.JobTitle,
		&w.DepartmentID, &w.SectionID)
	return w, err
}

// WorkerByHash returns the worker with an identity hash or ErrNotFound.
func (c conn) WorkerByHash(ctx context.Context, hash string) (Worker, error) {
	w, err := scanWorker(c.q.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE identity_hash = ?`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return Worker{}, ErrNotFound
	}
	if err != nil {
		return Worker{}, fmt.Errorf("worker by hash: %w", err)
	}
	return w, nil
}

// WorkerByID returns a worker by primary key or ErrNotFound.
func (c conn) WorkerByID(ctx context.Context, id int64) (Worker, error) {
	w, err := scanWorker(c.q.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Worker{}, ErrNotFound
	}
	if err != nil {
		return Worker{}, fmt.Errorf("worker by id: %w", err)
	}
	return w, nil
}

// WorkersByName returns the workers sharing normalized first and last name
// and category, ordered by id. It uses the (last_norm, first_norm) index.
func (c conn) WorkersByName(ctx context.Context, firstNorm, lastNorm, category string) ([]Worker, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+workerColumns+` FROM workers
		WHERE last_norm = ? AND first_norm = ? AND category = ?
		ORDER BY id ASC
	`, lastNorm, firstNorm, category)
	if err != nil {
		return nil, fmt.Errorf("workers by name: %w", err)
	}
	defer rows.Close()

	out := []Worker{}
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workers: %w", err)
	}
	return out, nil
}

// InsertWorker stores a worker keyed on its identity hash. When another
// insert won the race the stored row is returned with inserted false.
func (c conn) InsertWorker(ctx context.Context, w Worker, now time.Time) (Worker, bool, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO workers (identity_hash, first_name, middle_name, last_name, first_norm,
			middle_norm, last_norm, category, job_title, department_id, section_id,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity_hash) DO NOTHING
	`, w.IdentityHash, w.FirstName, w.MiddleName, w.LastName, w.FirstNorm,
		w.MiddleNorm, w.LastNorm, w.Category, w.JobTitle, nullID(w.DepartmentID), nullID(w.SectionID),
		timestamp(now), timestamp(now))
	if err != nil {
		return Worker{}, false, fmt.Errorf("insert worker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Worker{}, false, fmt.Errorf("insert worker: rows affected: %w", err)
	}
	got, err := c.WorkerByHash(ctx, w.IdentityHash)
	if err != nil {
		return Worker{}, false, fmt.Errorf("insert worker: %w", err)
	}
	return got, n > 0, nil
}

// UpdateWorkerJob refreshes a worker's job title, department and section.
// Zero ids leave the stored link unchanged; an empty title likewise.
func (c conn) UpdateWorkerJob(ctx context.Context, id int64, jobTitle string, departmentID, sectionID int64, now time.Time) error {
	_, err := c.q.ExecContext(ctx, `
		UPDATE workers SET
			job_title = CASE WHEN ? = '' THEN job_title ELSE ? END,
			department_id = COALESCE(?, department_id),
			section_id = COALESCE(?, section_id),
			updated_at = ?
		WHERE id = ?
	`, jobTitle, jobTitle, nullID(departmentID), nullID(sectionID), timestamp(now), id)
	if err != nil {
		return fmt.Errorf("update worker job: %w", err)
	}
	return nil
}

// UpdateWorkerNames overwrites a worker's names and identity hash.
func (c conn) UpdateWorkerNames(ctx context.Context, w Worker, now time.Time) error {
	_, err := c.q.ExecContext(ctx, `
		UPDATE workers SET
			identity_hash = ?, first_name = ?, middle_name = ?, last_name = ?,
			first_norm = ?, middle_norm = ?, last_norm = ?, updated_at = ?
		WHERE id = ?
	`, w.IdentityHash, w.FirstName, w.MiddleName, w.LastName,
		w.FirstNorm, w.MiddleNorm, w.LastNorm, timestamp(now), w.ID)
	if err != nil {
		return fmt.Errorf("update worker names: %w", err)
	}
	return nil
}

// CountWorkers returns the number of workers.
func (c conn) CountWorkers(ctx context.Context) (int, error) {
	var n int
	if err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM workers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count workers: %w", err)
	}
	return n, nil
}

// assignmentColumns reads an assignment and the arrival of the latest
// import behind its unit.
const assignmentColumns = `
	a.id, a.worker_id, a.unit_id, a.start_date, a.end_date, a.is_current,
	COALESCE((
		SELECT MAX(f.arrival_seq) FROM admin_housing_units au
		JOIN imported_files f ON f.unit_id = au.source_unit_id
		WHERE au.id = a.unit_id
	), 0)`

func (c conn) assignments(ctx context.Context, where string, args ...any) ([]Assignment, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM housing_unit_assignments a `+where+` ORDER BY a.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		var (
			a       Assignment
			start   string
			end     sql.NullString
			current int
		)
		if err := rows.Scan(&a.ID, &a.WorkerID, &a.UnitID, &start, &end, &current, &a.SourceArrival); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		if a.StartDate, err = time.Parse(dateLayout, start); err != nil {
			return nil, fmt.Errorf("parse start date %q: %w", start, err)
		}
		if a.EndDate, err = scanDate(end); err != nil {
			return nil, err
		}
		a.IsCurrent = current != 0
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

// CurrentAssignmentsOfWorker returns a worker's current assignments.
func (c conn) CurrentAssignmentsOfWorker(ctx context.Context, workerID int64) ([]Assignment, error) {
	return c.assignments(ctx, `WHERE a.worker_id = ? AND a.is_current = 1`, workerID)
}

// CurrentAssignmentsOfUnit returns a derived unit's current assignments.
func (c conn) CurrentAssignmentsOfUnit(ctx context.Context, unitID int64) ([]Assignment, error) {
	return c.assignments(ctx, `WHERE a.unit_id = ? AND a.is_current = 1`, unitID)
}

// AssignmentsOfWorker returns a worker's full assignment history.
func (c conn) AssignmentsOfWorker(ctx context.Context, workerID int64) ([]Assignment, error) {
	return c.assignments(ctx, `WHERE a.worker_id = ?`, workerID)
}

// EndAssignment closes an active assignment on endDate.
func (c conn) EndAssignment(ctx context.Context, id int64, endDate time.Time) error {
	_, err := c.q.ExecContext(ctx, `
		UPDATE housing_unit_assignments SET end_date = ?, is_current = 0
		WHERE id = ? AND is_current = 1
	`, endDate.UTC().Format(dateLayout), id)
	if err != nil {
		return fmt.Errorf("end assignment: %w", err)
	}
	return nil
}

// InsertAssignment opens a current assignment and returns its id.
func (c conn) InsertAssignment(ctx context.Context, workerID, unitID int64, start time.Time) (int64, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO housing_unit_assignments (worker_id, unit_id, start_date, is_current)
		VALUES (?, ?, ?, 1)
	`, workerID, unitID, start.UTC().Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert assignment: last insert id: %w", err)
	}
	return id, nil
}
