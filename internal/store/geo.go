package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// District is a row of the districts table.
type District struct {
	ID    int64
	DCode string
	Name  string
}

// Local is a row of the locals table.
type Local struct {
	ID         int64
	DistrictID int64
	LCode      string
	Name       string
}

// DistrictByCode returns the district with the given code or ErrNotFound.
func (c conn) DistrictByCode(ctx context.Context, dcode string) (District, error) {
	var d District
	err := c.q.QueryRowContext(ctx,
		`SELECT id, dcode, name FROM districts WHERE dcode = ?`, dcode,
	).Scan(&d.ID, &d.DCode, &d.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return District{}, ErrNotFound
	}
	if err != nil {
		return District{}, fmt.Errorf("district by code: %w", err)
	}
	return d, nil
}

// EnsureDistrict returns the district with the given code, creating it
// with name when missing. created reports whether this call inserted it.
func (c conn) EnsureDistrict(ctx context.Context, dcode, name string, now time.Time) (District, bool, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO districts (dcode, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(dcode) DO NOTHING
	`, dcode, name, timestamp(now))
	if err != nil {
		return District{}, false, fmt.Errorf("ensure district: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return District{}, false, fmt.Errorf("ensure district: rows affected: %w", err)
	}
	d, err := c.DistrictByCode(ctx, dcode)
	if err != nil {
		return District{}, false, fmt.Errorf("ensure district: %w", err)
	}
	return d, n > 0, nil
}

// LocalByCode returns the local with the given code in a district or
// ErrNotFound.
func (c conn) LocalByCode(ctx context.Context, districtID int64, lcode string) (Local, error) {
	return c.local(ctx, `WHERE district_id = ? AND lcode = ?`, districtID, lcode)
}

// LocalByName matches the local name case-insensitively within a district.
func (c conn) LocalByName(ctx context.Context, districtID int64, name string) (Local, error) {
	return c.local(ctx, `WHERE district_id = ? AND name = ? COLLATE NOCASE`, districtID, name)
}

// LocalByID returns a local by primary key.
func (c conn) LocalByID(ctx context.Context, id int64) (Local, error) {
	return c.local(ctx, `WHERE id = ?`, id)
}

func (c conn) local(ctx context.Context, where string, args ...any) (Local, error) {
	var l Local
	err := c.q.QueryRowContext(ctx,
		`SELECT id, district_id, lcode, name FROM locals `+where, args...,
	).Scan(&l.ID, &l.DistrictID, &l.LCode, &l.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Local{}, ErrNotFound
	}
	if err != nil {
		return Local{}, fmt.Errorf("local: %w", err)
	}
	return l, nil
}

// EnsureLocal returns the local with the given code, creating it with
// name when missing. The caller must have checked the name for clashes;
// a name already taken by another code in the district fails the insert.
func (c conn) EnsureLocal(ctx context.Context, districtID int64, lcode, name string, now time.Time) (Local, bool, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO locals (district_id, lcode, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(district_id, lcode) DO NOTHING
	`, districtID, lcode, name, timestamp(now))
	if err != nil {
		return Local{}, false, fmt.Errorf("ensure local: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Local{}, false, fmt.Errorf("ensure local: rows affected: %w", err)
	}
	l, err := c.LocalByCode(ctx, districtID, lcode)
	if err != nil {
		return Local{}, false, fmt.Errorf("ensure local: %w", err)
	}
	return l, n > 0, nil
}

// RenameLocal sets a local's display name.
func (c conn) RenameLocal(ctx context.Context, id int64, name string) error {
	if _, err := c.q.ExecContext(ctx, `UPDATE locals SET name = ? WHERE id = ?`, name, id); err != nil {
		return fmt.Errorf("rename local: %w", err)
	}
	return nil
}

// DistrictByID returns a district by primary key or ErrNotFound.
func (c conn) DistrictByID(ctx context.Context, id int64) (District, error) {
	var d District
	err := c.q.QueryRowContext(ctx,
		`SELECT id, dcode, name FROM districts WHERE id = ?`, id,
	).Scan(&d.ID, &d.DCode, &d.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return District{}, ErrNotFound
	}
	if err != nil {
		return District{}, fmt.Errorf("district by id: %w", err)
	}
	return d, nil
}
