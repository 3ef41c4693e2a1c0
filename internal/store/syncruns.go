package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pamana/internal/ir"
)

// SyncRun records one projection of canonical data into the admin model.
type SyncRun struct {
	ID           string
	Source       string
	Trigger      string
	ProvenanceID int64
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
	Status       ir.Status
	Counters     map[string]int64
	Notes        []string
}

// Conflict is a sync conflict awaiting or past review.
type Conflict struct {
	ID         int64
	SyncRunID  string
	Type       ir.ConflictType
	Subject    string
	WorkerID   int64
	LocalID    int64
	Existing   map[string]string
	Incoming   map[string]string
	Status     ir.ConflictStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
	ResolvedBy string
}

// InsertSyncRun stores a finished sync run.
func (c conn) InsertSyncRun(ctx context.Context, run SyncRun) error {
	counters := make(map[string]any, len(run.Counters))
	for k, v := range run.Counters {
		counters[k] = v
	}
	countersJSON, err := marshalPayload(counters)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	notesJSON, err := marshalList(run.Notes)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO sync_runs (id, source, run_trigger, provenance_id, started_at, finished_at,
			duration_ms, status, counters, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, run.Trigger, nullID(run.ProvenanceID), timestamp(run.StartedAt),
		timestamp(run.FinishedAt), run.Duration.Milliseconds(), string(run.Status), countersJSON, notesJSON)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

// SyncRuns returns the most recent runs first.
func (c conn) SyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, source, run_trigger, COALESCE(provenance_id, 0), started_at, finished_at,
			duration_ms, status, counters, notes
		FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	out := []SyncRun{}
	for rows.Next() {
		var (
			r                         SyncRun
			started, finished, status string
			counters, notes           string
			ms                        int64
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Trigger, &r.ProvenanceID, &started, &finished,
			&ms, &status, &counters, &notes); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		r.Status = ir.Status(status)
		if r.StartedAt, err = scanTimestamp(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = scanTimestamp(finished); err != nil {
			return nil, err
		}
		if r.Counters, err = unmarshalCounters(counters); err != nil {
			return nil, err
		}
		if r.Notes, err = unmarshalList[string](notes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return out, nil
}

// InsertConflict raises a pending conflict. A pending conflict with the
// same type and subject already open is kept; created is false then and
// the open conflict's id is returned.
func (c conn) InsertConflict(ctx context.Context, cf Conflict) (int64, bool, error) {
	existing, err := marshalPayload(orEmpty(cf.Existing))
	if err != nil {
		return 0, false, fmt.Errorf("insert conflict: %w", err)
	}
	incoming, err := marshalPayload(orEmpty(cf.Incoming))
	if err != nil {
		return 0, false, fmt.Errorf("insert conflict: %w", err)
	}
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO sync_conflicts (sync_run_id, type, subject, worker_id, local_id,
			existing_payload, incoming_payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?)
		ON CONFLICT DO NOTHING
	`, cf.SyncRunID, string(cf.Type), cf.Subject, nullID(cf.WorkerID), nullID(cf.LocalID),
		existing, incoming, timestamp(cf.CreatedAt))
	if err != nil {
		return 0, false, fmt.Errorf("insert conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("insert conflict: rows affected: %w", err)
	}
	var id int64
	if err := c.q.QueryRowContext(ctx, `
		SELECT id FROM sync_conflicts WHERE type = ? AND subject = ? AND status = 'pending'
	`, string(cf.Type), cf.Subject).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("insert conflict: select: %w", err)
	}
	return id, n > 0, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

const conflictColumns = `
	id, COALESCE(sync_run_id, ''), type, subject, COALESCE(worker_id, 0), COALESCE(local_id, 0),
	existing_payload, incoming_payload, status, created_at, resolved_at, resolved_by`

func scanConflict(row interface{ Scan(...any) error }) (Conflict, error) {
	var (
		cf                      Conflict
		typ, existing, incoming string
		status, created         string
		resolved                sql.NullString
	)
	if err := row.Scan(&cf.ID, &cf.SyncRunID, &typ, &cf.Subject, &cf.WorkerID, &cf.LocalID,
		&existing, &incoming, &status, &created, &resolved, &cf.ResolvedBy); err != nil {
		return Conflict{}, err
	}
	cf.Type = ir.ConflictType(typ)
	cf.Status = ir.ConflictStatus(status)

	var err error
	if cf.Existing, err = unmarshalStrings(existing); err != nil {
		return Conflict{}, err
	}
	if cf.Incoming, err = unmarshalStrings(incoming); err != nil {
		return Conflict{}, err
	}
	if cf.CreatedAt, err = scanTimestamp(created); err != nil {
		return Conflict{}, err
	}
	if cf.ResolvedAt, err = scanOptionalTimestamp(resolved); err != nil {
		return Conflict{}, err
	}
	return cf, nil
}

// ConflictByID returns a conflict or ErrNotFound.
func (c conn) ConflictByID(ctx context.Context, id int64) (Conflict, error) {
	cf, err := scanConflict(c.q.QueryRowContext(ctx,
		`SELECT `+conflictColumns+` FROM sync_conflicts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Conflict{}, ErrNotFound
	}
	if err != nil {
		return Conflict{}, fmt.Errorf("conflict: %w", err)
	}
	return cf, nil
}

// ListConflicts returns conflicts in the given state, oldest first. An
// empty status lists every conflict.
func (c conn) ListConflicts(ctx context.Context, status ir.ConflictStatus) ([]Conflict, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = c.q.QueryContext(ctx,
			`SELECT `+conflictColumns+` FROM sync_conflicts ORDER BY id ASC`)
	} else {
		rows, err = c.q.QueryContext(ctx,
			`SELECT `+conflictColumns+` FROM sync_conflicts WHERE status = ? ORDER BY id ASC`, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	out := []Conflict{}
	for rows.Next() {
		cf, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		out = append(out, cf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	return out, nil
}

// ResolveConflict moves a pending conflict to its final state. It reports
// false when the conflict was no longer pending.
func (c conn) ResolveConflict(ctx context.Context, id int64, status ir.ConflictStatus, by string, at time.Time) (bool, error) {
	res, err := c.q.ExecContext(ctx, `
		UPDATE sync_conflicts SET status = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), by, timestamp(at), id)
	if err != nil {
		return false, fmt.Errorf("resolve conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve conflict: rows affected: %w", err)
	}
	return n > 0, nil
}
