package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pamana/internal/ir"
)

// ImportedFile is the provenance entry of one ingested file.
type ImportedFile struct {
	ID            int64
	FileHash      string
	Filename      string
	SizeBytes     int64
	Kind          ir.Kind
	Status        ir.Status
	Records       int
	Skipped       []ir.Skip
	Notes         []ir.Warning
	ErrorMessage  string
	ReportID      int64
	UnitID        int64
	ArrivalSeq    int64
	SyncTriggered bool
	ImportedAt    time.Time
	FinalizedAt   *time.Time
}

// Finalization is the outcome written onto a provenance entry when its
// file has been processed.
type Finalization struct {
	Status       ir.Status
	Records      int
	Skipped      []ir.Skip
	Notes        []ir.Warning
	ErrorMessage string
	ReportID     int64
	UnitID       int64
	At           time.Time

	// Restart carries the attributes of a forced re-ingestion. When set,
	// the entry takes them on finalization and its sync guard is cleared.
	Restart *ImportedFile
}

// InsertImport records a new provenance entry in the processing state.
// inserted is false when an entry with the same fingerprint already
// exists; the existing entry is returned in that case. The unique index on
// file_hash decides races between concurrent uploads of one file.
func (c conn) InsertImport(ctx context.Context, f ImportedFile) (ImportedFile, bool, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO imported_files (file_hash, filename, size_bytes, kind, status, arrival_seq, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_hash) DO NOTHING
	`, f.FileHash, f.Filename, f.SizeBytes, string(f.Kind), string(ir.StatusProcessing),
		f.ArrivalSeq, timestamp(f.ImportedAt))
	if err != nil {
		return ImportedFile{}, false, fmt.Errorf("insert import: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ImportedFile{}, false, fmt.Errorf("insert import: rows affected: %w", err)
	}
	got, err := c.ImportByHash(ctx, f.FileHash)
	if err != nil {
		return ImportedFile{}, false, fmt.Errorf("insert import: %w", err)
	}
	return got, n > 0, nil
}

// RestartImport writes a forced re-ingestion's file attributes onto an
// existing entry and clears its sync guard so the new run can trigger a
// sync. The recorded outcome is left to FinalizeImport.
func (c conn) RestartImport(ctx context.Context, id int64, f ImportedFile) error {
	_, err := c.q.ExecContext(ctx, `
		UPDATE imported_files SET
			filename = ?, size_bytes = ?, kind = ?, arrival_seq = ?,
			sync_triggered = 0, imported_at = ?
		WHERE id = ?
	`, f.Filename, f.SizeBytes, string(f.Kind), f.ArrivalSeq, timestamp(f.ImportedAt), id)
	if err != nil {
		return fmt.Errorf("restart import: %w", err)
	}
	return nil
}

// FinalizeImport writes the processing outcome onto an entry.
func (c conn) FinalizeImport(ctx context.Context, id int64, fin Finalization) error {
	skipped, err := marshalList(fin.Skipped)
	if err != nil {
		return fmt.Errorf("finalize import: %w", err)
	}
	notes, err := marshalList(fin.Notes)
	if err != nil {
		return fmt.Errorf("finalize import: %w", err)
	}
	if fin.Restart != nil {
		if err := c.RestartImport(ctx, id, *fin.Restart); err != nil {
			return err
		}
	}
	_, err = c.q.ExecContext(ctx, `
		UPDATE imported_files SET
			status = ?, records = ?, skipped = ?, notes = ?, error_message = ?,
			report_id = ?, unit_id = ?, finalized_at = ?
		WHERE id = ?
	`, string(fin.Status), fin.Records, skipped, notes, fin.ErrorMessage,
		nullID(fin.ReportID), nullID(fin.UnitID), timestamp(fin.At), id)
	if err != nil {
		return fmt.Errorf("finalize import: %w", err)
	}
	return nil
}

// ClaimSync sets the entry's sync guard. It reports false when the guard
// was already set, so one entry triggers at most one sync.
func (c conn) ClaimSync(ctx context.Context, id int64) (bool, error) {
	res, err := c.q.ExecContext(ctx,
		`UPDATE imported_files SET sync_triggered = 1 WHERE id = ? AND sync_triggered = 0`, id)
	if err != nil {
		return false, fmt.Errorf("claim sync: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim sync: rows affected: %w", err)
	}
	return n > 0, nil
}

const importColumns = `
	id, file_hash, filename, size_bytes, kind, status, records, skipped, notes,
	error_message, COALESCE(report_id, 0), COALESCE(unit_id, 0), arrival_seq,
	sync_triggered, imported_at, finalized_at`

func scanImport(row interface{ Scan(...any) error }) (ImportedFile, error) {
	var (
		f                            ImportedFile
		kind, status, skipped, notes string
		synced                       int
		importedAt                   string
		finalizedAt                  sql.NullString
	)
	if err := row.Scan(&f.ID, &f.FileHash, &f.Filename, &f.SizeBytes, &kind, &status, &f.Records,
		&skipped, &notes, &f.ErrorMessage, &f.ReportID, &f.UnitID, &f.ArrivalSeq,
		&synced, &importedAt, &finalizedAt); err != nil {
		return ImportedFile{}, err
	}
	f.Kind = ir.Kind(kind)
	f.Status = ir.Status(status)
	f.SyncTriggered = synced != 0

	var err error
	if f.Skipped, err = unmarshalList[ir.Skip](skipped); err != nil {
		return ImportedFile{}, err
	}
	if f.Notes, err = unmarshalList[ir.Warning](notes); err != nil {
		return ImportedFile{}, err
	}
	if f.ImportedAt, err = scanTimestamp(importedAt); err != nil {
		return ImportedFile{}, err
	}
	if f.FinalizedAt, err = scanOptionalTimestamp(finalizedAt); err != nil {
		return ImportedFile{}, err
	}
	return f, nil
}

// ImportByHash returns the entry for a fingerprint or ErrNotFound.
func (c conn) ImportByHash(ctx context.Context, hash string) (ImportedFile, error) {
	f, err := scanImport(c.q.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM imported_files WHERE file_hash = ?`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return ImportedFile{}, ErrNotFound
	}
	if err != nil {
		return ImportedFile{}, fmt.Errorf("import by hash: %w", err)
	}
	return f, nil
}

// ImportByID returns the entry with the given id or ErrNotFound.
func (c conn) ImportByID(ctx context.Context, id int64) (ImportedFile, error) {
	f, err := scanImport(c.q.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM imported_files WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ImportedFile{}, ErrNotFound
	}
	if err != nil {
		return ImportedFile{}, fmt.Errorf("import by id: %w", err)
	}
	return f, nil
}

// ListImports returns the most recent entries first. limit <= 0 returns
// all of them.
func (c conn) ListImports(ctx context.Context, limit int) ([]ImportedFile, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+importColumns+` FROM imported_files
		ORDER BY imported_at DESC, arrival_seq DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	out := []ImportedFile{}
	for rows.Next() {
		f, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate imports: %w", err)
	}
	return out, nil
}

// LastArrivalSeq returns the highest arrival sequence recorded, or 0.
func (c conn) LastArrivalSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := c.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(arrival_seq), 0) FROM imported_files`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last arrival seq: %w", err)
	}
	return seq, nil
}
