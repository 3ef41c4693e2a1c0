// Package materialize writes extracted records into the canonical store.
//
// One import is materialized under one transaction: the report (or housing
// unit) is upserted, the sections its kind covers are deleted and rebuilt
// in source order, the report summary is recomputed from the rows just
// written, and the provenance entry is finalized. Any failure rolls the
// transaction back and finalizes the entry as error outside it.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/config"
	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/resolve"
	"github.com/roach88/pamana/internal/store"
)

// Input is one extracted import ready to be written.
type Input struct {
	ImportID int64
	FileHash string
	Kind     ir.Kind
	Force    bool
	Records  []ir.RawRecord
	Skips    []ir.Skip
	Warnings []ir.Warning

	// Restart is set for a forced re-ingestion of an existing entry.
	Restart *store.ImportedFile
}

// Result is the outcome of a materialization.
type Result struct {
	Status    ir.Status
	ReportID  int64
	UnitID    int64
	Records   int
	Skips     []ir.Skip
	Warnings  []ir.Warning
	Conflicts []resolve.Conflict
	Summary   *ir.Summary
}

// Materializer writes imports into a store.
type Materializer struct {
	store    *store.Store
	resolver *resolve.Resolver
	log      logrus.FieldLogger
	now      func() time.Time
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLogger sets the logger. The default discards.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Materializer) { m.log = log }
}

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Materializer) { m.now = now }
}

// New returns a Materializer writing to s and resolving references with r.
func New(s *store.Store, r *resolve.Resolver, opts ...Option) *Materializer {
	m := &Materializer{store: s, resolver: r, log: config.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("module", "materialize")
	return m
}

// Materialize writes in and finalizes its provenance entry. The entry is
// finalized error when the write fails; the returned error is then an
// *ir.Error with code InvariantViolation or TransactionAborted.
func (m *Materializer) Materialize(ctx context.Context, in Input) (Result, error) {
	log := m.log.WithFields(logrus.Fields{"provenance_id": in.ImportID, "kind": in.Kind})
	res := Result{
		Skips:     append([]ir.Skip{}, in.Skips...),
		Warnings:  append([]ir.Warning{}, in.Warnings...),
		Conflicts: []resolve.Conflict{},
	}

	w := &writer{m: m, in: in, res: &res, log: log}
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		w.tx = tx
		if in.Kind.ProducesReport() {
			if err := w.report(ctx); err != nil {
				return err
			}
		} else if err := w.housingUnit(ctx); err != nil {
			return err
		}

		res.Status = ir.StatusSuccess
		if len(res.Skips) > 0 {
			res.Status = ir.StatusPartial
		}
		return tx.FinalizeImport(ctx, in.ImportID, store.Finalization{
			Status:   res.Status,
			Records:  res.Records,
			Skipped:  res.Skips,
			Notes:    res.Warnings,
			ReportID: res.ReportID,
			UnitID:   res.UnitID,
			At:       m.now(),
			Restart:  in.Restart,
		})
	})
	if err != nil {
		return m.fail(ctx, in, log, err)
	}

	for _, wr := range res.Warnings {
		log.WithField("code", wr.Code).Warn(wr.Message)
	}
	for _, s := range res.Skips {
		log.WithFields(logrus.Fields{"sheet": s.Sheet, "row": s.Row + 1, "reason": s.Reason}).Warn(s.Detail)
	}
	log.WithFields(logrus.Fields{
		"status":    res.Status,
		"records":   res.Records,
		"skipped":   len(res.Skips),
		"conflicts": len(res.Conflicts),
	}).Info("import materialized")
	return res, nil
}

// Unparsed finalizes an import whose format the pipeline records but does
// not read. The entry becomes partial with a FormatNotParsed note.
func (m *Materializer) Unparsed(ctx context.Context, importID int64, restart *store.ImportedFile) (Result, error) {
	res := Result{
		Status:    ir.StatusPartial,
		Skips:     []ir.Skip{},
		Warnings:  []ir.Warning{{Code: ir.WarnFormatNotParsed, Row: -1, Message: "format not parsed"}},
		Conflicts: []resolve.Conflict{},
	}
	err := m.store.FinalizeImport(ctx, importID, store.Finalization{
		Status:       res.Status,
		Skipped:      res.Skips,
		Notes:        res.Warnings,
		ErrorMessage: "format not parsed",
		At:           m.now(),
		Restart:      restart,
	})
	if err != nil {
		return Result{}, ir.NewAbortedError(importID, err)
	}
	return res, nil
}

// Fail finalizes an import as error without writing anything else.
func (m *Materializer) Fail(ctx context.Context, importID int64, cause error) error {
	return m.store.FinalizeImport(ctx, importID, store.Finalization{
		Status:       ir.StatusError,
		Skipped:      []ir.Skip{},
		Notes:        []ir.Warning{},
		ErrorMessage: cause.Error(),
		At:           m.now(),
	})
}

func (m *Materializer) fail(ctx context.Context, in Input, log logrus.FieldLogger, err error) (Result, error) {
	var pe *ir.Error
	if !errors.As(err, &pe) {
		pe = ir.NewAbortedError(in.ImportID, err)
	}
	if pe.ProvenanceID == 0 {
		pe.ProvenanceID = in.ImportID
	}
	// The transaction is gone; the entry is finalized on its own. A forced
	// run keeps the prior outcome, which still describes the stored rows.
	if in.Restart != nil {
		log.Warn("forced re-ingestion failed; prior entry kept")
	} else if ferr := m.Fail(context.WithoutCancel(ctx), in.ImportID, pe); ferr != nil {
		log.WithError(ferr).Error("finalize failed import")
	}
	log.WithError(pe).Error("materialization failed")
	return Result{Status: ir.StatusError}, pe
}

// writer holds the state of one materialization transaction.
type writer struct {
	m   *Materializer
	tx  *store.Tx
	in  Input
	res *Result
	log logrus.FieldLogger
}

func (w *writer) warn(code ir.WarningCode, sheet string, row int, format string, args ...any) {
	w.res.Warnings = append(w.res.Warnings, ir.Warning{
		Code:    code,
		Sheet:   sheet,
		Row:     row,
		Message: fmt.Sprintf(format, args...),
	})
}

func (w *writer) conflict(c *resolve.Conflict) {
	if c != nil {
		w.res.Conflicts = append(w.res.Conflicts, *c)
	}
}
