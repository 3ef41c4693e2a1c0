package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pamana/internal/adminsync"
	"github.com/roach88/pamana/internal/config"
	"github.com/roach88/pamana/internal/extract"
	"github.com/roach88/pamana/internal/intake"
	"github.com/roach88/pamana/internal/inventory"
	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/layout"
	"github.com/roach88/pamana/internal/materialize"
	"github.com/roach88/pamana/internal/resolve"
	"github.com/roach88/pamana/internal/store"
	"github.com/roach88/pamana/internal/workbook"
)

// Engine runs the ingestion pipeline and the operations around it against
// one store.
//
// Thread-safety model:
//   - Ingest, IngestFiles and every read operation: safe from any goroutine
//   - concurrent ingestions share nothing but the store, whose unique
//     indexes decide races between them
type Engine struct {
	cfg          *config.Config
	store        *store.Store
	clock        *Clock
	ids          IDGenerator
	templates    *layout.Templates
	intake       *intake.Intake
	recognizer   *layout.Recognizer
	materializer *materialize.Materializer
	syncer       *adminsync.Syncer
	log          logrus.FieldLogger
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger handed to every stage. The default discards.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock sets the wall-clock source. The default is the current time in
// the configured timezone.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the sync run id source. The default is
// UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithTemplates sets the form templates. The default loads the embedded
// templates, unified with the configured override file.
func WithTemplates(t *layout.Templates) Option {
	return func(e *Engine) { e.templates = t }
}

// New builds an Engine over s. The arrival clock resumes after the last
// arrival recorded in s.
func New(ctx context.Context, s *store.Store, cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:   cfg,
		store: s,
		ids:   UUIDv7Generator{},
		log:   config.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.now == nil {
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		e.now = func() time.Time { return time.Now().In(loc) }
	}
	if e.templates == nil {
		t, err := layout.LoadTemplates(cfg.Templates)
		if err != nil {
			return nil, err
		}
		e.templates = t
	}
	last, err := s.LastArrivalSeq(ctx)
	if err != nil {
		return nil, err
	}
	e.clock = NewClockAt(last)

	resolver := resolve.New(resolve.WithCategory(cfg.WorkerCategory), resolve.WithLogger(e.log))
	e.intake = intake.New(s, e.clock.Next,
		intake.WithTempDir(cfg.TempDir),
		intake.WithLogger(e.log),
		intake.WithClock(e.now))
	e.recognizer = layout.New(e.templates,
		layout.WithLCodeAliases(cfg.LCodeAliases),
		layout.WithDefaultUsefulLife(cfg.DefaultUsefulLife),
		layout.WithClock(e.now),
		layout.WithLogger(e.log))
	e.materializer = materialize.New(s, resolver,
		materialize.WithLogger(e.log),
		materialize.WithClock(e.now))
	e.syncer = adminsync.New(s, resolver,
		adminsync.WithLogger(e.log),
		adminsync.WithClock(e.now),
		adminsync.WithIDGenerator(e.ids.Generate))
	e.log = e.log.WithField("module", "engine")
	return e, nil
}

// Config returns the configuration the engine runs with.
func (e *Engine) Config() *config.Config { return e.cfg }

// IngestResult is the structured outcome of one ingestion.
type IngestResult struct {
	ProvenanceID int64
	File         string
	Kind         ir.Kind
	Fingerprint  string
	Status       ir.Status
	Superseded   bool
	Records      int
	Skipped      []ir.Skip
	Warnings     []ir.Warning
	Conflicts    []resolve.Conflict
	ReportID     int64
	UnitID       int64
	Summary      *ir.Summary

	// SyncRun is the derived-view sync the ingestion triggered, if any.
	SyncRun *store.SyncRun
	// SyncError is set when that sync failed. The ingestion itself stands.
	SyncError string
}

func newIngestResult(name string, kind ir.Kind) IngestResult {
	return IngestResult{
		File:      name,
		Kind:      kind,
		Skipped:   []ir.Skip{},
		Warnings:  []ir.Warning{},
		Conflicts: []resolve.Conflict{},
	}
}

func (r *IngestResult) apply(m materialize.Result) {
	r.Status = m.Status
	r.Records = m.Records
	r.ReportID = m.ReportID
	r.UnitID = m.UnitID
	r.Summary = m.Summary
	if m.Skips != nil {
		r.Skipped = m.Skips
	}
	if m.Warnings != nil {
		r.Warnings = m.Warnings
	}
	if m.Conflicts != nil {
		r.Conflicts = m.Conflicts
	}
}

// Ingest runs one byte stream through the pipeline: intake, workbook
// reading, layout recognition, extraction and materialization. A success
// or partial outcome then triggers the derived-view sync, once per
// provenance entry.
//
// The returned error is an *ir.Error for every pipeline failure; the
// result is filled in as far as the pipeline got.
func (e *Engine) Ingest(ctx context.Context, r io.Reader, name string, kind ir.Kind, force bool) (IngestResult, error) {
	res := newIngestResult(name, kind)
	err := e.intake.Accept(ctx, r, name, kind, force, func(ctx context.Context, tk *intake.Ticket) error {
		res.ProvenanceID = tk.Import.ID
		res.Fingerprint = tk.Fingerprint
		res.Superseded = tk.Superseded
		out, err := e.process(ctx, tk, force)
		res.apply(out)
		return err
	})
	if err != nil {
		res.Status = ir.StatusError
		return res, err
	}

	e.syncAfter(ctx, &res)
	return res, nil
}

// process reads, recognizes, extracts and materializes a staged file.
func (e *Engine) process(ctx context.Context, tk *intake.Ticket, force bool) (materialize.Result, error) {
	log := e.log.WithFields(logrus.Fields{"provenance_id": tk.Import.ID, "file": tk.OriginalName})
	if tk.Format == workbook.FormatPDF {
		log.Info("pdf recorded for provenance only")
		return e.materializer.Unparsed(ctx, tk.Import.ID, tk.Restart)
	}

	wb, err := workbook.Open(tk.TempPath)
	if err != nil {
		uerr := ir.NewUnreadableError(tk.Import.ID, err)
		if tk.Restart != nil {
			log.Warn("forced re-ingestion unreadable; prior entry kept")
		} else if ferr := e.materializer.Fail(context.WithoutCancel(ctx), tk.Import.ID, uerr); ferr != nil {
			log.WithError(ferr).Error("finalize unreadable import")
		}
		config.LogError(log, "engine", "process", uerr, nil)
		return materialize.Result{Status: ir.StatusError}, uerr
	}

	l := e.recognizer.Recognize(wb, tk.Kind)
	c := extract.Collect(extract.Workbook(wb, l))
	log.WithFields(logrus.Fields{
		"sheets":   len(wb.Sheets),
		"records":  len(c.Records),
		"skipped":  len(c.Skips),
		"warnings": len(l.Warnings) + len(c.Warnings),
	}).Debug("extracted")

	warnings := make([]ir.Warning, 0, len(l.Warnings)+len(c.Warnings))
	warnings = append(warnings, l.Warnings...)
	warnings = append(warnings, c.Warnings...)
	return e.materializer.Materialize(ctx, materialize.Input{
		ImportID: tk.Import.ID,
		FileHash: tk.Fingerprint,
		Kind:     tk.Kind,
		Force:    force,
		Records:  c.Records,
		Skips:    c.Skips,
		Warnings: warnings,
		Restart:  tk.Restart,
	})
}

// syncAfter runs the sync an ingestion triggers. Its failure never undoes
// the ingestion.
func (e *Engine) syncAfter(ctx context.Context, res *IngestResult) {
	if res.Status != ir.StatusSuccess && res.Status != ir.StatusPartial {
		return
	}
	run, err := e.syncer.Sync(ctx, adminsync.TriggerIngest, res.ProvenanceID)
	switch {
	case err == nil:
		res.SyncRun = &run
	case errors.Is(err, adminsync.ErrAlreadySynced):
		e.log.WithField("provenance_id", res.ProvenanceID).Debug("sync already triggered")
	default:
		if run.ID != "" {
			res.SyncRun = &run
		}
		res.SyncError = err.Error()
		e.log.WithError(err).WithField("provenance_id", res.ProvenanceID).Warn("sync after ingest failed")
	}
}

// IngestFile ingests the file at path under its base name.
func (e *Engine) IngestFile(ctx context.Context, path string, kind ir.Kind, force bool) (IngestResult, error) {
	name := filepath.Base(path)
	if _, err := workbook.FormatOf(name); err != nil {
		res := newIngestResult(name, kind)
		res.Status = ir.StatusError
		return res, ir.NewUnsupportedExtensionError(name)
	}
	f, err := os.Open(path)
	if err != nil {
		res := newIngestResult(name, kind)
		res.Status = ir.StatusError
		return res, ir.NewUnreadableError(0, err)
	}
	defer f.Close()
	return e.Ingest(ctx, f, name, kind, force)
}

// FileJob is one file of a batch ingestion.
type FileJob struct {
	Path  string
	Kind  ir.Kind
	Force bool
}

// BatchResult is the outcome of one FileJob. Err is the job's own
// failure; it does not stop the batch.
type BatchResult struct {
	Job    FileJob
	Result IngestResult
	Err    error
}

// IngestFiles ingests jobs with up to the configured number of concurrent
// workers. Workers take jobs in the given order; results come back in job
// order. Only cancellation of ctx
// stops the batch early; jobs never started then report ctx's error.
func (e *Engine) IngestFiles(ctx context.Context, jobs []FileJob) ([]BatchResult, error) {
	results := make([]BatchResult, len(jobs))
	for i, j := range jobs {
		results[i] = BatchResult{Job: j}
	}
	workers := min(max(e.cfg.Workers, 1), max(len(jobs), 1))
	q := newJobQueue(jobs)

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				item, ok := q.TryDequeue()
				if !ok {
					return nil
				}
				res, err := e.IngestFile(gctx, item.job.Path, item.job.Kind, item.job.Force)
				results[item.index].Result = res
				results[item.index].Err = err
			}
		})
	}
	err := g.Wait()
	if err != nil {
		q.Close()
		for i := range results {
			if results[i].Result.File == "" && results[i].Err == nil {
				results[i].Err = err
			}
		}
	}

	e.log.WithFields(logrus.Fields{"files": len(jobs), "workers": workers}).Info("batch finished")
	return results, err
}

// Inspect recognizes the layout of the file at path without recording or
// writing anything.
func (e *Engine) Inspect(path string, kind ir.Kind) (*layout.Layout, error) {
	wb, err := workbook.Open(path)
	if err != nil {
		if errors.Is(err, workbook.ErrUnsupportedFormat) {
			return nil, ir.NewUnsupportedExtensionError(filepath.Base(path))
		}
		return nil, ir.NewUnreadableError(0, err)
	}
	return e.recognizer.Recognize(wb, kind), nil
}

// Sync runs a manual derived-view sync.
func (e *Engine) Sync(ctx context.Context) (store.SyncRun, error) {
	return e.syncer.Sync(ctx, adminsync.TriggerManual, 0)
}

// SyncRuns lists recent sync runs, newest first.
func (e *Engine) SyncRuns(ctx context.Context, limit int) ([]store.SyncRun, error) {
	return e.store.SyncRuns(ctx, limit)
}

// ResolveConflict settles a pending sync conflict.
func (e *Engine) ResolveConflict(ctx context.Context, id int64, action, by string, mergeMap map[string]string) (store.Conflict, error) {
	a, err := adminsync.ParseAction(action)
	if err != nil {
		return store.Conflict{}, err
	}
	return e.syncer.ResolveConflict(ctx, id, a, by, mergeMap)
}

// ListConflicts lists conflicts in a state; an empty status lists all.
func (e *Engine) ListConflicts(ctx context.Context, status ir.ConflictStatus) ([]store.Conflict, error) {
	return e.store.ListConflicts(ctx, status)
}

// ListImports lists provenance entries, newest first.
func (e *Engine) ListImports(ctx context.Context, limit int) ([]store.ImportedFile, error) {
	return e.store.ListImports(ctx, limit)
}

// ReportView is a report with everything materialized under it.
type ReportView struct {
	District  store.District
	Local     store.Local
	Report    store.Report
	Summary   ir.Summary
	Buildings []ir.Building
	Items     []ir.Item
	Lands     []ir.Land
	Plants    []ir.Plant
	Vehicles  []ir.Vehicle
}

// ShowReport reads a report by its codes and year.
func (e *Engine) ShowReport(ctx context.Context, key store.ReportKey) (ReportView, error) {
	var v ReportView
	var err error
	if v.Report, err = e.store.ReportByKey(ctx, key); err != nil {
		return ReportView{}, fmt.Errorf("report %s-%s %d: %w", key.DCode, key.LCode, key.Year, err)
	}
	if v.Local, err = e.store.LocalByID(ctx, v.Report.LocalID); err != nil {
		return ReportView{}, err
	}
	if v.District, err = e.store.DistrictByID(ctx, v.Local.DistrictID); err != nil {
		return ReportView{}, err
	}
	if v.Summary, err = e.store.Summary(ctx, v.Report.ID); err != nil {
		return ReportView{}, err
	}
	if v.Buildings, err = e.store.Buildings(ctx, v.Report.ID); err != nil {
		return ReportView{}, err
	}
	if v.Items, err = e.store.Items(ctx, v.Report.ID); err != nil {
		return ReportView{}, err
	}
	if v.Lands, err = e.store.Lands(ctx, v.Report.ID); err != nil {
		return ReportView{}, err
	}
	if v.Plants, err = e.store.Plants(ctx, v.Report.ID); err != nil {
		return ReportView{}, err
	}
	if v.Vehicles, err = e.store.Vehicles(ctx, v.Report.ID); err != nil {
		return ReportView{}, err
	}
	return v, nil
}

// Rollover opens the next year's report from the one at key.
func (e *Engine) Rollover(ctx context.Context, key store.ReportKey) (store.Report, ir.Summary, error) {
	return e.materializer.Rollover(ctx, key)
}

// Transfer applies an inventory transfer in one transaction.
func (e *Engine) Transfer(ctx context.Context, req inventory.Request) (inventory.Outcome, error) {
	var out inventory.Outcome
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		out, err = inventory.Apply(ctx, tx, req, e.now())
		return err
	})
	if err != nil {
		return inventory.Outcome{}, err
	}
	e.log.WithFields(logrus.Fields{
		"transfer_id": out.Transfer.ID,
		"item_id":     req.ItemID,
		"type":        req.Type,
		"quantity":    req.Quantity,
		"by":          req.By,
	}).Info("inventory transferred")
	return out, nil
}

// UnitInventory lists a housing unit's items; unitID 0 lists storage.
func (e *Engine) UnitInventory(ctx context.Context, unitID int64) ([]store.InventoryRow, error) {
	return e.store.UnitInventory(ctx, unitID)
}
