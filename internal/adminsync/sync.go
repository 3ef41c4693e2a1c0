// Package adminsync projects canonical housing data into the
// administrative read model: housing sites, buildings and units, workers,
// departments, sections and unit assignments. Each projection is one
// transactional batch recorded as a sync run.
package adminsync

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/config"
	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/resolve"
	"github.com/roach88/pamana/internal/store"
)

// Trigger says what started a sync run.
type Trigger string

const (
	TriggerIngest Trigger = "ingest"
	TriggerManual Trigger = "manual"
)

// Source is recorded on every run.
const Source = "canonical"

// Counter names of a sync run.
const (
	CountSites            = "sites"
	CountBuildings        = "buildings"
	CountUnits            = "units"
	CountWorkers          = "workers"
	CountAssignments      = "assignments"
	CountEndedAssignments = "ended_assignments"
	CountDepartments      = "departments"
	CountSections         = "sections"
	CountConflicts        = "conflicts"
)

// ErrAlreadySynced is returned when an import has already triggered its
// sync.
var ErrAlreadySynced = errors.New("import already triggered a sync")

// Syncer runs projections against a store.
type Syncer struct {
	store    *store.Store
	resolver *resolve.Resolver
	log      logrus.FieldLogger
	now      func() time.Time
	newID    func() string
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(y *Syncer) { y.log = log }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(y *Syncer) { y.now = now }
}

// WithIDGenerator sets the sync run id source. The default is UUIDv7.
func WithIDGenerator(gen func() string) Option {
	return func(y *Syncer) { y.newID = gen }
}

// New creates a Syncer.
func New(s *store.Store, r *resolve.Resolver, opts ...Option) *Syncer {
	y := &Syncer{
		store:    s,
		resolver: r,
		log:      config.Discard(),
		now:      time.Now,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(y)
	}
	y.log = y.log.WithField("module", "adminsync")
	return y
}

// Sync projects every canonical housing unit and records the run. When
// provenanceID is not zero the import's sync guard is claimed first, and
// ErrAlreadySynced is returned if another run already claimed it.
//
// A failed projection rolls back, is recorded as an error run and returns
// a PartialProjection error; canonical data is never touched.
func (y *Syncer) Sync(ctx context.Context, trigger Trigger, provenanceID int64) (store.SyncRun, error) {
	if err := ctx.Err(); err != nil {
		return store.SyncRun{}, err
	}
	if provenanceID != 0 {
		claimed, err := y.store.ClaimSync(ctx, provenanceID)
		if err != nil {
			return store.SyncRun{}, err
		}
		if !claimed {
			return store.SyncRun{}, fmt.Errorf("import %d: %w", provenanceID, ErrAlreadySynced)
		}
	}

	run := store.SyncRun{
		ID:           y.newID(),
		Source:       Source,
		Trigger:      string(trigger),
		ProvenanceID: provenanceID,
		StartedAt:    y.now(),
		Counters:     newCounters(),
		Notes:        []string{},
	}
	log := y.log.WithFields(logrus.Fields{"sync_run_id": run.ID, "trigger": trigger})
	p := &projection{
		resolver: y.resolver.ForRun(run.ID),
		run:      &run,
		log:      log,
		now:      y.now,
	}

	err := y.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := p.project(ctx, tx); err != nil {
			return err
		}
		run.Status = ir.StatusSuccess
		if run.Counters[CountConflicts] > 0 {
			run.Status = ir.StatusPartial
		}
		y.finish(&run)
		return tx.InsertSyncRun(ctx, run)
	})
	if err != nil {
		failed := store.SyncRun{
			ID:           run.ID,
			Source:       run.Source,
			Trigger:      run.Trigger,
			ProvenanceID: run.ProvenanceID,
			StartedAt:    run.StartedAt,
			Status:       ir.StatusError,
			Counters:     newCounters(),
			Notes:        []string{err.Error()},
		}
		y.finish(&failed)
		if rerr := y.store.InsertSyncRun(context.WithoutCancel(ctx), failed); rerr != nil {
			log.WithError(rerr).Error("record failed sync run")
		}
		config.LogError(log, "adminsync", "Sync", err, nil)
		return failed, ir.NewProjectionError(run.ID, err)
	}

	log.WithFields(logrus.Fields{
		"status":   run.Status,
		"counters": run.Counters,
		"duration": run.Duration,
	}).Info("sync run finished")
	return run, nil
}

func (y *Syncer) finish(run *store.SyncRun) {
	run.FinishedAt = y.now()
	run.Duration = run.FinishedAt.Sub(run.StartedAt)
}

func newCounters() map[string]int64 {
	return map[string]int64{
		CountSites:            0,
		CountBuildings:        0,
		CountUnits:            0,
		CountWorkers:          0,
		CountAssignments:      0,
		CountEndedAssignments: 0,
		CountDepartments:      0,
		CountSections:         0,
		CountConflicts:        0,
	}
}

// projection is the state of one run's transaction.
type projection struct {
	resolver *resolve.Resolver
	run      *store.SyncRun
	log      logrus.FieldLogger
	now      func() time.Time
}

func (p *projection) count(name string, created bool) {
	if created {
		p.run.Counters[name]++
	}
}

func (p *projection) note(format string, args ...any) {
	p.run.Notes = append(p.run.Notes, fmt.Sprintf(format, args...))
}

func (p *projection) project(ctx context.Context, tx *store.Tx) error {
	units, err := tx.HousingUnits(ctx)
	if err != nil {
		return err
	}
	// Older forms first, so the latest form places each worker. Forms of
	// one date go in arrival order.
	slices.SortStableFunc(units, func(a, b store.HousingUnit) int {
		if c := a.DateReported.Compare(b.DateReported); c != 0 {
			return c
		}
		return cmp.Compare(a.ArrivalSeq, b.ArrivalSeq)
	})
	for i := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.unit(ctx, tx, &units[i]); err != nil {
			return fmt.Errorf("unit %d: %w", units[i].ID, err)
		}
	}
	return nil
}

// unit projects one canonical housing unit and its occupant.
func (p *projection) unit(ctx context.Context, tx *store.Tx, u *store.HousingUnit) error {
	label := u.Label()
	if label == "" {
		p.note("unit %d has neither a unit number nor a name; not projected", u.ID)
		return nil
	}

	siteID, created, err := tx.EnsureHousingSite(ctx, u.PropertyName)
	if err != nil {
		return err
	}
	p.count(CountSites, created)

	var buildingID int64
	if u.BuildingKey != "" {
		if buildingID, created, err = tx.EnsureHousingBuilding(ctx, siteID, u.BuildingKey); err != nil {
			return err
		}
		p.count(CountBuildings, created)
	}

	adminUnitID, created, err := tx.EnsureAdminUnit(ctx, siteID, buildingID, u.BuildingKey, label, u.ID)
	if err != nil {
		return err
	}
	p.count(CountUnits, created)

	deptID, created, err := p.resolver.Department(ctx, tx, u.Department)
	if err != nil {
		return err
	}
	p.count(CountDepartments, created)
	sectionID, created, err := p.resolver.Section(ctx, tx, deptID, u.Section)
	if err != nil {
		return err
	}
	p.count(CountSections, created)
	if u.Section != "" && deptID == 0 {
		p.note("unit %d: section %q has no department; not projected", u.ID, u.Section)
	}

	res, ok, err := p.resolver.Worker(ctx, tx, u.Occupant, p.now())
	if err != nil {
		return err
	}
	if !ok {
		p.note("unit %d: occupant %q has fewer than two name tokens; no worker", u.ID, u.Occupant)
		return nil
	}
	p.count(CountWorkers, res.Created)
	if res.Conflict != nil {
		p.run.Counters[CountConflicts]++
	}
	if err := tx.UpdateWorkerJob(ctx, res.Worker.ID, u.JobTitle, deptID, sectionID, p.now()); err != nil {
		return err
	}
	return p.assign(ctx, tx, res.Worker.ID, adminUnitID, u.DateReported, u.ArrivalSeq)
}

// assign makes (worker, unit) the current assignment starting at start.
// The worker's other current assignments and the unit's current
// assignments of other workers end on start. A worker whose current
// assignment elsewhere started after start stays there: the form naming
// this unit is the older one. On the same start date the form that arrived
// later wins.
func (p *projection) assign(ctx context.Context, tx *store.Tx, workerID, unitID int64, start time.Time, arrival int64) error {
	ofWorker, err := tx.CurrentAssignmentsOfWorker(ctx, workerID)
	if err != nil {
		return err
	}
	held := false
	var moved []store.Assignment
	for _, a := range ofWorker {
		if a.UnitID == unitID {
			held = true
			continue
		}
		if a.StartDate.After(start) || (a.StartDate.Equal(start) && a.SourceArrival >= arrival) {
			p.log.WithFields(logrus.Fields{"worker_id": workerID, "unit_id": unitID}).
				Debug("worker placed by a newer form; stale unit not assigned")
			return nil
		}
		moved = append(moved, a)
	}
	for _, a := range moved {
		if err := p.end(ctx, tx, a, start); err != nil {
			return err
		}
	}

	ofUnit, err := tx.CurrentAssignmentsOfUnit(ctx, unitID)
	if err != nil {
		return err
	}
	for _, a := range ofUnit {
		if a.WorkerID == workerID {
			continue
		}
		if err := p.end(ctx, tx, a, start); err != nil {
			return err
		}
	}

	if held {
		return nil
	}
	id, err := tx.InsertAssignment(ctx, workerID, unitID, start)
	if err != nil {
		return err
	}
	p.run.Counters[CountAssignments]++
	p.log.WithFields(logrus.Fields{"assignment_id": id, "worker_id": workerID, "unit_id": unitID}).Debug("assignment opened")
	return nil
}

func (p *projection) end(ctx context.Context, tx *store.Tx, a store.Assignment, on time.Time) error {
	if err := tx.EndAssignment(ctx, a.ID, on); err != nil {
		return err
	}
	p.run.Counters[CountEndedAssignments]++
	return nil
}
