// Package resolve maps free-text references to canonical entities.
//
// Districts, locals, departments, sections and workers are looked up by
// indexed equality on their natural keys and created on first sight. Name
// clashes are not errors: the existing record wins and a pending conflict
// is stored for review.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/config"
	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
)

// Store is the subset of the canonical store the resolver reads and
// writes. Both *store.Store and *store.Tx satisfy it.
type Store interface {
	EnsureDistrict(ctx context.Context, dcode, name string, now time.Time) (store.District, bool, error)
	LocalByCode(ctx context.Context, districtID int64, lcode string) (store.Local, error)
	LocalByName(ctx context.Context, districtID int64, name string) (store.Local, error)
	EnsureLocal(ctx context.Context, districtID int64, lcode, name string, now time.Time) (store.Local, bool, error)
	RenameLocal(ctx context.Context, id int64, name string) error
	EnsureDepartment(ctx context.Context, name string) (int64, bool, error)
	EnsureSection(ctx context.Context, departmentID int64, name string) (int64, bool, error)
	WorkerByHash(ctx context.Context, hash string) (store.Worker, error)
	WorkersByName(ctx context.Context, firstNorm, lastNorm, category string) ([]store.Worker, error)
	InsertWorker(ctx context.Context, w store.Worker, now time.Time) (store.Worker, bool, error)
	InsertConflict(ctx context.Context, cf store.Conflict) (int64, bool, error)
}

// Resolver canonicalizes references. It holds no state between calls.
type Resolver struct {
	category string
	run      string
	log      logrus.FieldLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCategory sets the worker category used in identity hashes.
func WithCategory(category string) Option {
	return func(r *Resolver) { r.category = category }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) { r.log = log }
}

// DefaultCategory is the worker category of housing occupants.
const DefaultCategory = "MWA"

// New creates a resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{category: DefaultCategory, log: config.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("module", "resolve")
	return r
}

// Category returns the worker category in use.
func (r *Resolver) Category() string { return r.category }

// ForRun returns a copy of r that tags the conflicts it raises with a sync
// run id.
func (r *Resolver) ForRun(runID string) *Resolver {
	c := *r
	c.run = runID
	c.log = r.log.WithField("sync_run_id", runID)
	return &c
}

// Conflict is a clash raised during resolution. ID is the stored pending
// conflict; Created is false when an identical conflict was already
// pending.
type Conflict struct {
	ID      int64
	Type    ir.ConflictType
	Subject string
	Created bool
}

// District returns the district with dcode, creating it when missing. A
// new district is named after its code; names are not carried by any
// report header.
func (r *Resolver) District(ctx context.Context, s Store, dcode string, now time.Time) (store.District, error) {
	d, created, err := s.EnsureDistrict(ctx, dcode, "District "+dcode, now)
	if err != nil {
		return store.District{}, fmt.Errorf("resolve district %s: %w", dcode, err)
	}
	if created {
		r.log.WithField("dcode", dcode).Info("district created")
	}
	return d, nil
}

// placeholderLocalName names a local created without a name.
func placeholderLocalName(lcode string) string { return "Local " + lcode }

// Local returns the local with lcode in district d.
//
// A missing local is created with name, or a placeholder when name is
// empty; a placeholder is replaced by the first real name seen. When the
// code is new but another local of the district already holds the name,
// the existing local wins and a LocalNameClash conflict records the
// incoming code and name.
func (r *Resolver) Local(ctx context.Context, s Store, d store.District, lcode, name string, now time.Time) (store.Local, *Conflict, error) {
	name = strings.Join(strings.Fields(name), " ")

	existing, err := s.LocalByCode(ctx, d.ID, lcode)
	switch {
	case err == nil:
		if name != "" && existing.Name == placeholderLocalName(lcode) {
			if _, err := s.LocalByName(ctx, d.ID, name); errors.Is(err, store.ErrNotFound) {
				if err := s.RenameLocal(ctx, existing.ID, name); err != nil {
					return store.Local{}, nil, fmt.Errorf("resolve local %s: %w", lcode, err)
				}
				existing.Name = name
			}
		}
		return existing, nil, nil
	case !errors.Is(err, store.ErrNotFound):
		return store.Local{}, nil, fmt.Errorf("resolve local %s: %w", lcode, err)
	}

	if name != "" {
		holder, err := s.LocalByName(ctx, d.ID, name)
		if err == nil {
			cf, err := r.localClash(ctx, s, d, holder, lcode, name, now)
			if err != nil {
				return store.Local{}, nil, err
			}
			return holder, cf, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return store.Local{}, nil, fmt.Errorf("resolve local %s: %w", lcode, err)
		}
	} else {
		name = placeholderLocalName(lcode)
	}

	l, created, err := s.EnsureLocal(ctx, d.ID, lcode, name, now)
	if err != nil {
		return store.Local{}, nil, fmt.Errorf("resolve local %s: %w", lcode, err)
	}
	if created {
		r.log.WithFields(logrus.Fields{"dcode": d.DCode, "lcode": lcode, "name": name}).Info("local created")
	}
	return l, nil, nil
}

func (r *Resolver) localClash(ctx context.Context, s Store, d store.District, holder store.Local, lcode, name string, now time.Time) (*Conflict, error) {
	cf := store.Conflict{
		SyncRunID: r.run,
		Type:      ir.ConflictLocalNameClash,
		Subject:   fmt.Sprintf("local:%d:%s:%s", d.ID, ir.NormalizeName(name), lcode),
		LocalID:   holder.ID,
		Existing:  map[string]string{"dcode": d.DCode, "lcode": holder.LCode, "name": holder.Name},
		Incoming:  map[string]string{"dcode": d.DCode, "lcode": lcode, "name": name},
		CreatedAt: now,
	}
	id, created, err := s.InsertConflict(ctx, cf)
	if err != nil {
		return nil, fmt.Errorf("record local name clash: %w", err)
	}
	r.log.WithFields(logrus.Fields{
		"dcode":          d.DCode,
		"lcode":          lcode,
		"existing_lcode": holder.LCode,
		"name":           name,
	}).Warn("local name clash; existing local kept")
	return &Conflict{ID: id, Type: cf.Type, Subject: cf.Subject, Created: created}, nil
}

// Department returns the id of the named department, 0 for a blank name.
func (r *Resolver) Department(ctx context.Context, s Store, name string) (int64, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, nil
	}
	id, created, err := s.EnsureDepartment(ctx, name)
	if err != nil {
		return 0, false, fmt.Errorf("resolve department %q: %w", name, err)
	}
	return id, created, nil
}

// Section returns the id of the named section of a department. A section
// without a department, or a blank name, resolves to 0.
func (r *Resolver) Section(ctx context.Context, s Store, departmentID int64, name string) (int64, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || departmentID == 0 {
		return 0, false, nil
	}
	id, created, err := s.EnsureSection(ctx, departmentID, name)
	if err != nil {
		return 0, false, fmt.Errorf("resolve section %q: %w", name, err)
	}
	return id, created, nil
}
