package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
)

// Identity is a parsed person name with its identity hash.
type Identity struct {
	First, Middle, Last string
	Category            string
	Hash                string
}

// Payload renders the name fields as a conflict payload.
func (id Identity) Payload() map[string]string {
	return map[string]string{
		"first_name":  id.First,
		"middle_name": id.Middle,
		"last_name":   id.Last,
	}
}

// Identify tokenizes a full name and computes its identity. ok is false
// for names of fewer than two tokens, which never identify a worker.
func (r *Resolver) Identify(fullName string) (Identity, bool, error) {
	first, middle, last, ok := ir.SplitName(fullName)
	if !ok {
		return Identity{}, false, nil
	}
	hash, err := ir.WorkerIdentity(first, middle, last, r.category)
	if err != nil {
		return Identity{}, false, err
	}
	return Identity{First: first, Middle: middle, Last: last, Category: r.category, Hash: hash}, true, nil
}

// WorkerResult is the outcome of resolving an occupant name.
type WorkerResult struct {
	Worker   store.Worker
	Created  bool
	Conflict *Conflict
}

// Worker resolves an occupant name to a worker.
//
// Workers dedupe on identity hash; a concurrent first sighting of the same
// person is settled by the hash's unique index and the loser gets the
// winner's row. A new identity whose first and last names and category
// match an existing worker with a different, non-empty middle name is a
// WorkerIdentityClash: the existing worker is returned and the incoming
// names are stored on a pending conflict. ok is false when the name has
// fewer than two tokens.
func (r *Resolver) Worker(ctx context.Context, s Store, fullName string, now time.Time) (WorkerResult, bool, error) {
	id, ok, err := r.Identify(fullName)
	if err != nil || !ok {
		return WorkerResult{}, false, err
	}

	w, err := s.WorkerByHash(ctx, id.Hash)
	if err == nil {
		return WorkerResult{Worker: w}, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return WorkerResult{}, false, fmt.Errorf("resolve worker: %w", err)
	}

	firstNorm, middleNorm, lastNorm := ir.NormalizeName(id.First), ir.NormalizeName(id.Middle), ir.NormalizeName(id.Last)
	if middleNorm != "" {
		candidates, err := s.WorkersByName(ctx, firstNorm, lastNorm, id.Category)
		if err != nil {
			return WorkerResult{}, false, fmt.Errorf("resolve worker: %w", err)
		}
		for _, c := range candidates {
			if c.MiddleNorm == "" || c.MiddleNorm == middleNorm {
				continue
			}
			cf, err := r.workerClash(ctx, s, c, id, now)
			if err != nil {
				return WorkerResult{}, false, err
			}
			return WorkerResult{Worker: c, Conflict: cf}, true, nil
		}
	}

	w, inserted, err := s.InsertWorker(ctx, store.Worker{
		IdentityHash: id.Hash,
		FirstName:    id.First,
		MiddleName:   id.Middle,
		LastName:     id.Last,
		FirstNorm:    firstNorm,
		MiddleNorm:   middleNorm,
		LastNorm:     lastNorm,
		Category:     id.Category,
	}, now)
	if err != nil {
		return WorkerResult{}, false, fmt.Errorf("resolve worker: %w", err)
	}
	return WorkerResult{Worker: w, Created: inserted}, true, nil
}

func (r *Resolver) workerClash(ctx context.Context, s Store, existing store.Worker, incoming Identity, now time.Time) (*Conflict, error) {
	cf := store.Conflict{
		SyncRunID: r.run,
		Type:      ir.ConflictWorkerIdentityClash,
		Subject:   fmt.Sprintf("worker:%d:%s", existing.ID, incoming.Hash),
		WorkerID:  existing.ID,
		Existing: map[string]string{
			"first_name":  existing.FirstName,
			"middle_name": existing.MiddleName,
			"last_name":   existing.LastName,
		},
		Incoming:  incoming.Payload(),
		CreatedAt: now,
	}
	id, created, err := s.InsertConflict(ctx, cf)
	if err != nil {
		return nil, fmt.Errorf("record worker identity clash: %w", err)
	}
	r.log.WithFields(logrus.Fields{
		"worker_id": existing.ID,
		"existing":  existing.MiddleName,
		"incoming":  incoming.Middle,
	}).Warn("worker identity clash; existing worker kept")
	return &Conflict{ID: id, Type: cf.Type, Subject: cf.Subject, Created: created}, nil
}
