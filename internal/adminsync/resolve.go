package adminsync

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
)

// Action is a reviewer's decision on a pending conflict.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionMerge  Action = "merge"
)

// Merge map sides.
const (
	SideIncoming = "incoming"
	SideExisting = "existing"
)

var (
	// ErrNotPending is returned when resolving a conflict that is already
	// resolved.
	ErrNotPending = errors.New("conflict is not pending")

	// ErrInvalidResolution is returned for an unknown action or a merge map
	// naming unknown fields or sides.
	ErrInvalidResolution = errors.New("invalid resolution")
)

// ParseAction validates an action string.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionAccept, ActionReject, ActionMerge:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidResolution, s)
}

var nameFields = []string{"first_name", "middle_name", "last_name"}

// ResolveConflict settles a pending conflict.
//
// For a worker identity clash, accept overwrites the worker's names with
// the incoming ones and merge takes only the fields mergeMap marks
// incoming; both recompute the worker's identity hash. Reject leaves the
// worker unchanged. A local name clash only changes state: the existing
// local keeps its code and name. Every action records who resolved the
// conflict and when.
func (y *Syncer) ResolveConflict(ctx context.Context, id int64, action Action, by string, mergeMap map[string]string) (store.Conflict, error) {
	status, err := statusOf(action)
	if err != nil {
		return store.Conflict{}, err
	}
	if action == ActionMerge {
		if err := checkMergeMap(mergeMap); err != nil {
			return store.Conflict{}, err
		}
	}

	var out store.Conflict
	err = y.store.WithTx(ctx, func(tx *store.Tx) error {
		cf, err := tx.ConflictByID(ctx, id)
		if err != nil {
			return fmt.Errorf("conflict %d: %w", id, err)
		}
		if cf.Status != ir.ConflictPending {
			return fmt.Errorf("conflict %d is %s: %w", id, cf.Status, ErrNotPending)
		}

		if cf.Type == ir.ConflictWorkerIdentityClash && action != ActionReject {
			take := func(string) bool { return true }
			if action == ActionMerge {
				take = func(field string) bool { return mergeMap[field] == SideIncoming }
			}
			if err := y.rename(ctx, tx, cf, take); err != nil {
				return err
			}
		}

		ok, err := tx.ResolveConflict(ctx, id, status, by, y.now())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("conflict %d: %w", id, ErrNotPending)
		}
		out, err = tx.ConflictByID(ctx, id)
		return err
	})
	if err != nil {
		return store.Conflict{}, err
	}
	y.log.WithFields(logrus.Fields{
		"conflict_id": id,
		"type":        out.Type,
		"status":      out.Status,
		"by":          by,
	}).Info("conflict resolved")
	return out, nil
}

// rename applies the incoming names selected by take to the conflict's
// worker and recomputes its identity.
func (y *Syncer) rename(ctx context.Context, tx *store.Tx, cf store.Conflict, take func(string) bool) error {
	w, err := tx.WorkerByID(ctx, cf.WorkerID)
	if err != nil {
		return fmt.Errorf("conflict %d worker %d: %w", cf.ID, cf.WorkerID, err)
	}
	fields := map[string]*string{
		"first_name":  &w.FirstName,
		"middle_name": &w.MiddleName,
		"last_name":   &w.LastName,
	}
	for _, f := range nameFields {
		if v, ok := cf.Incoming[f]; ok && take(f) {
			*fields[f] = v
		}
	}

	w.FirstNorm = ir.NormalizeName(w.FirstName)
	w.MiddleNorm = ir.NormalizeName(w.MiddleName)
	w.LastNorm = ir.NormalizeName(w.LastName)
	hash, err := ir.WorkerIdentity(w.FirstName, w.MiddleName, w.LastName, w.Category)
	if err != nil {
		return err
	}
	if hash != w.IdentityHash {
		other, err := tx.WorkerByHash(ctx, hash)
		switch {
		case err == nil && other.ID != w.ID:
			return fmt.Errorf("%w: worker %d already has that identity", ErrInvalidResolution, other.ID)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}
	}
	w.IdentityHash = hash
	return tx.UpdateWorkerNames(ctx, w, y.now())
}

func statusOf(a Action) (ir.ConflictStatus, error) {
	switch a {
	case ActionAccept:
		return ir.ConflictAccepted, nil
	case ActionReject:
		return ir.ConflictRejected, nil
	case ActionMerge:
		return ir.ConflictMerged, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidResolution, a)
}

func checkMergeMap(m map[string]string) error {
	if len(m) == 0 {
		return fmt.Errorf("%w: merge needs a merge map", ErrInvalidResolution)
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if !slices.Contains(nameFields, k) {
			return fmt.Errorf("%w: unknown merge field %q", ErrInvalidResolution, k)
		}
		if side := m[k]; side != SideIncoming && side != SideExisting {
			return fmt.Errorf("%w: field %q must be %q or %q, got %q", ErrInvalidResolution, k, SideIncoming, SideExisting, side)
		}
	}
	return nil
}
