package adminsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/resolve"
	"github.com/roach88/pamana/internal/store"
)

// clash projects two occupants and raises a pending identity clash against
// the first of them.
func clash(t *testing.T, s *store.Store, y *Syncer) store.Conflict {
	t.Helper()
	putUnit(t, s, unitSpec{property: "Pamayanan Central", number: "1", occupant: "Michael M. Tama", reported: day(2025, 1, 1)})
	putUnit(t, s, unitSpec{property: "Pamayanan Central", number: "2", occupant: "Michaels Mateo Tama", reported: day(2025, 1, 1)})
	_, err := y.Sync(context.Background(), TriggerManual, 0)
	require.NoError(t, err)

	w, err := s.WorkerByHash(context.Background(), ir.MustWorkerIdentity("Michael", "M.", "Tama", resolve.DefaultCategory))
	require.NoError(t, err)
	id, _, err := s.InsertConflict(context.Background(), store.Conflict{
		Type:      ir.ConflictWorkerIdentityClash,
		Subject:   "worker:test",
		WorkerID:  w.ID,
		Existing:  map[string]string{"first_name": "Michael", "middle_name": "M.", "last_name": "Tama"},
		Incoming:  map[string]string{"first_name": "Michael", "middle_name": "Mateo", "last_name": "Tamayo"},
		CreatedAt: start,
	})
	require.NoError(t, err)
	cf, err := s.ConflictByID(context.Background(), id)
	require.NoError(t, err)
	return cf
}

func TestResolveConflict_Accept(t *testing.T) {
	s, y := setup(t)
	ctx := context.Background()
	cf := clash(t, s, y)

	got, err := y.ResolveConflict(ctx, cf.ID, ActionAccept, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.ConflictAccepted, got.Status)
	assert.Equal(t, "admin", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)

	w, err := s.WorkerByID(ctx, cf.WorkerID)
	require.NoError(t, err)
	assert.Equal(t, "Mateo", w.MiddleName)
	assert.Equal(t, "Tamayo", w.LastName)
	assert.Equal(t, ir.MustWorkerIdentity("Michael", "Mateo", "Tamayo", resolve.DefaultCategory), w.IdentityHash)

	_, err = y.ResolveConflict(ctx, cf.ID, ActionReject, "admin", nil)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestResolveConflict_MergeTakesMarkedFields(t *testing.T) {
	s, y := setup(t)
	ctx := context.Background()
	cf := clash(t, s, y)

	got, err := y.ResolveConflict(ctx, cf.ID, ActionMerge, "admin", map[string]string{
		"middle_name": SideIncoming,
		"last_name":   SideExisting,
	})
	require.NoError(t, err)
	assert.Equal(t, ir.ConflictMerged, got.Status)

	w, err := s.WorkerByID(ctx, cf.WorkerID)
	require.NoError(t, err)
	assert.Equal(t, "Mateo", w.MiddleName)
	assert.Equal(t, "Tama", w.LastName)
	assert.Equal(t, ir.MustWorkerIdentity("Michael", "Mateo", "Tama", resolve.DefaultCategory), w.IdentityHash)
}

func TestResolveConflict_RejectKeepsWorker(t *testing.T) {
	s, y := setup(t)
	ctx := context.Background()
	cf := clash(t, s, y)
	before, err := s.WorkerByID(ctx, cf.WorkerID)
	require.NoError(t, err)

	got, err := y.ResolveConflict(ctx, cf.ID, ActionReject, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.ConflictRejected, got.Status)

	after, err := s.WorkerByID(ctx, cf.WorkerID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResolveConflict_IdentityTakenByAnotherWorker(t *testing.T) {
	s, y := setup(t)
	ctx := context.Background()
	cf := clash(t, s, y)

	got, err := y.ResolveConflict(ctx, cf.ID, ActionMerge, "admin", map[string]string{"first_name": SideExisting})
	require.NoError(t, err, "a merge that changes nothing is allowed")
	assert.Equal(t, ir.ConflictMerged, got.Status)

	other, err := s.WorkerByHash(ctx, ir.MustWorkerIdentity("Michaels", "Mateo", "Tama", resolve.DefaultCategory))
	require.NoError(t, err)
	id, _, err := s.InsertConflict(ctx, store.Conflict{
		Type:      ir.ConflictWorkerIdentityClash,
		Subject:   "worker:taken",
		WorkerID:  cf.WorkerID,
		Incoming:  map[string]string{"first_name": other.FirstName, "middle_name": other.MiddleName, "last_name": other.LastName},
		CreatedAt: start,
	})
	require.NoError(t, err)

	_, err = y.ResolveConflict(ctx, id, ActionAccept, "admin", nil)
	assert.ErrorIs(t, err, ErrInvalidResolution)
	still, err := s.ConflictByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ir.ConflictPending, still.Status, "a refused resolution changes nothing")
}

func TestResolveConflict_LocalClashChangesStateOnly(t *testing.T) {
	s, y := setup(t)
	ctx := context.Background()
	id, _, err := s.InsertConflict(ctx, store.Conflict{
		Type:      ir.ConflictLocalNameClash,
		Subject:   "local:1:san jose:007",
		Incoming:  map[string]string{"dcode": "01009", "lcode": "007", "name": "San Jose"},
		CreatedAt: start,
	})
	require.NoError(t, err)

	got, err := y.ResolveConflict(ctx, id, ActionAccept, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.ConflictAccepted, got.Status)
}

func TestResolveConflict_BadInput(t *testing.T) {
	s, y := setup(t)
	ctx := context.Background()
	cf := clash(t, s, y)

	_, err := y.ResolveConflict(ctx, cf.ID, ActionMerge, "admin", nil)
	assert.ErrorIs(t, err, ErrInvalidResolution)
	_, err = y.ResolveConflict(ctx, cf.ID, ActionMerge, "admin", map[string]string{"nickname": SideIncoming})
	assert.ErrorIs(t, err, ErrInvalidResolution)
	_, err = y.ResolveConflict(ctx, cf.ID, ActionMerge, "admin", map[string]string{"last_name": "both"})
	assert.ErrorIs(t, err, ErrInvalidResolution)
	_, err = y.ResolveConflict(ctx, 999, ActionReject, "admin", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = ParseAction("approve")
	assert.ErrorIs(t, err, ErrInvalidResolution)
	a, err := ParseAction(" Merge ")
	require.NoError(t, err)
	assert.Equal(t, ActionMerge, a)
}
