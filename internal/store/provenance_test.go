package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamana/internal/ir"
)

func newImport(hash string, seq int64) ImportedFile {
	return ImportedFile{
		FileHash:   hash,
		Filename:   "report.xlsx",
		SizeBytes:  2048,
		Kind:       ir.KindAnnualP7,
		ArrivalSeq: seq,
		ImportedAt: fixedTime,
	}
}

func TestInsertImport_DuplicateReturnsExisting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, inserted, err := s.InsertImport(ctx, newImport("abc", 1))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, ir.StatusProcessing, first.Status)
	assert.Empty(t, first.Skipped)
	assert.Nil(t, first.FinalizedAt)

	second, inserted, err := s.InsertImport(ctx, newImport("abc", 2))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), second.ArrivalSeq)
}

func TestInsertImport_ConcurrentUploadsHaveOneWinner(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		ids      = map[int64]bool{}
		failures []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seq int64) {
			defer wg.Done()
			f, inserted, err := s.InsertImport(ctx, newImport("same-bytes", seq))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			ids[f.ID] = true
			if inserted {
				winners++
			}
		}(int64(i))
	}
	wg.Wait()

	require.Empty(t, failures)
	assert.Equal(t, 1, winners)
	assert.Len(t, ids, 1)
}

func TestFinalizeImport_PersistsOutcome(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := seedReport(t, s, "01009", "003", 2024)

	f, _, err := s.InsertImport(ctx, newImport("abc", 1))
	require.NoError(t, err)

	fin := Finalization{
		Status:   ir.StatusPartial,
		Records:  12,
		Skipped:  []ir.Skip{{Sheet: "P2", Row: 9, Section: ir.SectionItem, Reason: ir.SkipMissingRequiredColumn, Detail: "name & brand"}},
		Notes:    []ir.Warning{{Code: ir.WarnAmbiguousHeader, Row: -1, Message: "year not found"}},
		ReportID: r.ID,
		At:       fixedTime.Add(time.Second),
	}
	require.NoError(t, s.FinalizeImport(ctx, f.ID, fin))

	got, err := s.ImportByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusPartial, got.Status)
	assert.Equal(t, 12, got.Records)
	assert.Equal(t, fin.Skipped, got.Skipped)
	assert.Equal(t, fin.Notes, got.Notes)
	assert.Equal(t, r.ID, got.ReportID)
	require.NotNil(t, got.FinalizedAt)
	assert.True(t, got.FinalizedAt.Equal(fin.At))

	var raw string
	require.NoError(t, s.db.QueryRow(`SELECT skipped FROM imported_files WHERE id = ?`, f.ID).Scan(&raw))
	assert.Contains(t, raw, "name & brand", "row text is stored without HTML escaping")
}

func TestClaimSync_OncePerEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	f, _, err := s.InsertImport(ctx, newImport("abc", 1))
	require.NoError(t, err)

	claimed, err := s.ClaimSync(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimSync(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, s.RestartImport(ctx, f.ID, newImport("abc", 5)))
	got, err := s.ImportByID(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, got.SyncTriggered, "a forced re-ingestion clears the guard")
	assert.Equal(t, int64(5), got.ArrivalSeq)

	claimed, err = s.ClaimSync(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestFinalizeImport_AppliesRestart(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	f, _, err := s.InsertImport(ctx, newImport("abc", 1))
	require.NoError(t, err)
	require.NoError(t, s.FinalizeImport(ctx, f.ID, Finalization{Status: ir.StatusSuccess, Records: 3, At: fixedTime}))
	_, err = s.ClaimSync(ctx, f.ID)
	require.NoError(t, err)

	again := newImport("abc", 7)
	again.Filename = "renamed.xlsx"
	again.ImportedAt = fixedTime.Add(time.Hour)
	err = s.WithTx(ctx, func(tx *Tx) error {
		return tx.FinalizeImport(ctx, f.ID, Finalization{Status: ir.StatusPartial, Records: 2, At: again.ImportedAt, Restart: &again})
	})
	require.NoError(t, err)

	got, err := s.ImportByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusPartial, got.Status)
	assert.Equal(t, 2, got.Records)
	assert.Equal(t, "renamed.xlsx", got.Filename)
	assert.Equal(t, int64(7), got.ArrivalSeq)
	assert.True(t, got.ImportedAt.Equal(again.ImportedAt))
	assert.False(t, got.SyncTriggered)
}

func TestListImports_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, hash := range []string{"a", "b", "c"} {
		f := newImport(hash, int64(i))
		f.ImportedAt = fixedTime.Add(time.Duration(i) * time.Minute)
		_, _, err := s.InsertImport(ctx, f)
		require.NoError(t, err)
	}

	all, err := s.ListImports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].FileHash)

	two, err := s.ListImports(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	_, err = s.ImportByHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLastArrivalSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastArrivalSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	for i, hash := range []string{"a", "b"} {
		_, _, err := s.InsertImport(ctx, newImport(hash, int64(i+7)))
		require.NoError(t, err)
	}
	seq, err = s.LastArrivalSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), seq)
}
