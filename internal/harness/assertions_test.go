package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamana/internal/store"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddInvocationTrace(OpIngest, map[string]any{"file": "a.xlsx", "kind": "annual_p7"}, 1)
	r.AddCompletionTrace("success", map[string]any{"records": int64(1)}, 2)
	r.AddInvocationTrace(OpIngest, map[string]any{"file": "a.xlsx", "kind": "annual_p7", "force": true}, 3)
	r.AddCompletionTrace("success", nil, 4)
	r.AddInvocationTrace(OpSync, nil, 5)
	r.AddCompletionTrace("success", nil, 6)
	return r.Trace
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpIngest}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpIngest, Args: map[string]any{"force": true}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpSync}))

	err := assertTraceContains(trace, Assertion{Op: OpIngest, Args: map[string]any{"file": "b.xlsx"}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "trace_contains", ae.Type)
	assert.Equal(t, "not found in trace", ae.Actual)

	assert.Error(t, assertTraceContains(trace, Assertion{Op: OpRollover}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpIngest, OpSync}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpIngest, OpIngest, OpSync}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{OpSync, OpIngest}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched [sync], then no ingest")

	err = assertTraceOrder(trace, Assertion{Ops: []string{OpIngest, OpIngest, OpIngest}})
	assert.Error(t, err, "an op listed three times needs three invocations")

	assert.Error(t, assertTraceOrder(trace, Assertion{Ops: []string{OpTransfer}}))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpIngest, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpResolve, Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: OpIngest, Count: 1})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "1 occurrences of ingest", ae.Expected)
	assert.Equal(t, "2 occurrences", ae.Actual)
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		expected any
		want     bool
	}{
		{"same string", "a", "a", true},
		{"different string", "a", "b", false},
		{"int vs int64", int64(3), 3, true},
		{"money text vs int", "105000", 105000, true},
		{"money text vs fixed", "105000", "105000.00", true},
		{"decimal vs string", decimal.RequireFromString("1000"), "1000.00", true},
		{"number mismatch", "1000", 999, false},
		{"sqlite bool", int64(1), true, true},
		{"sqlite false", int64(0), false, true},
		{"bool vs string", "true", true, false},
		{"both nil", nil, nil, true},
		{"nil actual", nil, "a", false},
		{"nil expected", "a", nil, false},
		{"nested subset", map[string]any{"a": int64(1), "b": "x"}, map[string]any{"a": 1}, true},
		{"nested missing", map[string]any{"b": "x"}, map[string]any{"a": 1}, false},
		{"slice", []any{"a", int64(2)}, []any{"a", 2}, true},
		{"slice length", []any{"a"}, []any{"a", 2}, false},
		{"run id", "run-0001", "run-0001", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.actual, tt.expected))
		})
	}
}

func TestMatchArgs_SubsetSemantics(t *testing.T) {
	actual := map[string]any{"file": "a.xlsx", "kind": "annual_p7", "force": true}

	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]any{"kind": "annual_p7"}))
	assert.True(t, matchArgs(actual, map[string]any{"kind": "annual_p7", "force": true}))
	assert.False(t, matchArgs(actual, map[string]any{"kind": "inventory"}))
	assert.False(t, matchArgs(actual, map[string]any{"year": 2024}))
	assert.False(t, matchArgs(nil, map[string]any{"kind": "annual_p7"}))
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)

	sql, args, err = buildWhereClause(map[string]any{"name": "Main Chapel", "class": "chapel", "year": 2024})
	require.NoError(t, err)
	assert.Equal(t, "class = ? AND name = ? AND year = ?", sql)
	assert.Equal(t, []any{"chapel", "Main Chapel", 2024}, args)

	_, _, err = buildWhereClause(map[string]any{"name; DROP TABLE reports": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")
}

func TestToSQLValue(t *testing.T) {
	assert.Equal(t, "a", toSQLValue("a"))
	assert.Equal(t, 3, toSQLValue(3))
	assert.Equal(t, true, toSQLValue(true))
	assert.Equal(t, "1.5", toSQLValue(1.5))
	assert.Equal(t, "[a]", toSQLValue([]string{"a"}))
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "a=1 AND b=x", formatWhereClause(map[string]any{"b": "x", "a": 1}))
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     "trace_count",
		Expected: "1 occurrences of sync",
		Actual:   "0 occurrences",
		Trace:    sampleTrace(),
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 1 occurrences of sync")
	assert.Contains(t, msg, "[5] sync")
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "harness.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedSyncRun(t *testing.T, st *store.Store, id, status string) {
	t.Helper()
	_, err := st.DB().Exec(`
		INSERT INTO sync_runs (id, source, run_trigger, started_at, finished_at, duration_ms, status)
		VALUES (?, 'canonical', 'manual', '2025-03-01T09:00:00Z', '2025-03-01T09:00:01Z', 1000, ?)
	`, id, status)
	require.NoError(t, err)
}

func TestAssertFinalState(t *testing.T) {
	st := setupTestStore(t)
	seedSyncRun(t, st, "run-0001", "success")
	seedSyncRun(t, st, "run-0002", "partial")
	ctx := context.Background()

	t.Run("row found", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "sync_runs",
			Where:  map[string]any{"id": "run-0002"},
			Expect: map[string]any{"status": "partial", "duration_ms": 1000, "counters": "{}"},
		})
		assert.NoError(t, err)
	})

	t.Run("row not found", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "sync_runs",
			Where:  map[string]any{"id": "run-0009"},
			Expect: map[string]any{"status": "success"},
		})
		var ae *AssertionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "row not found", ae.Actual)
	})

	t.Run("ambiguous", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "sync_runs",
			Where:  map[string]any{"run_trigger": "manual"},
			Expect: map[string]any{"status": "success"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple rows matched")
	})

	t.Run("value mismatch", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "sync_runs",
			Where:  map[string]any{"id": "run-0001"},
			Expect: map[string]any{"status": "partial"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `field "status" = partial`)
	})

	t.Run("missing column", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "sync_runs",
			Where:  map[string]any{"id": "run-0001"},
			Expect: map[string]any{"colour": "red"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not present in result columns")
	})

	t.Run("unknown table", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "no_such_table",
			Expect: map[string]any{"a": 1},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query error")
	})

	t.Run("invalid table name", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "sync_runs; DROP TABLE sync_runs",
			Expect: map[string]any{"a": 1},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Op: OpIngest, Count: 2},
		{Type: AssertTraceOrder, Ops: []string{OpIngest, OpSync}},
		{Type: AssertTraceContains, Op: OpSync},
	}, nil)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Op: OpSync, Count: 3},
		{Type: AssertFinalState, Table: "sync_runs", Expect: map[string]any{"status": "success"}},
		{Type: "trace_absent"},
	}, nil)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[1], "final_state requires a store")
	assert.Contains(t, errs[2], `unknown assertion type "trace_absent"`)

	st := setupTestStore(t)
	seedSyncRun(t, st, "run-0001", "success")
	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Table: "sync_runs", Expect: map[string]any{"status": "success"}},
	}, &AssertionContext{Store: st, Ctx: context.Background()})
	assert.Empty(t, errs)
}
