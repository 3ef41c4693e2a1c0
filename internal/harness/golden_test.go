package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamana/internal/ir"
)

func TestRunWithGolden_DuplicateFile(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "duplicate_file.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestTraceSnapshot_CanonicalMap(t *testing.T) {
	r := NewResult()
	r.AddInvocationTrace(OpSync, nil, 1)
	r.AddCompletionTrace("success", map[string]any{"run_id": "run-0001"}, 2)

	snap := TraceSnapshot{ScenarioName: "sync_only", Trace: r.Trace}
	got, err := ir.MarshalCanonical(snap.toCanonicalMap())
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"sync_only","trace":[{"op":"sync","seq":1,"type":"invocation"},{"case":"success","result":{"run_id":"run-0001"},"seq":2,"type":"completion"}]}`,
		string(got))
}

func TestTraceSnapshot_Deterministic(t *testing.T) {
	r := NewResult()
	r.AddInvocationTrace(OpIngest, map[string]any{"kind": "annual_p7", "file": "a.xlsx", "force": true}, 1)
	snap := TraceSnapshot{ScenarioName: "x", Trace: r.Trace}

	first, err := ir.MarshalCanonical(snap.toCanonicalMap())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ir.MarshalCanonical(snap.toCanonicalMap())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Contains(t, string(first), `"args":{"file":"a.xlsx","force":true,"kind":"annual_p7"}`)
}

func TestTraceSnapshot_RejectsFloats(t *testing.T) {
	r := NewResult()
	r.AddInvocationTrace(OpTransfer, map[string]any{"quantity": 1.5}, 1)
	snap := TraceSnapshot{ScenarioName: "x", Trace: r.Trace}
	_, err := ir.MarshalCanonical(snap.toCanonicalMap())
	assert.Error(t, err)
}
