package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/config"
	"github.com/roach88/pamana/internal/engine"
	"github.com/roach88/pamana/internal/inventory"
	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
	"github.com/roach88/pamana/internal/testutil"
)

// Harness runs one scenario against a real engine and store.
type Harness struct {
	dir    string
	store  *store.Store
	engine *engine.Engine
	log    logrus.FieldLogger
	seq    int64
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh SQLite database under t.TempDir() with a
// deterministic clock and sync run ids, so traces are reproducible.
//
// Execution flow:
// 1. Write fixture files
// 2. Open the store and engine
// 3. Execute flow steps, validating expect clauses
// 4. Evaluate assertions against the trace and the final store state
//
// The returned error reports harness failures (fixtures, store, engine).
// Expectation mismatches are recorded on the Result instead.
func Run(t testing.TB, s *Scenario) (*Result, error) {
	t.Helper()

	dir := t.TempDir()
	for _, f := range s.Files {
		if err := writeFixture(t, dir, f); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", f.Name, err)
		}
	}

	st, err := store.Open(filepath.Join(dir, "harness.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	start, err := s.start()
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	cfg.TempDir = dir
	cfg.Workers = 1
	log := config.Discard()

	ctx := context.Background()
	eng, err := engine.New(ctx, st, &cfg,
		engine.WithLogger(log),
		engine.WithClock(testutil.NewDeterministicClock(start, time.Second).Now),
		engine.WithIDGenerator(testutil.NewSequenceIDGenerator("run")))
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	h := &Harness{dir: dir, store: st, engine: eng, log: log}
	result := NewResult()
	h.executeFlow(ctx, s.Flow, result)

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, s.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func writeFixture(t testing.TB, dir string, f FileSpec) error {
	if f.Raw != "" {
		return os.WriteFile(filepath.Join(dir, f.Name), []byte(f.Raw), 0o644)
	}
	sheets := make([]testutil.SheetSpec, len(f.Sheets))
	for i, sh := range f.Sheets {
		spec := testutil.SheetSpec{Name: sh.Name, Rows: sh.Rows}
		if len(sh.Cells) > 0 {
			spec.Cells = make(map[[2]int]any, len(sh.Cells))
			for _, c := range sh.Cells {
				spec.Cells[[2]int{c.Row, c.Col}] = c.Value
			}
		}
		sheets[i] = spec
	}
	testutil.WriteXLSX(t, dir, f.Name, sheets...)
	return nil
}

// executeFlow runs each step through the engine, records its invocation
// and completion, and checks the step's expect clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		h.seq++
		result.AddInvocationTrace(step.Op, step.Args, h.seq)

		outcome, res := h.invoke(ctx, step)

		h.seq++
		result.AddCompletionTrace(outcome, res, h.seq)

		h.log.WithFields(logrus.Fields{
			"step": i,
			"op":   step.Op,
			"case": outcome,
		}).Debug("flow step completed")

		if step.Expect == nil {
			continue
		}
		if outcome != step.Expect.Case {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %q, got %q %v", i, step.Op, step.Expect.Case, outcome, res))
			continue
		}
		for _, key := range sortedKeys(step.Expect.Result) {
			want := step.Expect.Result[key]
			got, ok := res[key]
			if !ok {
				result.AddError(fmt.Sprintf("flow[%d] %s: result has no field %q", i, step.Op, key))
				continue
			}
			if !valuesEqual(got, want) {
				result.AddError(fmt.Sprintf("flow[%d] %s: result %q = %v, want %v", i, step.Op, key, got, want))
			}
		}
	}
}

// invoke dispatches one step and returns its completion case and result.
func (h *Harness) invoke(ctx context.Context, step FlowStep) (string, map[string]any) {
	a := args(step.Args)
	switch step.Op {
	case OpIngest:
		return h.ingest(ctx, a)
	case OpSync:
		run, err := h.engine.Sync(ctx)
		if err != nil {
			return failure(err)
		}
		return string(run.Status), syncResult(run)
	case OpResolve:
		merge := map[string]string{}
		if m, ok := step.Args["merge"].(map[string]any); ok {
			for k, v := range m {
				merge[k] = fmt.Sprint(v)
			}
		}
		c, err := h.engine.ResolveConflict(ctx, a.int64("conflict"), a.str("action"), a.str("by"), merge)
		if err != nil {
			return failure(err)
		}
		return string(c.Status), map[string]any{"conflict_id": c.ID, "type": string(c.Type)}
	case OpRollover:
		lcode, _ := ir.NormalizeLCode(a.str("lcode"))
		key := store.ReportKey{DCode: ir.NormalizeDCode(a.str("dcode")), LCode: lcode, Year: int(a.int64("year"))}
		rep, sum, err := h.engine.Rollover(ctx, key)
		if err != nil {
			return failure(err)
		}
		return "success", map[string]any{
			"report_id": rep.ID,
			"year":      int64(rep.Year),
			"total":     sum.Total.StringFixed(2),
		}
	case OpTransfer:
		return h.transfer(ctx, a)
	}
	return failure(fmt.Errorf("unknown op %q", step.Op))
}

func (h *Harness) ingest(ctx context.Context, a args) (string, map[string]any) {
	kind, err := ir.ParseKind(a.str("kind"))
	if err != nil {
		return failure(err)
	}
	res, err := h.engine.IngestFile(ctx, filepath.Join(h.dir, a.str("file")), kind, a.bool("force"))
	if err != nil {
		code := string(ir.CodeOf(err))
		if code == "" {
			return failure(err)
		}
		out := map[string]any{"error": code, "status": "error"}
		prov := res.ProvenanceID
		var pe *ir.Error
		if prov == 0 && errors.As(err, &pe) {
			prov = pe.ProvenanceID
		}
		if prov != 0 {
			out["provenance_id"] = prov
		}
		return code, out
	}

	out := map[string]any{
		"status":     string(res.Status),
		"records":    int64(res.Records),
		"skipped":    int64(len(res.Skipped)),
		"superseded": res.Superseded,
	}
	if res.ProvenanceID != 0 {
		out["provenance_id"] = res.ProvenanceID
	}
	if res.Summary != nil {
		out["total"] = res.Summary.Total.StringFixed(2)
	}
	if res.UnitID != 0 {
		out["unit_id"] = res.UnitID
	}
	if len(res.Conflicts) > 0 {
		out["conflicts"] = int64(len(res.Conflicts))
	}
	if res.SyncRun != nil {
		out["sync_run"] = res.SyncRun.ID
		out["sync_status"] = string(res.SyncRun.Status)
	}
	if res.SyncError != "" {
		out["sync_error"] = res.SyncError
	}
	return string(res.Status), out
}

func (h *Harness) transfer(ctx context.Context, a args) (string, map[string]any) {
	typ, err := inventory.ParseTransferType(a.str("type"))
	if err != nil {
		return failure(err)
	}
	status := inventory.StatusGood
	if s := a.str("status"); s != "" {
		if status, err = inventory.ParseStatus(s); err != nil {
			return failure(err)
		}
	}
	sell := decimal.Zero
	if s := a.str("sell_value"); s != "" {
		if sell, err = ir.ParseMoney(s); err != nil {
			return failure(err)
		}
	}
	qty := int(a.int64("quantity"))
	if qty == 0 {
		qty = 1
	}

	out, err := h.engine.Transfer(ctx, inventory.Request{
		ItemID:    a.int64("item"),
		Type:      typ,
		Quantity:  qty,
		ToUnitID:  a.int64("to"),
		Status:    status,
		SellValue: sell,
		By:        a.str("by"),
	})
	if err != nil {
		return failure(err)
	}
	res := map[string]any{
		"transfer_id":     out.Transfer.ID,
		"source_quantity": int64(out.Source.Quantity),
		"loss":            out.Transfer.Loss.StringFixed(2),
	}
	if out.Destination != nil {
		res["destination_id"] = out.Destination.ID
		res["destination_quantity"] = int64(out.Destination.Quantity)
	}
	return "success", res
}

func failure(err error) (string, map[string]any) {
	return "error", map[string]any{"error": err.Error()}
}

func syncResult(run store.SyncRun) map[string]any {
	counters := make(map[string]any, len(run.Counters))
	for k, v := range run.Counters {
		counters[k] = v
	}
	return map[string]any{
		"run_id":   run.ID,
		"status":   string(run.Status),
		"trigger":  run.Trigger,
		"counters": counters,
	}
}

// args reads typed values from YAML-decoded step arguments.
type args map[string]any

func (a args) str(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (a args) int64(key string) int64 {
	switch v := a[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		d, err := decimal.NewFromString(v)
		if err == nil {
			return d.IntPart()
		}
	}
	return 0
}

func (a args) bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
