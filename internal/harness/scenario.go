package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pamana/internal/ir"
)

// Scenario defines an end-to-end scenario: fixture files, a flow of
// operations with expected outcomes, and assertions on the trace and the
// final store state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Clock is the RFC 3339 start of the scenario's wall clock. Defaults
	// to DefaultClock.
	Clock string `yaml:"clock,omitempty"`

	// Files are the fixture files the flow ingests.
	Files []FileSpec `yaml:"files,omitempty"`

	// Flow contains the operations to run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultClock is the start of a scenario clock when none is given.
const DefaultClock = "2025-03-01T09:00:00Z"

// FileSpec is a fixture file. Sheets build an .xlsx workbook; Raw is
// written verbatim, for PDFs and deliberately broken files.
type FileSpec struct {
	Name   string      `yaml:"name"`
	Sheets []SheetSpec `yaml:"sheets,omitempty"`
	Raw    string      `yaml:"raw,omitempty"`
}

// SheetSpec is one fixture sheet. Cells are placed after Rows and win
// over them.
type SheetSpec struct {
	Name  string     `yaml:"name"`
	Rows  [][]any    `yaml:"rows,omitempty"`
	Cells []CellSpec `yaml:"cells,omitempty"`
}

// CellSpec places a value at zero-based coordinates.
type CellSpec struct {
	Row   int `yaml:"row"`
	Col   int `yaml:"col"`
	Value any `yaml:"value"`
}

// FlowStep is one operation of the flow.
type FlowStep struct {
	// Op is the operation: ingest, sync, resolve, rollover or transfer.
	Op string `yaml:"op"`

	// Args contains the operation arguments.
	Args map[string]any `yaml:"args"`

	// Expect specifies the expected completion. If nil, any outcome is
	// accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is the expected outcome (e.g. "success", "DuplicateFile").
	Case string `yaml:"case"`

	// Result contains expected result field values.
	// This is a subset match - only specified fields are validated.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check op appears in trace with args
	// - "trace_order": Check ops appear in order
	// - "trace_count": Check op appears exactly N times
	// - "final_state": Query table and verify expected values
	Type string `yaml:"type"`

	// Op is the operation (used by trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args are the expected operation arguments (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]any `yaml:"args,omitempty"`

	// Table is the store table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected operation order (used by trace_order).
	Ops []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Operation names.
const (
	OpIngest   = "ingest"
	OpSync     = "sync"
	OpResolve  = "resolve"
	OpRollover = "rollover"
	OpTransfer = "transfer"
)

var knownOps = map[string]bool{OpIngest: true, OpSync: true, OpResolve: true, OpRollover: true, OpTransfer: true}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		names[s.Name] = filepath.Base(p)
		out = append(out, s)
	}
	return out, nil
}

// start returns the scenario clock's first reading.
func (s *Scenario) start() (time.Time, error) {
	if s.Clock == "" {
		return time.Parse(time.RFC3339, DefaultClock)
	}
	return time.Parse(time.RFC3339, s.Clock)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := s.start(); err != nil {
		return fmt.Errorf("clock: %w", err)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	files := make(map[string]bool, len(s.Files))
	for i, f := range s.Files {
		if f.Name == "" {
			return fmt.Errorf("files[%d]: name is required", i)
		}
		if filepath.Base(f.Name) != f.Name {
			return fmt.Errorf("files[%d]: name %q must not contain a directory", i, f.Name)
		}
		if files[f.Name] {
			return fmt.Errorf("files[%d]: duplicate name %q", i, f.Name)
		}
		if len(f.Sheets) == 0 && f.Raw == "" {
			return fmt.Errorf("files[%d]: sheets or raw is required", i)
		}
		if len(f.Sheets) > 0 && f.Raw != "" {
			return fmt.Errorf("files[%d]: sheets and raw are exclusive", i)
		}
		files[f.Name] = true
	}

	for i, step := range s.Flow {
		if step.Op == "" {
			return fmt.Errorf("flow[%d]: op is required", i)
		}
		if !knownOps[step.Op] {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if step.Op == OpIngest {
			name, _ := step.Args["file"].(string)
			if !files[name] {
				return fmt.Errorf("flow[%d]: ingest file %q is not declared in files", i, name)
			}
			kind, _ := step.Args["kind"].(string)
			if _, err := ir.ParseKind(kind); err != nil {
				return fmt.Errorf("flow[%d]: %w", i, err)
			}
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
