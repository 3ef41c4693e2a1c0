// Package harness runs end-to-end ingestion scenarios against a real
// engine and store.
//
// # Scenario Format
//
// Scenarios are YAML files. Fixture workbooks are declared inline and
// written to a temporary directory before the flow runs:
//
//	name: chapel_totals
//	description: "What this scenario validates"
//	files:
//	  - name: p7.xlsx
//	    sheets:
//	      - name: Page 1
//	        rows:
//	          - ["DCODE: 01009"]
//	          - ["KAPILYA"]
//	        cells:
//	          - { row: 4, col: 12, value: "Juan Dela Cruz" }
//	  - name: scan.pdf
//	    raw: "%PDF-1.4"
//	flow:
//	  - op: ingest
//	    args: { file: p7.xlsx, kind: annual_p7 }
//	    expect:
//	      case: success
//	      result: { total: "105000.00" }
//	assertions:
//	  - type: trace_count
//	    op: ingest
//	    count: 1
//	  - type: final_state
//	    table: report_buildings
//	    where: { name: "Main Chapel" }
//	    expect: { total_cost_this_year: 105000 }
//
// # Operations
//
//   - ingest: file, kind, force
//   - sync: no args
//   - resolve: conflict, action, by, merge
//   - rollover: dcode, lcode, year
//   - transfer: item, type, quantity, to, status, sell_value, by
//
// Each step's completion case is the operation's status (success,
// partial, accepted, ...) or, for ingestion failures, the pipeline error
// code (DuplicateFile, UnreadableStream, ...).
//
// # Assertion Types
//
//   - trace_contains: an operation appears in the trace with matching args
//   - trace_order: operations appear in the given order
//   - trace_count: an operation appears exactly N times
//   - final_state: exactly one store row matches and has the expected values
//
// # Determinism
//
// Every scenario runs on a fresh SQLite database with a fixed wall clock
// stepping one second per reading and sequential sync run ids
// (run-0001, run-0002, ...), so traces compare byte for byte against
// golden files.
package harness
