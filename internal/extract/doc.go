// Package extract applies layout plans to sheets.
//
// Extraction is a pure function of a sheet and its plan. It yields a lazy
// sequence of results, each carrying exactly one of a record, a skipped row
// or a warning, in source row order per section. Per-row failures are
// values, never errors.
package extract
