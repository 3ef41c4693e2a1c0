// Package ir provides the shared value types of the ingestion pipeline.
//
// Every other internal package imports ir; ir imports nothing internal.
// It holds the declared file kinds, the records the extractor emits, the
// canonical entities the materializer writes, and the small parsers that
// turn cell text into money, dates, quantities and codes.
//
// Key constraints:
//   - Money is decimal.Decimal, never float64
//   - Dates are calendar dates in UTC without time-of-day
//   - All JSON tags use snake_case
//   - Identity hashes use domain-separated SHA-256 over canonical JSON
package ir
