// Package store provides the SQLite-backed canonical store of the pamana
// pipeline.
//
// The store holds four groups of tables:
//   - Geography: districts and their locals
//   - Reports: one per (local, year), its building, item and page-5 children,
//     and the derived per-section summary
//   - Housing: properties, housing units, unit inventory and item transfers
//   - Admin read model: departments, sections, workers, housing sites,
//     derived units, assignments, sync runs and sync conflicts
//
// Every ingested file has a provenance row in imported_files keyed by its
// SHA-256 fingerprint.
//
// # Conventions
//
//   - Money is stored as decimal TEXT and read back into decimal.Decimal
//   - Dates are 'YYYY-MM-DD'; timestamps are RFC 3339 in UTC
//   - Reads return deterministic order (source seq, then id) and empty
//     slices rather than nil
//   - Natural-key inserts use ON CONFLICT DO NOTHING and then fetch the
//     surviving row, so concurrent first sightings converge on one row
//
// Methods are defined once on an unexported conn and are available on both
// *Store and *Tx. With a single pooled connection, code running inside
// WithTx must use the *Tx it was given; calling the *Store would wait for a
// connection the transaction is holding.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
