// Package engine orchestrates pamana's ingestion pipeline.
//
// One ingestion runs through these stages in order:
//
//  1. intake: fingerprint, dedup and provenance entry (processing)
//  2. workbook: open the staged file as a grid of typed cells
//  3. layout: classify each sheet and plan its extraction
//  4. extract: yield records and skips from the plans
//  5. materialize: write under one transaction and finalize provenance
//  6. adminsync: project into the admin read model, once per entry
//
// A single ingestion is sequential. Batch ingestion runs several
// ingestions concurrently; they coordinate only through the store's
// unique indexes (file fingerprint, worker identity), never through
// application locks.
//
// Arrival order:
// Every accepted file is stamped with a strictly increasing arrival seq
// from Clock. Batch workers take jobs in the order given.
//
// Failure boundaries:
// A failed materialization rolls back and leaves only an error provenance
// entry. A failed sync after a committed ingestion is reported on the
// result and recorded as an error sync run; the canonical data stays.
package engine
