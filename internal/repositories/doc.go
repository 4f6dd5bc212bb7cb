// Package repositories implements SQLite persistence for playlist generation history.
//
// Key Implementations:
//   - [RunRepository] : generation runs with their ordered tracks, plus a
//     log of which track each profile query resolved to
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
