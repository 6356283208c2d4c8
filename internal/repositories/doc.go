// Package repositories implements SQLite persistence for the ledger.
//
// Key Implementations:
//   - [RunRepository] : suite runs, ordered by a per-table sequence
//   - [StepResultRepository] : per-step outcomes of a run
//   - [ResourceRepository] : remote songs and playlists created by a run
//   - [ResourceTracker] : adapter the suite uses to track and release resources
//
// A run is inserted when the suite starts and finished with [Ledger.Finish].
// Resources are tracked as soon as the service returns their id, so a crash
// before the delete steps leaves unreleased rows that `gmx sweep` cleans up.
//
// Sequence numbers provide stable, human-readable ordering (run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
