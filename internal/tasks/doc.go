// Package tasks turns a squad's listening profiles into one playlist with real-time progress reporting.
//
// # Core Operations
//
// [PlaylistEngine] exposes three operations:
//
//  1. [PlaylistEngine.Aggregate] : profiles → ordered, deduplicated tracks
//     - Skips profiles that are not exactly five artists and five songs
//     - Resolves every song (fuzzy title match, same-profile artists preferred)
//     - Resolves every top artist to at most three new top tracks
//     - Songs always precede artist tracks; each track appears once
//
//  2. [PlaylistEngine.Assemble] : tracks → playlist
//     - Creates the playlist, then adds tracks in batches of at most 100
//
//  3. [PlaylistEngine.Generate] : Aggregate + Assemble, recording the run
//
// # Concurrency
//
// Lookups within a phase fan out on an errgroup bounded by the configured worker count.
// Results are accepted into the request's [TrackSet] only after the phase finishes, in profile
// and rank order, so output is identical for any worker count.
//
// # Failure Handling
//
// A lookup that fails or finds nothing skips that entry and is reported in
// [AggregateResult.Skipped]. Rate limiting that outlasts retries and expired contexts abort the
// request. Create and add failures are fatal.
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Sends use select with default
// so a slow or absent reader never blocks generation.
//
// # Run History
//
// The optional [RunRecorder] (repositories.RunRepository) persists each generation. Recording
// errors are logged and ignored.
package tasks
