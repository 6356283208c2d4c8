// Package tasks runs the live suite against a music service with real-time progress reporting.
//
// # Suite
//
// A [Suite] is an ordered list of [Group]s. Each group logs in, runs its
// [Step]s in list order, and logs out. The order is the dependency order:
//
//  1. song_create uploads the sample and waits until the library lists it
//  2. playlist_create runs after song_create, since a playlist needs a song to modify
//  3. song and playlist checks run after the step that created their resource
//  4. playlist_delete runs before song_delete; both always run
//
// A step is skipped, not failed, when a step named in After did not pass, when
// its Requires precondition returns an error, or when it returns [Skip].
// Always-run steps ignore After and a failed setup but still check Requires,
// so a cleanup step with nothing to clean is reported as skipped.
//
// # Eventual Consistency
//
// Steps wrap reads and assertions in [Poll] or [State.Until], which retry
// [check.Failure] errors under the configured [retry.Policy]. Any other error
// fails the step immediately.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Resource Tracking
//
// The optional [Tracker] interface records created songs and playlists as soon
// as the service returns their ids, and releases them once deleted.
// Tracking errors are logged and never fail a step.
//
// [Sweep] deletes whatever the ledger still holds, playlists before songs,
// with bounded concurrency via errgroup.
package tasks
