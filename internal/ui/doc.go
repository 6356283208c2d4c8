// Package ui implements an interactive terminal view of a suite run using bubbletea's Elm architecture.
//
// The TUI moves through three views:
//  1. [ConfirmView] : Show the target and the size of the suite before anything is created
//  2. [RunView] : Follow step progress, retry waits and finished steps as they stream in
//  3. [ResultView] : Browse every step result, re-run the suite or quit
//
// The [Model] receives progress through a channel fed by the runner. The runner never blocks
// on a slow terminal; updates it cannot deliver are dropped.
//
// Cancelling a run (q or ctrl+c while running) cancels its context. Cleanup steps still run,
// so the view stays up until the run reports completion.
package ui
