// Package tasks orchestrates one sync run with real-time progress reporting.
//
// # Run Stages
//
// [SyncEngine.Run] executes, in order:
//
//  1. Fetch the desired tracks from the [services.Source]
//  2. Reconcile them against the library index and the staging directory
//  3. Acquire missing tracks through the backend, bounded by the run deadline
//  4. Wait for downloads to settle, then organize the intake directory into staging
//  5. Normalize tags on every staged file
//  6. Regenerate the playlist export
//  7. Sweep expired staged files
//  8. Record the [models.RunReport] through the optional [RunRecorder]
//
// A failing stage is logged and appended to the report's errors; later stages still run.
// Only cancellation of the context stops a run early.
//
// # Progress Reporting
//
// Updates are sent on a caller-supplied channel using select with default, so a slow reader
// never blocks the run.
package tasks
