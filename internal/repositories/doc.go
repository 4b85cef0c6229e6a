// Package repositories persists sync run reports in SQLite.
//
// Each run receives a UUID and a monotonically increasing sequence number from the runs_sequence
// table, so history can be listed in run order regardless of clock changes.
package repositories
