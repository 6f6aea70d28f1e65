// Package store keeps a SQLite ledger of join runs.
//
// Each run is one row in runs, keyed by its run ID, with the engine
// counters, the stop reason, the global options as JSON and the outcome.
// Each input stream of a run is one row in run_streams with its read
// counters. Reports are append-only and listed in insertion order (seq).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
