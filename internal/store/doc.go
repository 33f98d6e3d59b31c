// Package store provides a SQLite-backed journal of compile sessions.
//
// Every run of the pipeline can be recorded as one row: the document it
// came from, the expression in prefix form and its content hash, the
// backend, and the outcome with either the result or the error.
//
// # Ordering
//
//   - Rows carry a logical seq from a monotonic clock, never a timestamp
//   - All queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
