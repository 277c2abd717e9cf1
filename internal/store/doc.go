// Package store provides SQLite-backed durable storage for trial records.
//
// The store is an append-only log with two tables:
//   - runs: one row per execution of a timeline (seed, mode, final status)
//   - trial_records: one row per recorded trial, in completion order
//
// # Ordering and Identity
//
//   - Records are ordered by seq, the engine's logical clock, never by wall
//     time. Every query orders by seq ASC, id ASC COLLATE BINARY.
//   - Record ids are content-addressed (data.RecordID over run id, seq and
//     the canonical record), so writing the same record twice is a no-op.
//   - Record data is stored as canonical JSON (see data.MarshalCanonical).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// *Store implements the engine's Sink, so a run can be persisted as it
// progresses.
package store
