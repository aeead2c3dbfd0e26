// Package store provides SQLite-backed storage for checkpoints, the undo
// log, and the entity tables the checkpoint engine snapshots.
//
// The store is deliberately thin: no session or capture logic lives here,
// only row persistence and the batch queries the read side depends on.
//
// # Critical Patterns
//
//   - The undo log is append-only. Entries are never updated; a checkpoint's
//     reversibility derives entirely from what was captured at mutation time.
//   - Checkpoint deletion cascades to undo_log via foreign keys and runs in
//     a single transaction, so history can never orphan entries.
//   - Batch reads (EntriesForCheckpoints, RowsByIDs) take a set of ids in one
//     IN(...) query instead of one round trip per checkpoint or row.
//   - Undo entries order by (created_at DESC, seq DESC): created_at is wall
//     time, seq is a per-process logical tiebreaker for entries stamped in
//     the same instant.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: required for undo_log cascade delete
package store
