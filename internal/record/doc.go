// Package record defines the core domain records for the checkpoint engine.
//
// A Checkpoint is a named, time-bounded grouping of entity mutations with its
// own lifecycle status. An UndoLogEntry is a single reversible mutation record
// (operation + before-state) tied to one checkpoint. Entity rows themselves are
// dynamic (Row), scoped to a fixed registry of known tables.
//
// # Critical Patterns
//
// Rows round-trip through JSON using json.Number to avoid float64 precision
// loss for integer ids > 2^53. All snapshot serialization goes through
// MarshalRow/UnmarshalRow so stored previous_data compares byte-stable in
// golden tests.
//
// Undo-log entries are immutable once written. Ordering within and across
// checkpoints uses (created_at, seq) where seq is a per-process logical
// tiebreaker - wall clocks alone cannot guarantee a total order.
package record
