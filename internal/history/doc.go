// Package history is the read side of the checkpoint engine: it joins
// checkpoints, undo-log entries, and current entity state into de-duplicated,
// human-readable change summaries.
//
// Nothing here mutates state and nothing requires a session; history reads
// are safe to run while a session is open, though they may observe its
// uncommitted effects.
//
// # Query shape
//
// All reads are batched: one query for the undo-log entries of every
// checkpoint in the window, then one query per entity table for the current
// rows those entries reference. Never one round trip per checkpoint or row.
//
// Display names resolve from current rows for inserts and updates, and from
// the captured previous_data snapshot for deletes (the row is gone; the
// snapshot is the only witness to its name). Entries whose row has since
// vanished and left no snapshot are silently dropped from summaries - a
// missing name is a display non-event, not an error.
package history
