// Package engine implements the checkpoint session manager, mutation
// capture, and restore engine.
//
// # Session model
//
// The active-session handle is one explicit, mutex-guarded resource owned by
// Manager. Exactly one checkpoint may be open per process; a second Begin
// force-rolls-back the live session (logged as an explicit
// active -> rolled_back -> active transition) rather than queuing or
// rejecting. The bound scope travels as a SessionContext value threaded
// through capture calls, never as package-level state.
//
// # Capture model
//
// Capture wraps entity mutations: pre-state is snapshotted before the
// mutation executes and the undo-log append happens after it succeeds -
// both strictly synchronous with the wrapped call, or the log would
// misrepresent state. Capture failures are surfaced (slog.Error plus the
// checkpoint's has_gaps flag) but never block the primary mutation: a missed
// entry degrades reversibility, it does not break the caller's write.
//
// # Restore model
//
// Rollback and restore replay undo-log entries in global reverse
// chronological order and apply each entry's inverse: insert -> delete the
// row, update -> write the previous snapshot back, delete -> re-insert the
// snapshot. Snapshots are schema-validated before reverse-apply. Replay is
// not transactional across entries: a mid-replay failure aborts the
// remainder and reports applied vs remaining counts, leaving a best-effort
// partially-reverted state.
package engine
