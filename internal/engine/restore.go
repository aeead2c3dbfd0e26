package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rowanvale/savepoint/internal/record"
)

// Restorer replays undo-log entries in reverse chronological order to revert
// a scope to an earlier point in its checkpoint sequence.
//
// Boundary semantics: RestoreToCheckpoint(X) is INCLUSIVE - X's own changes
// are reverted along with everything after it, leaving the scope as it was
// immediately before X began. Checkpoints already rolled back are skipped;
// their entries were reverted once and reversing them again would corrupt
// state.
//
// Replay is not transactional across entries. On a mid-replay failure the
// remaining entries are not attempted, already-applied inversions stand,
// and no checkpoint status changes - the returned RestoreError reports
// applied vs remaining so operators can see exactly where it stopped.
type Restorer struct {
	m *Manager
}

// NewRestorer creates a restore engine over the same manager state.
func NewRestorer(m *Manager) *Restorer {
	return &Restorer{m: m}
}

// RestoreToCheckpoint reverts the target checkpoint's scope to the state
// immediately before the target began. Returns NotFoundError for an unknown
// id. Counts of reverted checkpoints and entries are returned for the
// status surface.
func (r *Restorer) RestoreToCheckpoint(ctx context.Context, checkpointID string) (checkpoints, entries int, err error) {
	target, err := r.m.store.GetCheckpoint(ctx, checkpointID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, &NotFoundError{CheckpointID: checkpointID}
		}
		return 0, 0, fmt.Errorf("restore: %w", err)
	}

	window, err := r.m.store.ListCheckpointsAtOrAfter(ctx, target.ScopeID, target.CreatedAt)
	if err != nil {
		return 0, 0, fmt.Errorf("restore: %w", err)
	}

	// Skip checkpoints whose entries were already reverted.
	ids := make([]string, 0, len(window))
	for _, cp := range window {
		if cp.Status == record.StatusRolledBack {
			continue
		}
		ids = append(ids, cp.ID)
	}
	if len(ids) == 0 {
		slog.Info("restore found nothing to revert", "checkpoint_id", checkpointID)
		return 0, 0, nil
	}

	// One batch query; entries come back in global reverse chronological
	// order across all selected checkpoints, not grouped per checkpoint.
	undoEntries, err := r.m.store.EntriesForCheckpoints(ctx, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("restore: %w", err)
	}

	if err := r.m.applyInverses(ctx, undoEntries); err != nil {
		slog.Error("restore aborted mid-replay",
			"target", checkpointID, "error", err)
		return 0, 0, fmt.Errorf("restore to %s: %w", checkpointID, err)
	}

	if err := r.m.store.UpdateCheckpointStatusBatch(ctx, ids, record.StatusRolledBack, r.m.clock.Now()); err != nil {
		return 0, 0, fmt.Errorf("restore to %s: mark rolled back: %w", checkpointID, err)
	}

	slog.Info("restore complete",
		"target", checkpointID,
		"checkpoints", len(ids),
		"entries", len(undoEntries))

	return len(ids), len(undoEntries), nil
}

// RestoreToCheckpoint reverts the scope to the state immediately before the
// target checkpoint began. An active session is rolled back first, and the
// session lock is held through the replay so no new session can begin and
// interleave captures with the restore.
func (m *Manager) RestoreToCheckpoint(ctx context.Context, checkpointID string) (checkpoints, entries int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		slog.Warn("restore requested with a session active, rolling it back first",
			"checkpoint_id", m.active.CheckpointID)
		if err := m.rollbackLocked(ctx); err != nil {
			return 0, 0, fmt.Errorf("restore: rollback active session: %w", err)
		}
	}

	return NewRestorer(m).RestoreToCheckpoint(ctx, checkpointID)
}
