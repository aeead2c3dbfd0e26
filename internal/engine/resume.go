package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rowanvale/savepoint/internal/store"
)

// ResumeActive rebinds the session handle to a checkpoint left active in the
// store, if any. Fresh processes (the CLI in particular) call this at
// startup so a session begun by an earlier invocation stays commitable.
//
// If several checkpoints are active - a crash can leave strays - the newest
// one is bound and the rest are reported; they stay active in the store
// until explicitly rolled back or deleted.
//
// Returns true when a session was resumed.
func (m *Manager) ResumeActive(ctx context.Context) (bool, error) {
	active, err := m.store.ListCheckpoints(ctx, store.CheckpointFilter{ActiveOnly: true})
	if err != nil {
		return false, fmt.Errorf("resume active session: %w", err)
	}
	if len(active) == 0 {
		return false, nil
	}

	newest := active[0] // ListCheckpoints orders newest first
	if len(active) > 1 {
		slog.Warn("multiple active checkpoints found, resuming newest",
			"resumed", newest.ID, "strays", len(active)-1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		// In-process session wins; nothing to resume.
		return false, nil
	}

	m.active = &SessionContext{
		CheckpointID:  newest.ID,
		ScopeID:       newest.ScopeID,
		ApplicationID: newest.ApplicationID,
	}

	slog.Debug("resumed active checkpoint session",
		"checkpoint_id", newest.ID, "scope_id", newest.ScopeID)

	return true, nil
}
