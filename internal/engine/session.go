package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rowanvale/savepoint/internal/record"
	"github.com/rowanvale/savepoint/internal/schema"
	"github.com/rowanvale/savepoint/internal/store"
)

// EntityStore is the row storage the engine snapshots and mutates. It is an
// external collaborator from the engine's point of view: any relational
// backend with primary-key CRUD can satisfy it. *store.Store is the
// reference implementation.
type EntityStore interface {
	GetRow(ctx context.Context, table string, id int64) (record.Row, error)
	FindRowByName(ctx context.Context, table, name string, objectID int64) (record.Row, error)
	InsertRow(ctx context.Context, table string, row record.Row) (int64, error)
	InsertRowWithID(ctx context.Context, table string, id int64, row record.Row) error
	UpdateRow(ctx context.Context, table string, id int64, row record.Row) error
	DeleteRow(ctx context.Context, table string, id int64) error
}

// SessionContext binds capture calls to the open checkpoint and its scope.
// It is an explicit value handed to capture per call, never package-level
// state, so a concurrent server cannot leak one request's scope into
// another's capture.
type SessionContext struct {
	CheckpointID  string
	ScopeID       int64
	ApplicationID int64
}

// Manager owns the single active session handle and orchestrates
// begin/commit/rollback. All session state transitions happen under one
// mutex; reads of history and status go straight to the store and may
// observe an open session's effects before it commits.
type Manager struct {
	store     *store.Store
	entities  EntityStore
	validator *schema.Validator
	ids       IDGenerator
	clock     TimeSource
	seq       *SeqClock

	mu     sync.Mutex
	active *SessionContext
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*Manager)

// WithIDGenerator overrides the checkpoint id generator (tests use
// FixedGenerator for deterministic history).
func WithIDGenerator(gen IDGenerator) ManagerOption {
	return func(m *Manager) { m.ids = gen }
}

// WithTimeSource overrides the timestamp source.
func WithTimeSource(ts TimeSource) ManagerOption {
	return func(m *Manager) { m.clock = ts }
}

// NewManager creates a session manager over the given stores.
// The snapshot validator guards every reverse-apply; constructing it here
// keeps a misloaded schema from surfacing only at restore time.
func NewManager(st *store.Store, entities EntityStore, opts ...ManagerOption) (*Manager, error) {
	validator, err := schema.New()
	if err != nil {
		return nil, fmt.Errorf("new manager: %w", err)
	}

	m := &Manager{
		store:     st,
		entities:  entities,
		validator: validator,
		ids:       UUIDv7Generator{},
		clock:     WallClock{},
		seq:       NewSeqClock(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// BeginParams carries the caller-supplied provenance for a new checkpoint.
type BeginParams struct {
	ScopeID       int64
	ApplicationID int64
	Description   string
	UserCommand   string
	Source        record.Source
}

// Begin opens a new checkpoint session and returns the created checkpoint.
//
// If a session is already active it is rolled back first - an explicit
// active -> rolled_back -> active transition, logged as a warning, never a
// silent side effect. The returned checkpoint is StatusActive and bound as
// the process-wide capture target until Commit or Rollback.
func (m *Manager) Begin(ctx context.Context, p BeginParams) (record.Checkpoint, error) {
	if p.ScopeID == 0 {
		return record.Checkpoint{}, fmt.Errorf("begin: scope id is required")
	}
	if err := record.ValidateSource(p.Source); err != nil {
		return record.Checkpoint{}, fmt.Errorf("begin: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		slog.Warn("session already active, rolling back before new begin",
			"checkpoint_id", m.active.CheckpointID,
			"scope_id", m.active.ScopeID)
		if err := m.rollbackLocked(ctx); err != nil {
			return record.Checkpoint{}, fmt.Errorf("begin: implicit rollback: %w", err)
		}
	}

	cp := record.Checkpoint{
		ID:            m.ids.Generate(),
		ScopeID:       p.ScopeID,
		ApplicationID: p.ApplicationID,
		Description:   p.Description,
		UserCommand:   p.UserCommand,
		Source:        p.Source,
		Status:        record.StatusActive,
		ToolsExecuted: []string{},
		CreatedAt:     m.clock.Now(),
	}

	if err := m.store.CreateCheckpoint(ctx, cp); err != nil {
		return record.Checkpoint{}, fmt.Errorf("begin: %w", err)
	}

	m.active = &SessionContext{
		CheckpointID:  cp.ID,
		ScopeID:       cp.ScopeID,
		ApplicationID: cp.ApplicationID,
	}

	slog.Info("checkpoint session started",
		"checkpoint_id", cp.ID,
		"scope_id", cp.ScopeID,
		"source", string(cp.Source))

	return cp, nil
}

// Commit marks the active checkpoint committed and clears the bound context.
// With no active session it logs a warning and returns ErrNoActiveSession;
// callers may treat that as a no-op.
func (m *Manager) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		slog.Warn("commit called with no active session")
		return ErrNoActiveSession
	}

	id := m.active.CheckpointID
	if err := m.store.UpdateCheckpointStatus(ctx, id, record.StatusCommitted, m.clock.Now()); err != nil {
		return fmt.Errorf("commit checkpoint %s: %w", id, err)
	}

	m.active = nil
	slog.Info("checkpoint committed", "checkpoint_id", id)
	return nil
}

// Rollback reverts every mutation captured under the active checkpoint,
// most-recent-first, marks it rolled back, and clears the bound context.
// With no active session it logs a warning and returns ErrNoActiveSession.
func (m *Manager) Rollback(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		slog.Warn("rollback called with no active session")
		return ErrNoActiveSession
	}

	return m.rollbackLocked(ctx)
}

// rollbackLocked reverts the active session. Caller must hold m.mu.
//
// The session handle is cleared and the checkpoint marked rolled_back even
// when replay fails partway: the store then honestly reflects a best-effort
// partially-reverted state instead of pretending the session is still
// cleanly active. The RestoreError reports how far replay got.
func (m *Manager) rollbackLocked(ctx context.Context) error {
	id := m.active.CheckpointID

	entries, err := m.store.EntriesForCheckpoints(ctx, []string{id})
	if err != nil {
		return fmt.Errorf("rollback checkpoint %s: %w", id, err)
	}

	replayErr := m.applyInverses(ctx, entries)

	if err := m.store.UpdateCheckpointStatus(ctx, id, record.StatusRolledBack, m.clock.Now()); err != nil {
		return fmt.Errorf("rollback checkpoint %s: mark rolled back: %w", id, err)
	}

	m.active = nil

	if replayErr != nil {
		slog.Error("rollback incomplete", "checkpoint_id", id, "error", replayErr)
		return fmt.Errorf("rollback checkpoint %s: %w", id, replayErr)
	}

	slog.Info("checkpoint rolled back", "checkpoint_id", id, "entries", len(entries))
	return nil
}

// applyInverses replays undo entries in the order given (callers pass
// most-recent-first) and applies each entry's inverse. Stops at the first
// failure and reports applied vs remaining counts.
func (m *Manager) applyInverses(ctx context.Context, entries []record.UndoLogEntry) error {
	for i, entry := range entries {
		if err := m.applyInverse(ctx, entry); err != nil {
			var re *RestoreError
			if errors.As(err, &re) {
				re.Applied = i
				re.Remaining = len(entries) - i - 1
				return re
			}
			return err
		}
	}
	return nil
}

// applyInverse reverses a single undo-log entry:
// insert -> delete the created row, update -> write previous_data back,
// delete -> re-insert previous_data under its captured primary key.
// Snapshots are schema-validated before they touch the entity store.
func (m *Manager) applyInverse(ctx context.Context, entry record.UndoLogEntry) error {
	rowID := entry.PrimaryKey.ID

	fail := func(code RestoreErrorCode, err error) error {
		return &RestoreError{
			Code:         code,
			CheckpointID: entry.CheckpointID,
			EntryID:      entry.ID,
			Table:        entry.TableName,
			RowID:        rowID,
			Err:          err,
		}
	}

	switch entry.Operation {
	case record.OpInsert:
		if err := m.entities.DeleteRow(ctx, entry.TableName, rowID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fail(RestoreCodeRowMissing, err)
			}
			return fail(RestoreCodeStore, err)
		}

	case record.OpUpdate:
		if err := m.validator.ValidateSnapshot(entry.TableName, entry.PreviousData); err != nil {
			return fail(RestoreCodeInvalidSnapshot, err)
		}
		if err := m.entities.UpdateRow(ctx, entry.TableName, rowID, entry.PreviousData); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fail(RestoreCodeRowMissing, err)
			}
			return fail(RestoreCodeStore, err)
		}

	case record.OpDelete:
		if err := m.validator.ValidateSnapshot(entry.TableName, entry.PreviousData); err != nil {
			return fail(RestoreCodeInvalidSnapshot, err)
		}
		if err := m.entities.InsertRowWithID(ctx, entry.TableName, rowID, entry.PreviousData); err != nil {
			return fail(RestoreCodeRowExists, err)
		}

	default:
		return fail(RestoreCodeStore, fmt.Errorf("unknown operation %q", entry.Operation))
	}

	return nil
}

// ActiveSession returns the active checkpoint, or false when no session is
// open. Pure read.
func (m *Manager) ActiveSession(ctx context.Context) (record.Checkpoint, bool, error) {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()

	if active == nil {
		return record.Checkpoint{}, false, nil
	}

	cp, err := m.store.GetCheckpoint(ctx, active.CheckpointID)
	if err != nil {
		return record.Checkpoint{}, false, fmt.Errorf("active session: %w", err)
	}
	return cp, true, nil
}

// ActiveContext returns the bound session context, or false when no session
// is open. Capture consults this once per wrapped call and threads the
// value through explicitly.
func (m *Manager) ActiveContext() (SessionContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return SessionContext{}, false
	}
	return *m.active, true
}

// ActiveCheckpoints returns non-terminal checkpoints for the requested
// scope, newest first. Empty scope/application means unfiltered.
func (m *Manager) ActiveCheckpoints(ctx context.Context, scopeID, applicationID int64) ([]record.Checkpoint, error) {
	return m.store.ListCheckpoints(ctx, store.CheckpointFilter{
		ScopeID:       scopeID,
		ApplicationID: applicationID,
		ActiveOnly:    true,
	})
}

// CheckpointHistory returns checkpoints for the requested scope ordered
// newest first, regardless of status.
func (m *Manager) CheckpointHistory(ctx context.Context, scopeID, applicationID int64) ([]record.Checkpoint, error) {
	return m.store.ListCheckpoints(ctx, store.CheckpointFilter{
		ScopeID:       scopeID,
		ApplicationID: applicationID,
	})
}

// DeleteCheckpoint permanently removes a checkpoint and its undo-log
// entries. History deletion only - entity data is not reverted. If the
// checkpoint is the active session, the session handle is cleared.
func (m *Manager) DeleteCheckpoint(ctx context.Context, id string) error {
	if _, err := m.store.GetCheckpoint(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{CheckpointID: id}
		}
		return fmt.Errorf("delete checkpoint %s: %w", id, err)
	}

	m.mu.Lock()
	if m.active != nil && m.active.CheckpointID == id {
		slog.Warn("deleting the active checkpoint, clearing session", "checkpoint_id", id)
		m.active = nil
	}
	m.mu.Unlock()

	if err := m.store.DeleteCheckpoints(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", id, err)
	}

	slog.Info("checkpoint deleted", "checkpoint_id", id)
	return nil
}

// DeleteAllCheckpoints removes every checkpoint in the scope along with
// their undo-log entries. Returns the number deleted.
func (m *Manager) DeleteAllCheckpoints(ctx context.Context, scopeID, applicationID int64) (int, error) {
	checkpoints, err := m.store.ListCheckpoints(ctx, store.CheckpointFilter{
		ScopeID:       scopeID,
		ApplicationID: applicationID,
	})
	if err != nil {
		return 0, fmt.Errorf("delete all checkpoints: %w", err)
	}
	if len(checkpoints) == 0 {
		return 0, nil
	}

	ids := make([]string, len(checkpoints))
	for i, cp := range checkpoints {
		ids[i] = cp.ID
	}

	m.mu.Lock()
	if m.active != nil {
		for _, id := range ids {
			if m.active.CheckpointID == id {
				slog.Warn("deleting the active checkpoint, clearing session", "checkpoint_id", id)
				m.active = nil
				break
			}
		}
	}
	m.mu.Unlock()

	if err := m.store.DeleteCheckpoints(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete all checkpoints: %w", err)
	}

	slog.Info("checkpoints deleted", "scope_id", scopeID, "count", len(ids))
	return len(ids), nil
}

// StatusSummary aggregates checkpoint counts for the status surface.
type StatusSummary struct {
	Total    int
	BySource map[record.Source]int
}

// Status reports the active session, non-terminal checkpoints, and summary
// counts for a scope.
func (m *Manager) Status(ctx context.Context, scopeID, applicationID int64) (active *record.Checkpoint, activeCheckpoints []record.Checkpoint, summary StatusSummary, err error) {
	cp, ok, err := m.ActiveSession(ctx)
	if err != nil {
		return nil, nil, StatusSummary{}, err
	}
	if ok {
		active = &cp
	}

	activeCheckpoints, err = m.ActiveCheckpoints(ctx, scopeID, applicationID)
	if err != nil {
		return nil, nil, StatusSummary{}, err
	}

	all, err := m.CheckpointHistory(ctx, scopeID, applicationID)
	if err != nil {
		return nil, nil, StatusSummary{}, err
	}

	summary = StatusSummary{Total: len(all), BySource: make(map[record.Source]int)}
	for _, c := range all {
		summary.BySource[c.Source]++
	}

	return active, activeCheckpoints, summary, nil
}
