package engine

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanvale/savepoint/internal/record"
	"github.com/rowanvale/savepoint/internal/store"
	"github.com/rowanvale/savepoint/internal/testutil"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestManager builds a manager over a fresh in-memory store with
// deterministic ids and timestamps. Extra options override the defaults.
func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *store.Store) {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("cp-%02d", i+1)
	}

	base := []ManagerOption{
		WithIDGenerator(NewFixedGenerator(ids...)),
		WithTimeSource(testutil.NewDeterministicClock(testEpoch, time.Second)),
	}
	m, err := NewManager(st, st, append(base, opts...)...)
	require.NoError(t, err)

	return m, st
}

func beginTestSession(t *testing.T, m *Manager, scopeID int64) record.Checkpoint {
	t.Helper()
	cp, err := m.Begin(context.Background(), BeginParams{
		ScopeID:     scopeID,
		Description: "test session",
		Source:      record.SourceAPI,
	})
	require.NoError(t, err)
	return cp
}

func TestBeginValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Begin(ctx, BeginParams{Description: "no scope", Source: record.SourceAPI})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scope")

	_, err = m.Begin(ctx, BeginParams{ScopeID: 1, Description: "bad source", Source: "webhook"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")
}

func TestBeginCommitLifecycle(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	cp, err := m.Begin(ctx, BeginParams{
		ScopeID:       7,
		ApplicationID: 2,
		Description:   "Add phone support",
		UserCommand:   "add a phone field",
		Source:        record.SourceLLM,
	})
	require.NoError(t, err)
	assert.Equal(t, "cp-01", cp.ID)
	assert.Equal(t, record.StatusActive, cp.Status)

	active, ok, err := m.ActiveSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cp.ID, active.ID)

	sess, ok := m.ActiveContext()
	require.True(t, ok)
	assert.Equal(t, SessionContext{CheckpointID: "cp-01", ScopeID: 7, ApplicationID: 2}, sess)

	require.NoError(t, m.Commit(ctx))

	_, ok, err = m.ActiveSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := st.GetCheckpoint(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusCommitted, stored.Status)
	assert.False(t, stored.FinishedAt.IsZero())
}

func TestCommitWithoutSession(t *testing.T) {
	m, _ := newTestManager(t)

	assert.ErrorIs(t, m.Commit(context.Background()), ErrNoActiveSession)
	assert.ErrorIs(t, m.Rollback(context.Background()), ErrNoActiveSession)
}

func TestBeginRollsBackPreviousSession(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	first := beginTestSession(t, m, 1)
	res, err := capture.Save(ctx, "save_fields", record.TableFields, record.Row{"name": "Orphan"}, IntentAuto)
	require.NoError(t, err)

	// A second begin force-closes the first session and reverts its work.
	second := beginTestSession(t, m, 1)
	assert.NotEqual(t, first.ID, second.ID)

	stored, err := st.GetCheckpoint(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusRolledBack, stored.Status)

	_, err = st.GetRow(ctx, record.TableFields, res.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCommitMakesChangesPermanent(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	beginTestSession(t, m, 1)
	res, err := capture.Save(ctx, "save_object", record.TableObjects, record.Row{"name": "Invoice"}, IntentAuto)
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx))

	// Committed work survives later sessions rolling back.
	beginTestSession(t, m, 1)
	require.NoError(t, m.Rollback(ctx))

	row, err := st.GetRow(ctx, record.TableObjects, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Invoice", row.Name())
}

func TestRollbackRevertsMixedOperations(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	// Pre-session state: one field that will be updated, one to be deleted.
	updateID, err := st.InsertRow(ctx, record.TableFields, record.Row{"name": "Status", "objectid": int64(3)})
	require.NoError(t, err)
	deleteID, err := st.InsertRow(ctx, record.TableFields, record.Row{"name": "Legacy", "objectid": int64(3)})
	require.NoError(t, err)

	beginTestSession(t, m, 3)

	inserted, err := capture.Save(ctx, "save_fields", record.TableFields, record.Row{"name": "Phone", "objectid": int64(3)}, IntentAuto)
	require.NoError(t, err)
	assert.Equal(t, record.OpInsert, inserted.Operation)

	updated, err := capture.Save(ctx, "save_fields", record.TableFields, record.Row{"name": "Status", "objectid": int64(3), "required": true}, IntentAuto)
	require.NoError(t, err)
	assert.Equal(t, record.OpUpdate, updated.Operation)
	assert.Equal(t, updateID, updated.ID)

	require.NoError(t, capture.Delete(ctx, "delete_field", record.TableFields, deleteID))

	require.NoError(t, m.Rollback(ctx))

	// Insert reverted: row gone.
	_, err = st.GetRow(ctx, record.TableFields, inserted.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// Update reverted: original payload back.
	row, err := st.GetRow(ctx, record.TableFields, updateID)
	require.NoError(t, err)
	_, hasRequired := row["required"]
	assert.False(t, hasRequired)

	// Delete reverted: row re-inserted under its original id.
	row, err = st.GetRow(ctx, record.TableFields, deleteID)
	require.NoError(t, err)
	assert.Equal(t, "Legacy", row.Name())
}

func TestDeleteCheckpoint(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	cp := beginTestSession(t, m, 1)
	res, err := capture.Save(ctx, "save_fields", record.TableFields, record.Row{"name": "Kept"}, IntentAuto)
	require.NoError(t, err)

	// Deleting the active checkpoint clears the session but reverts nothing.
	require.NoError(t, m.DeleteCheckpoint(ctx, cp.ID))

	_, ok := m.ActiveContext()
	assert.False(t, ok)

	row, err := st.GetRow(ctx, record.TableFields, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kept", row.Name())

	count, err := st.CountEntriesForScope(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count, "undo entries cascade with their checkpoint")
}

func TestDeleteCheckpointNotFound(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.DeleteCheckpoint(context.Background(), "ghost")
	assert.True(t, IsNotFound(err))
}

func TestDeleteAllCheckpoints(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	beginTestSession(t, m, 1)
	require.NoError(t, m.Commit(ctx))
	beginTestSession(t, m, 1)
	require.NoError(t, m.Commit(ctx))
	beginTestSession(t, m, 2)
	require.NoError(t, m.Commit(ctx))

	count, err := m.DeleteAllCheckpoints(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	remaining, err := m.CheckpointHistory(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(2), remaining[0].ScopeID)
}

func TestStatusSummary(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, source := range []record.Source{record.SourceLLM, record.SourceLLM, record.SourceMCP} {
		_, err := m.Begin(ctx, BeginParams{ScopeID: 1, Description: "s", Source: source})
		require.NoError(t, err)
		require.NoError(t, m.Commit(ctx))
	}
	cp := beginTestSession(t, m, 1) // stays active, SourceAPI

	active, activeCheckpoints, summary, err := m.Status(ctx, 1, 0)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, cp.ID, active.ID)
	require.Len(t, activeCheckpoints, 1)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.BySource[record.SourceLLM])
	assert.Equal(t, 1, summary.BySource[record.SourceMCP])
	assert.Equal(t, 1, summary.BySource[record.SourceAPI])
}

func TestResumeActive(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	first, err := NewManager(st, st,
		WithIDGenerator(NewFixedGenerator("cp-01")),
		WithTimeSource(testutil.NewDeterministicClock(testEpoch, time.Second)),
	)
	require.NoError(t, err)
	cp, err := first.Begin(ctx, BeginParams{ScopeID: 5, Description: "left open", Source: record.SourceAPI})
	require.NoError(t, err)

	// A fresh manager over the same store, as a new CLI process would build.
	second, err := NewManager(st, st)
	require.NoError(t, err)

	resumed, err := second.ResumeActive(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)

	sess, ok := second.ActiveContext()
	require.True(t, ok)
	assert.Equal(t, cp.ID, sess.CheckpointID)
	assert.Equal(t, int64(5), sess.ScopeID)

	require.NoError(t, second.Commit(ctx))
}

func TestResumeActiveNothingToResume(t *testing.T) {
	m, _ := newTestManager(t)

	resumed, err := m.ResumeActive(context.Background())
	require.NoError(t, err)
	assert.False(t, resumed)
}
