package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanvale/savepoint/internal/engine"
	"github.com/rowanvale/savepoint/internal/record"
	"github.com/rowanvale/savepoint/internal/store"
	"github.com/rowanvale/savepoint/internal/testutil"
)

func newTestEnv(t *testing.T) (*store.Store, *engine.Manager, *engine.Capture) {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("cp-%02d", i+1)
	}

	m, err := engine.NewManager(st, st,
		engine.WithIDGenerator(engine.NewFixedGenerator(ids...)),
		engine.WithTimeSource(testutil.NewDeterministicClock(
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)),
	)
	require.NoError(t, err)

	return st, m, engine.NewCapture(m)
}

func begin(t *testing.T, m *engine.Manager, scopeID int64, description string, source record.Source) record.Checkpoint {
	t.Helper()
	cp, err := m.Begin(context.Background(), engine.BeginParams{
		ScopeID:     scopeID,
		Description: description,
		Source:      source,
	})
	require.NoError(t, err)
	return cp
}

func TestHistoryWithChangesNewestFirst(t *testing.T) {
	st, m, capture := newTestEnv(t)
	ctx := context.Background()
	p := NewProjector(st)

	first := begin(t, m, 1, "first", record.SourceAPI)
	_, err := capture.Save(ctx, "save_object", record.TableObjects, record.Row{"name": "Invoice"}, engine.IntentAuto)
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx))

	second := begin(t, m, 1, "second", record.SourceLLM)
	_, err = capture.Save(ctx, "save_object", record.TableObjects, record.Row{"name": "Contact"}, engine.IntentAuto)
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx))

	got, err := p.HistoryWithChanges(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)

	require.Len(t, got[0].UpdatedRules, 1)
	assert.Equal(t, "Contact", got[0].UpdatedRules[0].Name)
	assert.Equal(t, "Create", got[0].UpdatedRules[0].Operation)
	assert.Equal(t, record.SourceLLM, got[0].UpdatedRules[0].CheckpointSource)
}

func TestHistoryDedupesRepeatedTouches(t *testing.T) {
	st, m, capture := newTestEnv(t)
	ctx := context.Background()
	p := NewProjector(st)

	begin(t, m, 3, "rework", record.SourceAPI)

	res, err := capture.Save(ctx, "save_fields", record.TableFields,
		record.Row{"name": "Phone", "objectid": int64(3)}, engine.IntentAuto)
	require.NoError(t, err)

	// Touch the same row twice more within the checkpoint.
	for i := 0; i < 2; i++ {
		_, err = capture.Save(ctx, "save_fields", record.TableFields,
			record.Row{"id": res.ID, "name": "Phone", "objectid": int64(3)}, engine.IntentAuto)
		require.NoError(t, err)
	}
	require.NoError(t, m.Commit(ctx))

	got, err := p.HistoryWithChanges(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].UpdatedRules, 1, "three touches of one row collapse to one line")
	assert.Equal(t, "Update", got[0].UpdatedRules[0].Operation, "most recent touch wins")
}

func TestHistoryDeleteResolvesNameFromSnapshot(t *testing.T) {
	st, m, capture := newTestEnv(t)
	ctx := context.Background()
	p := NewProjector(st)

	id, err := st.InsertRow(ctx, record.TableViews, record.Row{"name": "Invoice List", "objectid": int64(4)})
	require.NoError(t, err)

	begin(t, m, 4, "cleanup", record.SourceMCP)
	require.NoError(t, capture.Delete(ctx, "delete_view", record.TableViews, id))
	require.NoError(t, m.Commit(ctx))

	got, err := p.HistoryWithChanges(ctx, 4, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].UpdatedRules, 1)

	change := got[0].UpdatedRules[0]
	assert.Equal(t, "Delete", change.Operation)
	assert.Equal(t, "Invoice List", change.Name, "deleted rows resolve from previous_data")
	assert.Equal(t, record.KindView, change.Type)
}

func TestHistoryDropsUnresolvableChanges(t *testing.T) {
	st, m, capture := newTestEnv(t)
	ctx := context.Background()
	p := NewProjector(st)

	begin(t, m, 1, "session", record.SourceAPI)
	res, err := capture.Save(ctx, "save_fields", record.TableFields, record.Row{"name": "Doomed"}, engine.IntentAuto)
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx))

	// The row vanishes outside any session; its name can no longer resolve.
	require.NoError(t, st.DeleteRow(ctx, record.TableFields, res.ID))

	got, err := p.HistoryWithChanges(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].UpdatedRules)
}

func TestHistoryEmptyScope(t *testing.T) {
	st, _, _ := newTestEnv(t)

	got, err := NewProjector(st).HistoryWithChanges(context.Background(), 42, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
