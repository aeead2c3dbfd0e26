package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanvale/savepoint/internal/record"
)

func TestSaveWithoutSessionSkipsCapture(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	res, err := capture.Save(ctx, "save_fields", record.TableFields, record.Row{"name": "Free"}, IntentAuto)
	require.NoError(t, err)
	assert.Equal(t, record.OpInsert, res.Operation)

	// The mutation executed, but no session means no undo entries.
	_, err = st.GetRow(ctx, record.TableFields, res.ID)
	require.NoError(t, err)

	count, err := st.CountEntriesForScope(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSaveExplicitIDIsUpdate(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	id, err := st.InsertRow(ctx, record.TableViews, record.Row{"name": "List", "objectid": int64(4)})
	require.NoError(t, err)

	cp := beginTestSession(t, m, 4)

	res, err := capture.Save(ctx, "save_view", record.TableViews,
		record.Row{"id": id, "name": "Detail", "objectid": int64(4)}, IntentAuto)
	require.NoError(t, err)
	assert.Equal(t, record.OpUpdate, res.Operation)
	assert.Equal(t, id, res.ID)

	entries, err := st.EntriesForCheckpoints(ctx, []string{cp.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, record.OpUpdate, entries[0].Operation)
	assert.Equal(t, "List", entries[0].PreviousData.Name(), "snapshot is the pre-update state")
}

func TestSaveExplicitIDMissingRowFails(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	beginTestSession(t, m, 1)

	_, err := capture.Save(ctx, "save_view", record.TableViews,
		record.Row{"id": int64(99), "name": "Ghost"}, IntentAuto)
	assert.Error(t, err)
}

func TestSaveProbeResolvesUpsert(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	beginTestSession(t, m, 3)

	// First save: no row named Phone exists, so this inserts.
	first, err := capture.Save(ctx, "save_fields", record.TableFields,
		record.Row{"name": "Phone", "objectid": int64(3)}, IntentAuto)
	require.NoError(t, err)
	assert.Equal(t, record.OpInsert, first.Operation)

	// Second save of the same natural key resolves to an update.
	second, err := capture.Save(ctx, "save_fields", record.TableFields,
		record.Row{"name": "Phone", "objectid": int64(3), "required": true}, IntentAuto)
	require.NoError(t, err)
	assert.Equal(t, record.OpUpdate, second.Operation)
	assert.Equal(t, first.ID, second.ID)

	rows, err := st.ListRows(ctx, record.TableFields)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "upsert must not duplicate the row")
}

func TestSaveIntentInsertSkipsProbe(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	beginTestSession(t, m, 3)

	for i := 0; i < 2; i++ {
		_, err := capture.Save(ctx, "save_fields", record.TableFields,
			record.Row{"name": "Phone", "objectid": int64(3)}, IntentInsert)
		require.NoError(t, err)
	}

	rows, err := st.ListRows(ctx, record.TableFields)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "explicit insert intent bypasses the upsert probe")
}

func TestSaveProbeDefaultsToSessionScope(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	// Same name under two owners; only the session scope's row should match.
	inScope, err := st.InsertRow(ctx, record.TableFields, record.Row{"name": "Status", "objectid": int64(3)})
	require.NoError(t, err)
	_, err = st.InsertRow(ctx, record.TableFields, record.Row{"name": "Status", "objectid": int64(8)})
	require.NoError(t, err)

	beginTestSession(t, m, 3)

	res, err := capture.Save(ctx, "save_fields", record.TableFields,
		record.Row{"name": "Status", "required": true}, IntentAuto)
	require.NoError(t, err)
	assert.Equal(t, record.OpUpdate, res.Operation)
	assert.Equal(t, inScope, res.ID)
}

func TestSaveManyAppendsInOrder(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	cp := beginTestSession(t, m, 3)

	results, err := capture.SaveMany(ctx, "save_fields", record.TableFields, []record.Row{
		{"name": "A", "objectid": int64(3)},
		{"name": "B", "objectid": int64(3)},
		{"name": "C", "objectid": int64(3)},
	}, IntentAuto)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Entries come back most-recent-first: C, B, A.
	entries, err := st.EntriesForCheckpoints(ctx, []string{cp.ID})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, results[2].ID, entries[0].PrimaryKey.ID)
	assert.Equal(t, results[0].ID, entries[2].PrimaryKey.ID)
	assert.Greater(t, entries[0].Seq, entries[2].Seq)

	// The batch tool is recorded once, not per row.
	stored, err := st.GetCheckpoint(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"save_fields"}, stored.ToolsExecuted)
}

func TestDeleteCapturesSnapshot(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	id, err := st.InsertRow(ctx, record.TableThemes, record.Row{"name": "Dark"})
	require.NoError(t, err)

	cp := beginTestSession(t, m, 1)
	require.NoError(t, capture.Delete(ctx, "delete_theme", record.TableThemes, id))

	entries, err := st.EntriesForCheckpoints(ctx, []string{cp.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, record.OpDelete, entries[0].Operation)
	assert.Equal(t, "Dark", entries[0].PreviousData.Name())
}

func TestDeleteMissingRowFailsWithoutGap(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	capture := NewCapture(m)

	cp := beginTestSession(t, m, 1)

	err := capture.Delete(ctx, "delete_theme", record.TableThemes, 99)
	assert.Error(t, err)

	// The delete itself failed, so reversibility is intact.
	stored, err := st.GetCheckpoint(ctx, cp.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasGaps)
}

// faultyEntities wraps a real entity store but fails pre-state reads,
// simulating a storage hiccup between mutation and capture.
type faultyEntities struct {
	EntityStore
}

func (f faultyEntities) GetRow(ctx context.Context, table string, id int64) (record.Row, error) {
	return nil, fmt.Errorf("simulated read failure")
}

func TestSnapshotFailureGapsCheckpointButMutationProceeds(t *testing.T) {
	_, st := newTestManager(t)
	ctx := context.Background()

	id, err := st.InsertRow(ctx, record.TableFields, record.Row{"name": "Status", "objectid": int64(3)})
	require.NoError(t, err)

	faulty, err := NewManager(st, faultyEntities{EntityStore: st},
		WithIDGenerator(NewFixedGenerator("cp-gap")),
	)
	require.NoError(t, err)
	capture := NewCapture(faulty)

	cp, err := faulty.Begin(ctx, BeginParams{ScopeID: 3, Description: "gapped", Source: record.SourceAPI})
	require.NoError(t, err)

	res, err := capture.Save(ctx, "save_fields", record.TableFields,
		record.Row{"id": id, "name": "Status", "required": true}, IntentAuto)
	require.NoError(t, err, "capture failure must never block the mutation")
	assert.Equal(t, record.OpUpdate, res.Operation)

	row, err := st.GetRow(ctx, record.TableFields, id)
	require.NoError(t, err)
	_, hasRequired := row["required"]
	assert.True(t, hasRequired, "the update executed")

	stored, err := st.GetCheckpoint(ctx, cp.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasGaps)

	entries, err := st.EntriesForCheckpoints(ctx, []string{cp.ID})
	require.NoError(t, err)
	assert.Empty(t, entries, "no entry without a trustworthy snapshot")
}
