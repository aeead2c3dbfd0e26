package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanvale/savepoint/internal/record"
)

// TestScenarioGoldens runs every scenario under testdata/scenarios and
// compares the full run snapshot against its golden file.
func TestScenarioGoldens(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, "loading %s", path)

		t.Run(scenario.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestRunDeleteRollbackRestoresRow(t *testing.T) {
	scenario := &Scenario{
		Name:        "delete-rollback",
		Description: "Rolling back a delete re-inserts the row under its original id.",
		Seed: []SeedTable{
			{Table: record.TableViews, Rows: []record.Row{
				{"name": "Invoice List", "objectid": int64(4)},
			}},
		},
		Steps: []Step{
			{Begin: &BeginStep{Scope: 4, Description: "Remove invoice list", Source: "MCP"}},
			{Invoke: &InvokeStep{Tool: "delete_view", ID: 1}},
			{Rollback: true},
		},
		Tables: []string{record.TableViews},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, "rollback", result.Trace[2].Kind)

	rows := result.State[record.TableViews]
	require.Len(t, rows, 1)
	id, ok := rows[0].ID()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "Invoice List", rows[0].Name())
}

func TestRunExpectErrorRecordsFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "delete-missing",
		Description: "Deleting a row that does not exist fails and is traced.",
		Steps: []Step{
			{Begin: &BeginStep{Scope: 2, Description: "Delete nothing", Source: "API"}},
			{Invoke: &InvokeStep{Tool: "delete_field", ID: 99, ExpectError: true}},
			{Rollback: true},
		},
		Tables: []string{record.TableFields},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	require.Len(t, result.Trace, 3)
	assert.NotEmpty(t, result.Trace[1].Error)
	assert.Empty(t, result.State[record.TableFields])
}

func TestRunUnexpectedErrorAborts(t *testing.T) {
	scenario := &Scenario{
		Name:        "delete-missing-unexpected",
		Description: "An unexpected tool failure aborts the scenario.",
		Steps: []Step{
			{Begin: &BeginStep{Scope: 2, Description: "Delete nothing", Source: "API"}},
			{Invoke: &InvokeStep{Tool: "delete_field", ID: 99}},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete_field")
}
