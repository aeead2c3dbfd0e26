package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/rowanvale/savepoint/internal/engine"
	"github.com/rowanvale/savepoint/internal/history"
	"github.com/rowanvale/savepoint/internal/record"
	"github.com/rowanvale/savepoint/internal/store"
	"github.com/rowanvale/savepoint/internal/testutil"
	"github.com/rowanvale/savepoint/internal/tools"
)

// scenarioEpoch anchors every scenario's deterministic clock. Timestamps in
// golden files are offsets from this instant, one second per clock read.
var scenarioEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TraceEvent records one executed step for golden comparison.
type TraceEvent struct {
	Step       int                 `json:"step"`
	Kind       string              `json:"kind"` // begin | invoke | commit | rollback | restore
	Checkpoint string              `json:"checkpoint,omitempty"`
	Tool       string              `json:"tool,omitempty"`
	Saved      []engine.SaveResult `json:"saved,omitempty"`
	Reverted   int                 `json:"reverted,omitempty"` // restore: checkpoints reverted
	Entries    int                 `json:"entries,omitempty"`  // restore: undo entries replayed
	Error      string              `json:"error,omitempty"`    // expected failures only
}

// Result carries everything a scenario run produces: the step trace, the
// projected history, and the final entity state of the requested tables.
type Result struct {
	Trace   []TraceEvent                    `json:"trace"`
	History []history.CheckpointWithChanges `json:"history"`
	State   map[string][]record.Row         `json:"state"`
}

// Run executes a scenario against a fresh in-memory database.
//
// Determinism: checkpoint ids come from a FixedGenerator (cp-01, cp-02, ...
// in begin order) and timestamps from a stepping clock anchored at
// scenarioEpoch, so repeated runs produce identical traces.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	defer st.Close()

	begins := 0
	for _, step := range scenario.Steps {
		if step.Begin != nil {
			begins++
		}
	}
	ids := make([]string, begins)
	for i := range ids {
		ids[i] = fmt.Sprintf("cp-%02d", i+1)
	}

	clock := testutil.NewDeterministicClock(scenarioEpoch, time.Second)
	mgr, err := engine.NewManager(st, st,
		engine.WithIDGenerator(engine.NewFixedGenerator(ids...)),
		engine.WithTimeSource(clock),
	)
	if err != nil {
		return nil, fmt.Errorf("new manager: %w", err)
	}

	catalog := tools.NewCatalog(engine.NewCapture(mgr))
	ctx := context.Background()

	for i, seed := range scenario.Seed {
		for j, row := range seed.Rows {
			if _, err := st.InsertRow(ctx, seed.Table, row); err != nil {
				return nil, fmt.Errorf("seed[%d] row %d: %w", i, j, err)
			}
		}
	}

	result := &Result{Trace: []TraceEvent{}}
	var begunIDs []string

	for i, step := range scenario.Steps {
		event := TraceEvent{Step: i + 1}

		switch {
		case step.Begin != nil:
			source := record.Source(step.Begin.Source)
			if source == "" {
				source = record.SourceAPI
			}
			cp, err := mgr.Begin(ctx, engine.BeginParams{
				ScopeID:       step.Begin.Scope,
				ApplicationID: step.Begin.App,
				Description:   step.Begin.Description,
				UserCommand:   step.Begin.Command,
				Source:        source,
			})
			if err != nil {
				return nil, fmt.Errorf("steps[%d] begin: %w", i, err)
			}
			begunIDs = append(begunIDs, cp.ID)
			event.Kind = "begin"
			event.Checkpoint = cp.ID

		case step.Invoke != nil:
			res, err := catalog.Invoke(ctx, step.Invoke.Tool, tools.Invocation{
				Rows:   step.Invoke.Rows,
				RowID:  step.Invoke.ID,
				Intent: engine.Intent(step.Invoke.Intent),
			})
			event.Kind = "invoke"
			event.Tool = step.Invoke.Tool
			if err != nil {
				if !step.Invoke.ExpectError {
					return nil, fmt.Errorf("steps[%d] invoke %s: %w", i, step.Invoke.Tool, err)
				}
				event.Error = err.Error()
			} else {
				if step.Invoke.ExpectError {
					return nil, fmt.Errorf("steps[%d] invoke %s: expected an error, got none", i, step.Invoke.Tool)
				}
				event.Saved = res.Saved
			}

		case step.Commit:
			if err := mgr.Commit(ctx); err != nil {
				return nil, fmt.Errorf("steps[%d] commit: %w", i, err)
			}
			event.Kind = "commit"

		case step.Rollback:
			if err := mgr.Rollback(ctx); err != nil {
				return nil, fmt.Errorf("steps[%d] rollback: %w", i, err)
			}
			event.Kind = "rollback"

		case step.Restore != 0:
			target := begunIDs[step.Restore-1]
			checkpoints, entries, err := mgr.RestoreToCheckpoint(ctx, target)
			if err != nil {
				return nil, fmt.Errorf("steps[%d] restore %s: %w", i, target, err)
			}
			event.Kind = "restore"
			event.Checkpoint = target
			event.Reverted = checkpoints
			event.Entries = entries
		}

		result.Trace = append(result.Trace, event)
	}

	projector := history.NewProjector(st)
	result.History, err = projector.HistoryWithChanges(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("project history: %w", err)
	}

	tables := scenario.Tables
	if len(tables) == 0 {
		tables = record.Tables()
	}
	result.State = make(map[string][]record.Row)
	for _, table := range tables {
		rows, err := st.ListRows(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("dump table %s: %w", table, err)
		}
		if len(rows) > 0 || len(scenario.Tables) > 0 {
			result.State[table] = rows
		}
	}

	return result, nil
}
