package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the serialized form a scenario run is compared against.
// Map keys (entity state tables, row fields) serialize in sorted order, and
// the harness's fixed ids and stepping clock pin everything else, so the
// bytes are stable across runs.
type Snapshot struct {
	ScenarioName string  `json:"scenario_name"`
	Description  string  `json:"description"`
	Result       *Result `json:"result"`
}

// RunWithGolden executes a scenario and compares the full run snapshot
// (trace, projected history, final entity state) against
// testdata/golden/{name}.golden.
//
// To regenerate golden files:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	snapshot := Snapshot{
		ScenarioName: scenario.Name,
		Description:  scenario.Description,
		Result:       result,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
