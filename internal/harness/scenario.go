package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rowanvale/savepoint/internal/record"
)

// Scenario defines a checkpoint conformance scenario: optional seed rows,
// a sequence of session steps, and the tables whose final state the trace
// should capture.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed inserts rows before any checkpoint opens. Seeded rows are
	// pre-session state: reverting a checkpoint never removes them.
	Seed []SeedTable `yaml:"seed,omitempty"`

	// Steps is the session script, executed in order.
	Steps []Step `yaml:"steps"`

	// Tables lists the entity tables to dump into the final-state section
	// of the trace. Empty means every table an invoke step touched.
	Tables []string `yaml:"tables,omitempty"`
}

// SeedTable holds initial rows for one entity table.
type SeedTable struct {
	Table string       `yaml:"table"`
	Rows  []record.Row `yaml:"rows"`
}

// Step is a tagged union: exactly one of its fields may be set.
type Step struct {
	// Begin opens a checkpoint session.
	Begin *BeginStep `yaml:"begin,omitempty"`

	// Invoke runs a catalog tool under the active session.
	Invoke *InvokeStep `yaml:"invoke,omitempty"`

	// Commit closes the active session, keeping its changes.
	Commit bool `yaml:"commit,omitempty"`

	// Rollback reverts and closes the active session.
	Rollback bool `yaml:"rollback,omitempty"`

	// Restore reverts to before the Nth begun checkpoint (1-based ordinal
	// within this scenario), inclusive of that checkpoint's own changes.
	Restore int `yaml:"restore,omitempty"`
}

// BeginStep carries the provenance for a new checkpoint.
type BeginStep struct {
	Scope       int64  `yaml:"scope"`
	App         int64  `yaml:"app,omitempty"`
	Description string `yaml:"description"`
	Command     string `yaml:"command,omitempty"`
	Source      string `yaml:"source,omitempty"` // defaults to API
}

// InvokeStep runs one catalog tool.
type InvokeStep struct {
	// Tool is the catalog tool name (e.g. "save_fields", "delete_view").
	Tool string `yaml:"tool"`

	// Rows are the row payloads for save tools.
	Rows []record.Row `yaml:"rows,omitempty"`

	// ID is the target row id for delete tools.
	ID int64 `yaml:"id,omitempty"`

	// Intent overrides upsert resolution: "insert" or "update".
	Intent string `yaml:"intent,omitempty"`

	// ExpectError marks a step whose tool call must fail. The error is
	// recorded in the trace instead of aborting the scenario.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo like "step:" fails loudly instead of silently running
// an empty scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, seed := range s.Seed {
		if !record.KnownTable(seed.Table) {
			return fmt.Errorf("seed[%d]: unknown table %q", i, seed.Table)
		}
		if len(seed.Rows) == 0 {
			return fmt.Errorf("seed[%d]: rows is required", i)
		}
	}

	begun := 0
	for i, step := range s.Steps {
		set := 0
		if step.Begin != nil {
			set++
			begun++
			if step.Begin.Scope == 0 {
				return fmt.Errorf("steps[%d].begin: scope is required", i)
			}
			if step.Begin.Description == "" {
				return fmt.Errorf("steps[%d].begin: description is required", i)
			}
		}
		if step.Invoke != nil {
			set++
			if step.Invoke.Tool == "" {
				return fmt.Errorf("steps[%d].invoke: tool is required", i)
			}
		}
		if step.Commit {
			set++
		}
		if step.Rollback {
			set++
		}
		if step.Restore != 0 {
			set++
			if step.Restore < 0 || step.Restore > begun {
				return fmt.Errorf("steps[%d].restore: ordinal %d does not name a begun checkpoint", i, step.Restore)
			}
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of begin/invoke/commit/rollback/restore is required", i)
		}
	}

	for i, table := range s.Tables {
		if !record.KnownTable(table) {
			return fmt.Errorf("tables[%d]: unknown table %q", i, table)
		}
	}

	return nil
}
