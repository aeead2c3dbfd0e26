// Package schema validates undo-log snapshots against the known entity
// table shapes before restore writes them back.
//
// The shapes live in tables.cue, compiled once at Validator construction.
// Validation treats a snapshot as untrusted input: the undo log is ordinary
// data that could have been written by an older build or damaged on disk,
// and reverse-applying a malformed row would corrupt the very state a
// restore is meant to repair.
package schema

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/rowanvale/savepoint/internal/record"
)

//go:embed tables.cue
var tablesCUE string

// Validator checks row snapshots against the entity table schemas.
//
// Thread-safety: a Validator is immutable after New and safe for concurrent
// use; cue.Value unification does not mutate the receiver.
type Validator struct {
	byTable map[string]cue.Value
	ctx     *cue.Context
}

// New compiles the embedded table schemas.
func New() (*Validator, error) {
	ctx := cuecontext.New()

	value := ctx.CompileString(tablesCUE)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile table schemas: %w", err)
	}

	tablesVal := value.LookupPath(cue.ParsePath("tables"))
	if err := tablesVal.Err(); err != nil {
		return nil, fmt.Errorf("lookup table schemas: %w", err)
	}

	v := &Validator{
		byTable: make(map[string]cue.Value),
		ctx:     ctx,
	}

	for _, table := range record.Tables() {
		schemaVal := tablesVal.LookupPath(cue.MakePath(cue.Str(table)))
		if err := schemaVal.Err(); err != nil {
			return nil, fmt.Errorf("schema for table %q: %w", table, err)
		}
		v.byTable[table] = schemaVal
	}

	return v, nil
}

// ValidateSnapshot checks that a snapshot row conforms to its table's shape.
// Returns nil for conforming rows; the error names the table and the CUE
// conflict otherwise.
func (v *Validator) ValidateSnapshot(table string, row record.Row) error {
	schemaVal, ok := v.byTable[table]
	if !ok {
		return fmt.Errorf("no schema for table %q", table)
	}
	if row == nil {
		return fmt.Errorf("validate snapshot for %q: nil row", table)
	}

	// JSON is a subset of CUE, so the marshaled row compiles directly.
	// Going through MarshalRow keeps json.Number values intact.
	data, err := record.MarshalRow(row)
	if err != nil {
		return fmt.Errorf("validate snapshot for %q: %w", table, err)
	}

	rowVal := v.ctx.CompileBytes(data)
	if err := rowVal.Err(); err != nil {
		return fmt.Errorf("validate snapshot for %q: %w", table, err)
	}

	unified := schemaVal.Unify(rowVal)
	if err := unified.Validate(cue.Final()); err != nil {
		return fmt.Errorf("snapshot does not match %q schema: %w", table, err)
	}

	return nil
}
