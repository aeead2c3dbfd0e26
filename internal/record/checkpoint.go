package record

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a checkpoint.
//
// Lifecycle: a checkpoint is created as StatusActive by a session begin,
// becomes StatusCommitted on commit, and StatusRolledBack on rollback or
// restore. Checkpoints may also be permanently deleted, which removes the
// record entirely rather than transitioning it.
type Status string

const (
	// StatusActive is the single open checkpoint accepting new undo-log entries.
	StatusActive Status = "active"

	// StatusCommitted marks a checkpoint whose mutations were kept.
	StatusCommitted Status = "committed"

	// StatusRolledBack marks a checkpoint whose mutations were reverted,
	// either by an explicit rollback or by a point-in-time restore.
	StatusRolledBack Status = "rolled_back"
)

// NormalizeStatus maps stored status strings to a canonical Status.
// Databases written by earlier builds used "historical" for committed
// checkpoints; both spellings are accepted on read.
func NormalizeStatus(s string) (Status, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "committed", "historical":
		return StatusCommitted, nil
	case "rolled_back":
		return StatusRolledBack, nil
	default:
		return "", fmt.Errorf("unknown checkpoint status %q", s)
	}
}

// Terminal reports whether the status is final. Only an active checkpoint
// can accept new undo-log entries or transition to another status.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Source identifies which caller class opened a checkpoint.
type Source string

const (
	SourceLLM Source = "LLM"
	SourceMCP Source = "MCP"
	SourceAPI Source = "API"
)

// ValidateSource checks that src is one of the known source values.
func ValidateSource(src Source) error {
	switch src {
	case SourceLLM, SourceMCP, SourceAPI:
		return nil
	default:
		return fmt.Errorf("invalid checkpoint source %q: must be LLM, MCP, or API", src)
	}
}

// Checkpoint is a named, time-bounded grouping of entity mutations.
//
// ScopeID is the owning object/workflow the checkpoint applies to.
// ApplicationID optionally widens the scope to an application spanning
// multiple objects (0 means unset).
//
// ToolsExecuted is the ordered list of tool names invoked while the
// checkpoint was active; it is append-only for an active checkpoint.
//
// HasGaps is set when a capture failure meant a mutation executed without a
// matching undo-log entry: the checkpoint still exists but can no longer
// guarantee exact reversibility.
type Checkpoint struct {
	ID            string
	ScopeID       int64
	ApplicationID int64
	Description   string
	UserCommand   string
	Source        Source
	Status        Status
	HasGaps       bool
	ToolsExecuted []string
	CreatedAt     time.Time
	FinishedAt    time.Time // zero until commit/rollback
}

// Operation is the kind of row mutation an undo-log entry reverses.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ValidateOperation checks that op is one of insert, update, delete.
func ValidateOperation(op Operation) error {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return nil
	default:
		return fmt.Errorf("invalid undo operation %q", op)
	}
}

// Inverse returns the operation that reverses op during replay:
// an insert is reversed by deleting the row, an update by writing the
// previous snapshot back, and a delete by re-inserting the snapshot.
func (op Operation) Inverse() Operation {
	switch op {
	case OpInsert:
		return OpDelete
	case OpDelete:
		return OpInsert
	default:
		return OpUpdate
	}
}

// UndoLogEntry is a single reversible mutation record owned by a checkpoint.
//
// PreviousData is the full row snapshot taken before the operation executed.
// It is nil for OpInsert (there is no before-state) and mandatory for
// OpUpdate and OpDelete.
//
// Seq is a per-process logical tiebreaker: entries created within the same
// timestamp replay in deterministic reverse order.
//
// Entries are immutable once written.
type UndoLogEntry struct {
	ID           int64
	CheckpointID string
	Operation    Operation
	TableName    string
	PrimaryKey   PrimaryKey
	PreviousData Row // nil for insert
	CreatedAt    time.Time
	Seq          int64
}

// Validate checks the entry's internal consistency before it is persisted.
func (e UndoLogEntry) Validate() error {
	if e.CheckpointID == "" {
		return fmt.Errorf("undo entry missing checkpoint id")
	}
	if err := ValidateOperation(e.Operation); err != nil {
		return err
	}
	if !KnownTable(e.TableName) {
		return fmt.Errorf("undo entry references unknown table %q", e.TableName)
	}
	if e.PrimaryKey.ID == 0 {
		return fmt.Errorf("undo entry missing primary key")
	}
	if e.Operation != OpInsert && e.PreviousData == nil {
		return fmt.Errorf("undo entry for %s requires previous data", e.Operation)
	}
	return nil
}
