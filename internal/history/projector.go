package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rowanvale/savepoint/internal/record"
	"github.com/rowanvale/savepoint/internal/store"
)

// RuleChange is one human-readable change line in a checkpoint summary.
// Derived per query, never persisted.
type RuleChange struct {
	ID                    int64           `json:"id"`
	Name                  string          `json:"name"`
	Type                  record.RuleKind `json:"type"`
	Category              record.Category `json:"category"`
	Operation             string          `json:"operation"` // Create | Update | Delete
	CheckpointID          string          `json:"checkpoint_id"`
	CheckpointDescription string          `json:"checkpoint_description"`
	CheckpointCreatedAt   time.Time       `json:"checkpoint_created_at"`
	CheckpointSource      record.Source   `json:"checkpoint_source"`

	// tableName and recency are kept for checkout grouping, not rendered.
	tableName string
	objectID  int64
	createdAt time.Time
	seq       int64
}

// CheckpointWithChanges augments a checkpoint with its resolved changes.
type CheckpointWithChanges struct {
	record.Checkpoint
	UpdatedRules []RuleChange `json:"updated_rules"`
}

// Projector builds change summaries from the store's read-side queries.
type Projector struct {
	store *store.Store
}

// NewProjector creates a projector over the given store.
func NewProjector(st *store.Store) *Projector {
	return &Projector{store: st}
}

// operationLabel maps undo operations to the verbs the UI shows.
func operationLabel(op record.Operation) string {
	switch op {
	case record.OpInsert:
		return "Create"
	case record.OpUpdate:
		return "Update"
	case record.OpDelete:
		return "Delete"
	default:
		return string(op)
	}
}

// HistoryWithChanges returns checkpoints for the scope, newest first, each
// augmented with de-duplicated change summaries.
//
// Within one checkpoint the same row may have been touched several times;
// only the most recent touch is reported. Entries whose display name cannot
// be resolved are dropped from the summary, not errored.
func (p *Projector) HistoryWithChanges(ctx context.Context, scopeID, applicationID int64) ([]CheckpointWithChanges, error) {
	checkpoints, err := p.store.ListCheckpoints(ctx, store.CheckpointFilter{
		ScopeID:       scopeID,
		ApplicationID: applicationID,
	})
	if err != nil {
		return nil, fmt.Errorf("history with changes: %w", err)
	}
	if len(checkpoints) == 0 {
		return []CheckpointWithChanges{}, nil
	}

	ids := make([]string, len(checkpoints))
	byID := make(map[string]record.Checkpoint, len(checkpoints))
	for i, cp := range checkpoints {
		ids[i] = cp.ID
		byID[cp.ID] = cp
	}

	entries, err := p.store.EntriesForCheckpoints(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("history with changes: %w", err)
	}

	current, err := p.fetchCurrentRows(ctx, entries)
	if err != nil {
		return nil, err
	}

	// Group entries per checkpoint, preserving the global recency order.
	grouped := make(map[string][]record.UndoLogEntry)
	for _, entry := range entries {
		grouped[entry.CheckpointID] = append(grouped[entry.CheckpointID], entry)
	}

	out := make([]CheckpointWithChanges, 0, len(checkpoints))
	for _, cp := range checkpoints {
		seen := make(map[rowKey]bool)
		changes := []RuleChange{}
		for _, entry := range grouped[cp.ID] {
			key := rowKey{entry.TableName, entry.PrimaryKey.ID}
			if seen[key] {
				continue // most recent touch already reported
			}
			change, ok := p.resolveChange(cp, entry, current)
			if !ok {
				continue
			}
			seen[key] = true
			changes = append(changes, change)
		}
		out = append(out, CheckpointWithChanges{Checkpoint: cp, UpdatedRules: changes})
	}

	return out, nil
}

// rowKey identifies one entity row across the aggregation.
type rowKey struct {
	table string
	id    int64
}

// fetchCurrentRows batch-loads the current rows every non-delete entry
// references - one query per table, not one per entry. Delete entries are
// excluded: their names come from previous_data.
func (p *Projector) fetchCurrentRows(ctx context.Context, entries []record.UndoLogEntry) (map[rowKey]record.Row, error) {
	wanted := make(map[string][]int64)
	seen := make(map[rowKey]bool)
	for _, entry := range entries {
		if entry.Operation == record.OpDelete {
			continue
		}
		key := rowKey{entry.TableName, entry.PrimaryKey.ID}
		if seen[key] {
			continue
		}
		seen[key] = true
		wanted[entry.TableName] = append(wanted[entry.TableName], entry.PrimaryKey.ID)
	}

	current := make(map[rowKey]record.Row)
	for table, rowIDs := range wanted {
		rows, err := p.store.RowsByIDs(ctx, table, rowIDs)
		if err != nil {
			return nil, fmt.Errorf("fetch current rows: %w", err)
		}
		for id, row := range rows {
			current[rowKey{table, id}] = row
		}
	}

	return current, nil
}

// resolveChange turns an undo entry into a display line. Returns false when
// the row's name cannot be resolved (row gone, snapshot nameless): such
// entries are dropped from summaries rather than errored.
func (p *Projector) resolveChange(cp record.Checkpoint, entry record.UndoLogEntry, current map[rowKey]record.Row) (RuleChange, bool) {
	var source record.Row
	if entry.Operation == record.OpDelete {
		source = entry.PreviousData
	} else {
		source = current[rowKey{entry.TableName, entry.PrimaryKey.ID}]
	}
	if source == nil {
		return RuleChange{}, false
	}

	name := source.Name()
	if name == "" {
		return RuleChange{}, false
	}

	objectID, _ := source.ObjectID()
	if entry.TableName == record.TableObjects {
		objectID = entry.PrimaryKey.ID
	}

	return RuleChange{
		ID:                    entry.PrimaryKey.ID,
		Name:                  name,
		Type:                  record.KindForTable(entry.TableName),
		Category:              record.CategoryForTable(entry.TableName),
		Operation:             operationLabel(entry.Operation),
		CheckpointID:          cp.ID,
		CheckpointDescription: cp.Description,
		CheckpointCreatedAt:   cp.CreatedAt,
		CheckpointSource:      cp.Source,
		tableName:             entry.TableName,
		objectID:              objectID,
		createdAt:             entry.CreatedAt,
		seq:                   entry.Seq,
	}, true
}
