package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rowanvale/savepoint/internal/record"
)

// Intent declares what a save call means. Explicit intent from the caller is
// preferred; IntentAuto falls back to the natural-key probe (name + owning
// scope) and is kept for callers that genuinely don't know whether the row
// exists. A probe race - another writer inserting the same natural key
// between probe and execute - surfaces as a constraint error from the
// underlying mutation, never as a corrupted undo entry.
type Intent string

const (
	IntentAuto   Intent = "auto"
	IntentInsert Intent = "insert"
	IntentUpdate Intent = "update"
)

// Capture wraps entity mutations so that every insert/update/delete
// performed while a session is open is snapshotted into the undo log.
//
// Ordering is strict and synchronous with the wrapped call: pre-state is
// read before the mutation executes, the log append happens after it
// succeeds. Capture failures degrade reversibility (logged, has_gaps set)
// but never block the primary mutation.
type Capture struct {
	m *Manager
}

// NewCapture creates the capture wrapper bound to a session manager.
func NewCapture(m *Manager) *Capture {
	return &Capture{m: m}
}

// SaveResult reports what a wrapped save actually did to one row.
type SaveResult struct {
	ID        int64
	Operation record.Operation
}

// Save executes a single-row save through capture. With no open session the
// underlying mutation runs unmodified. Otherwise the row's pre-state is
// snapshotted, the mutation executes, and an undo entry is appended using
// the id the operation actually produced - never a caller-supplied guess.
func (c *Capture) Save(ctx context.Context, tool, table string, row record.Row, intent Intent) (SaveResult, error) {
	sess, active := c.m.ActiveContext()

	res, entry, err := c.saveOne(ctx, sess, active, tool, table, row, intent)
	if err != nil {
		return SaveResult{}, err
	}

	if active {
		if entry != nil {
			c.appendEntry(ctx, sess, tool, *entry)
		}
		c.recordTool(ctx, sess, tool)
	}

	return res, nil
}

// SaveMany executes a batch save through capture, one undo entry per row,
// preserving input order. The tool name is recorded once for the batch.
// A row failure aborts the remainder; rows already written stay captured.
func (c *Capture) SaveMany(ctx context.Context, tool, table string, rows []record.Row, intent Intent) ([]SaveResult, error) {
	sess, active := c.m.ActiveContext()

	results := make([]SaveResult, 0, len(rows))
	for i, row := range rows {
		res, entry, err := c.saveOne(ctx, sess, active, tool, table, row, intent)
		if err != nil {
			return results, fmt.Errorf("batch save row %d: %w", i, err)
		}
		if active && entry != nil {
			c.appendEntry(ctx, sess, tool, *entry)
		}
		results = append(results, res)
	}

	if active {
		c.recordTool(ctx, sess, tool)
	}

	return results, nil
}

// Delete executes a row deletion through capture. The row is snapshotted
// immediately before deletion so rollback can re-insert it verbatim.
func (c *Capture) Delete(ctx context.Context, tool, table string, id int64) error {
	sess, active := c.m.ActiveContext()

	var snapshot record.Row
	if active {
		prev, err := c.m.entities.GetRow(ctx, table, id)
		switch {
		case err == nil:
			snapshot = prev
		case errors.Is(err, sql.ErrNoRows):
			// Row doesn't exist; let the delete itself report that.
		default:
			c.captureFailed(ctx, sess, &CaptureError{
				Code: CaptureCodeSnapshot, Tool: tool, Table: table, Err: err,
			})
		}
	}

	if err := c.m.entities.DeleteRow(ctx, table, id); err != nil {
		return err
	}

	if active {
		if snapshot != nil {
			c.appendEntry(ctx, sess, tool, record.UndoLogEntry{
				CheckpointID: sess.CheckpointID,
				Operation:    record.OpDelete,
				TableName:    table,
				PrimaryKey:   record.PrimaryKey{ID: id},
				PreviousData: snapshot,
			})
		} else {
			// Deleted without a snapshot: this change is unreversible.
			c.captureFailed(ctx, sess, &CaptureError{
				Code: CaptureCodeSnapshot, Tool: tool, Table: table,
				Err: fmt.Errorf("row %d deleted without pre-state snapshot", id),
			})
		}
		c.recordTool(ctx, sess, tool)
	}

	return nil
}

// saveOne resolves a save to insert-or-update, executes it, and returns the
// undo entry to append (nil when capture could not produce one).
func (c *Capture) saveOne(ctx context.Context, sess SessionContext, active bool, tool, table string, row record.Row, intent Intent) (SaveResult, *record.UndoLogEntry, error) {
	op, existingID, snapshot := c.resolve(ctx, sess, active, tool, table, row, intent)

	switch op {
	case record.OpUpdate:
		if err := c.m.entities.UpdateRow(ctx, table, existingID, row); err != nil {
			return SaveResult{}, nil, fmt.Errorf("update %s/%d: %w", table, existingID, err)
		}
		res := SaveResult{ID: existingID, Operation: record.OpUpdate}
		if !active || snapshot == nil {
			// No snapshot means reversibility for this row is already gone;
			// resolve reported the gap.
			return res, nil, nil
		}
		return res, &record.UndoLogEntry{
			CheckpointID: sess.CheckpointID,
			Operation:    record.OpUpdate,
			TableName:    table,
			PrimaryKey:   record.PrimaryKey{ID: existingID},
			PreviousData: snapshot,
		}, nil

	default: // insert
		id, err := c.m.entities.InsertRow(ctx, table, row)
		if err != nil {
			return SaveResult{}, nil, fmt.Errorf("insert into %s: %w", table, err)
		}
		res := SaveResult{ID: id, Operation: record.OpInsert}
		if !active {
			return res, nil, nil
		}
		// The primary key comes from the executed insert, not the input row.
		return res, &record.UndoLogEntry{
			CheckpointID: sess.CheckpointID,
			Operation:    record.OpInsert,
			TableName:    table,
			PrimaryKey:   record.PrimaryKey{ID: id},
		}, nil
	}
}

// resolve decides whether a save is logically an insert or an update and,
// when a session is active, captures the pre-state snapshot for updates.
//
// An explicit row id means update. Otherwise IntentInsert skips the probe,
// and IntentUpdate/IntentAuto probe the store by natural key (name plus the
// session's scope as owning object). A failed probe or snapshot read marks
// the checkpoint gapped and falls back to the insert path, keeping the
// mutation alive at the cost of reversibility for this one row.
func (c *Capture) resolve(ctx context.Context, sess SessionContext, active bool, tool, table string, row record.Row, intent Intent) (record.Operation, int64, record.Row) {
	if id, ok := row.ID(); ok && id != 0 {
		var snapshot record.Row
		if active {
			prev, err := c.m.entities.GetRow(ctx, table, id)
			switch {
			case err == nil:
				snapshot = prev
			case errors.Is(err, sql.ErrNoRows):
				// Let UpdateRow surface the missing row to the caller.
			default:
				c.captureFailed(ctx, sess, &CaptureError{
					Code: CaptureCodeSnapshot, Tool: tool, Table: table, Err: err,
				})
			}
		}
		return record.OpUpdate, id, snapshot
	}

	if intent == IntentInsert {
		return record.OpInsert, 0, nil
	}

	name := row.Name()
	if name == "" {
		return record.OpInsert, 0, nil
	}

	objectID, _ := row.ObjectID()
	if objectID == 0 && active {
		objectID = sess.ScopeID
	}

	existing, err := c.m.entities.FindRowByName(ctx, table, name, objectID)
	switch {
	case err == nil:
		if id, ok := existing.ID(); ok {
			return record.OpUpdate, id, existing
		}
		// A stored row without an id in its snapshot is unusable as an
		// update target; fall through to insert and flag the gap.
		if active {
			c.captureFailed(ctx, sess, &CaptureError{
				Code: CaptureCodeSnapshot, Tool: tool, Table: table,
				Err: fmt.Errorf("probe hit for %q has no id", name),
			})
		}
		return record.OpInsert, 0, nil
	case errors.Is(err, sql.ErrNoRows):
		return record.OpInsert, 0, nil
	default:
		if active {
			c.captureFailed(ctx, sess, &CaptureError{
				Code: CaptureCodeSnapshot, Tool: tool, Table: table, Err: err,
			})
		}
		return record.OpInsert, 0, nil
	}
}

// appendEntry stamps and persists an undo entry. Append failures happen
// after the mutation already executed, so they cannot be returned to the
// mutating caller - they are surfaced as gaps instead.
func (c *Capture) appendEntry(ctx context.Context, sess SessionContext, tool string, entry record.UndoLogEntry) {
	entry.CreatedAt = c.m.clock.Now()
	entry.Seq = c.m.seq.Next()

	if err := c.m.store.AppendUndoEntry(ctx, entry); err != nil {
		c.captureFailed(ctx, sess, &CaptureError{
			Code: CaptureCodeAppend, Tool: tool, Table: entry.TableName, Err: err,
		})
	}
}

// captureFailed surfaces a degraded-reversibility event: logged loudly and
// flagged on the checkpoint so operators can detect it, never silently
// swallowed, and never fatal to the wrapped mutation.
func (c *Capture) captureFailed(ctx context.Context, sess SessionContext, capErr *CaptureError) {
	slog.Error("mutation capture failed, checkpoint reversibility degraded",
		"checkpoint_id", sess.CheckpointID,
		"tool", capErr.Tool,
		"table", capErr.Table,
		"code", string(capErr.Code),
		"error", capErr.Err)

	if err := c.m.store.MarkCheckpointGap(ctx, sess.CheckpointID); err != nil {
		slog.Error("failed to flag checkpoint gap",
			"checkpoint_id", sess.CheckpointID, "error", err)
	}
}

// recordTool appends the tool name to the active checkpoint's executed list.
// Metadata only - a failure here is logged but doesn't affect reversibility.
func (c *Capture) recordTool(ctx context.Context, sess SessionContext, tool string) {
	if err := c.m.store.AppendToolExecuted(ctx, sess.CheckpointID, tool); err != nil {
		slog.Warn("failed to record executed tool",
			"checkpoint_id", sess.CheckpointID, "tool", tool, "error", err)
	}
}
