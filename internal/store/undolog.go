package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rowanvale/savepoint/internal/record"
)

// AppendUndoEntry appends one reversible-mutation record to the undo log.
// Entries are immutable once written; there is no update path.
func (s *Store) AppendUndoEntry(ctx context.Context, entry record.UndoLogEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("append undo entry: %w", err)
	}

	pkJSON, err := record.MarshalPrimaryKey(entry.PrimaryKey)
	if err != nil {
		return fmt.Errorf("append undo entry: %w", err)
	}

	var prevJSON any
	if entry.PreviousData != nil {
		data, err := record.MarshalRow(entry.PreviousData)
		if err != nil {
			return fmt.Errorf("append undo entry: %w", err)
		}
		prevJSON = string(data)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO undo_log
		(checkpoint_id, operation, table_name, primary_key, previous_data, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.CheckpointID,
		string(entry.Operation),
		entry.TableName,
		string(pkJSON),
		prevJSON,
		formatTime(entry.CreatedAt),
		entry.Seq,
	)
	if err != nil {
		return fmt.Errorf("append undo entry: %w", err)
	}

	return nil
}

// EntriesForCheckpoints returns every undo-log entry owned by the given
// checkpoints in one query, ordered most-recent-first across all of them
// (created_at DESC, seq DESC). This global reverse-chronological order is
// what rollback and restore replay.
//
// Returns an empty slice (not nil) when no entries exist.
func (s *Store) EntriesForCheckpoints(ctx context.Context, checkpointIDs []string) ([]record.UndoLogEntry, error) {
	if len(checkpointIDs) == 0 {
		return []record.UndoLogEntry{}, nil
	}

	placeholders, args := inPlaceholders(checkpointIDs)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checkpoint_id, operation, table_name, primary_key, previous_data, created_at, seq
		FROM undo_log
		WHERE checkpoint_id IN (`+placeholders+`)
		ORDER BY created_at DESC, seq DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query undo entries: %w", err)
	}
	defer rows.Close()

	var entries []record.UndoLogEntry
	for rows.Next() {
		entry, err := scanUndoEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate undo entries: %w", err)
	}

	if entries == nil {
		entries = []record.UndoLogEntry{}
	}

	return entries, nil
}

// CountEntriesForScope returns the number of undo-log entries whose owning
// checkpoint belongs to the scope. Used by cascade-delete tests and the
// status summary.
func (s *Store) CountEntriesForScope(ctx context.Context, scopeID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM undo_log u
		JOIN checkpoints c ON u.checkpoint_id = c.id
		WHERE c.scope_id = ?
	`, scopeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count undo entries for scope: %w", err)
	}
	return count, nil
}

// scanUndoEntry scans a row into an UndoLogEntry.
//
// A malformed primary_key or previous_data payload is reported as an error
// rather than skipped: a row that cannot be decoded cannot be reversed, and
// callers decide whether that degrades or aborts their operation.
func scanUndoEntry(rows *sql.Rows) (record.UndoLogEntry, error) {
	var entry record.UndoLogEntry
	var operation, pkJSON, createdAt string
	var prevJSON sql.NullString

	if err := rows.Scan(
		&entry.ID, &entry.CheckpointID, &operation, &entry.TableName,
		&pkJSON, &prevJSON, &createdAt, &entry.Seq,
	); err != nil {
		return record.UndoLogEntry{}, fmt.Errorf("scan undo entry: %w", err)
	}

	entry.Operation = record.Operation(operation)

	pk, err := record.UnmarshalPrimaryKey([]byte(pkJSON))
	if err != nil {
		return record.UndoLogEntry{}, fmt.Errorf("undo entry %d: %w", entry.ID, err)
	}
	entry.PrimaryKey = pk

	if prevJSON.Valid {
		prev, err := record.UnmarshalRow([]byte(prevJSON.String))
		if err != nil {
			return record.UndoLogEntry{}, fmt.Errorf("undo entry %d: %w", entry.ID, err)
		}
		entry.PreviousData = prev
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return record.UndoLogEntry{}, fmt.Errorf("undo entry %d: %w", entry.ID, err)
	}
	entry.CreatedAt = created

	return entry, nil
}
