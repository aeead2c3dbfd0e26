package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rowanvale/savepoint/internal/record"
)

// CheckpointFilter narrows checkpoint queries. Zero values mean "no filter";
// scope and application ids are always positive in practice.
type CheckpointFilter struct {
	ScopeID       int64
	ApplicationID int64
	ActiveOnly    bool
}

// CreateCheckpoint inserts a new checkpoint row.
func (s *Store) CreateCheckpoint(ctx context.Context, cp record.Checkpoint) error {
	toolsJSON, err := marshalTools(cp.ToolsExecuted)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints
		(id, scope_id, application_id, description, user_command, source, status, has_gaps, tools_executed, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		cp.ID,
		cp.ScopeID,
		nullableInt64(cp.ApplicationID),
		cp.Description,
		nullableString(cp.UserCommand),
		string(cp.Source),
		string(cp.Status),
		boolToInt(cp.HasGaps),
		toolsJSON,
		formatTime(cp.CreatedAt),
		nullableTime(cp.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}

	return nil
}

// GetCheckpoint retrieves a single checkpoint by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetCheckpoint(ctx context.Context, id string) (record.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scope_id, application_id, description, user_command, source, status, has_gaps, tools_executed, created_at, finished_at
		FROM checkpoints
		WHERE id = ?
	`, id)

	return scanCheckpointRow(row)
}

// UpdateCheckpointStatus transitions a checkpoint's status and records the
// finish time when the transition is terminal.
func (s *Store) UpdateCheckpointStatus(ctx context.Context, id string, status record.Status, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE checkpoints SET status = ?, finished_at = ? WHERE id = ?
	`, string(status), nullableTime(finishedAt), id)
	if err != nil {
		return fmt.Errorf("update checkpoint status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update checkpoint status: rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// UpdateCheckpointStatusBatch transitions a set of checkpoints in one
// statement. Used by restore, which marks every reverted checkpoint together.
func (s *Store) UpdateCheckpointStatusBatch(ctx context.Context, ids []string, status record.Status, finishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders, args := inPlaceholders(ids)
	args = append([]any{string(status), nullableTime(finishedAt)}, args...)

	_, err := s.db.ExecContext(ctx, `
		UPDATE checkpoints SET status = ?, finished_at = ?
		WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("update checkpoint status batch: %w", err)
	}

	return nil
}

// AppendToolExecuted appends a tool name to the checkpoint's ordered
// tools_executed list. Read-modify-write is safe under the store's
// single-writer connection pool.
func (s *Store) AppendToolExecuted(ctx context.Context, id, toolName string) error {
	var toolsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT tools_executed FROM checkpoints WHERE id = ?
	`, id).Scan(&toolsJSON)
	if err != nil {
		return fmt.Errorf("append tool executed: %w", err)
	}

	tools, err := unmarshalTools(toolsJSON)
	if err != nil {
		return fmt.Errorf("append tool executed: %w", err)
	}
	tools = append(tools, toolName)

	updated, err := marshalTools(tools)
	if err != nil {
		return fmt.Errorf("append tool executed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE checkpoints SET tools_executed = ? WHERE id = ?
	`, updated, id); err != nil {
		return fmt.Errorf("append tool executed: %w", err)
	}

	return nil
}

// MarkCheckpointGap flags a checkpoint whose reversibility is degraded: a
// mutation executed while capture failed, so the undo log is missing an
// entry for it.
func (s *Store) MarkCheckpointGap(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE checkpoints SET has_gaps = 1 WHERE id = ?
	`, id); err != nil {
		return fmt.Errorf("mark checkpoint gap: %w", err)
	}
	return nil
}

// ListCheckpoints returns checkpoints matching the filter, ordered newest
// first (created_at DESC, id DESC as tiebreaker).
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListCheckpoints(ctx context.Context, filter CheckpointFilter) ([]record.Checkpoint, error) {
	query := `
		SELECT id, scope_id, application_id, description, user_command, source, status, has_gaps, tools_executed, created_at, finished_at
		FROM checkpoints
		WHERE 1=1
	`
	var args []any

	if filter.ScopeID != 0 {
		query += ` AND scope_id = ?`
		args = append(args, filter.ScopeID)
	}
	if filter.ApplicationID != 0 {
		query += ` AND application_id = ?`
		args = append(args, filter.ApplicationID)
	}
	if filter.ActiveOnly {
		query += ` AND status = ?`
		args = append(args, string(record.StatusActive))
	}

	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []record.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}

	if checkpoints == nil {
		checkpoints = []record.Checkpoint{}
	}

	return checkpoints, nil
}

// ListCheckpointsAtOrAfter returns checkpoints in the target's scope created
// at or after the given instant, ordered newest first. Restore uses this to
// select the reverse-replay window.
func (s *Store) ListCheckpointsAtOrAfter(ctx context.Context, scopeID int64, createdAt time.Time) ([]record.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope_id, application_id, description, user_command, source, status, has_gaps, tools_executed, created_at, finished_at
		FROM checkpoints
		WHERE scope_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
	`, scopeID, formatTime(createdAt))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints at or after: %w", err)
	}
	defer rows.Close()

	var checkpoints []record.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}

	if checkpoints == nil {
		checkpoints = []record.Checkpoint{}
	}

	return checkpoints, nil
}

// DeleteCheckpoints removes checkpoints and, via foreign-key cascade, their
// undo-log entries, in a single transaction. Deleting history does not revert
// any entity data.
func (s *Store) DeleteCheckpoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete checkpoints: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	placeholders, args := inPlaceholders(ids)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM checkpoints WHERE id IN (`+placeholders+`)
	`, args...); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete checkpoints: commit: %w", err)
	}

	return nil
}

// scanTarget is the shared column list consumer for checkpoints.
type scanTarget interface {
	Scan(dest ...any) error
}

func scanCheckpoint(rows *sql.Rows) (record.Checkpoint, error) {
	cp, err := scanCheckpointColumns(rows)
	if err != nil {
		return record.Checkpoint{}, fmt.Errorf("scan checkpoint: %w", err)
	}
	return cp, nil
}

func scanCheckpointRow(row *sql.Row) (record.Checkpoint, error) {
	return scanCheckpointColumns(row)
}

func scanCheckpointColumns(src scanTarget) (record.Checkpoint, error) {
	var cp record.Checkpoint
	var applicationID sql.NullInt64
	var userCommand, finishedAt sql.NullString
	var source, status, toolsJSON, createdAt string
	var hasGaps int

	if err := src.Scan(
		&cp.ID, &cp.ScopeID, &applicationID, &cp.Description, &userCommand,
		&source, &status, &hasGaps, &toolsJSON, &createdAt, &finishedAt,
	); err != nil {
		return record.Checkpoint{}, err
	}

	cp.ApplicationID = applicationID.Int64
	cp.UserCommand = userCommand.String
	cp.Source = record.Source(source)
	cp.HasGaps = hasGaps != 0

	normalized, err := record.NormalizeStatus(status)
	if err != nil {
		return record.Checkpoint{}, err
	}
	cp.Status = normalized

	tools, err := unmarshalTools(toolsJSON)
	if err != nil {
		return record.Checkpoint{}, err
	}
	cp.ToolsExecuted = tools

	created, err := parseTime(createdAt)
	if err != nil {
		return record.Checkpoint{}, err
	}
	cp.CreatedAt = created

	if finishedAt.Valid {
		finished, err := parseTime(finishedAt.String)
		if err != nil {
			return record.Checkpoint{}, err
		}
		cp.FinishedAt = finished
	}

	return cp, nil
}

func marshalTools(tools []string) (string, error) {
	if tools == nil {
		tools = []string{}
	}
	data, err := json.Marshal(tools)
	if err != nil {
		return "", fmt.Errorf("marshal tools executed: %w", err)
	}
	return string(data), nil
}

func unmarshalTools(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var tools []string
	if err := json.Unmarshal([]byte(data), &tools); err != nil {
		return nil, fmt.Errorf("unmarshal tools executed: %w", err)
	}
	if tools == nil {
		tools = []string{}
	}
	return tools, nil
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
