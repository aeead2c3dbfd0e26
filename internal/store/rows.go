package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rowanvale/savepoint/internal/record"
)

// Entity-row persistence. Every entity table shares one shape: the full row
// is stored as JSON in the data column, with name and object_id mirrored
// into real columns for natural-key probes and checkout grouping.
//
// Table names are interpolated into SQL (identifiers cannot be bound), so
// every method validates the name against the record registry first.

// GetRow retrieves an entity row by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetRow(ctx context.Context, table string, id int64) (record.Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM `+table+` WHERE id = ?`, id,
	).Scan(&data)
	if err != nil {
		return nil, err
	}

	row, err := record.UnmarshalRow([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("get row %s/%d: %w", table, id, err)
	}

	return row, nil
}

// FindRowByName probes for an existing row by natural key: name plus, when
// objectID is non-zero, the owning object. Used by capture to decide whether
// an id-less save is logically an insert or an update.
//
// Returns sql.ErrNoRows if no row matches.
func (s *Store) FindRowByName(ctx context.Context, table, name string, objectID int64) (record.Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := `SELECT data FROM ` + table + ` WHERE name = ?`
	args := []any{name}
	if objectID != 0 {
		query += ` AND object_id = ?`
		args = append(args, objectID)
	}
	query += ` ORDER BY id LIMIT 1`

	var data string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		return nil, err
	}

	row, err := record.UnmarshalRow([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("find row %s name=%q: %w", table, name, err)
	}

	return row, nil
}

// InsertRow inserts a new entity row and returns its generated id. The id is
// folded back into the stored JSON so snapshots always carry it.
func (s *Store) InsertRow(ctx context.Context, table string, row record.Row) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert row: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	objectID, _ := row.ObjectID()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (name, object_id, data) VALUES (?, ?, '{}')`,
		nullableString(row.Name()), nullableInt64(objectID),
	)
	if err != nil {
		return 0, fmt.Errorf("insert row: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert row: last insert id: %w", err)
	}

	stored := row.Clone()
	stored["id"] = id
	data, err := record.MarshalRow(stored)
	if err != nil {
		return 0, fmt.Errorf("insert row: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET data = ? WHERE id = ?`, string(data), id,
	); err != nil {
		return 0, fmt.Errorf("insert row: store data: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert row: commit: %w", err)
	}

	return id, nil
}

// InsertRowWithID re-inserts a row under an explicit id. This is the restore
// path for reversing deletes: the snapshot must come back under the exact
// primary key it was captured with.
func (s *Store) InsertRowWithID(ctx context.Context, table string, id int64, row record.Row) error {
	if err := checkTable(table); err != nil {
		return err
	}

	stored := row.Clone()
	stored["id"] = id
	data, err := record.MarshalRow(stored)
	if err != nil {
		return fmt.Errorf("insert row with id: %w", err)
	}

	objectID, _ := row.ObjectID()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, name, object_id, data) VALUES (?, ?, ?, ?)`,
		id, nullableString(row.Name()), nullableInt64(objectID), string(data),
	); err != nil {
		return fmt.Errorf("insert row with id %s/%d: %w", table, id, err)
	}

	return nil
}

// UpdateRow overwrites an entity row in place.
// Returns sql.ErrNoRows if the row doesn't exist.
func (s *Store) UpdateRow(ctx context.Context, table string, id int64, row record.Row) error {
	if err := checkTable(table); err != nil {
		return err
	}

	stored := row.Clone()
	stored["id"] = id
	data, err := record.MarshalRow(stored)
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}

	objectID, _ := row.ObjectID()
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET name = ?, object_id = ?, data = ? WHERE id = ?`,
		nullableString(row.Name()), nullableInt64(objectID), string(data), id,
	)
	if err != nil {
		return fmt.Errorf("update row %s/%d: %w", table, id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update row: rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// DeleteRow removes an entity row by id.
// Returns sql.ErrNoRows if the row doesn't exist.
func (s *Store) DeleteRow(ctx context.Context, table string, id int64) error {
	if err := checkTable(table); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete row %s/%d: %w", table, id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete row: rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// RowsByIDs batch-fetches current rows for a set of ids in one query per
// table. The projector depends on this to resolve display names without
// N+1 lookups. Missing ids are simply absent from the result map.
func (s *Store) RowsByIDs(ctx context.Context, table string, ids []int64) (map[int64]record.Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[int64]record.Row{}, nil
	}

	placeholders, args := inPlaceholdersInt64(ids)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM `+table+` WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("rows by ids %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[int64]record.Row, len(ids))
	for rows.Next() {
		var id int64
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan row %s: %w", table, err)
		}
		row, err := record.UnmarshalRow([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("rows by ids %s/%d: %w", table, id, err)
		}
		out[id] = row
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows %s: %w", table, err)
	}

	return out, nil
}

// ListRows returns every row of an entity table ordered by id. Used by the
// scenario harness to dump final state; production reads go through GetRow
// and the batch lookups.
func (s *Store) ListRows(ctx context.Context, table string) ([]record.Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM `+table+` ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rows %s: %w", table, err)
	}
	defer rows.Close()

	out := []record.Row{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row %s: %w", table, err)
		}
		row, err := record.UnmarshalRow([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("list rows %s: %w", table, err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows %s: %w", table, err)
	}

	return out, nil
}

func checkTable(table string) error {
	if !record.KnownTable(table) {
		return fmt.Errorf("unknown entity table %q", table)
	}
	return nil
}
