package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the repository needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const entryColumns = `id, table_name, row_id, column_name, old_value, new_value,
	edited_by, edited_at, row_display, undone_at, undone_by`

// PostgresRepository implements edit-history persistence using PostgreSQL
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository creates a new PostgreSQL history repository
func NewPostgresRepository(pool Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert records one edit and fills its id and timestamp
func (r *PostgresRepository) Insert(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO edit_history (
			table_name, row_id, column_name, old_value, new_value, edited_by, row_display)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, edited_at`

	err := r.pool.QueryRow(ctx, query,
		e.TableName, e.RowID, e.ColumnName, e.OldValue, e.NewValue, e.EditedBy, e.RowDisplay,
	).Scan(&e.ID, &e.EditedAt)
	if err != nil {
		return fmt.Errorf("failed to insert edit entry: %w", err)
	}
	return nil
}

// GetByID retrieves one edit entry
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM edit_history WHERE id = $1`, entryColumns)
	e, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns one page of edit entries, newest first, plus the total count
func (r *PostgresRepository) List(ctx context.Context, page, pageSize int) ([]*Entry, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM edit_history`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count edit entries: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM edit_history ORDER BY edited_at DESC, id DESC LIMIT $1 OFFSET $2`, entryColumns)
	rows, err := r.pool.Query(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list edit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read edit entries: %w", err)
	}
	return entries, total, nil
}

// MarkUndone stamps the revert marker on an entry
func (r *PostgresRepository) MarkUndone(ctx context.Context, id int64, actor string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE edit_history SET undone_at = now(), undone_by = $2 WHERE id = $1`, id, actor)
	if err != nil {
		return fmt.Errorf("failed to mark edit undone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByRows removes the edit trail of deleted rows, used when a row is
// deleted on its own or with its upload batch.
func (r *PostgresRepository) DeleteByRows(ctx context.Context, tableName string, rowIDs []int64) error {
	if len(rowIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM edit_history WHERE table_name = $1 AND row_id = ANY($2)`, tableName, rowIDs)
	if err != nil {
		return fmt.Errorf("failed to delete edit trail: %w", err)
	}
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	e := &Entry{}
	err := row.Scan(&e.ID, &e.TableName, &e.RowID, &e.ColumnName, &e.OldValue, &e.NewValue,
		&e.EditedBy, &e.EditedAt, &e.RowDisplay, &e.UndoneAt, &e.UndoneBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan edit entry: %w", err)
	}
	return e, nil
}
