package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the repository needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository reads the dashboard's booking slice and counters
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository creates a new PostgreSQL dashboard repository
func NewPostgresRepository(pool Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Slice returns up to SliceLimit booking projections matching the filter
func (r *PostgresRepository) Slice(ctx context.Context, filter Filter) ([]Row, error) {
	var conds []string
	var args []any
	add := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		args = append(args, values)
		conds = append(conds, fmt.Sprintf("%s = ANY($%d)", column, len(args)))
	}
	add("country", filter.Countries)
	add("channel", filter.Channels)
	add("currency", filter.Currencies)
	add("status", filter.Statuses)

	// created_at is a timestamp, so date-only bounds widen to the full day
	if from := strings.TrimSpace(filter.DateFrom); from != "" {
		args = append(args, from+"T00:00:00.000Z")
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if to := strings.TrimSpace(filter.DateTo); to != "" {
		args = append(args, to+"T23:59:59.999Z")
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, SliceLimit)
	query := fmt.Sprintf(`
		SELECT country, channel, currency, status,
			total_amount_submitted, total_amount_received, amount_received,
			balance, payment_request_date, created_at
		FROM bookings%s
		ORDER BY id
		LIMIT $%d`, where, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard slice: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		err := rows.Scan(&row.Country, &row.Channel, &row.Currency, &row.Status,
			&row.TotalAmountSubmitted, &row.TotalAmountReceived, &row.AmountReceived,
			&row.Balance, &row.PaymentRequestDate, &row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dashboard row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dashboard slice: %w", err)
	}
	return out, nil
}

// CountUploads returns the upload_history row count
func (r *PostgresRepository) CountUploads(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM upload_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}
	return n, nil
}

// CountEdits returns the edit_history row count
func (r *PostgresRepository) CountEdits(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM edit_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count edits: %w", err)
	}
	return n, nil
}
