package upload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hotelops/ota-reconciliation/internal/domain/booking"
)

// Querier is the subset of pgxpool.Pool the repository needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertedRow identifies a booking created by a bulk insert
type InsertedRow struct {
	ID          int64
	ArrivalDate *time.Time
}

// insertColumns are the booking columns written by a spreadsheet import.
// Reconciliation columns start empty; formula columns are null because
// their inputs are.
var insertColumns = []string{
	"zuzu_room_confirmation_number", "hotel_name", "country", "name",
	"arrival_date", "departure_date", "number_of_room_nights", "status",
	"channel", "channel_booking_confirmation_number",
	"zuzu_managing_channel_invoicing", "net_amount_by_zuzu", "currency",
}

const uploadColumns = `id, file_name, sheet_name, rows_uploaded, uploaded_by,
	uploaded_at, arrival_date_min, arrival_date_max, booking_ids,
	file_storage_path, cancelled_at`

// PostgresRepository implements upload persistence using PostgreSQL
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository creates a new PostgreSQL upload repository
func NewPostgresRepository(pool Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// BulkInsertBookings inserts one batch of records in a single statement and
// returns the assigned ids with their arrival dates, in insert order.
func (r *PostgresRepository) BulkInsertBookings(ctx context.Context, records []*booking.Booking) ([]InsertedRow, error) {
	if len(records) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*len(insertColumns))
	for i, rec := range records {
		marks := make([]string, len(insertColumns))
		for j := range insertColumns {
			marks[j] = fmt.Sprintf("$%d", i*len(insertColumns)+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")
		args = append(args,
			rec.ZuzuRoomConfirmationNumber, rec.HotelName, rec.Country, rec.Name,
			rec.ArrivalDate, rec.DepartureDate, rec.NumberOfRoomNights, rec.Status,
			rec.Channel, rec.ChannelBookingConfirmationNumber,
			rec.ZuzuManagingChannelInvoicing, rec.NetAmountByZuzu, rec.Currency,
		)
	}

	query := fmt.Sprintf(`INSERT INTO bookings (%s) VALUES %s RETURNING id, arrival_date`,
		strings.Join(insertColumns, ", "), strings.Join(placeholders, ", "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert bookings: %w", err)
	}
	defer rows.Close()

	inserted := make([]InsertedRow, 0, len(records))
	for rows.Next() {
		var row InsertedRow
		if err := rows.Scan(&row.ID, &row.ArrivalDate); err != nil {
			return nil, fmt.Errorf("failed to scan inserted booking: %w", err)
		}
		inserted = append(inserted, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inserted bookings: %w", err)
	}
	return inserted, nil
}

// CreateUploadRecord inserts the batch metadata and fills its id and timestamp
func (r *PostgresRepository) CreateUploadRecord(ctx context.Context, u *Upload) error {
	query := `
		INSERT INTO upload_history (
			file_name, sheet_name, rows_uploaded, uploaded_by,
			arrival_date_min, arrival_date_max, booking_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, uploaded_at`

	err := r.pool.QueryRow(ctx, query,
		u.FileName, u.SheetName, u.RowsUploaded, u.UploadedBy,
		u.ArrivalDateMin, u.ArrivalDateMax, u.BookingIDs,
	).Scan(&u.ID, &u.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create upload record: %w", err)
	}
	return nil
}

// LinkBookings stamps the batch id onto one batch of booking rows
func (r *PostgresRepository) LinkBookings(ctx context.Context, uploadID int64, bookingIDs []int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE bookings SET upload_id = $1, updated_at = now() WHERE id = ANY($2)`,
		uploadID, bookingIDs)
	if err != nil {
		return fmt.Errorf("failed to link bookings to upload %d: %w", uploadID, err)
	}
	return nil
}

// DeleteBookingsByIDs removes one batch of booking rows, used by rollback
func (r *PostgresRepository) DeleteBookingsByIDs(ctx context.Context, bookingIDs []int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = ANY($1)`, bookingIDs)
	if err != nil {
		return fmt.Errorf("failed to delete bookings: %w", err)
	}
	return nil
}

// DeleteUploadRecord removes the batch metadata row
func (r *PostgresRepository) DeleteUploadRecord(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM upload_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetFileStoragePath attaches the stored-file path to the batch record
func (r *PostgresRepository) SetFileStoragePath(ctx context.Context, id int64, path string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE upload_history SET file_storage_path = $1 WHERE id = $2`, path, id)
	if err != nil {
		return fmt.Errorf("failed to set file storage path: %w", err)
	}
	return nil
}

// GetUpload retrieves one batch record
func (r *PostgresRepository) GetUpload(ctx context.Context, id int64) (*Upload, error) {
	query := fmt.Sprintf(`SELECT %s FROM upload_history WHERE id = $1`, uploadColumns)
	u, err := scanUpload(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUploads returns one page of batch records, newest first, plus the total
func (r *PostgresRepository) ListUploads(ctx context.Context, page, pageSize int) ([]*Upload, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM upload_history`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count uploads: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM upload_history ORDER BY uploaded_at DESC LIMIT $1 OFFSET $2`, uploadColumns)
	rows, err := r.pool.Query(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, 0, err
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read uploads: %w", err)
	}
	return uploads, total, nil
}

// ConfirmationNumbersPage returns one page of persisted booking keys for the
// duplicate scan.
func (r *PostgresRepository) ConfirmationNumbersPage(ctx context.Context, offset, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT zuzu_room_confirmation_number FROM bookings
		WHERE zuzu_room_confirmation_number IS NOT NULL
		ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to page confirmation numbers: %w", err)
	}
	defer rows.Close()

	var keys []int64
	for rows.Next() {
		var key int64
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan confirmation number: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read confirmation numbers: %w", err)
	}
	return keys, nil
}

// CurrencyByCountry loads the country to currency-code lookup table
func (r *PostgresRepository) CurrencyByCountry(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT country, currency_code FROM currency`)
	if err != nil {
		return nil, fmt.Errorf("failed to load currency table: %w", err)
	}
	defer rows.Close()

	table := make(map[string]string)
	for rows.Next() {
		var country, code string
		if err := rows.Scan(&country, &code); err != nil {
			return nil, fmt.Errorf("failed to scan currency row: %w", err)
		}
		table[country] = code
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read currency table: %w", err)
	}
	return table, nil
}

func scanUpload(row pgx.Row) (*Upload, error) {
	u := &Upload{}
	err := row.Scan(&u.ID, &u.FileName, &u.SheetName, &u.RowsUploaded, &u.UploadedBy,
		&u.UploadedAt, &u.ArrivalDateMin, &u.ArrivalDateMax, &u.BookingIDs,
		&u.FileStoragePath, &u.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan upload: %w", err)
	}
	return u, nil
}
