package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const bookingColumns = `id, zuzu_room_confirmation_number, hotel_name, country, name,
	arrival_date, departure_date, number_of_room_nights, status, channel,
	channel_booking_confirmation_number, zuzu_managing_channel_invoicing,
	net_amount_by_zuzu, currency, net_of_channel_commissio_amount_extranet,
	payment_request_date, total_amount_submitted, amount_received,
	total_amount_received, payment_date, balance, reconciled_amount_check,
	transmission_queue_id, reference_number, remarks, upload_id, created_at, updated_at`

// filterableColumns lists every column a list filter may reference. Filters
// naming anything else are dropped rather than interpolated into SQL.
var filterableColumns = map[string]struct{}{
	"id": {}, "zuzu_room_confirmation_number": {}, "hotel_name": {},
	"country": {}, "name": {}, "arrival_date": {}, "departure_date": {},
	"number_of_room_nights": {}, "status": {}, "channel": {},
	"channel_booking_confirmation_number": {}, "zuzu_managing_channel_invoicing": {},
	"net_amount_by_zuzu": {}, "currency": {},
	"net_of_channel_commissio_amount_extranet": {}, "payment_request_date": {},
	"total_amount_submitted": {}, "amount_received": {}, "total_amount_received": {},
	"payment_date": {}, "balance": {}, "reconciled_amount_check": {},
	"transmission_queue_id": {}, "reference_number": {}, "remarks": {},
	"upload_id": {}, "created_at": {}, "updated_at": {},
}

// integerFilterColumns are matched exactly rather than by pattern
var integerFilterColumns = map[string]struct{}{
	"id": {}, "upload_id": {},
}

// timestampFilterColumns get whole-day bounds on date-range filters
var timestampFilterColumns = map[string]struct{}{
	"created_at": {}, "updated_at": {},
}

// DateRange bounds a date or timestamp column, inclusive on both ends
type DateRange struct {
	From string
	To   string
}

// ListFilter describes the bookings-table filters: substring match on text
// columns, exact match on integer columns, set membership, and date ranges.
type ListFilter struct {
	Text       map[string]string
	In         map[string][]string
	DateRanges map[string]DateRange
}

// PostgresRepository implements booking persistence using PostgreSQL
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository creates a new PostgreSQL booking repository
func NewPostgresRepository(pool Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// List returns one page of bookings matching the filter plus the total match count
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter, page, pageSize int) ([]*Booking, int64, error) {
	where, args := buildWhere(filter)

	var total int64
	countQuery := `SELECT count(*) FROM bookings` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY id LIMIT $%d OFFSET $%d`,
		bookingColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read bookings: %w", err)
	}
	return bookings, total, nil
}

// GetByID retrieves a booking by ID
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	b, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Insert creates a booking and fills its system columns
func (r *PostgresRepository) Insert(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (
			zuzu_room_confirmation_number, hotel_name, country, name,
			arrival_date, departure_date, number_of_room_nights, status, channel,
			channel_booking_confirmation_number, zuzu_managing_channel_invoicing,
			net_amount_by_zuzu, currency, net_of_channel_commissio_amount_extranet,
			payment_request_date, total_amount_submitted, amount_received,
			total_amount_received, payment_date, balance, reconciled_amount_check,
			transmission_queue_id, reference_number, remarks, upload_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		b.ZuzuRoomConfirmationNumber, b.HotelName, b.Country, b.Name,
		b.ArrivalDate, b.DepartureDate, b.NumberOfRoomNights, b.Status, b.Channel,
		b.ChannelBookingConfirmationNumber, b.ZuzuManagingChannelInvoicing,
		b.NetAmountByZuzu, b.Currency, b.NetOfChannelCommissionAmount,
		b.PaymentRequestDate, b.TotalAmountSubmitted, b.AmountReceived,
		b.TotalAmountReceived, b.PaymentDate, b.Balance, b.ReconciledAmountCheck,
		b.TransmissionQueueID, b.ReferenceNumber, b.Remarks, b.UploadID,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// Update rewrites every mutable column of an existing booking
func (r *PostgresRepository) Update(ctx context.Context, b *Booking) error {
	query := `
		UPDATE bookings SET
			zuzu_room_confirmation_number = $2, hotel_name = $3, country = $4, name = $5,
			arrival_date = $6, departure_date = $7, number_of_room_nights = $8,
			status = $9, channel = $10, channel_booking_confirmation_number = $11,
			zuzu_managing_channel_invoicing = $12, net_amount_by_zuzu = $13, currency = $14,
			net_of_channel_commissio_amount_extranet = $15, payment_request_date = $16,
			total_amount_submitted = $17, amount_received = $18, total_amount_received = $19,
			payment_date = $20, balance = $21, reconciled_amount_check = $22,
			transmission_queue_id = $23, reference_number = $24, remarks = $25,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		b.ID,
		b.ZuzuRoomConfirmationNumber, b.HotelName, b.Country, b.Name,
		b.ArrivalDate, b.DepartureDate, b.NumberOfRoomNights, b.Status, b.Channel,
		b.ChannelBookingConfirmationNumber, b.ZuzuManagingChannelInvoicing,
		b.NetAmountByZuzu, b.Currency, b.NetOfChannelCommissionAmount,
		b.PaymentRequestDate, b.TotalAmountSubmitted, b.AmountReceived,
		b.TotalAmountReceived, b.PaymentDate, b.Balance, b.ReconciledAmountCheck,
		b.TransmissionQueueID, b.ReferenceNumber, b.Remarks,
	).Scan(&b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return nil
}

// UpdateColumns writes the given allow-listed columns plus the recomputed
// formula columns in a single statement.
func (r *PostgresRepository) UpdateColumns(ctx context.Context, id int64, values map[string]any, derived Derived) error {
	sets := make([]string, 0, len(values)+3)
	args := []any{id}
	for _, col := range EditableColumns() {
		v, ok := values[col]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(sets) == 0 {
		return errors.New("no editable columns to update")
	}

	args = append(args, derived.Balance)
	sets = append(sets, fmt.Sprintf("balance = $%d", len(args)))
	args = append(args, derived.ReconciledAmountCheck)
	sets = append(sets, fmt.Sprintf("reconciled_amount_check = $%d", len(args)))
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE bookings SET %s WHERE id = $1`, strings.Join(sets, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking columns: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a booking
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByUploadID removes every booking created by the given upload batch
func (r *PostgresRepository) DeleteByUploadID(ctx context.Context, uploadID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE upload_id = $1`, uploadID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bookings for upload %d: %w", uploadID, err)
	}
	return tag.RowsAffected(), nil
}

// ResyncDerivedColumns recomputes the formula columns for every row whose
// stored values drifted from their inputs and returns the number repaired.
func (r *PostgresRepository) ResyncDerivedColumns(ctx context.Context) (int64, error) {
	query := `
		UPDATE bookings SET
			balance = net_amount_by_zuzu - amount_received,
			reconciled_amount_check = total_amount_submitted - total_amount_received,
			updated_at = now()
		WHERE balance IS DISTINCT FROM (net_amount_by_zuzu - amount_received)
		   OR reconciled_amount_check IS DISTINCT FROM (total_amount_submitted - total_amount_received)`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to resync derived columns: %w", err)
	}
	return tag.RowsAffected(), nil
}

func buildWhere(filter ListFilter) (string, []any) {
	var conds []string
	var args []any

	for col, value := range filter.Text {
		if _, ok := filterableColumns[col]; !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := integerFilterColumns[col]; ok {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				// Non-numeric input on an integer column: no match possible
				conds = append(conds, fmt.Sprintf("%s = -1", col))
				continue
			}
			args = append(args, n)
			conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
			continue
		}
		args = append(args, "%"+value+"%")
		conds = append(conds, fmt.Sprintf("%s::text ILIKE $%d", col, len(args)))
	}

	for col, values := range filter.In {
		if _, ok := filterableColumns[col]; !ok {
			continue
		}
		if len(values) == 0 {
			continue
		}
		args = append(args, values)
		conds = append(conds, fmt.Sprintf("%s = ANY($%d)", col, len(args)))
	}

	for col, rng := range filter.DateRanges {
		if _, ok := filterableColumns[col]; !ok {
			continue
		}
		_, isTimestamp := timestampFilterColumns[col]
		if from := strings.TrimSpace(rng.From); from != "" {
			if isTimestamp {
				from += "T00:00:00.000Z"
			}
			args = append(args, from)
			conds = append(conds, fmt.Sprintf("%s >= $%d", col, len(args)))
		}
		if to := strings.TrimSpace(rng.To); to != "" {
			if isTimestamp {
				to += "T23:59:59.999Z"
			}
			args = append(args, to)
			conds = append(conds, fmt.Sprintf("%s <= $%d", col, len(args)))
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanBooking(row pgx.Row) (*Booking, error) {
	b := &Booking{}
	err := row.Scan(
		&b.ID, &b.ZuzuRoomConfirmationNumber, &b.HotelName, &b.Country, &b.Name,
		&b.ArrivalDate, &b.DepartureDate, &b.NumberOfRoomNights, &b.Status, &b.Channel,
		&b.ChannelBookingConfirmationNumber, &b.ZuzuManagingChannelInvoicing,
		&b.NetAmountByZuzu, &b.Currency, &b.NetOfChannelCommissionAmount,
		&b.PaymentRequestDate, &b.TotalAmountSubmitted, &b.AmountReceived,
		&b.TotalAmountReceived, &b.PaymentDate, &b.Balance, &b.ReconciledAmountCheck,
		&b.TransmissionQueueID, &b.ReferenceNumber, &b.Remarks, &b.UploadID,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	return b, nil
}
