package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPageSize is the bookings-table page size
const DefaultPageSize = 100

var (
	// ErrNotFound reports a missing booking row
	ErrNotFound = errors.New("booking not found")
	// ErrColumnNotEditable reports a write to a formula, currency, or
	// system column.
	ErrColumnNotEditable = errors.New("column is not editable")
)

// Repository is the persistence surface the service needs
type Repository interface {
	List(ctx context.Context, filter ListFilter, page, pageSize int) ([]*Booking, int64, error)
	GetByID(ctx context.Context, id int64) (*Booking, error)
	Insert(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error
	UpdateColumns(ctx context.Context, id int64, values map[string]any, derived Derived) error
	Delete(ctx context.Context, id int64) error
}

// EditLogger records column-level diffs for the edit history. Implemented
// by the history service; nil values mean "no value".
type EditLogger interface {
	Log(ctx context.Context, tableName string, rowID int64, column string,
		oldValue, newValue *string, rowDisplay, actor string) error
	ForgetRows(ctx context.Context, rowIDs []int64) error
}

// Service implements bookings-table reads, manual edits, and undo reverts
type Service struct {
	repo   Repository
	edits  EditLogger
	logger *slog.Logger
}

// NewService creates the booking service. The edit logger is wired in
// afterwards because the history service needs this service for undo.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// WithEditLogger wires in the edit-history collaborator
func (s *Service) WithEditLogger(edits EditLogger) {
	s.edits = edits
}

// List returns one page of bookings matching the filter plus the total count
func (s *Service) List(ctx context.Context, filter ListFilter, page, pageSize int) ([]*Booking, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	return s.repo.List(ctx, filter, page, pageSize)
}

// Get retrieves one booking
func (s *Service) Get(ctx context.Context, id int64) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// Create inserts a manually added booking. Manual rows carry no upload id.
func (s *Service) Create(ctx context.Context, b *Booking) error {
	b.UploadID = nil
	ApplyDerived(b)
	if err := s.repo.Insert(ctx, b); err != nil {
		return err
	}
	s.logger.Info("booking created manually", "booking_id", b.ID)
	return nil
}

// UpdateRow rewrites a whole booking row, recomputing the formula columns
// and logging each editable column that changed.
func (s *Service) UpdateRow(ctx context.Context, updated *Booking, actor string) error {
	current, err := s.Get(ctx, updated.ID)
	if err != nil {
		return err
	}

	ApplyDerived(updated)
	if err := s.repo.Update(ctx, updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	for _, column := range EditableColumns() {
		s.logDiff(ctx, current, column, cellString(current, column), cellString(updated, column), actor)
	}
	return nil
}

// UpdateCells applies a set of single-cell edits to one row. Raw values are
// parsed per column type; nil or empty clears the cell. Formula columns are
// recomputed in the same write, and each real change is logged.
func (s *Service) UpdateCells(ctx context.Context, id int64, cells map[string]*string, actor string) (*Booking, error) {
	for column := range cells {
		if !IsEditable(column) {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotEditable, column)
		}
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	values := make(map[string]any, len(cells))
	before := make(map[string]*string, len(cells))
	for column, raw := range cells {
		before[column] = cellString(current, column)
		values[column] = setCell(&updated, column, raw)
	}

	derived := ComputeDerived(&updated)
	if err := s.repo.UpdateColumns(ctx, id, values, derived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	updated.Balance = derived.Balance
	updated.ReconciledAmountCheck = derived.ReconciledAmountCheck

	for column := range cells {
		s.logDiff(ctx, current, column, before[column], cellString(&updated, column), actor)
	}
	return &updated, nil
}

// RevertCell restores a single cell to a previous value without logging a
// new history entry. Used by the undo path.
func (s *Service) RevertCell(ctx context.Context, rowID int64, column string, value *string, actor string) error {
	if !IsEditable(column) {
		return fmt.Errorf("%w: %s", ErrColumnNotEditable, column)
	}

	current, err := s.Get(ctx, rowID)
	if err != nil {
		return err
	}

	updated := *current
	typed := setCell(&updated, column, value)
	derived := ComputeDerived(&updated)
	if err := s.repo.UpdateColumns(ctx, rowID, map[string]any{column: typed}, derived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	s.logger.Info("cell reverted", "booking_id", rowID, "column", column, "actor", actor)
	return nil
}

// Delete removes one booking row along with its edit trail
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if s.edits != nil {
		if err := s.edits.ForgetRows(ctx, []int64{id}); err != nil {
			s.logger.Warn("failed to delete edit trail", "booking_id", id, "error", err)
		}
	}
	return nil
}

// logDiff records an edit when the stringified values actually differ
func (s *Service) logDiff(ctx context.Context, b *Booking, column string, oldValue, newValue *string, actor string) {
	if s.edits == nil || strOrEmpty(oldValue) == strOrEmpty(newValue) {
		return
	}
	if err := s.edits.Log(ctx, "bookings", b.ID, column, oldValue, newValue, RowDisplay(b), actor); err != nil {
		s.logger.Warn("failed to log edit", "booking_id", b.ID, "column", column, "error", err)
	}
}

// RowDisplay is the human-readable row reference shown in the edit history
func RowDisplay(b *Booking) string {
	if b.ZuzuRoomConfirmationNumber != nil {
		return fmt.Sprintf("Confirmation #%d", *b.ZuzuRoomConfirmationNumber)
	}
	return fmt.Sprintf("Row #%d", b.ID)
}

// cellString renders a column's current value, nil when the cell is empty
func cellString(b *Booking, column string) *string {
	switch column {
	case "net_of_channel_commissio_amount_extranet":
		return decString(b.NetOfChannelCommissionAmount)
	case "total_amount_submitted":
		return decString(b.TotalAmountSubmitted)
	case "amount_received":
		return decString(b.AmountReceived)
	case "total_amount_received":
		return decString(b.TotalAmountReceived)
	case "payment_request_date":
		return dateString(b.PaymentRequestDate)
	case "payment_date":
		return dateString(b.PaymentDate)
	case "transmission_queue_id":
		return b.TransmissionQueueID
	case "reference_number":
		return b.ReferenceNumber
	case "remarks":
		return b.Remarks
	}
	return nil
}

// setCell parses a raw value per the column's type, stores it on the record,
// and returns the typed value for the database write. Unparseable or empty
// input clears the cell.
func setCell(b *Booking, column string, raw *string) any {
	switch {
	case IsNumericEditable(column):
		var v *decimal.Decimal
		if raw != nil {
			v = ParseAmount(*raw)
		}
		switch column {
		case "net_of_channel_commissio_amount_extranet":
			b.NetOfChannelCommissionAmount = v
		case "total_amount_submitted":
			b.TotalAmountSubmitted = v
		case "amount_received":
			b.AmountReceived = v
		case "total_amount_received":
			b.TotalAmountReceived = v
		}
		return v
	case IsDateEditable(column):
		var v *time.Time
		if raw != nil {
			if t, err := time.Parse("2006-01-02", *raw); err == nil {
				v = &t
			}
		}
		if column == "payment_request_date" {
			b.PaymentRequestDate = v
		} else {
			b.PaymentDate = v
		}
		return v
	default:
		v := raw
		if v != nil && *v == "" {
			v = nil
		}
		switch column {
		case "transmission_queue_id":
			b.TransmissionQueueID = v
		case "reference_number":
			b.ReferenceNumber = v
		case "remarks":
			b.Remarks = v
		}
		return v
	}
}

func decString(v *decimal.Decimal) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func dateString(v *time.Time) *string {
	if v == nil {
		return nil
	}
	s := v.Format("2006-01-02")
	return &s
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
