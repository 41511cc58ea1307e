package history

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
)

// DefaultPageSize is the edit-history page size
const DefaultPageSize = 50

var (
	// ErrNotFound reports a missing edit entry
	ErrNotFound = errors.New("edit entry not found")
	// ErrAlreadyUndone reports a second undo of the same entry
	ErrAlreadyUndone = errors.New("edit already undone")
)

// Repository is the persistence surface the service needs
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id int64) (*Entry, error)
	List(ctx context.Context, page, pageSize int) ([]*Entry, int64, error)
	MarkUndone(ctx context.Context, id int64, actor string) error
	DeleteByRows(ctx context.Context, tableName string, rowIDs []int64) error
}

// CellReverter restores a cell to a previous value without logging the
// write. Implemented by the booking service.
type CellReverter interface {
	RevertCell(ctx context.Context, rowID int64, column string, value *string, actor string) error
}

// Service records edits and reverts them
type Service struct {
	repo     Repository
	reverter CellReverter
	logger   *slog.Logger
}

// NewService creates the history service
func NewService(repo Repository, reverter CellReverter, logger *slog.Logger) *Service {
	return &Service{repo: repo, reverter: reverter, logger: logger}
}

// Log records one cell edit
func (s *Service) Log(ctx context.Context, tableName string, rowID int64, column string,
	oldValue, newValue *string, rowDisplay, actor string) error {
	entry := &Entry{
		TableName:  tableName,
		RowID:      rowID,
		ColumnName: column,
		OldValue:   oldValue,
		NewValue:   newValue,
		EditedBy:   actor,
		RowDisplay: &rowDisplay,
	}
	return s.repo.Insert(ctx, entry)
}

// List returns one page of edits, newest first
func (s *Service) List(ctx context.Context, page, pageSize int) ([]*Entry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = DefaultPageSize
	}
	return s.repo.List(ctx, page, pageSize)
}

// ForgetRows drops the edit trail of booking rows that no longer exist
func (s *Service) ForgetRows(ctx context.Context, rowIDs []int64) error {
	return s.repo.DeleteByRows(ctx, "bookings", rowIDs)
}

// Undo reverts one edit: the cell goes back to the entry's old value, the
// row's formula columns are recomputed, and the entry is marked undone.
func (s *Service) Undo(ctx context.Context, id int64, actor string) (*Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.Undone() {
		return nil, ErrAlreadyUndone
	}

	if err := s.reverter.RevertCell(ctx, entry.RowID, entry.ColumnName, entry.OldValue, actor); err != nil {
		return nil, err
	}
	if err := s.repo.MarkUndone(ctx, id, actor); err != nil {
		return nil, err
	}

	s.logger.Info("edit undone", "entry_id", id, "row_id", entry.RowID,
		"column", entry.ColumnName, "actor", actor)
	return s.repo.GetByID(ctx, id)
}
