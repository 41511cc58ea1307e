package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hotelops/ota-reconciliation/internal/domain/booking"
	"github.com/hotelops/ota-reconciliation/internal/domain/upload/dedup"
	"github.com/hotelops/ota-reconciliation/internal/domain/upload/mapper"
	"github.com/hotelops/ota-reconciliation/internal/domain/upload/normalizer"
	"github.com/hotelops/ota-reconciliation/internal/domain/upload/parser"
	"github.com/hotelops/ota-reconciliation/pkg/storage"
)

// BatchSize is the fixed row count for insert, link, and rollback batches.
// It keeps each statement under the backend's parameter limits.
const BatchSize = 500

// FileURLExpiry is the lifetime of presigned stored-file URLs
const FileURLExpiry = time.Hour

var (
	// ErrCancelled reports a cooperatively cancelled import: everything the
	// run had committed was rolled back.
	ErrCancelled = errors.New("upload stopped, nothing saved")
	// ErrImportNotFound reports an unknown or expired pending-import token
	ErrImportNotFound = errors.New("pending import not found")
	// ErrNoStoredFile reports a batch whose original file was not retained
	ErrNoStoredFile = errors.New("no stored file for this upload")
)

// Repository is the persistence surface the coordinator needs
type Repository interface {
	BulkInsertBookings(ctx context.Context, records []*booking.Booking) ([]InsertedRow, error)
	CreateUploadRecord(ctx context.Context, u *Upload) error
	LinkBookings(ctx context.Context, uploadID int64, bookingIDs []int64) error
	DeleteBookingsByIDs(ctx context.Context, bookingIDs []int64) error
	DeleteUploadRecord(ctx context.Context, id int64) error
	SetFileStoragePath(ctx context.Context, id int64, path string) error
	GetUpload(ctx context.Context, id int64) (*Upload, error)
	ListUploads(ctx context.Context, page, pageSize int) ([]*Upload, int64, error)
	ConfirmationNumbersPage(ctx context.Context, offset, limit int) ([]int64, error)
	CurrencyByCountry(ctx context.Context) (map[string]string, error)
}

// BookingDeleter removes bookings owned by an upload batch
type BookingDeleter interface {
	DeleteByUploadID(ctx context.Context, uploadID int64) (int64, error)
}

// EditTrailDeleter drops edit-history entries for deleted booking rows.
// Implemented by the history service.
type EditTrailDeleter interface {
	ForgetRows(ctx context.Context, rowIDs []int64) error
}

// Service coordinates the import pipeline and manages upload batches
type Service struct {
	repo     Repository
	bookings BookingDeleter
	edits    EditTrailDeleter
	store    storage.ObjectStore
	parser   *parser.Parser
	detector *dedup.Detector
	norm     *normalizer.Normalizer
	sessions *SessionStore
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewService creates the upload service
func NewService(repo Repository, bookings BookingDeleter, store storage.ObjectStore,
	sessions *SessionStore, metrics *Metrics, tracer trace.Tracer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		bookings: bookings,
		store:    store,
		parser:   parser.New(parser.Config{}),
		detector: dedup.New(repo, dedup.DefaultPageSize),
		norm:     normalizer.New(repo),
		sessions: sessions,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
	}
}

// WithEditTrailDeleter wires in the edit-history collaborator so batch
// deletes also drop the edit trail of the removed rows
func (s *Service) WithEditTrailDeleter(edits EditTrailDeleter) {
	s.edits = edits
}

// StartImportRequest carries one uploaded workbook
type StartImportRequest struct {
	FileName  string
	FileBytes []byte
	SheetName string
	KeepFile  bool
	Actor     string
}

// SheetNames lists the workbook's sheets so the caller can pick one
func (s *Service) SheetNames(data []byte) ([]string, error) {
	return s.parser.SheetNames(data)
}

// StartImport parses, classifies, and duplicate-checks the sheet. When no
// candidate collides the import commits immediately; otherwise it suspends
// on a pending decision.
func (s *Service) StartImport(ctx context.Context, req StartImportRequest) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "import.start",
		trace.WithAttributes(attribute.String("sheet", req.SheetName)))
	defer span.End()

	rows, err := s.parser.ReadSheet(req.FileBytes, req.SheetName)
	if err != nil {
		return nil, err
	}

	mapped := mapper.Map(rows)
	result, err := s.detector.Detect(ctx, candidateKeys(mapped.Accepted))
	if err != nil {
		return nil, err
	}

	pending := &PendingImport{
		FileName:       req.FileName,
		SheetName:      req.SheetName,
		StartedBy:      req.Actor,
		KeepFile:       req.KeepFile,
		FileBytes:      req.FileBytes,
		Records:        mapped.Accepted,
		DuplicateKeys:  result.UniqueKeys,
		TotalRows:      mapped.TotalRows,
		FilteredOut:    mapped.RejectedCount + mapped.EmptyCount,
		AlreadyPresent: len(result.Duplicates),
		KeySample:      mapped.RejectedKeySample,
	}

	if result.HasDuplicates() {
		token := s.sessions.Put(pending)
		s.metrics.PendingSessions.Inc()
		s.logger.Info("import suspended on duplicate decision",
			"sheet", req.SheetName, "duplicates", len(result.Duplicates))
		return &Outcome{Decision: &Decision{
			ImportID:       token,
			TotalRows:      pending.TotalRows,
			FilteredOut:    pending.FilteredOut,
			AlreadyPresent: pending.AlreadyPresent,
			ToImport:       len(pending.Records) - pending.AlreadyPresent,
			DuplicateKeys:  result.Duplicates,
			FilteredOutKey: pending.KeySample,
		}}, nil
	}

	summary, err := s.commit(ctx, pending)
	if err != nil {
		return nil, err
	}
	return &Outcome{Summary: summary}, nil
}

// CommitImport resolves a pending decision. proceed=false discards the
// import; proceed=true imports the non-duplicate records.
func (s *Service) CommitImport(ctx context.Context, token string, proceed bool) (*Summary, error) {
	pending, ok := s.sessions.Get(token)
	if !ok {
		return nil, ErrImportNotFound
	}
	defer func() {
		s.sessions.Delete(token)
		s.metrics.PendingSessions.Dec()
	}()

	if !proceed {
		return nil, ErrCancelled
	}
	return s.commit(ctx, pending)
}

// CancelImport raises the cooperative cancellation flag of a pending or
// in-flight import. The flag is observed at the run's next checkpoint.
func (s *Service) CancelImport(token string) error {
	pending, ok := s.sessions.Get(token)
	if !ok {
		return ErrImportNotFound
	}
	pending.Cancel()
	return nil
}

// DiscardImport drops a pending decision without importing anything
func (s *Service) DiscardImport(token string) error {
	if _, ok := s.sessions.Get(token); !ok {
		return ErrImportNotFound
	}
	s.sessions.Delete(token)
	s.metrics.PendingSessions.Dec()
	return nil
}

// commit normalizes the non-duplicate records and runs the insert sequence
func (s *Service) commit(ctx context.Context, pending *PendingImport) (*Summary, error) {
	records := make([]*booking.Booking, 0, len(pending.Records))
	for _, rec := range pending.Records {
		if rec.ZuzuRoomConfirmationNumber != nil {
			if _, dup := pending.DuplicateKeys[*rec.ZuzuRoomConfirmationNumber]; dup {
				continue
			}
		}
		records = append(records, rec)
	}

	if err := s.norm.Normalize(ctx, records); err != nil {
		return nil, err
	}
	return s.runTransaction(ctx, pending, records)
}

// runTransaction performs insert, batch-record creation, linking, and the
// optional file save, rolling back everything already committed on the
// first failure or observed cancellation.
func (s *Service) runTransaction(ctx context.Context, pending *PendingImport, records []*booking.Booking) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "import.commit",
		trace.WithAttributes(attribute.Int("records", len(records))))
	defer span.End()

	timer := prometheus.NewTimer(s.metrics.ImportDuration)
	defer timer.ObserveDuration()

	insertedIDs := make([]int64, 0, len(records))
	var arrivalMin, arrivalMax *time.Time

	for _, batch := range chunkRecords(records, BatchSize) {
		if pending.Cancelled() {
			return nil, s.abort(ctx, nil, insertedIDs, ErrCancelled)
		}
		inserted, err := s.repo.BulkInsertBookings(ctx, batch)
		if err != nil {
			return nil, s.abort(ctx, nil, insertedIDs, err)
		}
		for _, row := range inserted {
			insertedIDs = append(insertedIDs, row.ID)
			if row.ArrivalDate == nil {
				continue
			}
			if arrivalMin == nil || row.ArrivalDate.Before(*arrivalMin) {
				arrivalMin = row.ArrivalDate
			}
			if arrivalMax == nil || row.ArrivalDate.After(*arrivalMax) {
				arrivalMax = row.ArrivalDate
			}
		}
	}
	if pending.Cancelled() {
		return nil, s.abort(ctx, nil, insertedIDs, ErrCancelled)
	}

	batchRecord := &Upload{
		FileName:       pending.FileName,
		SheetName:      pending.SheetName,
		RowsUploaded:   len(insertedIDs),
		UploadedBy:     pending.StartedBy,
		ArrivalDateMin: arrivalMin,
		ArrivalDateMax: arrivalMax,
		BookingIDs:     insertedIDs,
	}
	if err := s.repo.CreateUploadRecord(ctx, batchRecord); err != nil {
		return nil, s.abort(ctx, nil, insertedIDs, err)
	}
	if pending.Cancelled() {
		return nil, s.abort(ctx, batchRecord, insertedIDs, ErrCancelled)
	}

	for _, ids := range chunkIDs(insertedIDs, BatchSize) {
		if pending.Cancelled() {
			return nil, s.abort(ctx, batchRecord, insertedIDs, ErrCancelled)
		}
		if err := s.repo.LinkBookings(ctx, batchRecord.ID, ids); err != nil {
			return nil, s.abort(ctx, batchRecord, insertedIDs, err)
		}
	}

	if pending.KeepFile {
		s.saveFile(ctx, batchRecord, pending)
	}

	s.metrics.ImportsTotal.WithLabelValues("completed").Inc()
	s.metrics.RowsImported.Add(float64(len(insertedIDs)))
	s.logger.Info("import completed",
		"upload_id", batchRecord.ID,
		"inserted", len(insertedIDs),
		"already_present", pending.AlreadyPresent,
		"filtered_out", pending.TotalRows-len(insertedIDs)-pending.AlreadyPresent)

	return &Summary{
		UploadID:       batchRecord.ID,
		TotalRows:      pending.TotalRows,
		Inserted:       len(insertedIDs),
		AlreadyPresent: pending.AlreadyPresent,
		FilteredOut:    pending.TotalRows - len(insertedIDs) - pending.AlreadyPresent,
		FilteredOutKey: pending.KeySample,
	}, nil
}

// abort rolls back everything the run committed so far and reports the
// cause. A cleanup failure is surfaced alongside the original error.
func (s *Service) abort(ctx context.Context, batchRecord *Upload, insertedIDs []int64, cause error) error {
	ctx, span := s.tracer.Start(ctx, "import.rollback")
	defer span.End()

	var cleanup []error
	if batchRecord != nil && batchRecord.ID != 0 {
		if err := s.repo.DeleteUploadRecord(ctx, batchRecord.ID); err != nil {
			cleanup = append(cleanup, err)
		}
	}
	for _, ids := range chunkIDs(insertedIDs, BatchSize) {
		if err := s.repo.DeleteBookingsByIDs(ctx, ids); err != nil {
			cleanup = append(cleanup, err)
		}
	}

	if len(insertedIDs) > 0 || batchRecord != nil {
		s.metrics.RollbacksTotal.Inc()
	}
	outcome := "failed"
	if errors.Is(cause, ErrCancelled) {
		outcome = "cancelled"
	}
	s.metrics.ImportsTotal.WithLabelValues(outcome).Inc()
	s.logger.Warn("import rolled back",
		"cause", cause, "rolled_back_rows", len(insertedIDs), "cleanup_errors", len(cleanup))

	if len(cleanup) > 0 {
		return errors.Join(cause, fmt.Errorf("rollback incomplete: %w", errors.Join(cleanup...)))
	}
	return cause
}

// saveFile retains the original workbook under a batch-scoped path.
// Best-effort: a storage failure never rolls back the committed batch.
func (s *Service) saveFile(ctx context.Context, batchRecord *Upload, pending *PendingImport) {
	key := fmt.Sprintf("%d/%s", batchRecord.ID, sanitizeFileName(pending.FileName))
	err := s.store.Put(ctx, key, bytes.NewReader(pending.FileBytes), int64(len(pending.FileBytes)),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err != nil {
		s.logger.Warn("failed to store original file", "upload_id", batchRecord.ID, "error", err)
		return
	}
	if err := s.repo.SetFileStoragePath(ctx, batchRecord.ID, key); err != nil {
		s.logger.Warn("failed to record file storage path", "upload_id", batchRecord.ID, "error", err)
		return
	}
	batchRecord.FileStoragePath = &key
}

// ListUploads returns one page of upload batches, newest first
func (s *Service) ListUploads(ctx context.Context, page, pageSize int) ([]*Upload, int64, error) {
	return s.repo.ListUploads(ctx, page, pageSize)
}

// DeleteUpload removes a batch: its bookings first, then the stored file
// (best-effort), then the batch record.
func (s *Service) DeleteUpload(ctx context.Context, id int64) error {
	batchRecord, err := s.repo.GetUpload(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.bookings.DeleteByUploadID(ctx, id)
	if err != nil {
		return err
	}
	if s.edits != nil {
		if err := s.edits.ForgetRows(ctx, batchRecord.BookingIDs); err != nil {
			return err
		}
	}

	if batchRecord.FileStoragePath != nil {
		if err := s.store.Delete(ctx, *batchRecord.FileStoragePath); err != nil {
			s.logger.Warn("failed to delete stored file", "upload_id", id, "error", err)
		}
	}

	if err := s.repo.DeleteUploadRecord(ctx, id); err != nil {
		return err
	}
	s.logger.Info("upload deleted", "upload_id", id, "bookings_deleted", deleted)
	return nil
}

// FileURL returns a presigned URL for a batch's retained original file
func (s *Service) FileURL(ctx context.Context, id int64) (string, error) {
	batchRecord, err := s.repo.GetUpload(ctx, id)
	if err != nil {
		return "", err
	}
	if batchRecord.FileStoragePath == nil {
		return "", ErrNoStoredFile
	}
	return s.store.PresignGet(ctx, *batchRecord.FileStoragePath, FileURLExpiry)
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func chunkRecords(records []*booking.Booking, size int) [][]*booking.Booking {
	var chunks [][]*booking.Booking
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

func chunkIDs(ids []int64, size int) [][]int64 {
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
