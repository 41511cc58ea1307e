package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hotelops/ota-reconciliation/internal/domain/booking"
)

type fakeRepo struct {
	mu     sync.Mutex
	nextID int64

	bookings map[int64]*booking.Booking
	uploads  map[int64]*Upload

	existingKeys []int64
	currencies   map[string]string

	failInsertAfter  int // fail the nth insert call (1-based), 0 disables
	insertCalls      int
	failCreateUpload bool
	failLinkAfter    int // fail the nth link call (1-based), 0 disables
	linkCalls        int
	failDelete       bool

	afterCreateUpload func()
	afterInsert       func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		bookings:   make(map[int64]*booking.Booking),
		uploads:    make(map[int64]*Upload),
		currencies: map[string]string{"Singapore": "SGD", "Thailand": "THB"},
	}
}

func (f *fakeRepo) BulkInsertBookings(_ context.Context, records []*booking.Booking) ([]InsertedRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.failInsertAfter > 0 && f.insertCalls >= f.failInsertAfter {
		return nil, errors.New("insert failed")
	}
	out := make([]InsertedRow, 0, len(records))
	for _, rec := range records {
		f.nextID++
		clone := *rec
		clone.ID = f.nextID
		f.bookings[f.nextID] = &clone
		out = append(out, InsertedRow{ID: f.nextID, ArrivalDate: rec.ArrivalDate})
	}
	if f.afterInsert != nil {
		f.afterInsert()
	}
	return out, nil
}

func (f *fakeRepo) CreateUploadRecord(_ context.Context, u *Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateUpload {
		return errors.New("upload record insert failed")
	}
	f.nextID++
	u.ID = f.nextID
	u.UploadedAt = time.Now()
	clone := *u
	f.uploads[u.ID] = &clone
	if f.afterCreateUpload != nil {
		f.afterCreateUpload()
	}
	return nil
}

func (f *fakeRepo) LinkBookings(_ context.Context, uploadID int64, bookingIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls++
	if f.failLinkAfter > 0 && f.linkCalls >= f.failLinkAfter {
		return errors.New("link failed")
	}
	for _, id := range bookingIDs {
		if b, ok := f.bookings[id]; ok {
			uid := uploadID
			b.UploadID = &uid
		}
	}
	return nil
}

func (f *fakeRepo) DeleteBookingsByIDs(_ context.Context, bookingIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("delete failed")
	}
	for _, id := range bookingIDs {
		delete(f.bookings, id)
	}
	return nil
}

func (f *fakeRepo) DeleteUploadRecord(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, id)
	return nil
}

func (f *fakeRepo) SetFileStoragePath(_ context.Context, id int64, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.uploads[id]; ok {
		u.FileStoragePath = &path
	}
	return nil
}

func (f *fakeRepo) GetUpload(_ context.Context, id int64) (*Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.uploads[id]
	if !ok {
		return nil, errors.New("upload not found")
	}
	clone := *u
	return &clone, nil
}

func (f *fakeRepo) ListUploads(_ context.Context, _, _ int) ([]*Upload, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Upload
	for _, u := range f.uploads {
		clone := *u
		out = append(out, &clone)
	}
	return out, int64(len(out)), nil
}

func (f *fakeRepo) ConfirmationNumbersPage(_ context.Context, offset, limit int) ([]int64, error) {
	if offset >= len(f.existingKeys) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.existingKeys) {
		end = len(f.existingKeys)
	}
	return f.existingKeys[offset:end], nil
}

func (f *fakeRepo) CurrencyByCountry(context.Context) (map[string]string, error) {
	return f.currencies, nil
}

type fakeDeleter struct {
	repo *fakeRepo
}

func (d *fakeDeleter) DeleteByUploadID(_ context.Context, uploadID int64) (int64, error) {
	d.repo.mu.Lock()
	defer d.repo.mu.Unlock()
	var n int64
	for id, b := range d.repo.bookings {
		if b.UploadID != nil && *b.UploadID == uploadID {
			delete(d.repo.bookings, id)
			n++
		}
	}
	return n, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://example.test/" + key, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func newTestService(repo *fakeRepo, store *fakeStore) *Service {
	return NewService(repo, &fakeDeleter{repo: repo}, store,
		NewSessionStore(0),
		NewMetrics(prometheus.NewRegistry()),
		noop.NewTracerProvider().Tracer("test"),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// sheetRow is header-ordered cell values for the template columns used in
// tests: A, D, F, H, M, T at their real positions.
func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	header := map[string]string{
		"A1": "Confirmation", "D1": "Hotel", "F1": "Country", "H1": "Guest",
		"M1": "Arrival", "N1": "Departure", "T1": "Type", "AR1": "Channel",
		"AY1": "Invoicing", "CN1": "Net",
	}
	for cell, v := range header {
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}
	for i, row := range rows {
		n := i + 2
		cells := map[string]string{
			"A": row[0], "D": row[1], "F": row[2], "H": row[3],
			"M": row[4], "T": row[5], "AR": row[6], "AY": row[7], "CN": row[8],
		}
		for col, v := range cells {
			if v == "" {
				continue
			}
			require.NoError(t, f.SetCellValue("Sheet1", col+itoa(n), v))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func itoa(n int) string {
	cell, _ := excelize.CoordinatesToCellName(1, n)
	return cell[1:]
}

const managedInvoicing = "ZUZU manages channel payments, hotel liable for these payments"

func importRow(key string) []string {
	return []string{key, "Grand Plaza", "Singapore", "Alex Tan", "2025-03-10", "Regular", "Agoda", managedInvoicing, "100.50"}
}

func TestStartImportNoDuplicatesCommitsImmediately(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeStore())

	data := workbook(t, [][]string{
		importRow("1001"),
		importRow("1002"),
		{"1003", "Hotel", "Nowhere", "Guest", "2025-03-11", "Cancelled", "Agoda", managedInvoicing, "50"},
	})

	outcome, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data, Actor: "ops@zuzu.test",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Summary)
	assert.Nil(t, outcome.Decision)

	s := outcome.Summary
	assert.Equal(t, 3, s.TotalRows)
	assert.Equal(t, 2, s.Inserted)
	assert.Equal(t, 0, s.AlreadyPresent)
	assert.Equal(t, 1, s.FilteredOut)
	assert.Equal(t, []string{"1003"}, s.FilteredOutKey)

	// Linking completeness: every inserted row carries the batch id and
	// appears in the batch's booking-id list.
	u := repo.uploads[s.UploadID]
	require.NotNil(t, u)
	assert.Len(t, u.BookingIDs, 2)
	for _, id := range u.BookingIDs {
		b := repo.bookings[id]
		require.NotNil(t, b)
		require.NotNil(t, b.UploadID)
		assert.Equal(t, s.UploadID, *b.UploadID)
		require.NotNil(t, b.Currency)
		assert.Equal(t, "SGD", *b.Currency)
	}
}

func TestStartImportDuplicatesSuspend(t *testing.T) {
	repo := newFakeRepo()
	repo.existingKeys = []int64{1001, 1002}
	svc := newTestService(repo, newFakeStore())

	data := workbook(t, [][]string{
		importRow("1001"),
		importRow("1002"),
		importRow("2001"),
		importRow("2002"),
	})

	outcome, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data, Actor: "ops@zuzu.test",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)
	assert.Nil(t, outcome.Summary)

	d := outcome.Decision
	assert.Equal(t, 4, d.TotalRows)
	assert.Equal(t, 2, d.AlreadyPresent)
	assert.Equal(t, 2, d.ToImport)
	assert.Equal(t, 0, d.FilteredOut)
	assert.ElementsMatch(t, []int64{1001, 1002}, d.DuplicateKeys)
	assert.Empty(t, repo.bookings, "nothing may be inserted before the decision")

	summary, err := svc.CommitImport(context.Background(), d.ImportID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 2, summary.AlreadyPresent)
	assert.Len(t, repo.bookings, 2)
	for _, b := range repo.bookings {
		require.NotNil(t, b.ZuzuRoomConfirmationNumber)
		assert.NotContains(t, []int64{1001, 1002}, *b.ZuzuRoomConfirmationNumber)
	}

	// The token is single-use
	_, err = svc.CommitImport(context.Background(), d.ImportID, true)
	assert.ErrorIs(t, err, ErrImportNotFound)
}

func TestCommitImportDeclined(t *testing.T) {
	repo := newFakeRepo()
	repo.existingKeys = []int64{1001}
	svc := newTestService(repo, newFakeStore())

	data := workbook(t, [][]string{importRow("1001"), importRow("2001")})
	outcome, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data, Actor: "ops@zuzu.test",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)

	_, err = svc.CommitImport(context.Background(), outcome.Decision.ImportID, false)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, repo.bookings)
	assert.Empty(t, repo.uploads)
}

func TestCommitImportUnknownToken(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeStore())
	_, err := svc.CommitImport(context.Background(), "no-such-token", true)
	assert.ErrorIs(t, err, ErrImportNotFound)
}

func TestBatchRecordFailureRollsBackBookings(t *testing.T) {
	repo := newFakeRepo()
	repo.failCreateUpload = true
	svc := newTestService(repo, newFakeStore())

	data := workbook(t, [][]string{importRow("1001"), importRow("1002")})
	_, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data, Actor: "ops@zuzu.test",
	})
	require.Error(t, err)

	// Rollback completeness: no orphaned bookings remain
	assert.Empty(t, repo.bookings)
	assert.Empty(t, repo.uploads)
}

func TestLinkFailureRollsBackEverything(t *testing.T) {
	repo := newFakeRepo()
	repo.failLinkAfter = 1
	svc := newTestService(repo, newFakeStore())

	data := workbook(t, [][]string{importRow("1001"), importRow("1002")})
	_, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data, Actor: "ops@zuzu.test",
	})
	require.Error(t, err)
	assert.Empty(t, repo.bookings)
	assert.Empty(t, repo.uploads)
}

func TestRollbackFailureSurfacesBothErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.failCreateUpload = true
	repo.failDelete = true
	svc := newTestService(repo, newFakeStore())

	data := workbook(t, [][]string{importRow("1001")})
	_, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data, Actor: "ops@zuzu.test",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload record insert failed")
	assert.Contains(t, err.Error(), "rollback incomplete")
}

func TestCancellationAfterBatchRecordRollsBack(t *testing.T) {
	repo := newFakeRepo()
	repo.existingKeys = []int64{9999}
	svc := newTestService(repo, newFakeStore())

	// Suspend on a decision so the pending import is reachable, then raise
	// the flag right after batch-record creation.
	data := workbook(t, [][]string{importRow("9999"), importRow("1001"), importRow("1002")})
	outcome, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data, Actor: "ops@zuzu.test",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)

	pending, ok := svc.sessions.Get(outcome.Decision.ImportID)
	require.True(t, ok)
	repo.afterCreateUpload = pending.Cancel

	_, err = svc.CommitImport(context.Background(), outcome.Decision.ImportID, true)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, repo.bookings)
	assert.Empty(t, repo.uploads)
}

func TestCancelBeforeCommitInsertsNothing(t *testing.T) {
	repo := newFakeRepo()
	repo.existingKeys = []int64{1001}
	svc := newTestService(repo, newFakeStore())

	data := workbook(t, [][]string{importRow("1001"), importRow("2001")})
	outcome, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data, Actor: "ops@zuzu.test",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)

	require.NoError(t, svc.CancelImport(outcome.Decision.ImportID))
	_, err = svc.CommitImport(context.Background(), outcome.Decision.ImportID, true)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, repo.bookings)
	assert.Equal(t, 0, repo.insertCalls)
}

func TestFileRetention(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	svc := newTestService(repo, store)

	data := workbook(t, [][]string{importRow("1001")})
	outcome, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march report (final).xlsx", SheetName: "Sheet1", FileBytes: data,
		KeepFile: true, Actor: "ops@zuzu.test",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Summary)

	u := repo.uploads[outcome.Summary.UploadID]
	require.NotNil(t, u.FileStoragePath)
	assert.Contains(t, *u.FileStoragePath, "march_report__final_.xlsx")
	assert.Contains(t, store.objects, *u.FileStoragePath)

	url, err := svc.FileURL(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Contains(t, url, *u.FileStoragePath)
}

func TestFileURLWithoutStoredFile(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeStore())

	data := workbook(t, [][]string{importRow("1001")})
	outcome, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data, Actor: "ops@zuzu.test",
	})
	require.NoError(t, err)

	_, err = svc.FileURL(context.Background(), outcome.Summary.UploadID)
	assert.ErrorIs(t, err, ErrNoStoredFile)
}

func TestDeleteUploadCascades(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	svc := newTestService(repo, store)
	trails := &fakeTrailDeleter{}
	svc.WithEditTrailDeleter(trails)

	data := workbook(t, [][]string{importRow("1001"), importRow("1002")})
	outcome, err := svc.StartImport(context.Background(), StartImportRequest{
		FileName: "march.xlsx", SheetName: "Sheet1", FileBytes: data,
		KeepFile: true, Actor: "ops@zuzu.test",
	})
	require.NoError(t, err)
	id := outcome.Summary.UploadID
	bookingIDs := repo.uploads[id].BookingIDs

	require.NoError(t, svc.DeleteUpload(context.Background(), id))
	assert.Empty(t, repo.bookings)
	assert.Empty(t, repo.uploads)
	assert.Len(t, store.deleted, 1)
	assert.ElementsMatch(t, bookingIDs, trails.forgotten, "edit trails of the batch rows go with it")
}

type fakeTrailDeleter struct {
	forgotten []int64
}

func (f *fakeTrailDeleter) ForgetRows(_ context.Context, rowIDs []int64) error {
	f.forgotten = append(f.forgotten, rowIDs...)
	return nil
}
