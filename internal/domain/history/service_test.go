package history

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	entries map[int64]*Entry
	nextID  int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: make(map[int64]*Entry)}
}

func (f *fakeRepo) Insert(_ context.Context, e *Entry) error {
	f.nextID++
	e.ID = f.nextID
	e.EditedAt = time.Now()
	clone := *e
	f.entries[e.ID] = &clone
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (f *fakeRepo) List(_ context.Context, _, _ int) ([]*Entry, int64, error) {
	var out []*Entry
	for _, e := range f.entries {
		clone := *e
		out = append(out, &clone)
	}
	return out, int64(len(out)), nil
}

func (f *fakeRepo) MarkUndone(_ context.Context, id int64, actor string) error {
	e, ok := f.entries[id]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	e.UndoneAt = &now
	e.UndoneBy = &actor
	return nil
}

func (f *fakeRepo) DeleteByRows(_ context.Context, tableName string, rowIDs []int64) error {
	for id, e := range f.entries {
		for _, rowID := range rowIDs {
			if e.TableName == tableName && e.RowID == rowID {
				delete(f.entries, id)
			}
		}
	}
	return nil
}

type fakeReverter struct {
	calls []revertCall
	err   error
}

type revertCall struct {
	rowID  int64
	column string
	value  *string
	actor  string
}

func (f *fakeReverter) RevertCell(_ context.Context, rowID int64, column string, value *string, actor string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, revertCall{rowID, column, value, actor})
	return nil
}

func newTestService() (*Service, *fakeRepo, *fakeReverter) {
	repo := newFakeRepo()
	reverter := &fakeReverter{}
	svc := NewService(repo, reverter, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo, reverter
}

func strp(s string) *string { return &s }

func logEdit(t *testing.T, svc *Service, old, new *string) int64 {
	t.Helper()
	require.NoError(t, svc.Log(context.Background(), "bookings", 7, "amount_received",
		old, new, "Confirmation #12345", "ops@zuzu.test"))
	return 1
}

func TestLogRecordsEntry(t *testing.T) {
	svc, repo, _ := newTestService()
	id := logEdit(t, svc, nil, strp("100"))

	e := repo.entries[id]
	require.NotNil(t, e)
	assert.Equal(t, "bookings", e.TableName)
	assert.Equal(t, int64(7), e.RowID)
	assert.Equal(t, "amount_received", e.ColumnName)
	assert.Nil(t, e.OldValue)
	assert.Equal(t, "100", *e.NewValue)
	assert.Equal(t, "ops@zuzu.test", e.EditedBy)
	assert.Equal(t, "Confirmation #12345", *e.RowDisplay)
	assert.False(t, e.Undone())
}

func TestUndoRevertsAndMarks(t *testing.T) {
	svc, repo, reverter := newTestService()
	id := logEdit(t, svc, strp("50"), strp("100"))

	entry, err := svc.Undo(context.Background(), id, "lead@zuzu.test")
	require.NoError(t, err)

	require.Len(t, reverter.calls, 1)
	call := reverter.calls[0]
	assert.Equal(t, int64(7), call.rowID)
	assert.Equal(t, "amount_received", call.column)
	assert.Equal(t, "50", *call.value, "undo restores the old value")
	assert.Equal(t, "lead@zuzu.test", call.actor)

	assert.True(t, entry.Undone())
	assert.Equal(t, "lead@zuzu.test", *entry.UndoneBy)
	assert.True(t, repo.entries[id].Undone())
}

func TestUndoTwiceRejected(t *testing.T) {
	svc, _, _ := newTestService()
	id := logEdit(t, svc, strp("50"), strp("100"))

	_, err := svc.Undo(context.Background(), id, "ops@zuzu.test")
	require.NoError(t, err)

	_, err = svc.Undo(context.Background(), id, "ops@zuzu.test")
	assert.ErrorIs(t, err, ErrAlreadyUndone)
}

func TestUndoUnknownEntry(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Undo(context.Background(), 99, "ops@zuzu.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForgetRowsDropsEditTrail(t *testing.T) {
	svc, repo, _ := newTestService()
	logEdit(t, svc, nil, strp("100"))
	logEdit(t, svc, strp("100"), strp("150"))
	require.NoError(t, svc.Log(context.Background(), "bookings", 8, "remarks",
		nil, strp("paid"), "Row #8", "ops@zuzu.test"))

	require.NoError(t, svc.ForgetRows(context.Background(), []int64{7}))

	require.Len(t, repo.entries, 1, "only the deleted row's trail goes")
	for _, e := range repo.entries {
		assert.Equal(t, int64(8), e.RowID)
	}
}

func TestUndoRevertFailureLeavesEntryIntact(t *testing.T) {
	svc, repo, reverter := newTestService()
	reverter.err = errors.New("row deleted")
	id := logEdit(t, svc, strp("50"), strp("100"))

	_, err := svc.Undo(context.Background(), id, "ops@zuzu.test")
	require.Error(t, err)
	assert.False(t, repo.entries[id].Undone(), "a failed revert must not mark the entry undone")
}
