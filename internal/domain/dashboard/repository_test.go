package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sliceColumns = []string{
	"country", "channel", "currency", "status",
	"total_amount_submitted", "total_amount_received", "amount_received",
	"balance", "payment_request_date", "created_at",
}

func emptySliceRow(createdAt time.Time) []any {
	return []any{nil, nil, nil, nil, nil, nil, nil, nil, nil, createdAt}
}

func TestSliceDateRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2025, time.January, 15, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM bookings WHERE created_at >= \$1 AND created_at <= \$2`).
		WithArgs("2025-01-01T00:00:00.000Z", "2025-01-31T23:59:59.999Z", SliceLimit).
		WillReturnRows(pgxmock.NewRows(sliceColumns).AddRow(emptySliceRow(created)...))

	repo := NewPostgresRepository(mock)
	rows, err := repo.Slice(context.Background(), Filter{
		DateFrom: "2025-01-01",
		DateTo:   "2025-01-31",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, created, rows[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSliceSetAndDateFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`WHERE country = ANY\(\$1\) AND created_at >= \$2`).
		WithArgs([]string{"Singapore"}, "2025-01-01T00:00:00.000Z", SliceLimit).
		WillReturnRows(pgxmock.NewRows(sliceColumns))

	repo := NewPostgresRepository(mock)
	rows, err := repo.Slice(context.Background(), Filter{
		Countries: []string{"Singapore"},
		DateFrom:  "2025-01-01",
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSliceNoFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM bookings\s+ORDER BY id`).
		WithArgs(SliceLimit).
		WillReturnRows(pgxmock.NewRows(sliceColumns))

	repo := NewPostgresRepository(mock)
	_, err = repo.Slice(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
