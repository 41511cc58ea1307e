package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows       []Row
	uploads    int64
	edits      int64
	lastFilter Filter
}

func (f *fakeRepo) Slice(_ context.Context, filter Filter) ([]Row, error) {
	f.lastFilter = filter
	return f.rows, nil
}
func (f *fakeRepo) CountUploads(context.Context) (int64, error) { return f.uploads, nil }
func (f *fakeRepo) CountEdits(context.Context) (int64, error)   { return f.edits, nil }

func newTestService(rows []Row) *Service {
	return NewService(&fakeRepo{rows: rows, uploads: 4, edits: 9},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func strp(s string) *string { return &s }

func amount(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func datep(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSummaryPassesFilterThrough(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	filter := Filter{
		Countries: []string{"Singapore"},
		DateFrom:  "2025-01-01",
		DateTo:    "2025-01-31",
	}
	_, err := svc.Summary(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, filter, repo.lastFilter)
}

func TestSummaryKPIs(t *testing.T) {
	rows := []Row{
		{TotalAmountSubmitted: amount("100"), TotalAmountReceived: amount("60"), Balance: amount("40")},
		// total_amount_received nil: received falls back to amount_received
		{TotalAmountSubmitted: amount("50.555"), AmountReceived: amount("20")},
		{},
	}
	summary, err := newTestService(rows).Summary(context.Background(), Filter{})
	require.NoError(t, err)

	k := summary.KPIs
	assert.Equal(t, 3, k.Count)
	assert.InDelta(t, 150.56, k.TotalSubmitted, 0.001)
	assert.InDelta(t, 80.0, k.TotalReceived, 0.001)
	assert.InDelta(t, 40.0, k.TotalBalance, 0.001)
	assert.InDelta(t, 70.56, k.Unreconciled, 0.001)
	assert.Equal(t, int64(4), summary.UploadCount)
	assert.Equal(t, int64(9), summary.EditCount)
}

func TestByCountryTopTenWithUnknownBucket(t *testing.T) {
	var rows []Row
	for i := 0; i < 12; i++ {
		country := fmt.Sprintf("Country %02d", i)
		rows = append(rows, Row{
			Country:              &country,
			TotalAmountSubmitted: amount(fmt.Sprintf("%d", (i+1)*10)),
		})
	}
	rows = append(rows, Row{Country: strp("  ")}, Row{Country: nil})

	summary, err := newTestService(rows).Summary(context.Background(), Filter{})
	require.NoError(t, err)

	require.Len(t, summary.ByCountry, 10)
	assert.Equal(t, "Country 11", summary.ByCountry[0].Name)
	assert.InDelta(t, 120.0, summary.ByCountry[0].Amount, 0.001)

	// Blank and nil countries share one bucket, but it ranks below the cut
	for _, b := range summary.ByCountry {
		assert.NotEqual(t, "Unknown", b.Name)
	}
}

func TestByChannelTopEight(t *testing.T) {
	var rows []Row
	for i := 0; i < 9; i++ {
		channel := fmt.Sprintf("Channel %d", i)
		rows = append(rows, Row{Channel: &channel, TotalAmountSubmitted: amount("10")})
	}
	summary, err := newTestService(rows).Summary(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, summary.ByChannel, 8)
}

func TestByStatusCounts(t *testing.T) {
	rows := []Row{
		{Status: strp("Checked out")},
		{Status: strp("Checked out")},
		{Status: nil},
	}
	summary, err := newTestService(rows).Summary(context.Background(), Filter{})
	require.NoError(t, err)

	require.Len(t, summary.ByStatus, 2)
	assert.Equal(t, NamedAmount{Name: "Checked out", Value: 2}, summary.ByStatus[0])
	assert.Equal(t, NamedAmount{Name: "Unknown", Value: 1}, summary.ByStatus[1])
}

func TestByMonthLastTwelvePreferringPaymentRequestDate(t *testing.T) {
	gofakeit.Seed(7)
	var rows []Row
	for i := 0; i < 14; i++ {
		rows = append(rows, Row{
			PaymentRequestDate:   datep(2024, time.January, 1),
			CreatedAt:            gofakeit.Date(),
			TotalAmountSubmitted: amount("5"),
		})
	}
	// Months come from payment_request_date when present
	for i := range rows {
		d := time.Date(2024, time.Month(i%14+1), 1, 0, 0, 0, 0, time.UTC)
		if i%14+1 > 12 {
			d = time.Date(2025, time.Month(i%14-11), 1, 0, 0, 0, 0, time.UTC)
		}
		rows[i].PaymentRequestDate = &d
	}
	rows = append(rows, Row{CreatedAt: time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC)})

	summary, err := newTestService(rows).Summary(context.Background(), Filter{})
	require.NoError(t, err)

	require.Len(t, summary.ByMonth, 12, "trend keeps only the last 12 months")
	assert.Equal(t, "2024-03", summary.ByMonth[0].Month, "oldest months fall off the front")
	assert.Equal(t, "2025-02", summary.ByMonth[len(summary.ByMonth)-1].Month)
}
