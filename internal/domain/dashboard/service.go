package dashboard

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	topCountries = 10
	topChannels  = 8
	trendMonths  = 12
)

// Repository is the persistence surface the service needs
type Repository interface {
	Slice(ctx context.Context, filter Filter) ([]Row, error)
	CountUploads(ctx context.Context) (int64, error)
	CountEdits(ctx context.Context) (int64, error)
}

// Service computes the dashboard aggregates
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates the dashboard service
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Summary loads the booking slice and computes every aggregate
func (s *Service) Summary(ctx context.Context, filter Filter) (*Summary, error) {
	rows, err := s.repo.Slice(ctx, filter)
	if err != nil {
		return nil, err
	}
	uploads, err := s.repo.CountUploads(ctx)
	if err != nil {
		return nil, err
	}
	edits, err := s.repo.CountEdits(ctx)
	if err != nil {
		return nil, err
	}

	return &Summary{
		KPIs:        computeKPIs(rows),
		ByCountry:   byCountry(rows),
		ByChannel:   byChannel(rows),
		ByStatus:    byStatus(rows),
		ByMonth:     byMonth(rows),
		UploadCount: uploads,
		EditCount:   edits,
	}, nil
}

// received prefers total_amount_received and falls back to amount_received
func received(r Row) decimal.Decimal {
	if r.TotalAmountReceived != nil {
		return *r.TotalAmountReceived
	}
	return deref(r.AmountReceived)
}

func computeKPIs(rows []Row) KPIs {
	var submitted, gotten, balance decimal.Decimal
	for _, r := range rows {
		submitted = submitted.Add(deref(r.TotalAmountSubmitted))
		gotten = gotten.Add(received(r))
		balance = balance.Add(deref(r.Balance))
	}
	return KPIs{
		Count:          len(rows),
		TotalSubmitted: round2(submitted),
		TotalReceived:  round2(gotten),
		TotalBalance:   round2(balance),
		Unreconciled:   round2(submitted.Sub(gotten)),
	}
}

func byCountry(rows []Row) []CountryBucket {
	type acc struct {
		count  int
		amount decimal.Decimal
	}
	buckets := make(map[string]*acc)
	for _, r := range rows {
		key := bucketName(r.Country)
		a, ok := buckets[key]
		if !ok {
			a = &acc{}
			buckets[key] = a
		}
		a.count++
		a.amount = a.amount.Add(deref(r.TotalAmountSubmitted))
	}

	out := make([]CountryBucket, 0, len(buckets))
	for name, a := range buckets {
		out = append(out, CountryBucket{Name: name, Count: a.count, Amount: round2(a.amount)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topCountries {
		out = out[:topCountries]
	}
	return out
}

func byChannel(rows []Row) []NamedAmount {
	buckets := make(map[string]decimal.Decimal)
	for _, r := range rows {
		key := bucketName(r.Channel)
		buckets[key] = buckets[key].Add(deref(r.TotalAmountSubmitted))
	}
	out := sortNamed(buckets)
	if len(out) > topChannels {
		out = out[:topChannels]
	}
	return out
}

func byStatus(rows []Row) []NamedAmount {
	buckets := make(map[string]decimal.Decimal)
	for _, r := range rows {
		key := bucketName(r.Status)
		buckets[key] = buckets[key].Add(decimal.NewFromInt(1))
	}
	return sortNamed(buckets)
}

func byMonth(rows []Row) []MonthBucket {
	type acc struct {
		submitted decimal.Decimal
		received  decimal.Decimal
		count     int
	}
	buckets := make(map[string]*acc)
	for _, r := range rows {
		month := "No date"
		switch {
		case r.PaymentRequestDate != nil:
			month = r.PaymentRequestDate.Format("2006-01")
		case !r.CreatedAt.IsZero():
			month = r.CreatedAt.Format("2006-01")
		}
		a, ok := buckets[month]
		if !ok {
			a = &acc{}
			buckets[month] = a
		}
		a.submitted = a.submitted.Add(deref(r.TotalAmountSubmitted))
		a.received = a.received.Add(received(r))
		a.count++
	}

	out := make([]MonthBucket, 0, len(buckets))
	for month, a := range buckets {
		out = append(out, MonthBucket{
			Month:     month,
			Submitted: round2(a.submitted),
			Received:  round2(a.received),
			Count:     a.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	if len(out) > trendMonths {
		out = out[len(out)-trendMonths:]
	}
	return out
}

func sortNamed(buckets map[string]decimal.Decimal) []NamedAmount {
	out := make([]NamedAmount, 0, len(buckets))
	for name, v := range buckets {
		out = append(out, NamedAmount{Name: name, Value: round2(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func bucketName(v *string) string {
	if v == nil {
		return "Unknown"
	}
	name := strings.TrimSpace(*v)
	if name == "" {
		return "Unknown"
	}
	return name
}

func deref(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Decimal{}
	}
	return *v
}

func round2(v decimal.Decimal) float64 {
	f, _ := v.Round(2).Float64()
	return f
}
