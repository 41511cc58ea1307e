// Package dashboard aggregates the bookings table into the reconciliation
// overview: KPIs, country/channel/status breakdowns, and a monthly trend.
package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

// SliceLimit caps how many booking rows feed the aggregates. The dashboard
// is an overview, not a report; the cap keeps the query bounded.
const SliceLimit = 10000

// Row is the projection of a booking the aggregates need
type Row struct {
	Country              *string
	Channel              *string
	Currency             *string
	Status               *string
	TotalAmountSubmitted *decimal.Decimal
	TotalAmountReceived  *decimal.Decimal
	AmountReceived       *decimal.Decimal
	Balance              *decimal.Decimal
	PaymentRequestDate   *time.Time
	CreatedAt            time.Time
}

// Filter narrows the booking slice by set membership and creation date.
// DateFrom and DateTo are YYYY-MM-DD and bound created_at inclusively.
type Filter struct {
	Countries  []string
	Channels   []string
	Currencies []string
	Statuses   []string
	DateFrom   string
	DateTo     string
}

// KPIs are the headline numbers
type KPIs struct {
	Count          int     `json:"count"`
	TotalSubmitted float64 `json:"total_submitted"`
	TotalReceived  float64 `json:"total_received"`
	TotalBalance   float64 `json:"total_balance"`
	Unreconciled   float64 `json:"unreconciled"`
}

// CountryBucket is one country's share
type CountryBucket struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// NamedAmount is a generic name/value pair for channel and status charts
type NamedAmount struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// MonthBucket is one month of submitted/received totals
type MonthBucket struct {
	Month     string  `json:"month"`
	Submitted float64 `json:"submitted"`
	Received  float64 `json:"received"`
	Count     int     `json:"count"`
}

// Summary is the full dashboard payload
type Summary struct {
	KPIs        KPIs            `json:"kpis"`
	ByCountry   []CountryBucket `json:"by_country"`
	ByChannel   []NamedAmount   `json:"by_channel"`
	ByStatus    []NamedAmount   `json:"by_status"`
	ByMonth     []MonthBucket   `json:"by_month"`
	UploadCount int64           `json:"upload_count"`
	EditCount   int64           `json:"edit_count"`
}
