// Package normalizer applies the two value transforms that run between
// duplicate detection and insert: currency fill from the country lookup and
// sign correction for postpay channels. The transforms are independent and
// order-insensitive.
package normalizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hotelops/ota-reconciliation/internal/domain/booking"
)

// CurrencySource provides the country to currency-code lookup table
type CurrencySource interface {
	CurrencyByCountry(ctx context.Context) (map[string]string, error)
}

// Normalizer fills currencies and fixes postpay amount signs
type Normalizer struct {
	currencies CurrencySource
}

// New creates a normalizer backed by the given lookup table
func New(currencies CurrencySource) *Normalizer {
	return &Normalizer{currencies: currencies}
}

// Normalize applies both transforms in place
func (n *Normalizer) Normalize(ctx context.Context, records []*booking.Booking) error {
	byCountry, err := n.currencies.CurrencyByCountry(ctx)
	if err != nil {
		return fmt.Errorf("failed to load currency lookup: %w", err)
	}

	lookup := make(map[string]string, len(byCountry))
	for country, code := range byCountry {
		lookup[strings.ToLower(strings.TrimSpace(country))] = code
	}

	for _, record := range records {
		FillCurrency(record, lookup)
		NegatePostpayAmount(record)
	}
	return nil
}

// FillCurrency sets the record's currency from the lookup, matching the
// country trimmed and case-insensitively. No match leaves currency nil.
func FillCurrency(b *booking.Booking, byCountry map[string]string) {
	if b.Country == nil {
		return
	}
	code, ok := byCountry[strings.ToLower(strings.TrimSpace(*b.Country))]
	if !ok || code == "" {
		return
	}
	b.Currency = &code
}

// NegatePostpayAmount forces the net amount negative when the channel name
// contains "postpay": those amounts are payable to the hotel, not
// receivable. Negating the absolute value keeps the transform idempotent.
func NegatePostpayAmount(b *booking.Booking) {
	if b.Channel == nil || b.NetAmountByZuzu == nil {
		return
	}
	if !strings.Contains(strings.ToLower(*b.Channel), "postpay") {
		return
	}
	v := b.NetAmountByZuzu.Abs().Neg()
	b.NetAmountByZuzu = &v
}
