package normalizer

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelops/ota-reconciliation/internal/domain/booking"
)

type fakeCurrencySource struct {
	table map[string]string
	err   error
}

func (f *fakeCurrencySource) CurrencyByCountry(context.Context) (map[string]string, error) {
	return f.table, f.err
}

func strPtr(s string) *string { return &s }

func amountPtr(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestFillCurrency(t *testing.T) {
	lookup := map[string]string{"singapore": "SGD", "thailand": "THB"}

	tests := []struct {
		name    string
		country *string
		want    *string
	}{
		{"exact match", strPtr("singapore"), strPtr("SGD")},
		{"case and whitespace", strPtr("  Singapore "), strPtr("SGD")},
		{"no match", strPtr("Atlantis"), nil},
		{"nil country", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &booking.Booking{Country: tt.country}
			FillCurrency(b, lookup)
			if tt.want == nil {
				assert.Nil(t, b.Currency)
			} else {
				require.NotNil(t, b.Currency)
				assert.Equal(t, *tt.want, *b.Currency)
			}
		})
	}
}

func TestNegatePostpayAmount(t *testing.T) {
	tests := []struct {
		name    string
		channel *string
		amount  *decimal.Decimal
		want    string
	}{
		{"postpay positive", strPtr("Agoda Postpay"), amountPtr("150.50"), "-150.5"},
		{"postpay already negative stays negative", strPtr("agoda postpay"), amountPtr("-150.50"), "-150.5"},
		{"postpay substring mid-name", strPtr("XPostpayY"), amountPtr("10"), "-10"},
		{"prepay untouched", strPtr("Agoda"), amountPtr("150.50"), "150.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &booking.Booking{Channel: tt.channel, NetAmountByZuzu: tt.amount}
			NegatePostpayAmount(b)
			require.NotNil(t, b.NetAmountByZuzu)
			assert.Equal(t, tt.want, b.NetAmountByZuzu.String())
		})
	}

	t.Run("nil amount untouched", func(t *testing.T) {
		b := &booking.Booking{Channel: strPtr("Postpay")}
		NegatePostpayAmount(b)
		assert.Nil(t, b.NetAmountByZuzu)
	})
}

func TestNegatePostpayAmountIdempotent(t *testing.T) {
	b := &booking.Booking{Channel: strPtr("Expedia Postpay"), NetAmountByZuzu: amountPtr("99.99")}
	NegatePostpayAmount(b)
	NegatePostpayAmount(b)
	assert.Equal(t, "-99.99", b.NetAmountByZuzu.String())
}

func TestNormalizeAppliesBothTransforms(t *testing.T) {
	n := New(&fakeCurrencySource{table: map[string]string{" Singapore ": "SGD"}})

	records := []*booking.Booking{
		{Country: strPtr("SINGAPORE"), Channel: strPtr("Traveloka Postpay"), NetAmountByZuzu: amountPtr("200")},
		{Country: strPtr("Nowhere")},
	}
	require.NoError(t, n.Normalize(context.Background(), records))

	require.NotNil(t, records[0].Currency)
	assert.Equal(t, "SGD", *records[0].Currency)
	assert.Equal(t, "-200", records[0].NetAmountByZuzu.String())
	assert.Nil(t, records[1].Currency)
}

func TestNormalizeLookupError(t *testing.T) {
	n := New(&fakeCurrencySource{err: errors.New("table missing")})
	err := n.Normalize(context.Background(), []*booking.Booking{{}})
	assert.Error(t, err)
}
