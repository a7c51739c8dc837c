package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-core/internal/domain"
)

func line(price string, qty int) domain.CartLine {
	return domain.CartLine{Quantity: qty, Product: domain.Product{Price: decimal.RequireFromString(price)}}
}

func TestCompute_EightPercentTax(t *testing.T) {
	totals := DefaultPolicy().Compute([]domain.CartLine{line("100.00", 5)})

	assert.Equal(t, 5, totals.ItemCount)
	assert.Equal(t, "500.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "40.00", totals.Tax.StringFixed(2))
	assert.Equal(t, "540.00", totals.Total.StringFixed(2))
	assert.Equal(t, "29.70", totals.SecondaryTotal.StringFixed(2))
	assert.Equal(t, "ZAR", totals.Currency)
	assert.Equal(t, "USD", totals.SecondaryCurrency)
}

func TestCompute_CountsDuplicateRows(t *testing.T) {
	totals := DefaultPolicy().Compute([]domain.CartLine{line("19.99", 2), line("19.99", 1), line("5.50", 1)})

	assert.Equal(t, 4, totals.ItemCount)
	assert.Equal(t, "65.47", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "5.24", totals.Tax.StringFixed(2))
	assert.Equal(t, "70.71", totals.Total.StringFixed(2))
}

func TestCompute_Empty(t *testing.T) {
	totals := DefaultPolicy().Compute(nil)
	assert.True(t, totals.Total.IsZero())
	assert.Equal(t, 0, totals.ItemCount)
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("0.15", "0.05", "eur", "usd")
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.BaseCurrency)
	assert.Equal(t, "USD", p.ChargeCurrency)

	_, err = NewPolicy("1.2", "0.05", "EUR", "USD")
	assert.Error(t, err)
	_, err = NewPolicy("0.1", "0", "EUR", "USD")
	assert.Error(t, err)
	_, err = NewPolicy("abc", "0.05", "EUR", "USD")
	assert.Error(t, err)
	_, err = NewPolicy("0.1", "0.05", "EURO", "USD")
	assert.Error(t, err)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2970), MinorUnits(decimal.RequireFromString("29.70")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
}
