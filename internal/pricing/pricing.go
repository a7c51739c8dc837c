// Package pricing holds the tax and currency rules shared by cart totals and checkout.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront-core/internal/domain"
)

// Policy is the explicit pricing configuration. It is built once from config and injected.
type Policy struct {
	TaxRate        decimal.Decimal
	BaseCurrency   string
	ChargeCurrency string
	// ConversionRate converts an amount in BaseCurrency into ChargeCurrency.
	ConversionRate decimal.Decimal
}

// DefaultPolicy mirrors the storefront's historical settings: 8% tax, ZAR prices charged in USD.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:        decimal.RequireFromString("0.08"),
		BaseCurrency:   "ZAR",
		ChargeCurrency: "USD",
		ConversionRate: decimal.RequireFromString("0.055"),
	}
}

func NewPolicy(taxRate, conversionRate, baseCurrency, chargeCurrency string) (Policy, error) {
	tax, err := decimal.NewFromString(strings.TrimSpace(taxRate))
	if err != nil {
		return Policy{}, fmt.Errorf("parse tax rate %q: %w", taxRate, err)
	}
	if tax.IsNegative() || tax.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Policy{}, fmt.Errorf("tax rate %s out of range [0,1)", tax)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(conversionRate))
	if err != nil {
		return Policy{}, fmt.Errorf("parse conversion rate %q: %w", conversionRate, err)
	}
	if !rate.IsPositive() {
		return Policy{}, fmt.Errorf("conversion rate must be positive, got %s", rate)
	}
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	charge := strings.ToUpper(strings.TrimSpace(chargeCurrency))
	if len(base) != 3 || len(charge) != 3 {
		return Policy{}, fmt.Errorf("currencies must be ISO 4217 codes, got %q/%q", baseCurrency, chargeCurrency)
	}
	return Policy{TaxRate: tax, BaseCurrency: base, ChargeCurrency: charge, ConversionRate: rate}, nil
}

type Totals struct {
	ItemCount         int             `json:"totalItems"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	TaxRate           decimal.Decimal `json:"taxRate"`
	Total             decimal.Decimal `json:"total"`
	Currency          string          `json:"currency"`
	SecondaryTotal    decimal.Decimal `json:"secondaryTotal"`
	SecondaryCurrency string          `json:"secondaryCurrency"`
}

// Compute sums the raw lines. Duplicate rows are counted individually, which equals the aggregated sum.
func (p Policy) Compute(lines []domain.CartLine) Totals {
	subtotal := decimal.Zero
	items := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal())
		items += l.Quantity
	}
	tax := subtotal.Mul(p.TaxRate).Round(2)
	total := subtotal.Add(tax)
	return Totals{
		ItemCount:         items,
		Subtotal:          subtotal.Round(2),
		Tax:               tax,
		TaxRate:           p.TaxRate,
		Total:             total.Round(2),
		Currency:          p.BaseCurrency,
		SecondaryTotal:    p.Convert(total),
		SecondaryCurrency: p.ChargeCurrency,
	}
}

// Convert turns a base-currency amount into the charge currency, rounded to cents.
func (p Policy) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.ConversionRate).Round(2)
}

// MinorUnits returns the amount in the smallest currency unit (cents), as payment providers expect.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
