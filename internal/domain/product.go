package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku,omitempty"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand,omitempty"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	Sizes         []string        `json:"sizes,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// InStock is derived from the stock counter and never stored on its own.
func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// MarshalJSON adds the derived inStock flag.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		InStock bool `json:"inStock"`
	}{plain: plain(p), InStock: p.InStock()})
}
