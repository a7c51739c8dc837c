package product

import (
	"fmt"

	"github.com/shopspring/decimal"

	"storefront-core/internal/domain"
)

// Columns selects a product row aliased as p, in the order expected by ScanDest.
const Columns = `p.id::text, COALESCE(p.sku, ''), p.name, p.brand, p.description, p.category, p.image_url, p.sizes, p.price::text, p.stock_quantity, p.created_at, p.updated_at`

// ScanDest collects the scan targets for Columns; NUMERIC prices travel as text into decimal.
type ScanDest struct {
	p     *domain.Product
	price string
}

func NewScanDest(p *domain.Product) *ScanDest {
	return &ScanDest{p: p}
}

func (d *ScanDest) Targets() []any {
	return []any{
		&d.p.ID, &d.p.SKU, &d.p.Name, &d.p.Brand, &d.p.Description, &d.p.Category, &d.p.ImageURL,
		&d.p.Sizes, &d.price, &d.p.StockQuantity, &d.p.CreatedAt, &d.p.UpdatedAt,
	}
}

// Finish converts the text price after Scan succeeded.
func (d *ScanDest) Finish() error {
	price, err := decimal.NewFromString(d.price)
	if err != nil {
		return fmt.Errorf("parse price %q for product %s: %w", d.price, d.p.ID, err)
	}
	d.p.Price = price
	return nil
}
