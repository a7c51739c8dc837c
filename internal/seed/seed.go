package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront-core/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Products is the demo catalog. Fixed ids keep Apply idempotent.
var Products = []domain.Product{
	{
		ID:            "7c1d2a3e-0000-4000-8000-000000000001",
		SKU:           "SKU-DEMO-BOOT",
		Name:          "Demo Firm Ground Boot",
		Brand:         "Demo",
		Description:   "Lightweight boot for firm natural pitches",
		Category:      "Boots",
		ImageURL:      "https://images.example.com/demo-boot.jpg",
		Sizes:         []string{"7", "8", "9", "10"},
		Price:         decimal.RequireFromString("1899.00"),
		StockQuantity: 25,
	},
	{
		ID:            "7c1d2a3e-0000-4000-8000-000000000002",
		SKU:           "SKU-DEMO-JERSEY",
		Name:          "Demo Home Jersey",
		Brand:         "Demo",
		Description:   "Breathable match jersey",
		Category:      "Jerseys",
		ImageURL:      "https://images.example.com/demo-jersey.jpg",
		Sizes:         []string{"S", "M", "L", "XL"},
		Price:         decimal.RequireFromString("899.00"),
		StockQuantity: 40,
	},
	{
		ID:            "7c1d2a3e-0000-4000-8000-000000000003",
		SKU:           "SKU-DEMO-BALL",
		Name:          "Demo Match Ball",
		Brand:         "Demo",
		Description:   "Size 5 thermally bonded ball",
		Category:      "Balls",
		ImageURL:      "https://images.example.com/demo-ball.jpg",
		Price:         decimal.RequireFromString("499.99"),
		StockQuantity: 60,
	},
	{
		ID:            "7c1d2a3e-0000-4000-8000-000000000004",
		SKU:           "SKU-DEMO-GLOVES",
		Name:          "Demo Keeper Gloves",
		Brand:         "Demo",
		Description:   "Latex palm goalkeeper gloves",
		Category:      "Accessories",
		ImageURL:      "https://images.example.com/demo-gloves.jpg",
		Sizes:         []string{"8", "9", "10"},
		Price:         decimal.RequireFromString("649.50"),
		StockQuantity: 0,
	},
}

// Apply upserts the demo catalog for manual testing and returns how many products were written.
func Apply(ctx context.Context, products ProductWriter) (int, error) {
	for i, p := range Products {
		if _, err := products.Upsert(ctx, p); err != nil {
			return i, fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}
	return len(Products), nil
}
