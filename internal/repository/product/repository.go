package product

import (
	"context"

	"storefront-core/internal/domain"
)

// Repository is the product store: catalog rows with price and stock.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	// AdjustStock applies delta atomically and fails with domain.ErrInsufficientStock instead of going
	// below zero.
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
}
