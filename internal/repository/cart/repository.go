package cart

import (
	"context"

	"storefront-core/internal/domain"
)

// Repository stores cart lines. Duplicate rows per (user, product, size) are allowed; callers collapse them.
// Lines are always returned oldest first (created_at, id).
type Repository interface {
	// LockUser serializes cart mutations for one user until the surrounding transaction ends.
	LockUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string, forUpdate bool) ([]domain.CartLine, error)
	ListByKey(ctx context.Context, userID string, key domain.LineKey) ([]domain.CartLine, error)
	Insert(ctx context.Context, line domain.CartLine) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	DeleteByIDs(ctx context.Context, userID string, ids []string) (int, error)
	DeleteByKey(ctx context.Context, userID string, key domain.LineKey) (int, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}
