package order

import (
	"context"
	"time"

	"storefront-core/internal/domain"
)

// Repository stores orders with their items.
type Repository interface {
	// Create inserts the order and its items. ID and OrderNumber are assigned by the caller.
	Create(ctx context.Context, order domain.Order) (*domain.Order, error)
	Get(ctx context.Context, id string, forUpdate bool) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	// UpdateStatus moves the order from -> to only while its stored status is still from, appending entry to
	// the notes. A lost race surfaces as domain.ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, entry string) (*domain.Order, error)
	AppendNote(ctx context.Context, id, entry string) error
	SetPaymentSession(ctx context.Context, id, sessionID string) error
	SetStockReserved(ctx context.Context, id string, reserved bool) error
	// Statistics aggregates all orders; recent revenue counts orders created at or after since.
	Statistics(ctx context.Context, since time.Time) (domain.OrderStatistics, error)
}
