package outbox

import (
	"context"

	"storefront-core/internal/domain"
)

// MaxRetries bounds how often the relay retries one message before leaving it for inspection.
const MaxRetries = 5

type Repository interface {
	Insert(ctx context.Context, msg domain.OutboxMessage) error
	// GetBatch returns unpublished messages oldest first, locking them against concurrent relays.
	GetBatch(ctx context.Context, batchSize int) ([]domain.OutboxMessage, error)
	UpdateRetryCount(ctx context.Context, id int64, errMsg string) error
	MarkPublished(ctx context.Context, id int64) error
}
