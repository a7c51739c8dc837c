package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-core/internal/db"
	"storefront-core/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Insert(ctx context.Context, msg domain.OutboxMessage) error {
	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	const q = `INSERT INTO outbox (topic, key, event_type, payload, headers) VALUES ($1, $2, $3, $4, $5)`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, q, msg.Topic, msg.Key, msg.EventType, msg.Payload, headers); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetBatch(ctx context.Context, batchSize int) ([]domain.OutboxMessage, error) {
	const q = `
SELECT id, topic, key, event_type, payload, headers, retry_count, created_at
FROM outbox
WHERE published_at IS NULL AND retry_count < $2
ORDER BY created_at, id
LIMIT $1
FOR UPDATE SKIP LOCKED`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, batchSize, MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	defer rows.Close()

	var msgs []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.Topic, &msg.Key, &msg.EventType, &msg.Payload, &msg.Headers, &msg.RetryCount, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return msgs, nil
}

func (r *postgresRepo) UpdateRetryCount(ctx context.Context, id int64, errMsg string) error {
	const q = `UPDATE outbox SET retry_count = retry_count + 1, last_error = $2 WHERE id = $1`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, q, id, errMsg); err != nil {
		return fmt.Errorf("update retry count: %w", err)
	}
	return nil
}

func (r *postgresRepo) MarkPublished(ctx context.Context, id int64) error {
	const q = `UPDATE outbox SET published_at = now() WHERE id = $1`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, q, id); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
