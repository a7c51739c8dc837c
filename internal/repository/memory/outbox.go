package memory

import (
	"context"
	"maps"

	"storefront-core/internal/domain"
	"storefront-core/internal/repository/outbox"
)

type outboxRepo struct {
	s *Store
}

func (r *outboxRepo) Insert(ctx context.Context, msg domain.OutboxMessage) error {
	r.s.do(ctx, func(st *state) {
		st.outboxSeq++
		msg.ID = st.outboxSeq
		msg.CreatedAt = r.s.now()
		msg.Headers = maps.Clone(msg.Headers)
		st.outbox = append(st.outbox, msg)
	})
	return nil
}

func (r *outboxRepo) GetBatch(ctx context.Context, batchSize int) ([]domain.OutboxMessage, error) {
	var out []domain.OutboxMessage
	r.s.do(ctx, func(st *state) {
		for _, msg := range st.outbox {
			if len(out) == batchSize {
				return
			}
			if msg.PublishedAt == nil && msg.RetryCount < outbox.MaxRetries {
				out = append(out, msg)
			}
		}
	})
	return out, nil
}

func (r *outboxRepo) UpdateRetryCount(ctx context.Context, id int64, _ string) error {
	r.s.do(ctx, func(st *state) {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				st.outbox[i].RetryCount++
			}
		}
	})
	return nil
}

func (r *outboxRepo) MarkPublished(ctx context.Context, id int64) error {
	r.s.do(ctx, func(st *state) {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				now := r.s.now()
				st.outbox[i].PublishedAt = &now
			}
		}
	})
	return nil
}
