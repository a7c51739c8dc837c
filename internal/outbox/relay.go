package outbox

import (
	"context"
	"log/slog"
	"time"

	"storefront-core/internal/domain"
)

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repository interface {
	GetBatch(ctx context.Context, batchSize int) ([]domain.OutboxMessage, error)
	UpdateRetryCount(ctx context.Context, id int64, errMsg string) error
	MarkPublished(ctx context.Context, id int64) error
}

// Publisher delivers one outbox row to the broker and returns once it is acknowledged.
type Publisher interface {
	PublishEvent(ctx context.Context, msg domain.OutboxMessage) error
}

// Relay moves committed outbox rows to the broker. Delivery is at least once.
type Relay struct {
	tx           TxRunner
	repo         Repository
	publisher    Publisher
	logger       *slog.Logger
	batchSize    int
	pollInterval time.Duration
}

func NewRelay(tx TxRunner, repo Repository, publisher Publisher, logger *slog.Logger, batchSize int, pollInterval time.Duration) *Relay {
	return &Relay{
		tx:           tx,
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay started",
		slog.Int("batch_size", r.batchSize),
		slog.Duration("poll_interval", r.pollInterval))

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain publishes batches until one comes back short.
func (r *Relay) Drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := r.processBatch(ctx)
		if err != nil {
			r.logger.Error("outbox batch failed", slog.Any("error", err))
			return
		}
		if processed < r.batchSize {
			return
		}
	}
}

func (r *Relay) processBatch(ctx context.Context) (int, error) {
	var published int
	var msgs []domain.OutboxMessage

	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		msgs, err = r.repo.GetBatch(ctx, r.batchSize)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			if pubErr := r.publisher.PublishEvent(ctx, msg); pubErr != nil {
				r.logger.Error("publish failed", slog.Int64("id", msg.ID), slog.Any("error", pubErr))
				if err := r.repo.UpdateRetryCount(ctx, msg.ID, pubErr.Error()); err != nil {
					return err
				}
				continue
			}
			if err := r.repo.MarkPublished(ctx, msg.ID); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err == nil && published > 0 {
		r.logger.Debug("outbox batch published", slog.Int("published", published), slog.Int("fetched", len(msgs)))
	}
	// A batch with failures stops the drain so retries wait for the next tick.
	if published < len(msgs) {
		return 0, err
	}
	return len(msgs), err
}
