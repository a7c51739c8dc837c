package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper records processed webhook event ids in Redis so redelivered events are skipped.
type EventDeduper struct {
	client      *redis.Client
	serviceName string
	ttl         time.Duration
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func NewEventDeduper(client *redis.Client, serviceName string, ttl time.Duration) *EventDeduper {
	return &EventDeduper{client: client, serviceName: serviceName, ttl: ttl}
}

// Claim marks eventID as in progress. It returns false when the id was claimed before.
func (d *EventDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.GenerateKey("webhook", eventID), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Release forgets a claim so the provider's next delivery is processed again.
func (d *EventDeduper) Release(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, d.GenerateKey("webhook", eventID)).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

func (d *EventDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *EventDeduper) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", d.serviceName, operation, key)
}
