package domain

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OutboxMessage is an event persisted in the same transaction as the state change it describes.
type OutboxMessage struct {
	ID          int64
	Topic       string
	Key         string
	EventType   string
	Payload     []byte
	Headers     map[string]string
	CreatedAt   time.Time
	PublishedAt *time.Time
	RetryCount  int
}
