package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"storefront-core/internal/domain"
)

// Event is the payload published for order lifecycle changes.
type Event struct {
	EventType      string             `json:"eventType"`
	OrderID        string             `json:"orderId"`
	OrderNumber    string             `json:"orderNumber"`
	UserID         string             `json:"userId"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previousStatus,omitempty"`
	TotalAmount    decimal.Decimal    `json:"totalAmount"`
	TotalItems     int                `json:"totalItems"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// emit writes the event to the outbox in the caller's transaction. The trace context travels in the
// message headers.
func (s *Service) emit(ctx context.Context, eventType string, o *domain.Order, previous domain.OrderStatus) error {
	payload, err := json.Marshal(Event{
		EventType:      eventType,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		TotalAmount:    o.TotalAmount,
		TotalItems:     o.TotalItems(),
		OccurredAt:     s.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	headers := map[string]string{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))

	return s.outbox.Insert(ctx, domain.OutboxMessage{
		Topic:     s.topic,
		Key:       o.ID,
		EventType: eventType,
		Payload:   payload,
		Headers:   headers,
	})
}
