package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"storefront-core/internal/domain"
)

type ProducerConfig struct {
	Brokers     string
	Acks        string
	LingerMs    int
	Compression string
}

// Producer publishes synchronously: Publish returns once the broker acknowledged the message.
type Producer struct {
	p      *kafka.Producer
	logger *slog.Logger
}

func NewProducer(cfg ProducerConfig, logger *slog.Logger) (*Producer, error) {
	compression := cfg.Compression
	if compression == "" {
		compression = "snappy"
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":        cfg.Brokers,
		"acks":                     cfg.Acks,
		"enable.idempotence":       true,
		"linger.ms":                cfg.LingerMs,
		"compression.type":         compression,
		"message.send.max.retries": 3,
		"delivery.timeout.ms":      30000,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka.NewProducer: %w", err)
	}
	return &Producer{p: p, logger: logger}, nil
}

// PublishEvent sends one outbox row, keyed by its aggregate so events of one order stay on one partition.
func (p *Producer) PublishEvent(ctx context.Context, msg domain.OutboxMessage) error {
	if msg.Topic == "" {
		return fmt.Errorf("outbox message %d has no topic", msg.ID)
	}
	ch := make(chan kafka.Event, 1)
	if err := p.p.Produce(record(msg), ch); err != nil {
		return fmt.Errorf("enqueue %s: %w", msg.EventType, err)
	}
	select {
	case ev := <-ch:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected event type: %T", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("deliver %s: %w", msg.EventType, m.TopicPartition.Error)
		}
		p.logger.DebugContext(ctx, "event delivered",
			slog.Int64("outbox_id", msg.ID),
			slog.String("event_type", msg.EventType),
			slog.Int("partition", int(m.TopicPartition.Partition)),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) Close() {
	if remaining := p.p.Flush(10_000); remaining > 0 {
		p.logger.Warn("unflushed messages on close", slog.Int("remaining", remaining))
	}
	p.p.Close()
}

// HeaderEventType and HeaderOutboxID are set on every record; consumers dedupe on the outbox id.
const (
	HeaderEventType = "event-type"
	HeaderOutboxID  = "outbox-id"
)

func record(msg domain.OutboxMessage) *kafka.Message {
	topic := msg.Topic
	out := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          msg.Payload,
		Headers:        headers(msg),
		Timestamp:      msg.CreatedAt,
	}
	if msg.Key != "" {
		out.Key = []byte(msg.Key)
	}
	return out
}

// headers carries the row's own headers (trace context) plus the event type and outbox id, sorted by key.
func headers(msg domain.OutboxMessage) []kafka.Header {
	in := maps.Clone(msg.Headers)
	if in == nil {
		in = make(map[string]string, 2)
	}
	in[HeaderEventType] = msg.EventType
	in[HeaderOutboxID] = strconv.FormatInt(msg.ID, 10)

	out := make([]kafka.Header, 0, len(in))
	for _, k := range slices.Sorted(maps.Keys(in)) {
		out = append(out, kafka.Header{Key: k, Value: []byte(in[k])})
	}
	return out
}
