package order

import (
	"context"
	"encoding/json"
	"time"

	"checkoutservice/internal/platform/kafka"
	"checkoutservice/internal/platform/observability"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type EventType string

const (
	EventOrderPlaced        EventType = "OrderPlaced"
	EventOrderCancelled     EventType = "OrderCancelled"
	EventOrderStatusChanged EventType = "OrderStatusChanged"
)

// Event is published on the OrderEvents topic after a change commits.
type Event struct {
	Type        EventType `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Status      Status    `json:"status"`
	Total       string    `json:"total"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func newEvent(t EventType, o *Order, at time.Time) Event {
	return Event{
		Type:        t,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Status:      o.Status,
		Total:       o.Total.StringFixed(2),
		OccurredAt:  at,
	}
}

// EventPublisher announces committed order changes.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// KafkaPublisher writes events keyed by order id so that all events of one
// order land on the same partition.
type KafkaPublisher struct {
	producer kafka.Producer
	logger   observability.Logger
}

func NewKafkaPublisher(producer kafka.Producer, logger observability.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("❌ Failed to serialize order event",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
		)
		return err
	}

	msg := kafkago.Message{
		Key:   []byte(event.OrderID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		p.logger.Error("❌ Failed to publish order event",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
			zap.String("event_type", string(event.Type)),
		)
		return err
	}

	p.logger.Info("📤 Sent order event",
		zap.String("order_id", event.OrderID),
		zap.String("event_type", string(event.Type)),
	)
	return nil
}
