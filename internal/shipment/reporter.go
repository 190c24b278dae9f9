package shipment

import (
	"context"
	"encoding/json"

	"checkoutservice/internal/platform/kafka"
	"checkoutservice/internal/platform/observability"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reporter publishes ShipmentUpdated messages the way the carrier side does.
// The service itself only consumes them; cmd/shipmentsim uses this to drive
// orders through fulfilment locally.
type Reporter struct {
	producer kafka.Producer
	logger   observability.Logger
}

func NewReporter(producer kafka.Producer, logger observability.Logger) *Reporter {
	return &Reporter{producer: producer, logger: logger}
}

func (r *Reporter) Report(ctx context.Context, event StatusUpdatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafkago.Message{Key: []byte(event.OrderID), Value: payload}
	if err := r.producer.WriteMessage(ctx, msg); err != nil {
		r.logger.Error("❌ Failed to publish shipment update",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
		)
		return err
	}

	r.logger.Info("📤 Sent shipment update",
		zap.String("order_id", event.OrderID),
		zap.String("status", event.Status),
	)
	return nil
}
