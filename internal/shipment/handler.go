package shipment

import (
	"context"
	"encoding/json"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/order"
	"checkoutservice/internal/platform/observability"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// StatusUpdater is the privileged status override of the order coordinator.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID, status string) (*order.Order, error)
}

// MessageHandler defines the interface for processing incoming messages.
type MessageHandler interface {
	HandleShipmentUpdated(ctx context.Context, msg kafkago.Message) error
}

// KafkaMessageHandler applies ShipmentUpdated messages to orders
type KafkaMessageHandler struct {
	updater StatusUpdater
	logger  observability.Logger
	tracer  observability.Tracer
}

// NewMessageHandler creates a new MessageHandler instance with explicit dependencies
func NewMessageHandler(updater StatusUpdater, logger observability.Logger, tracer observability.Tracer) MessageHandler {
	return &KafkaMessageHandler{
		updater: updater,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleShipmentUpdated processes one message. Malformed payloads and updates
// the order rejects are logged and dropped; only infrastructure failures are
// returned.
func (h *KafkaMessageHandler) HandleShipmentUpdated(ctx context.Context, msg kafkago.Message) (err error) {
	// Continue the trace of whoever published the update
	msgCtx := h.extractTraceContext(ctx, msg.Headers)
	msgCtx, span := h.tracer.Start(msgCtx, "shipment.apply_update", trace.WithSpanKind(trace.SpanKindConsumer))
	defer func() { observability.FinishSpan(span, err) }()

	h.logger.Info("📨 Raw Kafka message received",
		zap.ByteString("key", msg.Key),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	var event StatusUpdatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("❌ Invalid JSON in ShipmentUpdated event",
			zap.Error(err),
			zap.ByteString("raw_value", msg.Value),
		)
		return nil
	}
	if event.OrderID == "" || event.Status == "" {
		h.logger.Warn("ShipmentUpdated event without order id or status", zap.ByteString("raw_value", msg.Value))
		return nil
	}

	span.SetAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("order.requested_status", event.Status),
	)

	updated, err := h.updater.UpdateStatus(msgCtx, event.OrderID, event.Status)
	if err != nil {
		if apperr.IsExpected(err) {
			h.logger.Warn("Shipment update rejected",
				zap.String("order_id", event.OrderID),
				zap.String("status", event.Status),
				zap.String("error_kind", apperr.KindOf(err).String()),
				zap.Error(err),
			)
			return nil
		}
		h.logger.Error("❌ Failed to apply shipment update", zap.Error(err), zap.String("order_id", event.OrderID))
		return err
	}

	h.logger.Info("✅ Shipment update applied",
		zap.String("order_id", updated.ID),
		zap.String("status", string(updated.Status)),
	)
	return nil
}

// extractTraceContext extracts OpenTelemetry trace context from Kafka message headers
func (h *KafkaMessageHandler) extractTraceContext(ctx context.Context, headers []kafkago.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		carrier[header.Key] = string(header.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
