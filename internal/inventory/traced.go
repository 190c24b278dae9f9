package inventory

import (
	"context"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/platform/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TracedLedger decorates a Ledger with spans and logs for every stock movement.
type TracedLedger struct {
	next   Ledger
	logger observability.Logger
	tracer observability.Tracer
}

// NewTracedLedger wraps next with explicit observability dependencies.
func NewTracedLedger(next Ledger, logger observability.Logger, tracer observability.Tracer) *TracedLedger {
	return &TracedLedger{
		next:   next,
		logger: logger,
		tracer: tracer,
	}
}

func (l *TracedLedger) Reserve(ctx context.Context, productID string, quantity int) (err error) {
	ctx, span := l.tracer.Start(ctx, "inventory.reserve")
	defer func() { observability.FinishSpan(span, err) }()

	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.Int("inventory.quantity", quantity),
		attribute.String("inventory.operation", "reserve"),
	)

	err = l.next.Reserve(ctx, productID, quantity)
	switch {
	case err == nil:
		l.logger.Info("Stock reserved", zap.String("product_id", productID), zap.Int("quantity", quantity))
	case apperr.Is(err, apperr.InsufficientStock):
		l.logger.Info("Reservation rejected", zap.String("product_id", productID), zap.Int("quantity", quantity))
	case !apperr.IsExpected(err):
		l.logger.Error("Reservation failed", zap.String("product_id", productID), zap.Error(err))
	}
	return err
}

func (l *TracedLedger) Release(ctx context.Context, productID string, quantity int) (err error) {
	ctx, span := l.tracer.Start(ctx, "inventory.release")
	defer func() { observability.FinishSpan(span, err) }()

	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.Int("inventory.quantity", quantity),
		attribute.String("inventory.operation", "release"),
	)

	err = l.next.Release(ctx, productID, quantity)
	if err != nil {
		l.logger.Error("Stock release failed", zap.String("product_id", productID), zap.Int("quantity", quantity), zap.Error(err))
		return err
	}
	l.logger.Info("Stock released", zap.String("product_id", productID), zap.Int("quantity", quantity))
	return nil
}

func (l *TracedLedger) Available(ctx context.Context, productID string) (int, error) {
	return l.next.Available(ctx, productID)
}
