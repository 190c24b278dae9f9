package observability

import (
	"context"
	"errors"
	"testing"

	"checkoutservice/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestFinishSpanStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	_, ok := tracer.Start(context.Background(), "ok")
	FinishSpan(ok, nil)

	_, rejected := tracer.Start(context.Background(), "rejected")
	FinishSpan(rejected, apperr.New(apperr.InsufficientStock, "sku-1"))

	_, failed := tracer.Start(context.Background(), "failed")
	FinishSpan(failed, errors.New("connection reset"))

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.String("error.kind", "insufficient_stock"))
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}
