package observability

import (
	"checkoutservice/internal/apperr"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FinishSpan ends span with a status derived from err. Business rejections
// are annotated with their kind; only infrastructure failures mark the span
// as errored.
func FinishSpan(span trace.Span, err error) {
	defer span.End()

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	if apperr.IsExpected(err) {
		span.SetAttributes(attribute.String("error.kind", apperr.KindOf(err).String()))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
