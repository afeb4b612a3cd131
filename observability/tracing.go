package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/courier"

// Tracer provides OpenTelemetry tracing for Courier.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return NewTracerWithProvider(otel.GetTracerProvider())
}

// NewTracerWithProvider creates a tracer from the given provider.
func NewTracerWithProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(tracerName),
	}
}

// StartDeliverySpan starts a span covering a whole delivery call.
func (t *Tracer) StartDeliverySpan(ctx context.Context, deliveryID, url string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "courier.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("courier.delivery_id", deliveryID),
			attribute.String("url.full", url),
		),
	)
}

// RecordAttempt adds an attempt event to the delivery span.
func (t *Tracer) RecordAttempt(span trace.Span, attempt int, outcome string, statusCode int, latencyMs int64) {
	span.AddEvent("courier.attempt", trace.WithAttributes(
		attribute.Int("courier.attempt", attempt),
		attribute.String("courier.outcome", outcome),
		attribute.Int("http.response.status_code", statusCode),
		attribute.Int64("courier.latency_ms", latencyMs),
	))
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, attempts int, err error) {
	span.SetAttributes(attribute.Int("courier.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
