package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("eventhub")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartDispatchSpan starts a span covering one dispatch call.
	StartDispatchSpan(ctx context.Context, eventID, eventType, source string) (context.Context, trace.Span)

	// StartHandleSpan starts a span for an extension handling an event.
	StartHandleSpan(ctx context.Context, extension, eventID string, seq int64) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, eventID, eventType, source string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventhub.dispatch",
		trace.WithAttributes(
			attribute.String("event.id", eventID),
			attribute.String("event.type", eventType),
			attribute.String("event.source", source),
		),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
}

func (m *otelSpanManager) StartHandleSpan(ctx context.Context, extension, eventID string, seq int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventhub.handle."+extension,
		trace.WithAttributes(
			attribute.String("extension.name", extension),
			attribute.String("event.id", eventID),
			attribute.Int64("event.sequence", seq),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
