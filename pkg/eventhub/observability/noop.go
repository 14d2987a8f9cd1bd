package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

// RecordDispatch does nothing.
func (NoopMetrics) RecordDispatch(context.Context, string, string) {}

// RecordHandler does nothing.
func (NoopMetrics) RecordHandler(context.Context, string, time.Duration, error) {}

// RecordResponse does nothing.
func (NoopMetrics) RecordResponse(context.Context, bool) {}

// RecordQueueDepth does nothing.
func (NoopMetrics) RecordQueueDepth(context.Context, string, int64) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartDispatchSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartDispatchSpan(ctx context.Context, _, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartHandleSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartHandleSpan(ctx context.Context, _, _ string, _ int64) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(trace.Span, error) {}
