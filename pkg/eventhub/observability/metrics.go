package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records hub metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records an event accepted by the hub.
	RecordDispatch(ctx context.Context, eventType, source string)

	// RecordHandler records one extension handling one event.
	RecordHandler(ctx context.Context, extension string, duration time.Duration, err error)

	// RecordResponse records a response correlation outcome.
	RecordResponse(ctx context.Context, timedOut bool)

	// RecordQueueDepth records an extension's pending queue length.
	RecordQueueDepth(ctx context.Context, extension string, depth int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	dispatched     metric.Int64Counter
	handlerLatency metric.Float64Histogram
	handlerErrors  metric.Int64Counter
	responses      metric.Int64Counter
	queueDepth     metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventhub")

	dispatched, err := meter.Int64Counter("eventhub.events.dispatched",
		metric.WithDescription("Number of events dispatched"),
	)
	if err != nil {
		return nil, err
	}

	handlerLatency, err := meter.Float64Histogram("eventhub.handler.latency_ms",
		metric.WithDescription("Extension event handling latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("eventhub.handler.errors",
		metric.WithDescription("Number of extension handler failures"),
	)
	if err != nil {
		return nil, err
	}

	responses, err := meter.Int64Counter("eventhub.responses",
		metric.WithDescription("Number of completed response correlations"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Histogram("eventhub.queue.depth",
		metric.WithDescription("Extension queue depth observed at enqueue"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatched:     dispatched,
		handlerLatency: handlerLatency,
		handlerErrors:  handlerErrors,
		responses:      responses,
		queueDepth:     queueDepth,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider; configure it first
// with otel.SetMeterProvider.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, eventType, source string) {
	m.dispatched.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("event_source", source),
	))
}

func (m *otelMetrics) RecordHandler(ctx context.Context, extension string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("extension", extension))
	m.handlerLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.handlerErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordResponse(ctx context.Context, timedOut bool) {
	m.responses.Add(ctx, 1, metric.WithAttributes(attribute.Bool("timed_out", timedOut)))
}

func (m *otelMetrics) RecordQueueDepth(ctx context.Context, extension string, depth int64) {
	m.queueDepth.Record(ctx, depth, metric.WithAttributes(attribute.String("extension", extension)))
}
