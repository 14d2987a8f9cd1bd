// Package observability provides structured logging, metrics and tracing
// for the event hub.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features have no-op implementations for when they are disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds extension context to a logger.
//
// Example:
//
//	logger := EnrichLogger(base, "com.example.identity")
//	logger.Info("ready") // includes extension
func EnrichLogger(logger *slog.Logger, extension string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("extension", extension))
}

// LogHubStarted logs the transition from buffering to live dispatch.
func LogHubStarted(logger *slog.Logger, hubID string, flushed int) {
	if logger == nil {
		return
	}
	logger.Info("event hub started",
		slog.String("hub_id", hubID),
		slog.Int("flushed_events", flushed),
	)
}

// LogExtensionRegistered logs a successful registration.
func LogExtensionRegistered(logger *slog.Logger, name, version string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("extension registered",
		slog.String("extension", name),
		slog.String("version", version),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogExtensionRegisterError logs a failed registration.
func LogExtensionRegisterError(logger *slog.Logger, name string, err error) {
	if logger == nil {
		return
	}
	logger.Error("extension registration failed",
		slog.String("extension", name),
		slog.String("error", err.Error()),
	)
}

// LogExtensionUnregistered logs a completed unregistration.
func LogExtensionUnregistered(logger *slog.Logger, name string) {
	if logger == nil {
		return
	}
	logger.Info("extension unregistered",
		slog.String("extension", name),
	)
}

// LogEventDispatched logs a dispatched event.
func LogEventDispatched(logger *slog.Logger, eventID, eventType, source string, seq int64) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatched",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("event_source", source),
		slog.Int64("sequence", seq),
	)
}

// LogHandlerFailure logs an extension or listener failing on an event.
// The failure is not propagated to the publisher.
func LogHandlerFailure(logger *slog.Logger, extension, eventID string, seq int64, err error) {
	if logger == nil {
		return
	}
	logger.Error("event handler failed",
		slog.String("extension", extension),
		slog.String("event_id", eventID),
		slog.Int64("sequence", seq),
		slog.String("error", err.Error()),
	)
}

// LogResponseTimeout logs a response callback that fired with no event.
func LogResponseTimeout(logger *slog.Logger, triggerID string, timeout time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("response timed out",
		slog.String("event_id", triggerID),
		slog.Duration("timeout", timeout),
	)
}

// LogQueueBacklog warns that an extension's queue has grown past the threshold.
func LogQueueBacklog(logger *slog.Logger, extension string, depth, threshold int) {
	if logger == nil {
		return
	}
	logger.Warn("extension event queue backlog",
		slog.String("extension", extension),
		slog.Int("depth", depth),
		slog.Int("threshold", threshold),
	)
}

// LogSnapshotError logs a snapshot failure (non-fatal).
func LogSnapshotError(logger *slog.Logger, extension, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("shared state snapshot failed",
		slog.String("extension", extension),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
