package eventhub

import (
	"log/slog"

	"github.com/randalmurphal/eventhub/pkg/eventhub/config"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/snapshot"
)

// Policy decides what happens when a name is registered twice.
type Policy string

const (
	// PolicyReject fails the second registration with ErrAlreadyRegistered.
	PolicyReject Policy = config.PolicyReject

	// PolicyReplace drains and unregisters the live instance, then
	// registers the new one.
	PolicyReplace Policy = config.PolicyReplace
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. Default: observability.NoopMetrics{}.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(h *Hub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithSpanManager sets the tracing span manager.
// Default: observability.NoopSpanManager{}.
func WithSpanManager(s observability.SpanManager) Option {
	return func(h *Hub) {
		if s != nil {
			h.spans = s
		}
	}
}

// WithSettings replaces all tunables at once. Options applied afterwards
// override individual fields.
//
// Example:
//
//	settings, err := config.LoadHub("hub.yaml")
//	hub := eventhub.New(eventhub.WithSettings(settings))
func WithSettings(s config.Hub) Option {
	return func(h *Hub) {
		h.settings = s
	}
}

// WithRegistrationPolicy sets how duplicate names are handled.
// Default: PolicyReject.
func WithRegistrationPolicy(p Policy) Option {
	return func(h *Hub) {
		h.settings.RegistrationPolicy = string(p)
	}
}

// WithSnapshotStore persists shared state on Close and restores it on
// registration. The caller owns and closes the store.
func WithSnapshotStore(s snapshot.Store) Option {
	return func(h *Hub) {
		h.snapshots = s
	}
}

// WithQueueWarnThreshold sets the per-extension queue depth that logs a
// backlog warning. Zero disables it. Default: 1000.
func WithQueueWarnThreshold(n int) Option {
	return func(h *Hub) {
		if n >= 0 {
			h.settings.QueueWarnThreshold = n
		}
	}
}

// WithFailureLogSize bounds the failure log. Zero keeps only the count.
// Default: 256.
func WithFailureLogSize(n int) Option {
	return func(h *Hub) {
		if n >= 0 {
			h.settings.FailureLogSize = n
		}
	}
}

// WithEventIndexSize sets how many recent event IDs are remembered for
// resolving shared-state lookups made with an event as dispatched by its
// publisher. Default: 10000.
func WithEventIndexSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.settings.EventIndexSize = n
		}
	}
}

// WithHubID sets the namespace used for snapshots. A stable ID lets a new
// hub restore state saved by an earlier one. Default: a fresh ULID.
func WithHubID(id string) Option {
	return func(h *Hub) {
		if id != "" {
			h.id = id
		}
	}
}
