package config

import (
	"errors"
	"fmt"
	"time"
)

// Registration policies accepted by the registration_policy key.
const (
	PolicyReject  = "reject"
	PolicyReplace = "replace"
)

// Default hub settings.
const (
	DefaultResponseTimeout    = time.Second
	DefaultQueueWarnThreshold = 1000
	DefaultFailureLogSize     = 256
	DefaultEventIndexSize     = 10000
)

// ErrInvalidSetting is returned when a hub setting has an unusable value.
var ErrInvalidSetting = errors.New("invalid hub setting")

// Snapshot configures shared-state persistence. At most one backend is used;
// Path selects SQLite and takes precedence over RedisAddr.
type Snapshot struct {
	Path      string
	RedisAddr string
	RedisDB   int
}

// Enabled reports whether a snapshot backend is configured.
func (s Snapshot) Enabled() bool {
	return s.Path != "" || s.RedisAddr != ""
}

// Hub holds the tunables of an event hub.
type Hub struct {
	// ResponseTimeout is the default wait for a paired response.
	ResponseTimeout time.Duration

	// QueueWarnThreshold is the per-extension queue depth that triggers a
	// backlog warning. Zero disables the warning.
	QueueWarnThreshold int

	// RegistrationPolicy is PolicyReject or PolicyReplace.
	RegistrationPolicy string

	// FailureLogSize bounds the handler failure log.
	FailureLogSize int

	// EventIndexSize is how many recent event IDs the hub can resolve to
	// sequence numbers for shared-state lookups by the publisher's handle.
	EventIndexSize int

	Snapshot Snapshot
}

// DefaultHub returns the settings used when nothing is configured.
func DefaultHub() Hub {
	return Hub{
		ResponseTimeout:    DefaultResponseTimeout,
		QueueWarnThreshold: DefaultQueueWarnThreshold,
		RegistrationPolicy: PolicyReject,
		FailureLogSize:     DefaultFailureLogSize,
		EventIndexSize:     DefaultEventIndexSize,
	}
}

// Validate checks that every setting is usable.
func (h Hub) Validate() error {
	if h.ResponseTimeout <= 0 {
		return fmt.Errorf("%w: response_timeout must be positive, got %s", ErrInvalidSetting, h.ResponseTimeout)
	}
	if h.QueueWarnThreshold < 0 {
		return fmt.Errorf("%w: queue_warn_threshold must not be negative", ErrInvalidSetting)
	}
	if h.FailureLogSize < 0 {
		return fmt.Errorf("%w: failure_log_size must not be negative", ErrInvalidSetting)
	}
	if h.EventIndexSize <= 0 {
		return fmt.Errorf("%w: event_index_size must be positive", ErrInvalidSetting)
	}
	switch h.RegistrationPolicy {
	case PolicyReject, PolicyReplace:
	default:
		return fmt.Errorf("%w: unknown registration_policy %q", ErrInvalidSetting, h.RegistrationPolicy)
	}
	return nil
}

// Hub extracts hub settings, starting from DefaultHub.
//
//	response_timeout: 500ms
//	queue_warn_threshold: 200
//	registration_policy: replace
//	failure_log_size: 64
//	event_index_size: 50000
//	snapshot:
//	  path: /var/lib/app/state.db
//	  redis_addr: localhost:6379
//	  redis_db: 2
func (c Config) Hub() (Hub, error) {
	h := DefaultHub()
	h.ResponseTimeout = c.Duration("response_timeout", h.ResponseTimeout)
	h.QueueWarnThreshold = c.Int("queue_warn_threshold", h.QueueWarnThreshold)
	h.RegistrationPolicy = c.String("registration_policy", h.RegistrationPolicy)
	h.FailureLogSize = c.Int("failure_log_size", h.FailureLogSize)
	h.EventIndexSize = c.Int("event_index_size", h.EventIndexSize)

	snap := c.Sub("snapshot")
	h.Snapshot = Snapshot{
		Path:      snap.String("path", ""),
		RedisAddr: snap.String("redis_addr", ""),
		RedisDB:   snap.Int("redis_db", 0),
	}

	if err := h.Validate(); err != nil {
		return Hub{}, err
	}
	return h, nil
}
