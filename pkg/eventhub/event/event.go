package event

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Wildcard matches any type or source when registering listeners.
const Wildcard = "*"

// Well-known event types and sources.
const (
	// TypeHub is the type of events the hub dispatches about itself.
	TypeHub = "com.eventhub.type.hub"

	// SourceSharedState marks a shared state change notification.
	// The owning extension is carried under DataKeyStateOwner.
	SourceSharedState = "com.eventhub.source.sharedState"

	// SourceBooted marks the event dispatched once the hub goes live.
	SourceBooted = "com.eventhub.source.booted"

	// TypeGenericIdentity is a general purpose identity request type.
	TypeGenericIdentity = "com.eventhub.type.generic.identity"

	// SourceRequestContent marks a request for content.
	SourceRequestContent = "com.eventhub.source.requestContent"

	// SourceResponseContent marks a response carrying content.
	SourceResponseContent = "com.eventhub.source.responseContent"

	// DataKeyStateOwner names the extension whose shared state changed.
	DataKeyStateOwner = "stateowner"
)

// Event is an immutable message on the hub.
//
// Events are created with New or NewResponse and are stamped with a sequence
// number exactly once, when the hub dispatches them. Stamping returns a copy,
// so the value held by the publisher never changes.
type Event struct {
	id        string
	name      string
	eventType string
	source    string
	data      map[string]any
	timestamp time.Time
	sequence  int64
	parentID  string
	mask      []string
}

// Option configures event creation.
type Option func(*Event)

// WithID sets a specific event ID (default: auto-generated UUID).
func WithID(id string) Option {
	return func(e *Event) {
		e.id = id
	}
}

// WithTimestamp sets a creation timestamp. The hub replaces it at dispatch.
func WithTimestamp(t time.Time) Option {
	return func(e *Event) {
		e.timestamp = t
	}
}

// WithParentID correlates the event to the trigger event it answers.
func WithParentID(id string) Option {
	return func(e *Event) {
		e.parentID = id
	}
}

// WithMask limits MaskedData to the named data keys.
func WithMask(keys ...string) Option {
	return func(e *Event) {
		e.mask = append([]string(nil), keys...)
	}
}

// New creates an event with the given name, type, source and data.
// The data map is copied; later changes to it are not observed.
func New(name, eventType, source string, data map[string]any, opts ...Option) *Event {
	e := &Event{
		id:        uuid.New().String(),
		name:      name,
		eventType: eventType,
		source:    source,
		data:      maps.Clone(data),
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewResponse creates an event answering trigger.
// Its ParentID is the trigger's ID, which is the response correlation key.
func NewResponse(trigger *Event, name, eventType, source string, data map[string]any, opts ...Option) *Event {
	opts = append([]Option{WithParentID(trigger.ID())}, opts...)
	return New(name, eventType, source, data, opts...)
}

// ID returns the unique event identifier.
func (e *Event) ID() string { return e.id }

// Name returns the human readable event name.
func (e *Event) Name() string { return e.name }

// Type returns the event type.
func (e *Event) Type() string { return e.eventType }

// Source returns the event source.
func (e *Event) Source() string { return e.source }

// Timestamp returns the dispatch time, or the creation time before dispatch.
func (e *Event) Timestamp() time.Time { return e.timestamp }

// SequenceNumber returns the hub-assigned global order, or 0 if the event
// has not been dispatched.
func (e *Event) SequenceNumber() int64 { return e.sequence }

// ParentID returns the ID of the event this one responds to, if any.
func (e *Event) ParentID() string { return e.parentID }

// IsResponse reports whether the event answers another event.
func (e *Event) IsResponse() bool { return e.parentID != "" }

// Mask returns the data keys used by MaskedData.
func (e *Event) Mask() []string {
	return append([]string(nil), e.mask...)
}

// Data returns a shallow copy of the event payload.
func (e *Event) Data() map[string]any {
	return maps.Clone(e.data)
}

// Value returns a single payload value.
func (e *Event) Value(key string) (any, bool) {
	v, ok := e.data[key]
	return v, ok
}

// MaskedData returns the payload restricted to the mask keys.
// With no mask, the full payload is returned.
func (e *Event) MaskedData() map[string]any {
	if len(e.mask) == 0 {
		return e.Data()
	}
	out := make(map[string]any, len(e.mask))
	for _, k := range e.mask {
		if v, ok := e.data[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Matches reports whether the event matches a type/source pair.
// Either side may be Wildcard.
func (e *Event) Matches(eventType, source string) bool {
	return (eventType == Wildcard || eventType == e.eventType) &&
		(source == Wildcard || source == e.source)
}

// Stamp returns a copy of the event carrying the given sequence number and
// timestamp. The hub calls it once per dispatch under its ordering lock.
func (e *Event) Stamp(seq int64, ts time.Time) *Event {
	c := *e
	c.sequence = seq
	c.timestamp = ts
	return &c
}

// Validate checks the fields required for dispatch.
func (e *Event) Validate() error {
	if e == nil {
		return &Error{Message: "event is nil", Err: ErrMalformed}
	}
	switch {
	case e.id == "":
		return &Error{Event: e, Message: "missing id", Err: ErrMalformed}
	case e.eventType == "":
		return &Error{Event: e, Message: "missing type", Err: ErrMalformed}
	case e.source == "":
		return &Error{Event: e, Message: "missing source", Err: ErrMalformed}
	}
	return nil
}
