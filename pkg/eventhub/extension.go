package eventhub

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/response"
	"github.com/randalmurphal/eventhub/pkg/eventhub/sharedstate"
)

// Extension is an independently developed unit that talks to others only
// through the hub.
//
// All methods except Name and Version run on the extension's own worker
// goroutine, one at a time, so an extension needs no locking for state it
// touches only from these callbacks.
type Extension interface {
	// Name uniquely identifies the extension on a hub.
	Name() string

	// Version is published in the hub roster.
	Version() string

	// OnRegistered runs once before any event is delivered. The Runtime
	// stays valid for the life of the registration. Returning an error
	// aborts the registration.
	OnRegistered(ctx context.Context, rt *Runtime) error

	// OnEvent receives every event dispatched after registration, in
	// global order. Errors are logged and recorded; delivery continues.
	OnEvent(ctx context.Context, evt *event.Event) error

	// OnUnregistered runs once after the queue has drained.
	OnUnregistered(ctx context.Context)
}

// Factory constructs an extension when it is registered.
type Factory func() Extension

// Listener handles events matching a type and source.
type Listener func(ctx context.Context, evt *event.Event) error

// ResponseCallback receives the paired response event, or nil and an error
// (ErrResponseTimeout, ErrHubClosed) when none arrived.
type ResponseCallback = response.Callback

// ExtensionInfo describes a live extension.
type ExtensionInfo struct {
	Name    string
	Version string
	State   ContainerState
}

// Runtime is an extension's handle on the hub.
type Runtime struct {
	hub *Hub
	c   *container
}

// Name returns the extension name.
func (r *Runtime) Name() string {
	return r.c.name
}

// Logger returns the hub logger enriched with the extension name.
func (r *Runtime) Logger() *slog.Logger {
	return r.c.logger
}

// Dispatch publishes an event. See Hub.Dispatch.
func (r *Runtime) Dispatch(evt *event.Event) error {
	return r.hub.Dispatch(evt)
}

// DispatchWithResponse publishes an event and waits asynchronously for its
// response. See Hub.DispatchWithResponse.
func (r *Runtime) DispatchWithResponse(evt *event.Event, timeout time.Duration, cb ResponseCallback) error {
	return r.hub.DispatchWithResponse(evt, timeout, cb)
}

// SetSharedState publishes a SET version of this extension's state as of
// evt. A nil evt writes at the current sequence number.
func (r *Runtime) SetSharedState(evt *event.Event, data map[string]any) error {
	return r.hub.writeState(r.c.name, r.c.store, r.hub.versionOf(evt), data, sharedstate.StatusSet)
}

// SetPendingSharedState declares that state as of evt is being computed.
func (r *Runtime) SetPendingSharedState(evt *event.Event) error {
	return r.hub.writeState(r.c.name, r.c.store, r.hub.versionOf(evt), nil, sharedstate.StatusPending)
}

// GetSharedState reads another extension's state. See Hub.GetSharedState.
func (r *Runtime) GetSharedState(name string, evt *event.Event) (sharedstate.Result, error) {
	return r.hub.GetSharedState(name, evt)
}

// RegisterListener adds a listener that runs on this extension's worker,
// after OnEvent, for matching events dispatched from now on.
func (r *Runtime) RegisterListener(eventType, source string, l Listener) (*Subscription, error) {
	return r.hub.subscribe(r.c.listeners, r.c.name, eventType, source, l)
}

// Unregister removes the extension from the hub without waiting for its
// queue to drain, so it is safe to call from the extension's own callbacks.
func (r *Runtime) Unregister() error {
	c, err := r.hub.detach(r.c.name, r.c)
	if err != nil {
		return &ExtensionError{Name: r.c.name, Op: "unregister", Err: err}
	}
	c.requestStop()
	return nil
}
