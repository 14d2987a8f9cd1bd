/*
Package eventhub provides an in-process event hub for independently
developed extensions.

# Overview

Extensions never call each other. They publish events to a Hub, which
numbers every event under one ordering lock and queues a reference for each
live extension. Each extension has its own worker goroutine that handles its
events strictly in global order, so one slow extension never stalls
another.

# Basic Usage

	hub := eventhub.New(eventhub.WithLogger(logger))
	defer hub.Close(context.Background())

	if err := hub.RegisterExtension(ctx, newIdentity); err != nil {
	    return err
	}
	hub.Start()

	evt := event.New("Get ID", event.TypeGenericIdentity, event.SourceRequestContent,
	    map[string]any{"key": "v"})
	err := hub.DispatchWithResponse(evt, time.Second, func(resp *event.Event, err error) {
	    if errors.Is(err, eventhub.ErrResponseTimeout) {
	        return
	    }
	    // use resp.Data()
	})

# Extensions

An Extension is created by a Factory when registered. OnRegistered runs on
the extension's worker before any event is delivered and receives a
Runtime for dispatching, reading and writing shared state, and registering
listeners that run on the same worker. Events that arrive while it
initializes are queued, not dropped.

Registering a name that is already live is rejected by default. With
WithRegistrationPolicy(PolicyReplace) the old instance is drained and
unregistered first.

# Startup Buffering

Events dispatched before Start are held unnumbered. Once Start has been
called and every in-flight registration has initialized, the hub dispatches
a booted event and then the held events in their original order. Every
extension registered by then sees all of them.

# Shared State

Each extension owns a versioned history keyed by sequence number. Reading
"as of" an event returns the newest entry at or below that event's sequence
number. A PENDING entry declares that state is being computed and is
distinct from StatusNone. The hub publishes its roster of running
extensions under HubName.

# Responses

DispatchWithResponse installs a one-shot callback keyed by the event ID. It
fires exactly once: with the first event whose ParentID matches, or with
ErrResponseTimeout when the timeout passes first.

# Failures

Errors and panics from OnEvent or listeners are logged, recorded in a
bounded failure log (see Failures) and never reach the publisher. The
worker continues with the next event.

# Related Packages

Package core wraps a Hub with batch registration and a default response
timeout. Package message is a ready-made extension that shows one
fullscreen message at a time. Package snapshot persists shared state
across restarts when a store is set with WithSnapshotStore.
*/
package eventhub
