package eventhub

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/sharedstate"
)

// ContainerState is the lifecycle stage of a registered extension.
type ContainerState int32

const (
	StateUninitialized ContainerState = iota
	StateInitializing
	StateRunning
	StateUnregistering
	StateTerminated
)

// String returns the state name.
func (s ContainerState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateUnregistering:
		return "unregistering"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("ContainerState(%d)", int32(s))
	}
}

// container wraps one extension instance with its private queue and worker.
type container struct {
	hub     *Hub
	ext     Extension
	name    string
	version string
	logger  *slog.Logger
	runtime *Runtime

	state       atomic.Int32
	initialized atomic.Bool
	queue       *eventQueue
	store       *sharedstate.Store
	listeners   *listenerTable

	// pendingInit is guarded by hub.mu.
	pendingInit   bool
	backlogWarned atomic.Bool
	done          chan struct{}
}

func newContainer(h *Hub, ext Extension) *container {
	c := &container{
		hub:       h,
		ext:       ext,
		name:      ext.Name(),
		version:   ext.Version(),
		logger:    observability.EnrichLogger(h.logger, ext.Name()),
		queue:     newEventQueue(),
		store:     sharedstate.NewStore(ext.Name()),
		listeners: newListenerTable(),
		done:      make(chan struct{}),
	}
	c.runtime = &Runtime{hub: h, c: c}
	return c
}

// State returns the current lifecycle state.
func (c *container) State() ContainerState {
	return ContainerState(c.state.Load())
}

// enqueue is called with hub.mu held and must stay O(1).
func (c *container) enqueue(evt *event.Event) {
	n := c.queue.push(evt)
	if t := c.hub.settings.QueueWarnThreshold; t > 0 && n >= t && c.backlogWarned.CompareAndSwap(false, true) {
		observability.LogQueueBacklog(c.logger, c.name, n, t)
	}
}

// requestStop moves the container to Unregistering and lets the worker
// finish the queued events. The container must already be out of the
// fan-out set.
func (c *container) requestStop() {
	for {
		cur := c.state.Load()
		if ContainerState(cur) == StateTerminated || ContainerState(cur) == StateUnregistering {
			break
		}
		if c.state.CompareAndSwap(cur, int32(StateUnregistering)) {
			break
		}
	}
	c.queue.close()
}

// resume undoes requestStop if the worker has not yet stopped draining.
// It must be called with hub.mu held and reports whether the container is
// live again.
func (c *container) resume() bool {
	if !c.queue.reopen() {
		return false
	}
	to := StateInitializing
	if c.initialized.Load() {
		to = StateRunning
	}
	if !c.state.CompareAndSwap(int32(StateUnregistering), int32(to)) {
		c.queue.close()
		return false
	}
	return true
}

// wait blocks until the worker has terminated or ctx is done.
func (c *container) wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the container's worker. It initializes the extension, reports the
// outcome on initDone, then drains the queue until stopped.
func (c *container) run(initCtx context.Context, initDone chan<- error) {
	defer close(c.done)

	c.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing))
	err := c.invoke(func() error { return c.ext.OnRegistered(initCtx, c.runtime) })
	if err != nil {
		c.queue.seal()
		c.hub.discard(c)
		c.state.Store(int32(StateTerminated))
		initDone <- err
		return
	}
	c.initialized.Store(true)
	c.hub.markRunning(c)
	initDone <- nil

	for {
		batch, ok := c.queue.next()
		if !ok {
			break
		}
		c.hub.metrics.RecordQueueDepth(c.hub.ctx, c.name, int64(len(batch)))
		for _, evt := range batch {
			c.handle(evt)
		}
		if t := c.hub.settings.QueueWarnThreshold; t > 0 && c.queue.len() < t {
			c.backlogWarned.Store(false)
		}
	}

	if err := c.invoke(func() error { c.ext.OnUnregistered(c.hub.ctx); return nil }); err != nil {
		c.logger.Error("extension unregister hook failed", slog.String("error", err.Error()))
	}
	c.state.Store(int32(StateTerminated))
	c.hub.release(c)
}

// handle delivers one event to the extension and then to its listeners.
func (c *container) handle(evt *event.Event) {
	ctx, span := c.hub.spans.StartHandleSpan(c.hub.ctx, c.name, evt.ID(), evt.SequenceNumber())
	start := time.Now()
	err := c.invoke(func() error { return c.ext.OnEvent(ctx, evt) })
	c.hub.metrics.RecordHandler(ctx, c.name, time.Since(start), err)
	c.hub.spans.EndSpanWithError(span, err)
	if err != nil {
		c.hub.reportFailure(c.logger, c.name, evt, err)
	}

	for _, sub := range c.listeners.match(evt) {
		if err := c.invoke(func() error { return sub.fn(ctx, evt) }); err != nil {
			c.hub.reportFailure(c.logger, c.name, evt, err)
		}
	}
}

// invoke runs extension code, converting a panic into a PanicError.
func (c *container) invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Extension: c.name,
				Value:     r,
				Stack:     string(debug.Stack()),
			}
		}
	}()
	return fn()
}

func (c *container) info() ExtensionInfo {
	return ExtensionInfo{Name: c.name, Version: c.version, State: c.State()}
}
