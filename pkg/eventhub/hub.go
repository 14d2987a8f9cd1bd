package eventhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/randalmurphal/eventhub/pkg/eventhub/collection"
	"github.com/randalmurphal/eventhub/pkg/eventhub/config"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/response"
	"github.com/randalmurphal/eventhub/pkg/eventhub/sharedstate"
	"github.com/randalmurphal/eventhub/pkg/eventhub/snapshot"
)

// HubName is the reserved shared-state owner under which the hub publishes
// its extension roster.
const HubName = "com.eventhub.eventhub"

// Version is the hub version reported in the roster.
const Version = "1.0.0"

// Hub orders events, owns extension lifecycles and serves shared state.
//
// A Hub buffers dispatched events until Start is called and every
// in-flight registration has initialized. Call Close to release its
// goroutines.
type Hub struct {
	id        string
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	settings  config.Hub
	snapshots snapshot.Store
	failures  *failureLog
	index     *collection.Window[string, int64]

	// ctx is passed to handlers and cancelled at the end of Close.
	ctx    context.Context
	cancel context.CancelFunc

	// mu is the ordering lock. It guards the fan-out set and start state
	// and is held only to number events and enqueue references.
	mu             sync.Mutex
	seq            atomic.Int64
	containers     map[string]*container
	buffered       []*event.Event
	preStart       []pendingSubscription
	pendingInits   int
	startRequested bool
	started        bool
	closed         bool

	// states is written only with mu held.
	states   *collection.Registry[string, *sharedstate.Store]
	hubState *sharedstate.Store
	rosterMu sync.Mutex

	listeners     *listenerTable
	listenerQueue *eventQueue
	listenerDone  chan struct{}

	responses *response.Registry
}

// New creates a hub and starts its listener worker.
func New(opts ...Option) *Hub {
	h := &Hub{
		id:         ulid.Make().String(),
		logger:     slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
		settings:   config.DefaultHub(),
		containers: make(map[string]*container),
		states:     collection.NewRegistry[string, *sharedstate.Store](),
		hubState:   sharedstate.NewStore(HubName),
		listeners:  newListenerTable(),

		listenerQueue: newEventQueue(),
		listenerDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.settings.ResponseTimeout <= 0 {
		h.settings.ResponseTimeout = config.DefaultResponseTimeout
	}
	if h.settings.EventIndexSize <= 0 {
		h.settings.EventIndexSize = config.DefaultEventIndexSize
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.failures = newFailureLog(h.settings.FailureLogSize)
	h.index = collection.NewWindow[string, int64](h.settings.EventIndexSize)
	h.responses = response.NewRegistry(response.WithLogger(h.logger))
	h.states.Register(HubName, h.hubState)

	go h.runListeners()
	return h
}

// ID returns the hub identifier used as the snapshot namespace.
func (h *Hub) ID() string {
	return h.id
}

// Settings returns the effective tunables.
func (h *Hub) Settings() config.Hub {
	return h.settings
}

// RegisterExtension constructs an extension, starts its worker and waits
// for OnRegistered to return.
//
// A name that is already live fails with ErrAlreadyRegistered under
// PolicyReject. Under PolicyReplace the live instance is drained and
// unregistered first, bounded by ctx. Events dispatched while the new
// instance initializes are queued and delivered afterwards.
func (h *Hub) RegisterExtension(ctx context.Context, factory Factory) error {
	ext, err := construct(factory)
	if err != nil {
		return err
	}
	name := ext.Name()
	c := newContainer(h, ext)
	h.restoreSnapshot(ctx, c)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return &ExtensionError{Name: name, Op: "register", Err: ErrHubClosed}
	}
	old := h.containers[name]
	if old != nil && Policy(h.settings.RegistrationPolicy) != PolicyReplace {
		h.mu.Unlock()
		return &ExtensionError{Name: name, Op: "register", Err: ErrAlreadyRegistered}
	}
	h.containers[name] = c
	h.states.Register(name, c.store)
	c.pendingInit = true
	h.pendingInits++
	h.mu.Unlock()

	if old != nil {
		old.requestStop()
		if err := old.wait(ctx); err != nil {
			if h.restore(old, c) {
				h.logger.Warn("extension replace timed out, previous instance kept",
					slog.String("extension", name), slog.String("version", old.version))
			}
			c.state.Store(int32(StateTerminated))
			close(c.done)
			return &ExtensionError{Name: name, Op: "register", Err: fmt.Errorf("replace previous instance: %w", err)}
		}
	}

	elapsed := observability.TimedOperation()
	initDone := make(chan error, 1)
	go c.run(ctx, initDone)
	if err := <-initDone; err != nil {
		observability.LogExtensionRegisterError(h.logger, name, err)
		return &ExtensionError{Name: name, Op: "register", Err: err}
	}
	observability.LogExtensionRegistered(h.logger, name, c.version, elapsed())

	h.publishRoster()
	return nil
}

// construct builds the extension and validates its identity.
func construct(factory Factory) (ext Extension, err error) {
	if factory == nil {
		return nil, &ExtensionError{Op: "register", Err: fmt.Errorf("%w: nil factory", ErrInvalidExtension)}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &ExtensionError{Op: "register", Err: &PanicError{Value: r, Stack: string(debug.Stack())}}
		}
	}()

	ext = factory()
	switch {
	case ext == nil:
		return nil, &ExtensionError{Op: "register", Err: fmt.Errorf("%w: factory returned nil", ErrInvalidExtension)}
	case strings.TrimSpace(ext.Name()) == "":
		return nil, &ExtensionError{Op: "register", Err: fmt.Errorf("%w: empty name", ErrInvalidExtension)}
	case ext.Name() == HubName:
		return nil, &ExtensionError{Name: HubName, Op: "register", Err: fmt.Errorf("%w: name is reserved", ErrInvalidExtension)}
	}
	return ext, nil
}

// UnregisterExtension removes a live extension and waits, bounded by ctx,
// for its queued events to drain and OnUnregistered to run. Events
// dispatched after the call returns never reach the extension.
func (h *Hub) UnregisterExtension(ctx context.Context, name string) error {
	c, err := h.detach(name, nil)
	if err != nil {
		return &ExtensionError{Name: name, Op: "unregister", Err: err}
	}
	c.requestStop()
	if err := c.wait(ctx); err != nil {
		return &ExtensionError{Name: name, Op: "unregister", Err: err}
	}
	return nil
}

// detach removes the live container for name from the fan-out set. When
// want is non-nil the live container must be that instance.
func (h *Hub) detach(name string, want *container) (*container, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.containers[name]
	if !ok || (want != nil && c != want) {
		return nil, ErrNotRegistered
	}
	delete(h.containers, name)
	return c, nil
}

// markRunning completes a successful initialization.
func (h *Hub) markRunning(c *container) {
	h.mu.Lock()
	c.state.CompareAndSwap(int32(StateInitializing), int32(StateRunning))
	h.finishInitLocked(c)
	flushed := h.goLiveLocked()
	h.mu.Unlock()

	h.afterGoLive(flushed)
}

// discard drops a container whose registration did not complete.
func (h *Hub) discard(c *container) {
	h.mu.Lock()
	if h.containers[c.name] == c {
		delete(h.containers, c.name)
	}
	h.states.UnregisterIf(c.name, func(s *sharedstate.Store) bool { return s == c.store })
	h.finishInitLocked(c)
	flushed := h.goLiveLocked()
	h.mu.Unlock()

	h.afterGoLive(flushed)
}

// restore abandons replacement c and puts old back in the fan-out set
// with its shared state, if old has not finished draining. Events queued
// for c move to old in order. It reports whether old is live again;
// otherwise the name is left unregistered.
func (h *Hub) restore(old, c *container) bool {
	h.mu.Lock()
	resumed := false
	if h.containers[c.name] == c {
		if !h.closed && old.resume() {
			for _, evt := range c.queue.takeAll() {
				old.enqueue(evt)
			}
			h.containers[c.name] = old
			h.states.Register(c.name, old.store)
			resumed = true
		} else {
			delete(h.containers, c.name)
		}
	}
	h.states.UnregisterIf(c.name, func(s *sharedstate.Store) bool { return s == c.store })
	h.finishInitLocked(c)
	flushed := h.goLiveLocked()
	h.mu.Unlock()

	h.afterGoLive(flushed)
	return resumed
}

// release runs on the worker after OnUnregistered.
func (h *Hub) release(c *container) {
	h.mu.Lock()
	h.states.UnregisterIf(c.name, func(s *sharedstate.Store) bool { return s == c.store })
	closed := h.closed
	h.mu.Unlock()

	observability.LogExtensionUnregistered(h.logger, c.name)
	if !closed {
		h.publishRoster()
	}
}

func (h *Hub) finishInitLocked(c *container) {
	if c.pendingInit {
		c.pendingInit = false
		h.pendingInits--
	}
}

// Start moves the hub from buffering to live dispatch. Buffered events are
// numbered and delivered in their original order once every in-flight
// registration has initialized, preceded by a booted event. Start is
// idempotent.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.startRequested || h.closed {
		h.mu.Unlock()
		return
	}
	h.startRequested = true
	flushed := h.goLiveLocked()
	h.mu.Unlock()

	h.afterGoLive(flushed)
}

// Started reports whether the hub is dispatching live.
func (h *Hub) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// goLiveLocked flushes the buffer when start conditions are met and returns
// the stamped events, or nil if the hub did not go live.
func (h *Hub) goLiveLocked() []*event.Event {
	if !h.startRequested || h.started || h.closed || h.pendingInits > 0 {
		return nil
	}
	h.started = true

	// Listeners registered while buffering skip the events buffered
	// before them. The booted event is numbered next.
	bootSeq := h.seq.Load() + 1
	for _, p := range h.preStart {
		p.sub.skipFrom = bootSeq
		p.sub.skipTo = bootSeq + int64(p.buffered)
	}
	h.preStart = nil

	booted := event.New("Hub Booted", event.TypeHub, event.SourceBooted, nil)
	out := make([]*event.Event, 0, len(h.buffered)+1)
	out = append(out, h.fanOutLocked(booted))
	for _, evt := range h.buffered {
		out = append(out, h.fanOutLocked(evt))
	}
	h.buffered = nil
	return out
}

func (h *Hub) afterGoLive(flushed []*event.Event) {
	if flushed == nil {
		return
	}
	observability.LogHubStarted(h.logger, h.id, len(flushed)-1)
	for _, evt := range flushed {
		h.delivered(evt)
	}
}

// Dispatch publishes an event to every live extension and listener.
//
// The event is numbered and timestamped under the ordering lock and a
// stamped copy is queued for each subscriber; Dispatch never waits for
// processing. Before the hub is live the event is buffered and numbered
// when flushed. Malformed events fail with ErrMalformedEvent and are not
// queued.
func (h *Hub) Dispatch(evt *event.Event) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	if !h.started {
		h.buffered = append(h.buffered, evt)
		h.mu.Unlock()
		return nil
	}
	stamped := h.fanOutLocked(evt)
	h.mu.Unlock()

	h.delivered(stamped)
	return nil
}

// fanOutLocked stamps evt and queues it for every subscriber.
func (h *Hub) fanOutLocked(evt *event.Event) *event.Event {
	stamped := evt.Stamp(h.seq.Add(1), time.Now())
	h.index.Put(stamped.ID(), stamped.SequenceNumber())
	for _, c := range h.containers {
		c.enqueue(stamped)
	}
	h.listenerQueue.push(stamped)
	return stamped
}

// delivered runs after a stamped event has been queued, outside the lock.
func (h *Hub) delivered(evt *event.Event) {
	ctx, span := h.spans.StartDispatchSpan(h.ctx, evt.ID(), evt.Type(), evt.Source())
	h.responses.Resolve(evt)
	h.metrics.RecordDispatch(ctx, evt.Type(), evt.Source())
	observability.LogEventDispatched(h.logger, evt.ID(), evt.Type(), evt.Source(), evt.SequenceNumber())
	h.spans.EndSpanWithError(span, nil)
}

// DispatchWithResponse dispatches evt and calls cb exactly once: with the
// first event whose ParentID is evt's ID, or with ErrResponseTimeout after
// timeout. A non-positive timeout uses the configured default. If the hub
// closes first, cb receives ErrHubClosed.
func (h *Hub) DispatchWithResponse(evt *event.Event, timeout time.Duration, cb ResponseCallback) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if cb == nil {
		return errors.New("eventhub: response callback is required")
	}
	if timeout <= 0 {
		timeout = h.settings.ResponseTimeout
	}

	triggerID := evt.ID()
	wrapped := func(resp *event.Event, err error) {
		switch {
		case errors.Is(err, response.ErrClosed):
			err = ErrHubClosed
		case errors.Is(err, response.ErrTimeout):
			observability.LogResponseTimeout(h.logger, triggerID, timeout)
			h.metrics.RecordResponse(h.ctx, true)
		default:
			h.metrics.RecordResponse(h.ctx, false)
		}
		cb(resp, err)
	}

	if err := h.responses.Register(triggerID, timeout, wrapped); err != nil {
		if errors.Is(err, response.ErrClosed) {
			return ErrHubClosed
		}
		return err
	}
	if err := h.Dispatch(evt); err != nil {
		h.responses.Cancel(triggerID)
		return err
	}
	return nil
}

// RegisterEventListener adds a hub-wide listener for events matching type
// and source, either of which may be event.Wildcard. Listeners run on the
// hub's listener worker in global order and only see events dispatched
// after registration, including events still buffered before Start.
func (h *Hub) RegisterEventListener(eventType, source string, l Listener) (*Subscription, error) {
	return h.subscribe(h.listeners, HubName, eventType, source, l)
}

func (h *Hub) subscribe(table *listenerTable, owner, eventType, source string, l Listener) (*Subscription, error) {
	if l == nil {
		return nil, errors.New("eventhub: listener is required")
	}
	if eventType == "" || source == "" {
		return nil, errors.New("eventhub: listener type and source are required")
	}
	sub := &Subscription{
		id:        newSubscriptionID(),
		owner:     owner,
		eventType: eventType,
		source:    source,
		fn:        l,
		table:     table,
	}

	h.mu.Lock()
	sub.since = h.seq.Load()
	if !h.started {
		h.preStart = append(h.preStart, pendingSubscription{sub: sub, buffered: len(h.buffered)})
	}
	table.add(sub)
	h.mu.Unlock()
	return sub, nil
}

// runListeners delivers events to hub-wide listeners until Close.
func (h *Hub) runListeners() {
	defer close(h.listenerDone)
	for {
		batch, ok := h.listenerQueue.next()
		if !ok {
			return
		}
		for _, evt := range batch {
			for _, sub := range h.listeners.match(evt) {
				if err := h.invokeListener(sub, evt); err != nil {
					h.reportFailure(h.logger, sub.owner, evt, err)
				}
			}
		}
	}
}

func (h *Hub) invokeListener(sub *Subscription, evt *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Extension: sub.owner, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return sub.fn(h.ctx, evt)
}

// GetSharedState returns name's state as of evt: the newest entry whose
// version is at or below evt's sequence number. A nil evt reads the latest
// entry. StatusNone means no state was written yet or name is not
// registered.
//
// evt may be the caller's own handle to an event it dispatched; its
// sequence number is looked up by ID among recently dispatched events.
func (h *Hub) GetSharedState(name string, evt *event.Event) (sharedstate.Result, error) {
	store, ok := h.states.Get(name)
	if !ok {
		return sharedstate.Result{Status: sharedstate.StatusNone}, nil
	}
	if evt == nil {
		return store.Latest(), nil
	}
	return store.Resolve(h.versionOf(evt)), nil
}

// SetSharedState appends a SET version of name's state as of evt and
// dispatches a shared state change event. A nil evt writes at the current
// sequence number.
func (h *Hub) SetSharedState(name string, evt *event.Event, data map[string]any) error {
	store, err := h.writableStore(name)
	if err != nil {
		return err
	}
	return h.writeState(name, store, h.versionOf(evt), data, sharedstate.StatusSet)
}

// SetPendingSharedState appends a PENDING version of name's state as of evt.
func (h *Hub) SetPendingSharedState(name string, evt *event.Event) error {
	store, err := h.writableStore(name)
	if err != nil {
		return err
	}
	return h.writeState(name, store, h.versionOf(evt), nil, sharedstate.StatusPending)
}

func (h *Hub) writableStore(name string) (*sharedstate.Store, error) {
	if name == HubName {
		return nil, &ExtensionError{Name: name, Op: "set shared state", Err: fmt.Errorf("%w: name is reserved", ErrInvalidExtension)}
	}
	store, ok := h.states.Get(name)
	if !ok {
		return nil, &ExtensionError{Name: name, Op: "set shared state", Err: ErrNotRegistered}
	}
	return store, nil
}

// versionOf returns the sequence number evt was dispatched at. Events the
// hub has not numbered, or that fell out of the index, resolve to the
// current sequence number.
func (h *Hub) versionOf(evt *event.Event) int64 {
	if evt == nil {
		return h.seq.Load()
	}
	if seq := evt.SequenceNumber(); seq > 0 {
		return seq
	}
	if seq, ok := h.index.Get(evt.ID()); ok {
		return seq
	}
	return h.seq.Load()
}

func (h *Hub) writeState(owner string, store *sharedstate.Store, version int64, data map[string]any, status sharedstate.Status) error {
	var err error
	if status == sharedstate.StatusPending {
		err = store.SetPending(version)
	} else {
		err = store.Set(version, data)
	}
	if err != nil {
		return &ExtensionError{Name: owner, Op: "set shared state", Err: err}
	}
	if status == sharedstate.StatusSet {
		notice := event.New("Shared state change", event.TypeHub, event.SourceSharedState,
			map[string]any{event.DataKeyStateOwner: owner})
		if err := h.Dispatch(notice); err != nil && !errors.Is(err, ErrHubClosed) {
			return err
		}
	}
	return nil
}

// ShareEventHubSharedState publishes the roster of running extensions under
// HubName:
//
//	{"version": "1.0.0", "extensions": {"<name>": {"version": "<v>"}}}
func (h *Hub) ShareEventHubSharedState() error {
	h.rosterMu.Lock()
	defer h.rosterMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	exts := make(map[string]any, len(h.containers))
	for name, c := range h.containers {
		if c.State() == StateRunning {
			exts[name] = map[string]any{"version": c.version}
		}
	}
	version := h.seq.Load()
	h.mu.Unlock()

	return h.writeState(HubName, h.hubState, version, map[string]any{
		"version":    Version,
		"extensions": exts,
	}, sharedstate.StatusSet)
}

func (h *Hub) publishRoster() {
	if err := h.ShareEventHubSharedState(); err != nil && !errors.Is(err, ErrHubClosed) {
		h.logger.Warn("publish extension roster failed", slog.String("error", err.Error()))
	}
}

// RegisteredExtensions lists live extensions sorted by name.
func (h *Hub) RegisteredExtensions() []ExtensionInfo {
	h.mu.Lock()
	infos := make([]ExtensionInfo, 0, len(h.containers))
	for _, c := range h.containers {
		infos = append(infos, c.info())
	}
	h.mu.Unlock()

	slices.SortFunc(infos, func(a, b ExtensionInfo) int { return strings.Compare(a.Name, b.Name) })
	return infos
}

// Close tears the hub down: dispatch stops, every extension drains its
// queue and runs OnUnregistered, pending response callbacks receive
// ErrHubClosed, and shared state is saved when a snapshot store is set.
// Waiting is bounded by ctx; teardown continues past a ctx error.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	live := slices.Collect(maps.Values(h.containers))
	clear(h.containers)
	h.buffered = nil
	h.mu.Unlock()

	var errs []error
	for _, c := range live {
		c.requestStop()
	}
	for _, c := range live {
		if err := c.wait(ctx); err != nil {
			errs = append(errs, &ExtensionError{Name: c.name, Op: "unregister", Err: err})
		}
	}

	h.saveSnapshots(ctx, live)

	h.listenerQueue.close()
	select {
	case <-h.listenerDone:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("stop listener worker: %w", ctx.Err()))
	}

	h.responses.Close()
	h.cancel()
	return errors.Join(errs...)
}
