// Package response correlates reply events with the requests that triggered
// them.
//
// A Registry holds one-shot callbacks keyed by trigger event ID. A callback
// fires exactly once: with the first event whose ParentID matches, or with
// ErrTimeout when its deadline passes first. Deadlines are kept in a min-heap
// served by a single timer goroutine.
package response

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// Sentinel errors passed to callbacks or returned by Register.
var (
	// ErrTimeout is passed to a callback whose deadline elapsed.
	ErrTimeout = errors.New("response timed out")

	// ErrClosed is passed to pending callbacks when the registry closes,
	// and returned by Register afterwards.
	ErrClosed = errors.New("response registry closed")

	// ErrDuplicate indicates a callback is already pending for the trigger.
	ErrDuplicate = errors.New("response already pending for trigger")

	// ErrInvalidTimeout indicates a non-positive timeout.
	ErrInvalidTimeout = errors.New("response timeout must be positive")
)

// Callback receives the response event, or nil and an error when no
// response arrived.
type Callback func(evt *event.Event, err error)

type record struct {
	key      string
	deadline time.Time
	cb       Callback
	index    int
}

// Registry tracks pending response callbacks.
type Registry struct {
	logger *slog.Logger

	mu        sync.Mutex
	pending   map[string]*record
	deadlines deadlineHeap
	closed    bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report callback panics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates a registry and starts its timer goroutine.
// Call Close to release it.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:  slog.Default(),
		pending: make(map[string]*record),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Register installs cb for responses to triggerID, expiring after timeout.
func (r *Registry) Register(triggerID string, timeout time.Duration, cb Callback) error {
	if timeout <= 0 {
		return ErrInvalidTimeout
	}
	if triggerID == "" || cb == nil {
		return fmt.Errorf("response: trigger id and callback are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, ok := r.pending[triggerID]; ok {
		return fmt.Errorf("%s: %w", triggerID, ErrDuplicate)
	}

	rec := &record{
		key:      triggerID,
		deadline: time.Now().Add(timeout),
		cb:       cb,
	}
	r.pending[triggerID] = rec
	heap.Push(&r.deadlines, rec)

	// Re-arm the timer when the new record is the earliest deadline
	if rec.index == 0 {
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Resolve completes the callback waiting on evt's ParentID.
// It reports whether evt was delivered to a callback. If the matching record
// has already passed its deadline, the callback fires with ErrTimeout instead.
func (r *Registry) Resolve(evt *event.Event) bool {
	if evt == nil || evt.ParentID() == "" {
		return false
	}

	r.mu.Lock()
	rec, ok := r.pending[evt.ParentID()]
	if ok {
		r.removeLocked(rec)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if !time.Now().Before(rec.deadline) {
		r.fire(rec, nil, ErrTimeout)
		return false
	}
	r.fire(rec, evt, nil)
	return true
}

// Cancel removes the record for triggerID without firing it.
func (r *Registry) Cancel(triggerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.pending[triggerID]
	if ok {
		r.removeLocked(rec)
	}
	return ok
}

// Pending returns the number of callbacks waiting.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close fires every pending callback with ErrClosed and stops the timer.
// Close is idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	recs := make([]*record, 0, len(r.deadlines))
	for len(r.deadlines) > 0 {
		rec := heap.Pop(&r.deadlines).(*record)
		delete(r.pending, rec.key)
		recs = append(recs, rec)
	}
	r.mu.Unlock()

	close(r.done)
	<-r.stopped

	for _, rec := range recs {
		r.fire(rec, nil, ErrClosed)
	}
}

// removeLocked drops rec from both indexes. Caller holds r.mu.
func (r *Registry) removeLocked(rec *record) {
	delete(r.pending, rec.key)
	if rec.index >= 0 {
		heap.Remove(&r.deadlines, rec.index)
	}
}

func (r *Registry) run() {
	defer close(r.stopped)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		now := time.Now()

		r.mu.Lock()
		var expired []*record
		for len(r.deadlines) > 0 && !now.Before(r.deadlines[0].deadline) {
			rec := heap.Pop(&r.deadlines).(*record)
			delete(r.pending, rec.key)
			expired = append(expired, rec)
		}
		var next time.Time
		if len(r.deadlines) > 0 {
			next = r.deadlines[0].deadline
		}
		r.mu.Unlock()

		for _, rec := range expired {
			r.fire(rec, nil, ErrTimeout)
		}

		if next.IsZero() {
			timer.Stop()
		} else {
			timer.Reset(time.Until(next))
		}

		select {
		case <-r.wake:
		case <-timer.C:
		case <-r.done:
			return
		}
	}
}

func (r *Registry) fire(rec *record, evt *event.Event, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("response callback panicked",
				slog.String("trigger_id", rec.key),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	rec.cb(evt, err)
}

// deadlineHeap orders records by deadline, earliest first.
type deadlineHeap []*record

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	rec := x.(*record)
	rec.index = len(*h)
	*h = append(*h, rec)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	rec.index = -1
	*h = old[:n-1]
	return rec
}
