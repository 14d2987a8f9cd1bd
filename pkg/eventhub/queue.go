package eventhub

import (
	"sync"

	"github.com/randalmurphal/eventhub/pkg/eventhub/collection"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// eventQueue is an unbounded FIFO drained by a single goroutine.
// Pushing never blocks.
type eventQueue struct {
	items  *collection.List[*event.Event]
	signal chan struct{}

	// mu guards the stop state. exited is final: once next has reported
	// the end of the queue, reopen fails.
	mu       sync.Mutex
	stopping bool
	exited   bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		items:  collection.NewList[*event.Event](),
		signal: make(chan struct{}, 1),
	}
}

// push appends evt and returns the queue length.
func (q *eventQueue) push(evt *event.Event) int {
	n := q.items.Append(evt)
	q.wake()
	return n
}

func (q *eventQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) len() int {
	return q.items.Len()
}

// takeAll removes and returns every queued event.
func (q *eventQueue) takeAll() []*event.Event {
	return q.items.TakeAll()
}

// close makes next return false once the queue is empty.
// Callers must stop pushing before closing.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.stopping = true
	q.mu.Unlock()
	q.wake()
}

// seal closes the queue for good without draining it.
func (q *eventQueue) seal() {
	q.mu.Lock()
	q.stopping = true
	q.exited = true
	q.mu.Unlock()
	q.wake()
}

// reopen undoes close if the consumer has not yet seen the end of the
// queue. It reports whether the queue is live again.
func (q *eventQueue) reopen() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.exited {
		return false
	}
	q.stopping = false
	return true
}

// next blocks until events are queued and returns them in order.
// It returns false when the queue is closed and fully drained.
func (q *eventQueue) next() ([]*event.Event, bool) {
	for {
		if batch := q.items.TakeAll(); len(batch) > 0 {
			return batch, true
		}
		q.mu.Lock()
		if q.stopping {
			if q.items.Len() == 0 {
				q.exited = true
				q.mu.Unlock()
				return nil, false
			}
			q.mu.Unlock()
			continue
		}
		q.mu.Unlock()
		<-q.signal
	}
}
