package eventhub

import (
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/randalmurphal/eventhub/pkg/eventhub/collection"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// Subscription is a registered listener. Cancel it to stop delivery.
type Subscription struct {
	id        string
	owner     string
	eventType string
	source    string
	fn        Listener

	// since is the sequence number current at registration; only later
	// events are delivered.
	since int64

	// skipFrom and skipTo bound a half-open range (skipFrom, skipTo] of
	// flushed pre-start events dispatched before registration. They are
	// set with the hub's ordering lock held, before any event in the range
	// is queued.
	skipFrom int64
	skipTo   int64

	cancelled atomic.Bool
	table     *listenerTable
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string { return s.id }

// Type returns the event type filter.
func (s *Subscription) Type() string { return s.eventType }

// Source returns the event source filter.
func (s *Subscription) Source() string { return s.source }

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool { return !s.cancelled.Load() }

// Cancel stops delivery. Events already being delivered are unaffected.
// Cancel is idempotent.
func (s *Subscription) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		s.table.remove(s)
	}
}

func (s *Subscription) wants(evt *event.Event) bool {
	seq := evt.SequenceNumber()
	if seq <= s.since || (seq > s.skipFrom && seq <= s.skipTo) {
		return false
	}
	return s.Active() && evt.Matches(s.eventType, s.source)
}

// pendingSubscription is a listener registered before the hub went live,
// with the number of events already buffered at that point.
type pendingSubscription struct {
	sub      *Subscription
	buffered int
}

// listenerTable holds subscriptions in registration order.
type listenerTable struct {
	subs *collection.List[*Subscription]
}

func newListenerTable() *listenerTable {
	return &listenerTable{subs: collection.NewList[*Subscription]()}
}

func (t *listenerTable) add(s *Subscription) {
	t.subs.Append(s)
}

func (t *listenerTable) remove(s *Subscription) {
	t.subs.RemoveFunc(func(other *Subscription) bool { return other == s })
}

// match returns the subscriptions that want evt, in registration order.
func (t *listenerTable) match(evt *event.Event) []*Subscription {
	var out []*Subscription
	t.subs.Range(func(s *Subscription) bool {
		if s.wants(evt) {
			out = append(out, s)
		}
		return true
	})
	return out
}

func (t *listenerTable) len() int {
	return t.subs.Len()
}

func newSubscriptionID() string {
	return ulid.Make().String()
}
