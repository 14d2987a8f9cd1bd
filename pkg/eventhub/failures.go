package eventhub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/collection"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
)

// FailureRecord describes one failed delivery.
type FailureRecord struct {
	Extension   string
	EventID     string
	EventType   string
	EventSource string
	Sequence    int64
	Err         error
	FailedAt    time.Time
}

// failureLog keeps the most recent delivery failures. Oldest records are
// evicted first. Failed events are never redelivered.
type failureLog struct {
	mu      sync.RWMutex
	records []FailureRecord
	maxSize int
	total   collection.Counter
}

func newFailureLog(maxSize int) *failureLog {
	if maxSize < 0 {
		maxSize = 0
	}
	return &failureLog{maxSize: maxSize}
}

func (l *failureLog) add(r FailureRecord) {
	l.total.Increment()
	if l.maxSize == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) >= l.maxSize {
		n := copy(l.records, l.records[len(l.records)-l.maxSize+1:])
		clear(l.records[n:])
		l.records = l.records[:n]
	}
	l.records = append(l.records, r)
}

func (l *failureLog) snapshot() []FailureRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]FailureRecord(nil), l.records...)
}

// reportFailure logs and records a failed delivery. Failures never reach
// the publisher.
func (h *Hub) reportFailure(logger *slog.Logger, owner string, evt *event.Event, err error) {
	herr := &HandlerError{Extension: owner, EventID: evt.ID(), Err: err}
	observability.LogHandlerFailure(logger, owner, evt.ID(), evt.SequenceNumber(), herr)
	h.failures.add(FailureRecord{
		Extension:   owner,
		EventID:     evt.ID(),
		EventType:   evt.Type(),
		EventSource: evt.Source(),
		Sequence:    evt.SequenceNumber(),
		Err:         herr,
		FailedAt:    time.Now(),
	})
}

// Failures returns the retained delivery failures, oldest first.
func (h *Hub) Failures() []FailureRecord {
	return h.failures.snapshot()
}

// FailureCount returns the number of delivery failures since the hub was
// created, including evicted ones.
func (h *Hub) FailureCount() int64 {
	return h.failures.total.Load()
}
