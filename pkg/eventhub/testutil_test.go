package eventhub

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

const (
	testType   = "com.test.type"
	testSource = "com.test.source"
)

// recorder is an extension that records what it handles.
type recorder struct {
	name    string
	version string

	// Optional hooks
	onInit  func(ctx context.Context, rt *Runtime) error
	onEvent func(ctx context.Context, evt *event.Event) error
	onStop  func()

	mu     sync.Mutex
	events []*event.Event
	rt     *Runtime

	inits        atomic.Int32
	unregistered atomic.Int32
}

func newRecorder(name string) *recorder {
	return &recorder{name: name, version: "1.0." + name}
}

func (r *recorder) Name() string    { return r.name }
func (r *recorder) Version() string { return r.version }

func (r *recorder) OnRegistered(ctx context.Context, rt *Runtime) error {
	r.inits.Add(1)
	r.mu.Lock()
	r.rt = rt
	r.mu.Unlock()
	if r.onInit != nil {
		return r.onInit(ctx, rt)
	}
	return nil
}

func (r *recorder) OnEvent(ctx context.Context, evt *event.Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	if r.onEvent != nil {
		return r.onEvent(ctx, evt)
	}
	return nil
}

func (r *recorder) OnUnregistered(context.Context) {
	if r.onStop != nil {
		r.onStop()
	}
	r.unregistered.Add(1)
}

func (r *recorder) factory() Factory {
	return func() Extension { return r }
}

func (r *recorder) runtime() *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt
}

// received returns handled events of the given type, or all when empty.
func (r *recorder) received(eventType string) []*event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*event.Event
	for _, evt := range r.events {
		if eventType == "" || evt.Type() == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// waitReceived waits until n events of eventType have been handled.
func (r *recorder) waitReceived(t *testing.T, eventType string, n int) []*event.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.received(eventType)) >= n
	}, 2*time.Second, 2*time.Millisecond, "%s received %d/%d events", r.name, len(r.received(eventType)), n)
	return r.received(eventType)
}

// quietLogger discards output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newJSONLogger writes JSON records at info level and above to w.
func newJSONLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}

// syncBuffer is a bytes.Buffer safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestHub creates a hub closed at test cleanup.
func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	h := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})
	return h
}

// register registers each recorder and fails the test on error.
func register(t *testing.T, h *Hub, recs ...*recorder) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, h.RegisterExtension(context.Background(), r.factory()))
	}
}

func testEvent(name string, data map[string]any) *event.Event {
	return event.New(name, testType, testSource, data)
}

func sequences(events []*event.Event) []int64 {
	out := make([]int64, len(events))
	for i, evt := range events {
		out[i] = evt.SequenceNumber()
	}
	return out
}

func names(events []*event.Event) []string {
	out := make([]string, len(events))
	for i, evt := range events {
		out[i] = evt.Name()
	}
	return out
}
