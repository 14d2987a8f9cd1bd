package core

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhub/pkg/eventhub"
	"github.com/randalmurphal/eventhub/pkg/eventhub/config"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

const (
	pingType   = "com.test.type.ping"
	pingSource = "com.test.source.request"
	pongSource = "com.test.source.response"
)

// echo answers ping requests when respond is set and records everything.
type echo struct {
	name    string
	respond bool
	initErr error

	mu     sync.Mutex
	rt     *eventhub.Runtime
	events []*event.Event
}

func (e *echo) Name() string    { return e.name }
func (e *echo) Version() string { return "2.0.0" }

func (e *echo) OnRegistered(_ context.Context, rt *eventhub.Runtime) error {
	e.mu.Lock()
	e.rt = rt
	e.mu.Unlock()
	return e.initErr
}

func (e *echo) OnEvent(_ context.Context, evt *event.Event) error {
	e.mu.Lock()
	e.events = append(e.events, evt)
	rt := e.rt
	e.mu.Unlock()
	if e.respond && evt.Type() == pingType && evt.Source() == pingSource {
		return rt.Dispatch(event.NewResponse(evt, "pong", pingType, pongSource, map[string]any{"from": e.name}))
	}
	return nil
}

func (e *echo) OnUnregistered(context.Context) {}

func (e *echo) count(source string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, evt := range e.events {
		if evt.Source() == source {
			n++
		}
	}
	return n
}

func (e *echo) factory() eventhub.Factory {
	return func() eventhub.Extension { return e }
}

func newTestCore(t *testing.T, opts ...Option) *Core {
	t.Helper()
	h := eventhub.New(eventhub.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})
	return New(h, opts...)
}

func ping() *event.Event {
	return event.New("ping", pingType, pingSource, nil)
}

func TestCore_DefaultResponseTimeoutFromHubSettings(t *testing.T) {
	c := newTestCore(t)
	assert.Equal(t, config.DefaultResponseTimeout, c.responseTimeout)

	c = newTestCore(t, WithResponseTimeout(5*time.Second))
	assert.Equal(t, 5*time.Second, c.responseTimeout)

	c = newTestCore(t, WithResponseTimeout(0))
	assert.Equal(t, config.DefaultResponseTimeout, c.responseTimeout)
}

func TestCore_RegisterExtensionsStartsHub(t *testing.T) {
	c := newTestCore(t)
	a := &echo{name: "com.test.a"}
	b := &echo{name: "com.test.b"}

	// Dispatched before the batch completes: held, then delivered.
	require.NoError(t, c.Dispatch(ping()))

	done := make(chan error, 1)
	c.RegisterExtensions(context.Background(), []eventhub.Factory{a.factory(), b.factory()}, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("completion not called")
	}

	assert.True(t, c.Hub().Started())
	assert.Equal(t, int64(2), c.Registered())
	require.Eventually(t, func() bool {
		return a.count(pingSource) == 1 && b.count(pingSource) == 1
	}, 2*time.Second, 2*time.Millisecond)
}

func TestCore_RegisterExtensionsReportsFailure(t *testing.T) {
	c := newTestCore(t)
	good := &echo{name: "com.test.good"}
	bad := &echo{name: "com.test.bad", initErr: assert.AnError}

	done := make(chan error, 1)
	c.RegisterExtensions(context.Background(), []eventhub.Factory{good.factory(), bad.factory()}, func(err error) {
		done <- err
	})

	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("completion not called")
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)

	// The rest of the batch still registers and the hub still starts.
	assert.True(t, c.Hub().Started())
	assert.Equal(t, int64(1), c.Registered())
	names := []string{}
	for _, info := range c.Hub().RegisteredExtensions() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"com.test.good"}, names)
}

func TestCore_RegisterExtensionsNilCompletion(t *testing.T) {
	c := newTestCore(t)
	a := &echo{name: "com.test.a"}
	c.RegisterExtensions(context.Background(), []eventhub.Factory{a.factory()}, nil)
	require.Eventually(t, c.Hub().Started, 2*time.Second, 2*time.Millisecond)
}

func TestCore_DispatchWithResponse(t *testing.T) {
	c := newTestCore(t)
	responder := &echo{name: "com.test.responder", respond: true}
	require.NoError(t, c.RegisterExtension(context.Background(), responder.factory()))
	c.Start()

	got := make(chan *event.Event, 1)
	trigger := ping()
	require.NoError(t, c.DispatchWithResponse(trigger, func(resp *event.Event, err error) {
		assert.NoError(t, err)
		got <- resp
	}))

	select {
	case resp := <-got:
		require.NotNil(t, resp)
		assert.Equal(t, trigger.ID(), resp.ParentID())
		assert.Equal(t, "com.test.responder", resp.Data()["from"])
	case <-time.After(2 * time.Second):
		t.Fatal("response callback not called")
	}
}

func TestCore_DispatchWithResponseTimesOut(t *testing.T) {
	c := newTestCore(t, WithResponseTimeout(time.Millisecond))
	silent := &echo{name: "com.test.silent"}
	require.NoError(t, c.RegisterExtension(context.Background(), silent.factory()))
	c.Start()

	var calls atomic.Int32
	errs := make(chan error, 2)
	require.NoError(t, c.DispatchWithResponse(ping(), func(resp *event.Event, err error) {
		calls.Add(1)
		assert.Nil(t, resp)
		errs <- err
	}))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, eventhub.ErrResponseTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback not called")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCore_UnregisterExtension(t *testing.T) {
	c := newTestCore(t)
	a := &echo{name: "com.test.a"}
	require.NoError(t, c.RegisterExtension(context.Background(), a.factory()))
	c.Start()

	require.NoError(t, c.UnregisterExtension(context.Background(), "com.test.a"))
	assert.ErrorIs(t, c.UnregisterExtension(context.Background(), "com.test.a"), eventhub.ErrNotRegistered)
}

func TestCore_RegisterEventListener(t *testing.T) {
	c := newTestCore(t)
	c.Start()

	seen := make(chan string, 4)
	sub, err := c.RegisterEventListener(pingType, event.Wildcard, func(_ context.Context, evt *event.Event) error {
		seen <- evt.Source()
		return nil
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, c.Dispatch(ping()))
	select {
	case src := <-seen:
		assert.Equal(t, pingSource, src)
	case <-time.After(2 * time.Second):
		t.Fatal("listener not called")
	}
}

func TestCore_RegisteredExtensionsJSON(t *testing.T) {
	c := newTestCore(t)

	raw, err := c.RegisteredExtensionsJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, raw)

	a := &echo{name: "com.test.a"}
	require.NoError(t, c.RegisterExtension(context.Background(), a.factory()))

	raw, err = c.RegisteredExtensionsJSON()
	require.NoError(t, err)

	var roster struct {
		Version    string `json:"version"`
		Extensions map[string]struct {
			Version string `json:"version"`
		} `json:"extensions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &roster))
	assert.Equal(t, eventhub.Version, roster.Version)
	require.Contains(t, roster.Extensions, "com.test.a")
	assert.Equal(t, "2.0.0", roster.Extensions["com.test.a"].Version)
}
