package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/eventhub/pkg/eventhub"
	"github.com/randalmurphal/eventhub/pkg/eventhub/collection"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// Core forwards convenience calls to a hub.
type Core struct {
	hub             *eventhub.Hub
	logger          *slog.Logger
	responseTimeout time.Duration
	registered      collection.Counter
}

// Option configures a Core.
type Option func(*Core)

// WithResponseTimeout sets the timeout used by DispatchWithResponse.
// Default: the hub's configured response timeout.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *Core) {
		if d > 0 {
			c.responseTimeout = d
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Core) {
		if l != nil {
			c.logger = l
		}
	}
}

// New wraps h.
func New(h *eventhub.Hub, opts ...Option) *Core {
	c := &Core{
		hub:             h,
		logger:          slog.Default(),
		responseTimeout: h.Settings().ResponseTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hub returns the wrapped hub.
func (c *Core) Hub() *eventhub.Hub {
	return c.hub
}

// RegisterExtensions registers a batch of extensions concurrently, then
// starts the hub and calls completion with the first registration error,
// if any. It returns immediately. Events dispatched before the batch
// completes are held by the hub and delivered once it starts.
//
// A failed registration does not stop the rest of the batch.
func (c *Core) RegisterExtensions(ctx context.Context, factories []eventhub.Factory, completion func(error)) {
	go func() {
		err := c.registerBatch(ctx, factories)
		c.hub.Start()
		if completion != nil {
			completion(err)
		}
	}()
}

func (c *Core) registerBatch(ctx context.Context, factories []eventhub.Factory) error {
	var g errgroup.Group
	var done collection.Counter
	for _, factory := range factories {
		g.Go(func() error {
			if err := c.hub.RegisterExtension(ctx, factory); err != nil {
				return err
			}
			done.Increment()
			c.registered.Increment()
			return nil
		})
	}
	err := g.Wait()

	c.logger.Debug("extension batch registered",
		slog.Int64("registered", done.Load()),
		slog.Int("requested", len(factories)),
	)
	if err != nil {
		return fmt.Errorf("register extensions: %w", err)
	}
	return nil
}

// Registered returns how many extensions this Core has registered
// successfully.
func (c *Core) Registered() int64 {
	return c.registered.Load()
}

// RegisterExtension registers one extension. It does not start the hub.
func (c *Core) RegisterExtension(ctx context.Context, factory eventhub.Factory) error {
	if err := c.hub.RegisterExtension(ctx, factory); err != nil {
		return err
	}
	c.registered.Increment()
	return nil
}

// UnregisterExtension unregisters the named extension and waits for it to
// drain.
func (c *Core) UnregisterExtension(ctx context.Context, name string) error {
	return c.hub.UnregisterExtension(ctx, name)
}

// Start starts the hub.
func (c *Core) Start() {
	c.hub.Start()
}

// Dispatch forwards evt to the hub.
func (c *Core) Dispatch(evt *event.Event) error {
	return c.hub.Dispatch(evt)
}

// DispatchWithResponse dispatches evt and calls cb with its response, or
// with eventhub.ErrResponseTimeout after the configured timeout.
func (c *Core) DispatchWithResponse(evt *event.Event, cb eventhub.ResponseCallback) error {
	return c.hub.DispatchWithResponse(evt, c.responseTimeout, cb)
}

// RegisterEventListener adds a hub-wide listener.
func (c *Core) RegisterEventListener(eventType, source string, l eventhub.Listener) (*eventhub.Subscription, error) {
	return c.hub.RegisterEventListener(eventType, source, l)
}

// RegisteredExtensionsJSON returns the roster most recently published by the
// hub as JSON. It is "{}" before any extension has registered.
func (c *Core) RegisteredExtensionsJSON() (string, error) {
	res, err := c.hub.GetSharedState(eventhub.HubName, nil)
	if err != nil {
		return "", err
	}
	data := res.Data
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal roster: %w", err)
	}
	return string(b), nil
}
