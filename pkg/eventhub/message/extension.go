package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/eventhub/pkg/eventhub"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// Name is the extension name.
const Name = "com.eventhub.message"

// Version is the extension version.
const Version = "1.0.0"

// Event vocabulary handled by the extension.
const (
	TypeMessage       = "com.eventhub.type.message"
	SourceInteraction = "com.eventhub.source.interaction"
	SourceDismiss     = "com.eventhub.source.dismiss"
)

// Data keys.
const (
	KeyID      = "id"
	KeyHTML    = "html"
	KeyAssets  = "assets"
	KeyAction  = "action"
	KeyURL     = "url"
	KeyShown   = "shown"
	KeyHandled = "handled"
)

// Interaction actions.
const (
	ActionPositive = "positive"
	ActionNegative = "negative"
	ActionURL      = "url"
)

// ErrNoMessage is returned for interactions when nothing is displayed.
var ErrNoMessage = errors.New("message: no message displayed")

// Extension shows at most one fullscreen message at a time.
type Extension struct {
	presenter Presenter
	delegate  Delegate
	monitor   *Monitor

	// mu guards current and rt.
	mu      sync.Mutex
	current Message
	rt      *eventhub.Runtime
}

// Option configures an Extension.
type Option func(*Extension)

// WithDelegate sets the lifecycle delegate. Default: NopDelegate.
func WithDelegate(d Delegate) Option {
	return func(e *Extension) {
		if d != nil {
			e.delegate = d
		}
	}
}

// WithMonitor shares a monitor with other message surfaces.
func WithMonitor(m *Monitor) Option {
	return func(e *Extension) {
		if m != nil {
			e.monitor = m
		}
	}
}

// New creates the extension.
func New(p Presenter, opts ...Option) *Extension {
	e := &Extension{
		presenter: p,
		delegate:  NopDelegate{},
		monitor:   &Monitor{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Factory returns a hub factory for e.
func (e *Extension) Factory() eventhub.Factory {
	return func() eventhub.Extension { return e }
}

// Monitor returns the display monitor.
func (e *Extension) Monitor() *Monitor {
	return e.monitor
}

func (e *Extension) Name() string    { return Name }
func (e *Extension) Version() string { return Version }

// OnRegistered implements eventhub.Extension.
func (e *Extension) OnRegistered(_ context.Context, rt *eventhub.Runtime) error {
	if e.presenter == nil {
		return errors.New("message: presenter is required")
	}
	e.mu.Lock()
	e.rt = rt
	e.mu.Unlock()
	return nil
}

// OnUnregistered implements eventhub.Extension.
func (e *Extension) OnUnregistered(context.Context) {
	if e.monitor.IsDisplayed() {
		e.dismiss()
	}
}

// OnEvent implements eventhub.Extension.
func (e *Extension) OnEvent(ctx context.Context, evt *event.Event) error {
	if evt.Type() != TypeMessage {
		return nil
	}
	switch evt.Source() {
	case event.SourceRequestContent:
		return e.show(ctx, evt)
	case SourceInteraction:
		return e.interact(evt)
	case SourceDismiss:
		if e.monitor.IsDisplayed() {
			e.dismiss()
		}
	}
	return nil
}

func (e *Extension) show(ctx context.Context, evt *event.Event) error {
	msg := messageFrom(evt)
	if !e.monitor.TryDisplay() {
		e.runtime().Logger().Debug("message not shown, another is displayed",
			slog.String("message_id", msg.ID))
		return e.respond(evt, map[string]any{KeyShown: false})
	}

	if err := e.presenter.Show(ctx, msg); err != nil {
		e.monitor.Dismissed()
		if rerr := e.respond(evt, map[string]any{KeyShown: false}); rerr != nil {
			return errors.Join(err, rerr)
		}
		return fmt.Errorf("show message %s: %w", msg.ID, err)
	}

	e.mu.Lock()
	e.current = msg
	e.mu.Unlock()
	e.delegate.OnShow(msg)
	return e.respond(evt, map[string]any{KeyShown: true})
}

func (e *Extension) interact(evt *event.Event) error {
	if !e.monitor.IsDisplayed() {
		return ErrNoMessage
	}
	msg := e.displayedMessage()
	data := evt.Data()
	action, _ := data[KeyAction].(string)
	switch action {
	case ActionPositive:
		e.delegate.OnPositiveResponse(msg)
	case ActionNegative:
		e.delegate.OnNegativeResponse(msg)
	case ActionURL:
		url, _ := data[KeyURL].(string)
		handled := e.delegate.OverrideURLLoad(msg, url)
		return e.respond(evt, map[string]any{KeyHandled: handled})
	default:
		return fmt.Errorf("message: unknown action %q", action)
	}
	return nil
}

func (e *Extension) dismiss() {
	msg := e.displayedMessage()
	e.monitor.Dismissed()
	e.mu.Lock()
	e.current = Message{}
	e.mu.Unlock()
	e.delegate.OnDismiss(msg)
}

func (e *Extension) respond(trigger *event.Event, data map[string]any) error {
	resp := event.NewResponse(trigger, "message response", TypeMessage, event.SourceResponseContent, data)
	return e.runtime().Dispatch(resp)
}

func (e *Extension) displayedMessage() Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Extension) runtime() *eventhub.Runtime {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rt
}

func messageFrom(evt *event.Event) Message {
	data := evt.Data()
	msg := Message{ID: evt.ID()}
	if id, ok := data[KeyID].(string); ok && id != "" {
		msg.ID = id
	}
	msg.HTML, _ = data[KeyHTML].(string)
	if assets, ok := data[KeyAssets].(map[string]any); ok {
		msg.Assets = make(map[string]string, len(assets))
		for k, v := range assets {
			if s, ok := v.(string); ok {
				msg.Assets[k] = s
			}
		}
	}
	return msg
}
