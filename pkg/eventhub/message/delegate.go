package message

import "context"

// Message is a fullscreen message to render.
type Message struct {
	ID   string
	HTML string
	// Assets maps remote asset URLs to cached local paths.
	Assets map[string]string
}

// Presenter renders messages. Show must not block until dismissal; the
// presenter reports closing with a SourceDismiss event.
type Presenter interface {
	Show(ctx context.Context, msg Message) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, msg Message) error

// Show calls f.
func (f PresenterFunc) Show(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Delegate is told about a message's lifecycle.
type Delegate interface {
	OnShow(msg Message)
	OnDismiss(msg Message)
	OnPositiveResponse(msg Message)
	OnNegativeResponse(msg Message)

	// OverrideURLLoad reports whether the delegate handled url itself.
	OverrideURLLoad(msg Message, url string) bool
}

// NopDelegate ignores every callback and never handles URLs.
type NopDelegate struct{}

func (NopDelegate) OnShow(Message)                       {}
func (NopDelegate) OnDismiss(Message)                    {}
func (NopDelegate) OnPositiveResponse(Message)           {}
func (NopDelegate) OnNegativeResponse(Message)           {}
func (NopDelegate) OverrideURLLoad(Message, string) bool { return false }
