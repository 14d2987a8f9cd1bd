package eventhub

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/eventhub/pkg/eventhub/response"
)

// Sentinel errors for registration.
var (
	// ErrAlreadyRegistered indicates a live extension already uses the name.
	ErrAlreadyRegistered = errors.New("extension already registered")

	// ErrNotRegistered indicates no live extension has the name.
	ErrNotRegistered = errors.New("extension not registered")

	// ErrInvalidExtension indicates a nil factory, a nil extension, an empty
	// name, or use of the reserved hub name.
	ErrInvalidExtension = errors.New("invalid extension")
)

// Sentinel errors for dispatch and delivery.
var (
	// ErrMalformedEvent indicates an event missing required fields.
	// Malformed events are rejected at dispatch and never queued.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrHubClosed indicates the hub has been torn down.
	ErrHubClosed = errors.New("event hub closed")

	// ErrHandlerFailure marks an extension or listener that failed on an
	// event. It is logged and recorded, never returned to the publisher.
	ErrHandlerFailure = errors.New("event handler failed")

	// ErrResponseTimeout is passed to a response callback when no paired
	// event arrived in time.
	ErrResponseTimeout = response.ErrTimeout
)

// ExtensionError wraps a registration or unregistration failure.
type ExtensionError struct {
	// Name is the extension name.
	Name string
	// Op is the operation that failed ("register", "unregister").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ExtensionError) Error() string {
	return fmt.Sprintf("extension %s: %s: %v", e.Name, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExtensionError) Unwrap() error {
	return e.Err
}

// HandlerError describes one failed delivery.
type HandlerError struct {
	// Extension is the extension (or listener owner) that failed.
	Extension string
	// EventID is the event being handled.
	EventID string
	// Err is the error returned or recovered from the handler.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("extension %s: event %s: %v", e.Extension, e.EventID, e.Err)
}

// Is reports ErrHandlerFailure so callers can match the category.
func (e *HandlerError) Is(target error) bool {
	return target == ErrHandlerFailure
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by extension code.
type PanicError struct {
	// Extension is the extension whose code panicked.
	Extension string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("extension %s panicked: %v", e.Extension, e.Value)
}
