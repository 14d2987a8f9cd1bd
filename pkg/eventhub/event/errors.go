package event

import (
	"errors"
	"fmt"
)

// ErrMalformed indicates an event is missing required fields.
var ErrMalformed = errors.New("malformed event")

// Error represents a problem with a specific event.
type Error struct {
	Event   *Event // The offending event (nil if the event itself was nil)
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	id := "<nil>"
	if e.Event != nil {
		id = e.Event.ID()
		if id == "" {
			id = "<no id>"
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("event %s: %s: %v", id, e.Message, e.Err)
	}
	return fmt.Sprintf("event %s: %s", id, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
