package message

import "sync/atomic"

// Monitor tracks whether a fullscreen message is displayed.
// The zero value is ready to use.
type Monitor struct {
	displayed atomic.Bool
}

// IsDisplayed reports whether a message is displayed.
func (m *Monitor) IsDisplayed() bool {
	return m.displayed.Load()
}

// Displayed marks a message as displayed.
func (m *Monitor) Displayed() {
	m.displayed.Store(true)
}

// Dismissed marks the displayed message as gone.
func (m *Monitor) Dismissed() {
	m.displayed.Store(false)
}

// TryDisplay marks a message as displayed unless one already is. It
// reports whether the caller now owns the screen.
func (m *Monitor) TryDisplay() bool {
	return m.displayed.CompareAndSwap(false, true)
}
