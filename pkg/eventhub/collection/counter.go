package collection

import "sync/atomic"

// Counter is a monotonically incrementing integer safe for concurrent use.
// The zero value is ready to use.
type Counter struct {
	n atomic.Int64
}

// Increment adds one and returns the new value.
func (c *Counter) Increment() int64 {
	return c.n.Add(1)
}

// Load returns the current value.
func (c *Counter) Load() int64 {
	return c.n.Load()
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.n.Store(0)
}
