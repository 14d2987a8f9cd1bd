package collection

import "sync"

// List is an ordered sequence safe for concurrent append, iterate and remove.
// Iteration always works on a snapshot, so concurrent mutation never
// corrupts an in-progress Range.
type List[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewList creates a list holding the given items in order.
func NewList[T any](items ...T) *List[T] {
	return &List[T]{items: append([]T(nil), items...)}
}

// Append adds items to the end of the list and returns the new length.
func (l *List[T]) Append(items ...T) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, items...)
	return len(l.items)
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Snapshot returns a copy of the current items in order.
func (l *List[T]) Snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]T(nil), l.items...)
}

// TakeAll removes and returns every item in order.
func (l *List[T]) TakeAll() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := l.items
	l.items = nil
	return items
}

// RemoveFunc removes every item for which pred returns true and reports
// how many were removed. Relative order of the remaining items is kept.
func (l *List[T]) RemoveFunc(pred func(T) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.items[:0]
	removed := 0
	for _, it := range l.items {
		if pred(it) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	// Clear the tail so removed items can be collected
	clear(l.items[len(kept):])
	l.items = kept
	return removed
}

// Range calls fn for each item of a snapshot until fn returns false.
func (l *List[T]) Range(fn func(T) bool) {
	for _, it := range l.Snapshot() {
		if !fn(it) {
			return
		}
	}
}
