package collection

import (
	"maps"
	"slices"
	"sync"
)

// Registry maps keys to values for many concurrent readers.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// NewRegistry returns an empty registry.
func NewRegistry[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{entries: make(map[K]V)}
}

// Register stores value under key, replacing any previous value.
func (r *Registry[K, V]) Register(key K, value V) {
	r.mu.Lock()
	r.entries[key] = value
	r.mu.Unlock()
}

// Get looks key up.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	v, ok := r.entries[key]
	r.mu.RUnlock()
	return v, ok
}

// Unregister removes key, returning the value it held.
func (r *Registry[K, V]) Unregister(key K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	return v, ok
}

// UnregisterIf removes key only while match accepts its current value.
// The check and the removal are atomic.
func (r *Registry[K, V]) UnregisterIf(key K, match func(V) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[key]
	if !ok || !match(v) {
		return false
	}
	delete(r.entries, key)
	return true
}

// Values returns a copy of the stored values in no particular order.
func (r *Registry[K, V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Collect(maps.Values(r.entries))
}

// Len reports the number of keys.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
