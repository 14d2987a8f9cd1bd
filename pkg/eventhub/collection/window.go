package collection

import "sync"

// Window is a map that keeps only the most recently written keys. Once it
// holds size keys, each new key evicts the oldest write. Rewriting a key
// moves it to the newest position.
type Window[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]windowEntry[V]
	ring    []windowSlot[K]
	next    int
	gen     uint64
}

type windowEntry[V any] struct {
	value V
	gen   uint64
}

type windowSlot[K comparable] struct {
	key  K
	gen  uint64
	used bool
}

// NewWindow returns a window holding at most size keys. A size below one
// is treated as one.
func NewWindow[K comparable, V any](size int) *Window[K, V] {
	size = max(size, 1)
	return &Window[K, V]{
		entries: make(map[K]windowEntry[V], size),
		ring:    make([]windowSlot[K], size),
	}
}

// Put stores value under key.
func (w *Window[K, V]) Put(key K, value V) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old := w.ring[w.next]; old.used {
		// A key rewritten since this slot was filled lives in a newer slot.
		if e, ok := w.entries[old.key]; ok && e.gen == old.gen {
			delete(w.entries, old.key)
		}
	}
	w.gen++
	w.entries[key] = windowEntry[V]{value: value, gen: w.gen}
	w.ring[w.next] = windowSlot[K]{key: key, gen: w.gen, used: true}
	w.next = (w.next + 1) % len(w.ring)
}

// Get looks key up.
func (w *Window[K, V]) Get(key K) (V, bool) {
	w.mu.RLock()
	e, ok := w.entries[key]
	w.mu.RUnlock()
	return e.value, ok
}

// Len reports the number of keys held.
func (w *Window[K, V]) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}
