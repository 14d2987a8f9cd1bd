package snapshot

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in process memory. Intended for tests.
type MemoryStore struct {
	mu     sync.RWMutex
	hubs   map[string]map[string]stored // hubID -> extension -> snapshot
	closed bool
}

type stored struct {
	data    []byte
	savedAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hubs: make(map[string]map[string]stored)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, hubID, extension string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.hubs[hubID] == nil {
		m.hubs[hubID] = make(map[string]stored)
	}
	m.hubs[hubID][extension] = stored{data: slices.Clone(data), savedAt: time.Now().UTC()}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, hubID, extension string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	s, ok := m.hubs[hubID][extension]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(s.data), nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, hubID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	infos := make([]Info, 0, len(m.hubs[hubID]))
	for ext, s := range m.hubs[hubID] {
		infos = append(infos, Info{
			HubID:     hubID,
			Extension: ext,
			SavedAt:   s.savedAt,
			Size:      int64(len(s.data)),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int { return strings.Compare(a.Extension, b.Extension) })
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, hubID, extension string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.hubs[hubID], extension)
	return nil
}

// DeleteHub implements Store.
func (m *MemoryStore) DeleteHub(_ context.Context, hubID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.hubs, hubID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.hubs = nil
	return nil
}

// Len returns the number of snapshots across all hubs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, hub := range m.hubs {
		n += len(hub)
	}
	return n
}
