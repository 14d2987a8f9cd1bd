// Package sharedstate provides per-extension versioned state snapshots.
//
// Each extension owns one Store. Writes append a new Entry; entries are never
// changed after they are written. Readers query the state "as of" a sequence
// number and never block on a concurrent write.
package sharedstate

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
)

// Status describes what a reader observed.
type Status int

const (
	// StatusNone means no state exists at or before the requested version.
	StatusNone Status = iota

	// StatusPending means the owner has announced state it is still computing.
	StatusPending

	// StatusSet means the state is available.
	StatusSet
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusPending:
		return "pending"
	case StatusSet:
		return "set"
	default:
		return "unknown"
	}
}

// Latest requests the newest entry regardless of version.
const Latest int64 = -1

// ErrStaleVersion indicates a write older than the newest stored entry.
var ErrStaleVersion = errors.New("shared state version is older than latest entry")

// Entry is one immutable version of an extension's state.
type Entry struct {
	Version int64
	Status  Status
	Data    map[string]any
}

// Result is the answer to a shared state query.
type Result struct {
	Status  Status
	Version int64
	Data    map[string]any
}

// Store holds the version history for one extension.
//
// Writers are serialized by a mutex that readers never take. The history is
// published through an atomic pointer to a slice header, so a reader sees
// either the history before a write or after it, never a partial entry.
// Writes append in amortized constant time. The history is kept for the
// life of the store.
type Store struct {
	owner   string
	writeMu sync.Mutex
	entries atomic.Pointer[[]Entry]
}

// NewStore creates an empty store for the named owner.
func NewStore(owner string) *Store {
	s := &Store{owner: owner}
	empty := []Entry{}
	s.entries.Store(&empty)
	return s
}

// Owner returns the extension name this store belongs to.
func (s *Store) Owner() string {
	return s.owner
}

// Set appends a SET entry at version.
func (s *Store) Set(version int64, data map[string]any) error {
	return s.append(Entry{Version: version, Status: StatusSet, Data: maps.Clone(data)})
}

// SetPending appends a PENDING entry at version.
// A later Set at the same version resolves it.
func (s *Store) SetPending(version int64) error {
	return s.append(Entry{Version: version, Status: StatusPending})
}

func (s *Store) append(e Entry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := *s.entries.Load()
	if n := len(cur); n > 0 && e.Version < cur[n-1].Version {
		return fmt.Errorf("%s: write at %d, latest %d: %w",
			s.owner, e.Version, cur[n-1].Version, ErrStaleVersion)
	}

	// Published slices only grow, so appending into spare capacity never
	// touches an element a reader can see.
	next := append(cur, e)
	s.entries.Store(&next)
	return nil
}

// Resolve returns the most recently written entry whose version is at or
// below version. Latest returns the newest entry.
func (s *Store) Resolve(version int64) Result {
	cur := *s.entries.Load()
	if len(cur) == 0 {
		return Result{Status: StatusNone}
	}
	if version == Latest {
		return toResult(cur[len(cur)-1])
	}

	// Versions are non-decreasing; the last index with Version <= version
	// is the newest applicable entry.
	lo, hi := 0, len(cur)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cur[mid].Version <= version {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return Result{Status: StatusNone}
	}
	return toResult(cur[lo-1])
}

// Latest returns the newest entry.
func (s *Store) Latest() Result {
	return s.Resolve(Latest)
}

// LatestSet returns the newest SET entry, skipping pending ones.
func (s *Store) LatestSet() (Result, bool) {
	cur := *s.entries.Load()
	for i := len(cur) - 1; i >= 0; i-- {
		if cur[i].Status == StatusSet {
			return toResult(cur[i]), true
		}
	}
	return Result{Status: StatusNone}, false
}

// Entries returns a copy of the version history.
func (s *Store) Entries() []Entry {
	cur := *s.entries.Load()
	out := make([]Entry, len(cur))
	for i, e := range cur {
		out[i] = Entry{Version: e.Version, Status: e.Status, Data: maps.Clone(e.Data)}
	}
	return out
}

// Len returns the number of stored versions.
func (s *Store) Len() int {
	return len(*s.entries.Load())
}

func toResult(e Entry) Result {
	return Result{Status: e.Status, Version: e.Version, Data: maps.Clone(e.Data)}
}
