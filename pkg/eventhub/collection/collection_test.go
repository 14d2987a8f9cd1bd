package collection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	var c Counter
	assert.Equal(t, int64(0), c.Load())
	assert.Equal(t, int64(1), c.Increment())
	assert.Equal(t, int64(2), c.Increment())

	c.Reset()
	assert.Equal(t, int64(0), c.Load())
}

func TestCounter_Concurrent(t *testing.T) {
	var c Counter
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			c.Increment()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), c.Load())
}

func TestList_AppendSnapshot(t *testing.T) {
	l := NewList(1, 2)
	assert.Equal(t, 3, l.Append(3))
	assert.Equal(t, []int{1, 2, 3}, l.Snapshot())

	// Snapshot is a copy
	snap := l.Snapshot()
	snap[0] = 99
	assert.Equal(t, []int{1, 2, 3}, l.Snapshot())
}

func TestList_TakeAll(t *testing.T) {
	l := NewList("a", "b")
	assert.Equal(t, []string{"a", "b"}, l.TakeAll())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.TakeAll())

	l.Append("c")
	assert.Equal(t, []string{"c"}, l.TakeAll())
}

func TestList_RemoveFunc(t *testing.T) {
	l := NewList(1, 2, 3, 4, 5)
	removed := l.RemoveFunc(func(v int) bool { return v%2 == 0 })

	assert.Equal(t, 2, removed)
	assert.Equal(t, []int{1, 3, 5}, l.Snapshot())
}

func TestList_RangeAllowsMutation(t *testing.T) {
	l := NewList(1, 2, 3)

	var seen []int
	l.Range(func(v int) bool {
		seen = append(seen, v)
		l.RemoveFunc(func(x int) bool { return x == v })
		return true
	})

	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 0, l.Len())
}

func TestList_RangeStops(t *testing.T) {
	l := NewList(1, 2, 3)
	var seen []int
	l.Range(func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})
	assert.Equal(t, []int{1, 2}, seen)
}

func TestList_ConcurrentAppendPreservesPerWriterOrder(t *testing.T) {
	l := NewList[[2]int]()
	const writers, perWriter = 8, 200

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				l.Append([2]int{w, i})
			}
		}(w)
	}
	wg.Wait()

	items := l.Snapshot()
	require.Len(t, items, writers*perWriter)

	last := make(map[int]int)
	for w := 0; w < writers; w++ {
		last[w] = -1
	}
	for _, it := range items {
		assert.Greater(t, it[1], last[it[0]])
		last[it[0]] = it[1]
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry[string, int]()
	assert.Equal(t, 0, r.Len())

	r.Register("one", 1)
	r.Register("two", 2)
	r.Register("one", 11)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 11, v)
	assert.ElementsMatch(t, []int{11, 2}, r.Values())

	v, ok = r.Unregister("one")
	assert.True(t, ok)
	assert.Equal(t, 11, v)
	_, ok = r.Get("one")
	assert.False(t, ok)

	_, ok = r.Unregister("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_UnregisterIf(t *testing.T) {
	r := NewRegistry[string, *int]()
	first, second := new(int), new(int)
	r.Register("k", first)
	r.Register("k", second)

	// The stale owner cannot remove its successor's value.
	assert.False(t, r.UnregisterIf("k", func(v *int) bool { return v == first }))
	got, ok := r.Get("k")
	require.True(t, ok)
	assert.Same(t, second, got)

	assert.True(t, r.UnregisterIf("k", func(v *int) bool { return v == second }))
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.UnregisterIf("k", func(*int) bool { return true }))
}

func TestWindow_EvictsOldestWrite(t *testing.T) {
	w := NewWindow[string, int64](2)
	w.Put("a", 1)
	w.Put("b", 2)
	w.Put("c", 3)

	_, ok := w.Get("a")
	assert.False(t, ok)
	v, ok := w.Get("c")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, 2, w.Len())
}

func TestWindow_RewriteMovesKeyToNewest(t *testing.T) {
	w := NewWindow[string, int64](3)
	w.Put("a", 1)
	w.Put("b", 2)
	w.Put("a", 3)

	// Reusing the slot first filled by "a" must not drop the newer "a".
	w.Put("c", 4)
	v, ok := w.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, 3, w.Len())

	w.Put("d", 5)
	_, ok = w.Get("b")
	assert.False(t, ok)
	_, ok = w.Get("a")
	assert.True(t, ok)
}

func TestWindow_MinimumSize(t *testing.T) {
	w := NewWindow[string, int](0)
	w.Put("a", 1)
	w.Put("b", 2)
	_, ok := w.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, w.Len())
}
