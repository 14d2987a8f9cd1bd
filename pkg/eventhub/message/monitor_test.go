package message

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitor(t *testing.T) {
	var m Monitor
	assert.False(t, m.IsDisplayed())

	m.Displayed()
	assert.True(t, m.IsDisplayed())
	assert.False(t, m.TryDisplay())

	m.Dismissed()
	assert.False(t, m.IsDisplayed())
	assert.True(t, m.TryDisplay())
	assert.True(t, m.IsDisplayed())
}

func TestMonitor_TryDisplayIsExclusive(t *testing.T) {
	var m Monitor
	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.TryDisplay() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
