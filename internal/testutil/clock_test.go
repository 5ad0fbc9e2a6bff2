package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtStart(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now(), "does not move by itself")
}

func TestFakeClock_Millis(t *testing.T) {
	clock := NewFakeClockAt(1000)
	assert.Equal(t, int64(1000), clock.Now().UnixMilli())

	clock.SetMillis(2500)
	assert.Equal(t, int64(2500), clock.Now().UnixMilli())

	clock.SetMillis(10)
	assert.Equal(t, int64(10), clock.Now().UnixMilli(), "backwards is allowed")
}

func TestFakeClock_AdvanceAndReset(t *testing.T) {
	clock := NewFakeClockAt(0)

	got := clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, int64(1500), got.UnixMilli())
	assert.Equal(t, got, clock.Now())

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	clock := NewFakeClockAt(0)
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(numGoroutines), clock.Now().UnixMilli())
}
