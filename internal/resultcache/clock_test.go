package resultcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStamper_FollowsClock(t *testing.T) {
	var s stamper
	assert.Equal(t, int64(1000), s.next(time.UnixMilli(1000)))
	assert.Equal(t, int64(2500), s.next(time.UnixMilli(2500)))
}

func TestStamper_NeverRepeats(t *testing.T) {
	var s stamper
	now := time.UnixMilli(1000)
	assert.Equal(t, int64(1000), s.next(now))
	assert.Equal(t, int64(1001), s.next(now), "same millisecond")
	assert.Equal(t, int64(1002), s.next(time.UnixMilli(10)), "clock stepped back")
	assert.Equal(t, int64(5000), s.next(time.UnixMilli(5000)))
}

func TestStamper_ThreadSafe(t *testing.T) {
	var s stamper
	const numGoroutines = 100
	now := time.UnixMilli(1)

	var mu sync.Mutex
	seen := make(map[int64]bool, numGoroutines)

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			stamp := s.next(now)
			mu.Lock()
			seen[stamp] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines, "every stamp is unique")
	for stamp := int64(1); stamp <= numGoroutines; stamp++ {
		assert.True(t, seen[stamp], "stamp %d", stamp)
	}
}
