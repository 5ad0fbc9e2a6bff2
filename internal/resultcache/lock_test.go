package resultcache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLockPolicy(t *testing.T) {
	for in, want := range map[string]LockPolicy{
		"":             LockGlobal,
		"global":       LockGlobal,
		"GLOBAL":       LockGlobal,
		"per-resource": LockPerResource,
		"resource":     LockPerResource,
	} {
		got, err := ParseLockPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLockPolicy("none")
	assert.Error(t, err)
}

func TestResourceLocker_SerializesSameResource(t *testing.T) {
	l := newLocker(LockPerResource)
	var active, peak atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("Product")
			defer unlock()
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestResourceLocker_IndependentResources(t *testing.T) {
	l := newLocker(LockPerResource)
	unlock := l.lock("Product")
	defer unlock()

	done := make(chan struct{})
	go func() {
		other := l.lock("Balance")
		other()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another resource blocked")
	}
}
