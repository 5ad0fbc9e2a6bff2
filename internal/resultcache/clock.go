package resultcache

import (
	"sync/atomic"
	"time"
)

// Clock supplies wall time for batch stamps and freshness checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// stamper issues batch stamps: unix milliseconds of the wall clock, forced
// strictly increasing so two batches never share a stamp even when the
// clock stalls or steps backwards.
//
// Thread-safety: stamper is safe for concurrent use (atomic operations).
type stamper struct {
	last atomic.Int64
}

// next returns a stamp greater than every stamp issued before.
func (s *stamper) next(now time.Time) int64 {
	want := now.UnixMilli()
	for {
		last := s.last.Load()
		stamp := want
		if stamp <= last {
			stamp = last + 1
		}
		if s.last.CompareAndSwap(last, stamp) {
			return stamp
		}
	}
}
