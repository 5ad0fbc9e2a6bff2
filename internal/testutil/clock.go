package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start of a FakeClock: the unix epoch, so that
// unix-millisecond stamps in tests read as plain offsets.
var Epoch = time.UnixMilli(0).UTC()

// FakeClock is a manually driven wall clock for tests.
//
// Unlike the system clock, FakeClock only moves when told to, so freshness
// boundaries can be hit to the millisecond.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
}

// NewFakeClock creates a clock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{start: start, now: start}
}

// NewFakeClockAt creates a clock reading ms milliseconds after Epoch.
func NewFakeClockAt(ms int64) *FakeClock {
	return NewFakeClock(Epoch.Add(time.Duration(ms) * time.Millisecond))
}

// Now returns the current reading.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// SetMillis moves the clock to ms milliseconds after Epoch.
func (c *FakeClock) SetMillis(ms int64) {
	c.Set(Epoch.Add(time.Duration(ms) * time.Millisecond))
}

// Advance moves the clock forward by d and returns the new reading.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Reset returns the clock to its start reading.
func (c *FakeClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
