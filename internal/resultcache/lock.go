package resultcache

import (
	"fmt"
	"strings"
	"sync"
)

// LockPolicy selects how fetches and stores are serialized.
type LockPolicy int

const (
	// LockGlobal serializes every fetch and store of a cache.
	LockGlobal LockPolicy = iota

	// LockPerResource serializes fetches and stores of the same resource
	// only. Operations on different resources may interleave.
	LockPerResource
)

func (p LockPolicy) String() string {
	switch p {
	case LockGlobal:
		return "global"
	case LockPerResource:
		return "per-resource"
	default:
		return fmt.Sprintf("LockPolicy(%d)", int(p))
	}
}

// ParseLockPolicy parses "global" or "per-resource" (case-insensitive).
// The empty string selects LockGlobal.
func ParseLockPolicy(s string) (LockPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "global":
		return LockGlobal, nil
	case "per-resource", "per_resource", "resource":
		return LockPerResource, nil
	default:
		return 0, fmt.Errorf("unknown lock policy %q", s)
	}
}

// locker hands out the mutex guarding one resource.
type locker interface {
	lock(resource string) (unlock func())
}

type globalLocker struct {
	mu sync.Mutex
}

func (l *globalLocker) lock(string) func() {
	l.mu.Lock()
	return l.mu.Unlock
}

type resourceLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *resourceLocker) lock(resource string) func() {
	l.mu.Lock()
	m, ok := l.locks[resource]
	if !ok {
		m = &sync.Mutex{}
		l.locks[resource] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func newLocker(p LockPolicy) locker {
	if p == LockPerResource {
		return &resourceLocker{locks: make(map[string]*sync.Mutex)}
	}
	return &globalLocker{}
}
