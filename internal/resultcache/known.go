package resultcache

import (
	"sync"

	"github.com/roach88/qcache/internal/fingerprint"
)

// knownEntry is the last committed store of one fingerprint.
type knownEntry struct {
	stamp int64

	// purged is set when schema growth on the resource deleted every row
	// after this fingerprint was last stored.
	purged bool
}

// knownSet tracks which fingerprints have had a successful store during the
// lifetime of a cache. Entries are added only after a commit and are never
// removed.
//
// Thread-safety: knownSet is safe for concurrent use.
type knownSet struct {
	mu         sync.RWMutex
	entries    map[string]*knownEntry
	byResource map[string][]*knownEntry
}

func newKnownSet() *knownSet {
	return &knownSet{
		entries:    make(map[string]*knownEntry),
		byResource: make(map[string][]*knownEntry),
	}
}

// add records a committed store of fp with the given batch stamp.
func (k *knownSet) add(fp fingerprint.Fingerprint, stamp int64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if e, ok := k.entries[fp.Key()]; ok {
		e.stamp = stamp
		e.purged = false
		return
	}
	e := &knownEntry{stamp: stamp}
	k.entries[fp.Key()] = e
	name := fp.Resource().Name
	k.byResource[name] = append(k.byResource[name], e)
}

// has reports whether fp was ever stored successfully.
func (k *knownSet) has(fp fingerprint.Fingerprint) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.entries[fp.Key()]
	return ok
}

// get returns a copy of the entry of fp.
func (k *knownSet) get(fp fingerprint.Fingerprint) (knownEntry, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.entries[fp.Key()]
	if !ok {
		return knownEntry{}, false
	}
	return *e, true
}

// markPurged flags every known fingerprint of resource as purged and
// returns how many were flagged. Only add of the same fingerprint clears
// the flag.
func (k *knownSet) markPurged(resource string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, e := range k.byResource[resource] {
		e.purged = true
	}
	return len(k.byResource[resource])
}

func (k *knownSet) len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}
