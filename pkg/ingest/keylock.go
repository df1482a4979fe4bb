package ingest

import "sync"

// KeyLocks serializes reconciliation attempts per work identifier. The
// tabular store offers no locking primitive of its own, so two replies
// for the same identifier must not interleave their read-then-write
// sections inside this process. Entries are refcounted and removed when
// the last holder releases, keeping the table bounded by in-flight
// identifiers.
type KeyLocks struct {
	mu sync.Mutex
	m  map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLocks builds an empty lock table.
func NewKeyLocks() *KeyLocks {
	return &KeyLocks{m: make(map[string]*keyLockEntry)}
}

// Lock acquires the lock for key and returns its release func.
func (k *KeyLocks) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.m[key]
	if !ok {
		e = &keyLockEntry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.m, key)
			}
			k.mu.Unlock()
		})
	}
}

// Inflight reports the number of identifiers currently holding or
// waiting on a lock.
func (k *KeyLocks) Inflight() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.m)
}
