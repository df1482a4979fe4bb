// Package cache is a small keyed TTL cache with targeted per-key
// invalidation. A write for one identifier invalidates only that
// identifier's entry, preserving the conservative "never serve stale
// data after a write" guarantee without clearing unrelated keys.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	row     int
	expires time.Time
}

// RowHints caches identifier→row-number hints for the record locator.
// Hints are advisory: the locator re-validates them against a fresh
// read before trusting them.
type RowHints struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]entry

	// now is swappable for tests
	now func() time.Time
}

// NewRowHints builds a cache whose entries expire after ttl. A
// non-positive ttl disables caching entirely.
func NewRowHints(ttl time.Duration) *RowHints {
	return &RowHints{ttl: ttl, m: make(map[string]entry), now: time.Now}
}

// Get returns the cached row number for the identifier, or 0.
func (c *RowHints) Get(identifier string) int {
	if c == nil || c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[identifier]
	if !ok {
		return 0
	}
	if c.now().After(e.expires) {
		delete(c.m, identifier)
		return 0
	}
	return e.row
}

// Put records the row number for the identifier.
func (c *RowHints) Put(identifier string, row int) {
	if c == nil || c.ttl <= 0 || identifier == "" || row < 2 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[identifier] = entry{row: row, expires: c.now().Add(c.ttl)}
}

// Invalidate drops the entry for one identifier only.
func (c *RowHints) Invalidate(identifier string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, identifier)
}

// Len reports the number of live entries, expired ones included until
// their next Get.
func (c *RowHints) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
