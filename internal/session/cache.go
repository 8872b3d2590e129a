package session

import (
	"sync"
	"time"

	"github.com/coursewright/coursewright/internal/domain"
)

// readCache is a short-TTL snapshot cache in front of the session store.
// It only serves repeated loads within a single processing window;
// entries are invalidated on every save and delete.
type readCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	snap    domain.Snapshot
	expires time.Time
}

func newReadCache(ttl time.Duration) *readCache {
	return &readCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *readCache) get(id string) (domain.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return domain.Snapshot{}, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, id)
		return domain.Snapshot{}, false
	}
	return e.snap, true
}

func (c *readCache) put(snap domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[snap.SessionID] = cacheEntry{snap: snap, expires: time.Now().Add(c.ttl)}
}

func (c *readCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}
