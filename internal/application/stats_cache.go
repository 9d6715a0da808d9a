package application

import (
	"sync"
	"time"
)

// statsCache keeps recently computed reservation statistics so the admin
// area does not recount on every poll. Any write that changes the counts
// invalidates it.
type statsCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]statsCacheEntry
	generation uint64
}

type statsCacheEntry struct {
	stats     ReservationStats
	expiresAt time.Time
}

func newStatsCache(ttl time.Duration, maxEntries int, now func() time.Time) *statsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 16
	}
	if now == nil {
		now = time.Now
	}
	return &statsCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]statsCacheEntry),
	}
}

func (c *statsCache) Get(key string) (ReservationStats, bool) {
	if c == nil {
		return ReservationStats{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return ReservationStats{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return ReservationStats{}, false
	}
	return cloneStats(entry.stats), true
}

// Generation identifies the current invalidation epoch. Callers read it
// before computing a value and hand it back to Store.
func (c *statsCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Store caches stats computed during generation gen. The value is dropped
// when Invalidate ran after gen was read, since it may predate that write.
func (c *statsCache) Store(key string, stats ReservationStats, gen uint64) {
	if c == nil {
		return
	}
	cloned := cloneStats(stats)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = statsCacheEntry{stats: cloned, expiresAt: expiry}
}

func (c *statsCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]statsCacheEntry)
	c.generation++
	c.mu.Unlock()
}

func (c *statsCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *statsCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneStats(stats ReservationStats) ReservationStats {
	if stats.PopularLessons != nil {
		stats.PopularLessons = append([]LessonCount(nil), stats.PopularLessons...)
	}
	return stats
}
