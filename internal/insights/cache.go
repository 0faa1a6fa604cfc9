package insights

import (
	"context"
	"sync"
	"time"
)

// CacheEntry pairs a cached snapshot with its expiry. A nil ExpiresAt means
// the entry never expires on its own.
type CacheEntry struct {
	Value     *Snapshot
	ExpiresAt *time.Time
}

// Valid reports whether the entry is usable at the given instant.
func (e *CacheEntry) Valid(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// Cache is the per-window snapshot cache. The key space is closed (the two
// supported windows), so one build mutex per window is created eagerly at
// construction; no guard lock around lock creation is needed.
//
// GetOrSet guarantees at most one concurrent builder invocation per window:
// callers racing on a cold or expired window serialize on the window's
// build mutex and all observe the value built by whichever caller won.
type Cache struct {
	ttl     time.Duration
	metrics *Metrics
	now     func() time.Time

	mu      sync.RWMutex
	entries map[Window]*CacheEntry
	builds  map[Window]*sync.Mutex
}

// NewCache creates a snapshot cache. A non-positive ttl means entries
// expire immediately: the caller that built a value may use it once, but
// every independent Get is a miss.
func NewCache(ttl time.Duration, metrics *Metrics) *Cache {
	return &Cache{
		ttl:     ttl,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[Window]*CacheEntry, 2),
		builds: map[Window]*sync.Mutex{
			Window24h: {},
			Window7d:  {},
		},
	}
}

// WithClock overrides the wall clock, for deterministic tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the entry for key if present and unexpired. Expired entries
// are evicted on access and reported as a miss.
func (c *Cache) Get(key Window) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key Window) (*CacheEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		c.metrics.recordMiss(key)
		return nil, false
	}

	if !entry.Valid(c.now()) {
		delete(c.entries, key)
		c.metrics.recordMiss(key)
		return nil, false
	}

	c.metrics.recordHit(key)
	return entry, true
}

// Set stores a value for key. A nil expiresAt computes one from the ttl.
func (c *Cache) Set(key Window, value *Snapshot, expiresAt *time.Time) *CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(key, value, expiresAt)
}

func (c *Cache) setLocked(key Window, value *Snapshot, expiresAt *time.Time) *CacheEntry {
	if expiresAt == nil {
		expiry := c.expiry(c.now())
		expiresAt = &expiry
	}

	entry := &CacheEntry{Value: value, ExpiresAt: expiresAt}
	c.entries[key] = entry
	return entry
}

// Invalidate clears one key, or the whole cache when key is empty.
func (c *Cache) Invalidate(key Window) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key == "" {
		c.entries = make(map[Window]*CacheEntry, 2)
		return
	}
	delete(c.entries, key)
}

// GetOrSet returns the cached entry for key, or builds one. The double
// check after acquiring the build mutex covers callers that waited while
// another filled the entry. A builder error caches nothing, so the next
// request retries from scratch.
func (c *Cache) GetOrSet(ctx context.Context, key Window, builder func(context.Context) (*Snapshot, error)) (*CacheEntry, error) {
	if entry, ok := c.Get(key); ok {
		return entry, nil
	}

	lock, ok := c.builds[key]
	if !ok {
		// Unknown key, nothing to serialize on.
		lock = &sync.Mutex{}
	}

	lock.Lock()
	defer lock.Unlock()

	if entry, ok := c.Get(key); ok {
		return entry, nil
	}

	start := c.now()
	value, err := builder(ctx)
	if err != nil {
		c.metrics.recordBuild(key, "error", c.now().Sub(start).Seconds())
		return nil, err
	}
	c.metrics.recordBuild(key, "success", c.now().Sub(start).Seconds())

	return c.Set(key, value, nil), nil
}

func (c *Cache) expiry(now time.Time) time.Time {
	if c.ttl <= 0 {
		// Immediate expiry: usable once by the caller that just set it,
		// a miss on the next independent Get.
		return now
	}
	return now.Add(c.ttl)
}
