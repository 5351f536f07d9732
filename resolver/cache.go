package resolver

import (
	"context"
	"sync"
	"time"
)

// Kind is the kind of a cache entry, each kind has its own TTL.
type Kind string

// KindCUSIP entries map a CUSIP to a ticker.
const KindCUSIP Kind = "cusip"

// DefaultTTL is the time to live of cache entries per kind.
var DefaultTTL = map[Kind]time.Duration{
	KindCUSIP: 7 * 24 * time.Hour,
}

// Cache stores mappings by kind and key.
//
// Keys are scoped: see UserKey and GlobalKey. Writes are last writer wins.
type Cache interface {
	Get(ctx context.Context, kind Kind, key string) (Mapping, bool, error)
	Set(ctx context.Context, kind Kind, key string, m Mapping) error
	Invalidate(ctx context.Context, kind Kind, key string) error
}

// UserKey is the cache key of an identifier resolved for one user.
func UserKey(userID, id string) string { return "user:" + userID + ":" + id }

// GlobalKey is the cache key of an identifier shared by all users.
func GlobalKey(id string) string { return "global:" + id }

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     map[Kind]time.Duration
	entries map[Kind]map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	m       Mapping
	expires time.Time
}

// NewMemoryCache returns an empty cache, 'ttl' defaults to DefaultTTL.
func NewMemoryCache(ttl map[Kind]time.Duration) *MemoryCache {
	if ttl == nil {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[Kind]map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, kind Kind, key string) (Mapping, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[kind][key]
	if !ok {
		return Mapping{}, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries[kind], key)
		return Mapping{}, false, nil
	}
	return e.m, true, nil
}

func (c *MemoryCache) Set(_ context.Context, kind Kind, key string, m Mapping) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[kind] == nil {
		c.entries[kind] = make(map[string]cacheEntry)
	}
	var expires time.Time
	if ttl := c.ttl[kind]; ttl > 0 {
		expires = c.now().Add(ttl)
	}
	c.entries[kind][key] = cacheEntry{m: m, expires: expires}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, kind Kind, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries[kind], key)
	return nil
}
