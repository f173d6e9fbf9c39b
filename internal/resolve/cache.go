// Package resolve maps human identifiers (IDs, keys, display names,
// external IDs) to canonical record IDs, memoizing hits per cache instance.
// The cache is constructed once per client and injected wherever resolution
// is needed; nothing here is process-global.
package resolve

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/AnthusAI/plexus-dashboard/internal/store"
)

// DefaultTTL bounds how long a resolved identifier stays cached. Long-lived
// processes would otherwise never observe renames or deletions.
const DefaultTTL = 15 * time.Minute

// Option configures the cache.
type Option func(*Cache)

// WithTTL overrides the cache entry lifetime. Zero means entries live for
// the remaining process lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// withClock substitutes the time source, for tests.
func withClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

type cacheKey struct {
	kind       store.Kind
	identifier string
}

type cacheEntry struct {
	id        string
	expiresAt time.Time // zero means never
}

// Cache resolves identifiers through the store and memoizes successful
// lookups under the original identifier string. Safe for concurrent use.
type Cache struct {
	ids store.Identifiers
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	group   singleflight.Group
}

// New creates an identifier cache over the given lookup surface.
func New(ids store.Identifiers, opts ...Option) *Cache {
	c := &Cache{
		ids:     ids,
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the canonical ID for the identifier, or ok=false when
// every lookup method misses. Lookup failures are logged and treated as
// misses; Resolve never returns an error, leaving fatal-or-not to the
// caller.
func (c *Cache) Resolve(ctx context.Context, kind store.Kind, identifier string) (string, bool) {
	if identifier == "" {
		return "", false
	}

	key := cacheKey{kind: kind, identifier: identifier}
	if id, ok := c.lookup(key); ok {
		return id, true
	}

	// Concurrent callers resolving the same identifier share one remote
	// lookup sequence.
	v, _, _ := c.group.Do(string(kind)+"\x00"+identifier, func() (any, error) {
		if id, ok := c.lookup(key); ok {
			return id, nil
		}
		id := c.resolveRemote(ctx, kind, identifier)
		if id != "" {
			c.put(key, id)
		}
		return id, nil
	})

	id := v.(string)
	return id, id != ""
}

// Invalidate drops any cached entry for the identifier.
func (c *Cache) Invalidate(kind store.Kind, identifier string) {
	c.mu.Lock()
	delete(c.entries, cacheKey{kind: kind, identifier: identifier})
	c.mu.Unlock()
}

func (c *Cache) lookup(key cacheKey) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.Invalidate(key.kind, key.identifier)
		return "", false
	}
	return entry.id, true
}

func (c *Cache) put(key cacheKey, id string) {
	entry := cacheEntry{id: id}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// resolveRemote tries each lookup method in order; the first hit wins.
func (c *Cache) resolveRemote(ctx context.Context, kind store.Kind, identifier string) string {
	exists, err := c.ids.Exists(ctx, kind, identifier)
	if err != nil {
		c.logMiss(kind, identifier, "byId", err)
	} else if exists {
		return identifier
	}

	methods := []struct {
		name string
		fn   func(context.Context, store.Kind, string) (string, error)
	}{
		{"byKey", c.ids.FindByKey},
		{"byName", c.ids.FindByName},
		{"byExternalId", c.ids.FindByExternalID},
	}
	for _, m := range methods {
		id, err := m.fn(ctx, kind, identifier)
		if err != nil {
			c.logMiss(kind, identifier, m.name, err)
			continue
		}
		if id != "" {
			return id
		}
	}
	return ""
}

func (c *Cache) logMiss(kind store.Kind, identifier, method string, err error) {
	zap.L().Debug("identifier lookup failed",
		zap.String("kind", string(kind)),
		zap.String("identifier", identifier),
		zap.String("method", method),
		zap.Error(err),
	)
}
