// Package resolve turns raw location strings into canonical, geocoder-backed
// identities. The Cache bounds external lookups to one per distinct string;
// the Registry picks one display name per geocoder identity.
package resolve

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/alias"
	"github.com/sells-group/geoprofiles/internal/resilience"
	"github.com/sells-group/geoprofiles/pkg/geocode"
)

// Identity is a resolved geographic entity.
type Identity struct {
	StableID      string
	Lat           float64
	Lon           float64
	PrecisionRank int
}

type cacheEntry struct {
	identity Identity
	found    bool
}

// CacheStats counts lookups by outcome.
type CacheStats struct {
	Lookups       int
	Hits          int
	ExternalCalls int
	NotFound      int
	Errors        int
	// Rejected counts lookups skipped because the geocoder circuit was open.
	Rejected int
}

// Cache memoizes geocoder results for the lifetime of a run. Misses and
// errors are cached as not-found so a string is never looked up twice.
type Cache struct {
	client  geocode.Client
	breaker *resilience.CircuitBreaker

	mu      sync.Mutex
	entries map[string]cacheEntry
	failed  map[string]bool
	stats   CacheStats
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithBreaker routes geocoder calls through cb. While it is open, lookups
// of new strings fail fast and are cached as not-found.
func WithBreaker(cb *resilience.CircuitBreaker) CacheOption {
	return func(c *Cache) { c.breaker = cb }
}

// NewCache creates a Cache backed by client.
func NewCache(client geocode.Client, opts ...CacheOption) *Cache {
	c := &Cache{
		client:  client,
		entries: make(map[string]cacheEntry),
		failed:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the identity for raw, or false when it cannot be geocoded.
// The no-location sentinel never reaches the geocoder.
func (c *Cache) Resolve(ctx context.Context, raw string) (Identity, bool) {
	if raw == alias.NoLocation {
		return Identity{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Lookups++
	if e, ok := c.entries[raw]; ok {
		c.stats.Hits++
		return e.identity, e.found
	}

	place, err := c.search(ctx, raw)
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.stats.Rejected++
		c.failed[raw] = true
		zap.L().Debug("resolve: geocoder circuit open, treating as not found", zap.String("location", raw))
		c.entries[raw] = cacheEntry{}
		return Identity{}, false
	case err != nil:
		c.stats.Errors++
		c.failed[raw] = true
		zap.L().Warn("resolve: geocode failed, treating as not found",
			zap.String("location", raw),
			zap.Error(err),
		)
		c.entries[raw] = cacheEntry{}
		return Identity{}, false
	case place == nil:
		c.stats.NotFound++
		c.failed[raw] = true
		zap.L().Debug("resolve: no geocode match", zap.String("location", raw))
		c.entries[raw] = cacheEntry{}
		return Identity{}, false
	}

	id := Identity{
		StableID:      place.StableID(),
		Lat:           place.Latitude,
		Lon:           place.Longitude,
		PrecisionRank: place.PlaceRank,
	}
	c.entries[raw] = cacheEntry{identity: id, found: true}
	return id, true
}

func (c *Cache) search(ctx context.Context, raw string) (*geocode.Place, error) {
	if c.breaker == nil {
		c.stats.ExternalCalls++
		return c.client.Search(ctx, raw)
	}
	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*geocode.Place, error) {
		c.stats.ExternalCalls++
		return c.client.Search(ctx, raw)
	})
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Failed returns the raw strings that could not be geocoded, sorted.
func (c *Cache) Failed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.failed))
	for k := range c.failed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
