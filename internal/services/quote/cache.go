package quote

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/models"
)

const (
	DefaultTTL          = 3 * time.Minute
	DefaultIdleEviction = 30 * time.Minute
	DefaultBatchWorkers = 8
)

// cacheEntry is one settled quote with its bookkeeping timestamps.
type cacheEntry struct {
	quote      *models.Quote
	fetchedAt  time.Time
	lastAccess time.Time
}

// Cache is a request-coalescing TTL cache in front of the resolver.
// Concurrent lookups for the same symbol while a fetch is in flight
// share one upstream call. Expiry is lazy; entries idle past a longer
// threshold are evicted opportunistically to bound memory.
type Cache struct {
	resolver *Resolver
	logger   *common.Logger

	ttl          time.Duration
	idleEviction time.Duration
	batchWorkers int
	now          func() time.Time

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group
}

// CacheOption configures the cache
type CacheOption func(*Cache)

// WithTTL sets how long a settled quote stays fresh
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithIdleEviction sets the idle threshold after which entries are dropped
func WithIdleEviction(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.idleEviction = d
	}
}

// WithBatchWorkers bounds batch fan-out concurrency
func WithBatchWorkers(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.batchWorkers = n
		}
	}
}

// WithClock injects the time source, for tests
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a quote cache over the given resolver.
func NewCache(resolver *Resolver, logger *common.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		resolver:     resolver,
		logger:       logger,
		ttl:          DefaultTTL,
		idleEviction: DefaultIdleEviction,
		batchWorkers: DefaultBatchWorkers,
		now:          time.Now,
		entries:      make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached quote when fresh, otherwise resolves
// through the fallback chain. When the resolution comes back with
// SourceUsed = none and an expired entry exists, the expired entry is
// served instead, marked Stale. Failed resolutions are never stored:
// the none-quote goes back to the caller that hit the failure, but the
// next caller resolves upstream again.
func (c *Cache) GetOrFetch(ctx context.Context, sym models.Symbol) *models.Quote {
	code := sym.Code
	now := c.now()

	if entry := c.lookup(code, now); entry != nil {
		if now.Sub(entry.fetchedAt) <= c.ttl {
			return entry.quote
		}
	}

	result, _, _ := c.group.Do(code, func() (interface{}, error) {
		// Another waiter may have settled the entry while this call was
		// queued on the flight group.
		refetchAt := c.now()
		if entry := c.lookup(code, refetchAt); entry != nil && refetchAt.Sub(entry.fetchedAt) <= c.ttl {
			return entry.quote, nil
		}

		quote := c.resolver.Resolve(ctx, sym, refetchAt)
		if quote.Unavailable() {
			if prior := c.lookup(code, refetchAt); prior != nil {
				stale := *prior.quote
				stale.Stale = true
				c.logger.Warn().Str("code", code).Msg("Fetch failed, serving stale quote")
				return &stale, nil
			}
			// Not stored. One caller's cut deadline must not pin the
			// symbol as unknown for everyone else until the TTL runs out.
			return quote, nil
		}
		c.store(code, quote, refetchAt)
		return quote, nil
	})

	c.evictIdle(now)
	return result.(*models.Quote)
}

// GetOrFetchBatch resolves distinct symbols concurrently with a bounded
// worker count. One symbol failing never fails the batch. If ctx's
// deadline expires mid-batch, symbols not yet resolved come back as
// their last cached value marked Stale, or a zero quote when never seen.
func (c *Cache) GetOrFetchBatch(ctx context.Context, syms []models.Symbol) map[string]*models.Quote {
	distinct := make([]models.Symbol, 0, len(syms))
	seen := make(map[string]struct{}, len(syms))
	for _, sym := range syms {
		if _, dup := seen[sym.Code]; dup || sym.Code == "" {
			continue
		}
		seen[sym.Code] = struct{}{}
		distinct = append(distinct, sym)
	}

	var mu sync.Mutex
	results := make(map[string]*models.Quote, len(distinct))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchWorkers)
	for _, sym := range distinct {
		sym := sym
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil // deadline passed; filled in below
			}
			quote := c.GetOrFetch(gctx, sym)
			mu.Lock()
			results[sym.Code] = quote
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	// Anything the deadline cut off resolves to its last cached value.
	now := c.now()
	for _, sym := range distinct {
		if _, ok := results[sym.Code]; ok {
			continue
		}
		if entry := c.lookup(sym.Code, now); entry != nil {
			stale := *entry.quote
			stale.Stale = true
			results[sym.Code] = &stale
			continue
		}
		results[sym.Code] = &models.Quote{Code: sym.Code, AsOf: now, SourceUsed: models.SourceNone}
	}
	return results
}

// Invalidate drops the cached entry so the next request refetches.
func (c *Cache) Invalidate(code string) {
	c.mu.Lock()
	delete(c.entries, code)
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// lookup returns the entry and touches its access time.
func (c *Cache) lookup(code string, now time.Time) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[code]
	if !ok {
		return nil
	}
	entry.lastAccess = now
	return entry
}

func (c *Cache) store(code string, quote *models.Quote, now time.Time) {
	c.mu.Lock()
	c.entries[code] = &cacheEntry{quote: quote, fetchedAt: now, lastAccess: now}
	c.mu.Unlock()
}

// evictIdle drops entries nothing has touched within the idle window.
func (c *Cache) evictIdle(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for code, entry := range c.entries {
		if now.Sub(entry.lastAccess) > c.idleEviction {
			delete(c.entries, code)
		}
	}
}
