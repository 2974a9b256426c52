package metadata

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/slipstream/mediabridge/internal/database"
)

const storeTimeout = 2 * time.Second

// CacheConfig holds cache configuration.
type CacheConfig struct {
	TTL time.Duration
	// StaleWhileRevalidate serves expired entries for up to StaleWindow while
	// a background resolution replaces them.
	StaleWhileRevalidate bool
	StaleWindow          time.Duration
	RefreshTimeout       time.Duration
	MaxEntries           int
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:            10 * time.Minute,
		StaleWindow:    30 * time.Minute,
		RefreshTimeout: 30 * time.Second,
		MaxEntries:     5000,
	}
}

// CacheStats is a point-in-time view of cache activity.
type CacheStats struct {
	Entries         int   `json:"entries"`
	Hits            int64 `json:"hits"`
	StaleHits       int64 `json:"staleHits"`
	Misses          int64 `json:"misses"`
	Refreshes       int64 `json:"refreshes"`
	RefreshFailures int64 `json:"refreshFailures"`
	Evictions       int64 `json:"evictions"`
}

type cacheEntry struct {
	value     *Result
	expiresAt time.Time
}

// Cache memoizes resolution results per key. Concurrent misses for one key
// share a single resolution and failures are never stored.
type Cache struct {
	mu         sync.RWMutex
	items      map[string]cacheEntry
	refreshing map[string]struct{}
	cfg        CacheConfig
	group      singleflight.Group
	background sync.WaitGroup
	store      CacheStore
	now        func() time.Time
	logger     zerolog.Logger

	hits            atomic.Int64
	staleHits       atomic.Int64
	misses          atomic.Int64
	refreshes       atomic.Int64
	refreshFailures atomic.Int64
	evictions       atomic.Int64
}

// NewCache creates a new cache with the given configuration.
func NewCache(cfg CacheConfig, logger zerolog.Logger) *Cache {
	defaults := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaults.RefreshTimeout
	}
	if !cfg.StaleWhileRevalidate {
		cfg.StaleWindow = 0
	}

	return &Cache{
		items:      make(map[string]cacheEntry),
		refreshing: make(map[string]struct{}),
		cfg:        cfg,
		now:        time.Now,
		logger:     logger.With().Str("component", "cache").Logger(),
	}
}

// GetOrResolve returns the cached result for key, calling resolve on a miss.
// With stale-while-revalidate enabled, an expired entry inside the stale
// window is returned at once and refreshed in the background.
func (c *Cache) GetOrResolve(ctx context.Context, key string, resolve ResolveFunc) (*Result, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if ok {
		if now.Before(entry.expiresAt) {
			c.hits.Add(1)
			return entry.value, nil
		}
		if c.cfg.StaleWhileRevalidate && now.Before(entry.expiresAt.Add(c.cfg.StaleWindow)) {
			c.staleHits.Add(1)
			c.refreshAsync(key, resolve)
			return entry.value, nil
		}
	}

	c.misses.Add(1)
	return c.resolveShared(ctx, key, resolve)
}

// resolveShared joins or starts the in-flight resolution for key. If the
// shared flight was aborted by the leading caller's context while this
// caller is still live, it resolves once more on its own behalf.
func (c *Cache) resolveShared(ctx context.Context, key string, resolve ResolveFunc) (*Result, error) {
	for retried := false; ; retried = true {
		ch := c.group.DoChan(key, func() (any, error) {
			return c.resolveAndStore(ctx, key, resolve)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if !retried && res.Shared && ctx.Err() == nil && isAbort(res.Err) {
					continue
				}
				return nil, res.Err
			}
			return res.Val.(*Result), nil
		}
	}
}

func (c *Cache) resolveAndStore(ctx context.Context, key string, resolve ResolveFunc) (*Result, error) {
	result, err := resolve(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(key, result)
	return result, nil
}

func (c *Cache) refreshAsync(key string, resolve ResolveFunc) {
	c.mu.Lock()
	if _, busy := c.refreshing[key]; busy {
		c.mu.Unlock()
		return
	}
	c.refreshing[key] = struct{}{}
	c.mu.Unlock()

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, key)
			c.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RefreshTimeout)
		defer cancel()

		_, err, _ := c.group.Do(key, func() (any, error) {
			return c.resolveAndStore(ctx, key, resolve)
		})
		if err != nil {
			c.refreshFailures.Add(1)
			c.logger.Warn().Err(err).Str("key", key).Msg("Background refresh failed, keeping stale entry")
			return
		}
		c.refreshes.Add(1)
		c.logger.Debug().Str("key", key).Msg("Refreshed stale entry")
	}()
}

// Wait blocks until background refreshes have finished.
func (c *Cache) Wait() {
	c.background.Wait()
}

// Get returns a live entry without resolving.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.items[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a result with the configured TTL.
func (c *Cache) Set(key string, value *Result) {
	expiresAt := c.now().Add(c.cfg.TTL)

	c.mu.Lock()
	c.insert(key, cacheEntry{value: value, expiresAt: expiresAt})
	store := c.store
	c.mu.Unlock()

	if store != nil {
		c.persist(store, key, value, expiresAt)
	}
}

// insert must be called with the lock held.
func (c *Cache) insert(key string, entry cacheEntry) {
	if _, exists := c.items[key]; !exists && c.cfg.MaxEntries > 0 && len(c.items) >= c.cfg.MaxEntries {
		c.evictOldest()
	}
	c.items[key] = entry
}

// AttachStore loads the entries store still holds inside the serving window
// and writes every later change through to it. It returns how many entries
// were loaded.
func (c *Cache) AttachStore(ctx context.Context, store CacheStore) (int, error) {
	rows, err := store.LoadCache(ctx, c.now().Add(-c.cfg.StaleWindow))
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, row := range rows {
		var result Result
		if err := json.Unmarshal(row.Value, &result); err != nil {
			c.logger.Warn().Err(err).Str("key", row.Key).Msg("Skipping unreadable persisted entry")
			continue
		}
		c.insert(row.Key, cacheEntry{value: &result, expiresAt: row.ExpiresAt})
		loaded++
	}
	c.store = store

	c.logger.Info().Int("loaded", loaded).Msg("Restored persisted cache entries")
	return loaded, nil
}

func (c *Cache) persist(store CacheStore, key string, value *Result, expiresAt time.Time) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := store.SaveCacheEntry(ctx, database.CacheEntry{Key: key, Value: data, ExpiresAt: expiresAt}); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist cache entry")
	}
}

// withStore runs fn against the attached store, if any, with a bounded context.
func (c *Cache) withStore(fn func(ctx context.Context, store CacheStore) error) {
	c.mu.RLock()
	store := c.store
	c.mu.RUnlock()
	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := fn(ctx, store); err != nil {
		c.logger.Warn().Err(err).Msg("Cache store update failed")
	}
}

// Invalidate removes one key and reports whether it was present.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	_, ok := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	c.withStore(func(ctx context.Context, store CacheStore) error {
		return store.DeleteCacheEntry(ctx, key)
	})
	return ok
}

// Clear removes all items and returns how many were dropped.
func (c *Cache) Clear() int {
	c.mu.Lock()
	n := len(c.items)
	c.items = make(map[string]cacheEntry)
	c.mu.Unlock()

	c.withStore(func(ctx context.Context, store CacheStore) error {
		_, err := store.ClearCache(ctx)
		return err
	})
	return n
}

// Len returns the number of retained items, stale ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Prune drops entries that can no longer be served, that is past TTL plus
// the stale window. It returns how many were removed.
func (c *Cache) Prune() int {
	now := c.now()

	c.mu.Lock()
	removed := 0
	for key, entry := range c.items {
		if !now.Before(entry.expiresAt.Add(c.cfg.StaleWindow)) {
			delete(c.items, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.withStore(func(ctx context.Context, store CacheStore) error {
		_, err := store.DeleteCacheEntriesBefore(ctx, now.Add(-c.cfg.StaleWindow))
		return err
	})
	return removed
}

// Stats returns counters and the current entry count.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries:         c.Len(),
		Hits:            c.hits.Load(),
		StaleHits:       c.staleHits.Load(),
		Misses:          c.misses.Load(),
		Refreshes:       c.refreshes.Load(),
		RefreshFailures: c.refreshFailures.Load(),
		Evictions:       c.evictions.Load(),
	}
}

// evictOldest removes the entry closest to expiry (must be called with lock held).
func (c *Cache) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, entry := range c.items {
		if oldestKey == "" || entry.expiresAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.evictions.Add(1)
	}
}

// isAbort reports a bare context error, which the resolver returns only when
// its own context ended. Wrapped deadline errors are upstream timeouts.
func isAbort(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded
}
