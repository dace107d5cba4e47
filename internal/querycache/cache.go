// Package querycache is the client-side GET cache shared by long-running
// commands (the TUI and the MCP server).
//
// Entries are fresh for StaleTime and served without a network call. Stale
// or missing entries are refetched; concurrent callers for one key share a
// single in-flight fetch. A failing fetch is retried Retries times with
// exponential backoff before the error surfaces. Entries not read for
// GCTime are evicted.
package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"novapress/internal/logging"
)

const (
	DefaultStaleTime = 5 * time.Minute
	DefaultGCTime    = 30 * time.Minute
	DefaultRetries   = 2

	// NoRetries disables retrying; a zero Retries means DefaultRetries.
	NoRetries = -1

	// Retry delays grow 1s, 2s, 4s, ... and never exceed 30s.
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
)

// Event names reported to the Observer.
const (
	EventHit   = "hit"
	EventMiss  = "miss"
	EventStale = "stale"
	EventRetry = "retry"
	EventError = "error"
	EventEvict = "evict"
)

// Observer receives cache events; metrics.Collector implements it.
type Observer interface {
	CacheEvent(event string)
}

// Options configures a Cache. The zero value uses the defaults: 5 minute
// freshness, 30 minute retention and DefaultRetries retries.
type Options struct {
	StaleTime time.Duration
	GCTime    time.Duration
	Retries   int

	// NewBackOff builds the retry schedule for one fetch.
	NewBackOff func() backoff.BackOff
	// Permanent marks errors that must not be retried.
	Permanent func(error) bool
	// Now is the clock; tests replace it.
	Now func() time.Time

	Observer Observer
	Logger   *slog.Logger
}

type entry struct {
	value      any
	fetchedAt  time.Time
	lastAccess time.Time
}

// Cache stores fetched values by key.
type Cache struct {
	opts    Options
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
}

// New returns a cache with the given options.
func New(opts Options) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.GCTime <= 0 {
		opts.GCTime = DefaultGCTime
	}
	switch {
	case opts.Retries == 0:
		opts.Retries = DefaultRetries
	case opts.Retries < 0:
		opts.Retries = 0
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = DefaultBackOff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		opts:    opts,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// DefaultBackOff is min(1s * 2^attempt, 30s) without jitter.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = retryMaxInterval
	return b
}

// Get returns the cached value for key if fresh, otherwise calls fetch.
func Get[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.fresh(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		val, err := c.fetchWithRetry(ctx, key, func() (any, error) {
			return fetch(ctx)
		})
		if err != nil {
			return nil, err
		}
		c.store(key, val)
		return val, nil
	})
	if shared {
		c.logger.DebugContext(ctx, "shared in-flight fetch", "key", key)
	}
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("querycache: %s holds %T", key, v)
	}
	return typed, nil
}

func (c *Cache) fetchWithRetry(ctx context.Context, key string, fetch func() (any, error)) (any, error) {
	attempt := 0
	op := func() (any, error) {
		attempt++
		if attempt > 1 {
			c.event(EventRetry)
		}
		v, err := fetch()
		if err != nil && c.opts.Permanent != nil && c.opts.Permanent(err) {
			return nil, backoff.Permanent(err)
		}
		return v, err
	}
	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.opts.NewBackOff()),
		backoff.WithMaxTries(uint(c.opts.Retries+1)),
	)
	if err != nil {
		c.event(EventError)
		c.logger.WarnContext(ctx, "query failed", "key", key, "attempts", attempt, "error", err)
		return nil, err
	}
	return v, nil
}

// fresh returns the value when it is younger than StaleTime.
func (c *Cache) fresh(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.event(EventMiss)
		return nil, false
	}
	now := c.opts.Now()
	e.lastAccess = now
	if now.Sub(e.fetchedAt) >= c.opts.StaleTime {
		c.event(EventStale)
		return nil, false
	}
	c.event(EventHit)
	return e.value, true
}

func (c *Cache) store(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.opts.Now()
	c.entries[key] = &entry{value: v, fetchedAt: now, lastAccess: now}
}

func (c *Cache) event(name string) {
	if c.opts.Observer != nil {
		c.opts.Observer.CacheEvent(name)
	}
}

// Set stores a value as if it had just been fetched.
func (c *Cache) Set(key string, v any) { c.store(key, v) }

// Peek returns the last value for key regardless of freshness.
func (c *Cache) Peek(key string) (any, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}
	return e.value, e.fetchedAt, true
}

// Invalidate drops every entry whose key starts with prefix and returns how
// many were removed. An empty prefix clears the cache.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep evicts entries not read for GCTime.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.opts.Now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.lastAccess) >= c.opts.GCTime {
			delete(c.entries, k)
			c.event(EventEvict)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) {
	interval := c.opts.GCTime / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("evicted cache entries", "count", n)
			}
		}
	}
}

// Key joins parts into a cache key ("causal/graph/abc").
func Key(parts ...string) string { return strings.Join(parts, "/") }
