// Package query caches fetched resources by key with staleness windows,
// shares in-flight fetches between callers, and accumulates paginated
// listings.
package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultGCInterval is how often the janitor looks for unused entries
const DefaultGCInterval = time.Minute

// Policy controls how long an entry is served without and with a refetch.
// Data younger than StaleTime is fresh. Data younger than GCTime is served
// stale while a refetch runs. Entries unused for GCTime are evicted.
type Policy struct {
	StaleTime time.Duration
	GCTime    time.Duration
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithGCInterval sets the janitor period. Zero or less disables the janitor.
func WithGCInterval(d time.Duration) Option {
	return func(c *Cache) {
		c.gcInterval = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Cache is a keyed store of fetched values. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry

	now        func() time.Time
	gcInterval time.Duration
	logger     *slog.Logger

	// Parent of every fetch; detached from callers so one caller leaving
	// does not abort a fetch others are waiting on.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type entry struct {
	value     any
	hasValue  bool
	updatedAt time.Time
	policy    Policy
	lastUsed  time.Time
	readers   int
	gen       int
	flight    *flight
	infinite  resetter
}

type resetter interface {
	Reset()
}

// flight is one shared fetch
type flight struct {
	done       chan struct{}
	value      any
	err        error
	waiters    int
	background bool
	finished   bool
	cancel     context.CancelFunc
	entry      *entry
}

// New creates a Cache and starts its janitor
func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries:    make(map[Key]*entry),
		now:        time.Now,
		gcInterval: DefaultGCInterval,
		logger:     slog.Default(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.gcInterval > 0 {
		go c.janitor()
	} else {
		close(c.done)
	}
	return c
}

// Close stops the janitor and cancels all fetches
func (c *Cache) Close() {
	c.cancel()
	<-c.done
}

// Query returns the value for key, fetching it when absent or expired.
//
// Fresh data is returned without a fetch. Stale data is returned at once
// and refreshed in the background. Otherwise the caller waits for a fetch,
// sharing it with any identical request already in flight. Failures are
// returned but never stored.
//
// If ctx ends first, Query returns ctx.Err(). The shared fetch is cancelled
// once no caller is waiting for it.
func Query[T any](ctx context.Context, c *Cache, key Key, policy Policy, fetcher func(context.Context) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	e := c.entry(key)
	e.policy = policy
	now := c.now()
	e.lastUsed = now

	if e.hasValue {
		if v, ok := e.value.(T); ok {
			age := now.Sub(e.updatedAt)
			if age < policy.StaleTime {
				c.mu.Unlock()
				return v, nil
			}
			if age < policy.GCTime {
				if e.flight == nil {
					c.start(key, e, wrap(fetcher), true)
				}
				c.mu.Unlock()
				return v, nil
			}
		}
		e.value, e.hasValue = nil, false
	}

	f := e.flight
	if f == nil {
		f = c.start(key, e, wrap(fetcher), false)
	}
	f.waiters++
	c.mu.Unlock()

	select {
	case <-f.done:
		if f.err != nil {
			return zero, f.err
		}
		v, _ := f.value.(T)
		return v, nil
	case <-ctx.Done():
		c.leave(f)
		return zero, ctx.Err()
	}
}

func wrap[T any](fetcher func(context.Context) (T, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return fetcher(ctx)
	}
}

// start launches a shared fetch for e. Caller holds c.mu.
func (c *Cache) start(key Key, e *entry, fetcher func(context.Context) (any, error), background bool) *flight {
	fctx, cancel := context.WithCancel(c.ctx)
	f := &flight{
		done:       make(chan struct{}),
		background: background,
		cancel:     cancel,
		entry:      e,
	}
	e.flight = f
	gen := e.gen

	go func() {
		defer cancel()
		v, err := fetcher(fctx)

		c.mu.Lock()
		if e.flight == f {
			e.flight = nil
		}
		if err == nil && e.gen == gen {
			e.value, e.hasValue = v, true
			e.updatedAt = c.now()
		}
		f.value, f.err = v, err
		f.finished = true
		close(f.done)
		c.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("query fetch failed", "key", string(key), "background", background, "error", err)
		}
	}()
	return f
}

// leave drops one waiter and aborts a foreground fetch nobody waits for
func (c *Cache) leave(f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters <= 0 && !f.background && !f.finished {
		f.cancel()
		// Later callers start over instead of joining an aborted fetch.
		if f.entry.flight == f {
			f.entry.flight = nil
		}
	}
}

// entry returns the entry for key, creating it. Caller holds c.mu.
func (c *Cache) entry(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{lastUsed: c.now()}
		c.entries[key] = e
	}
	return e
}

// Peek returns the cached value for key regardless of age
func Peek[T any](c *Cache, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// Set stores value for key as freshly fetched
func Set[T any](c *Cache, key Key, policy Policy, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	e.policy = policy
	e.value, e.hasValue = value, true
	e.updatedAt = c.now()
	e.lastUsed = e.updatedAt
}

// Retain marks key as in use so it is not collected. Call release when done.
func (c *Cache) Retain(key Key) (release func()) {
	c.mu.Lock()
	e := c.entry(key)
	e.readers++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			e.readers--
			e.lastUsed = c.now()
		})
	}
}

// Invalidate drops the data for key. A fetch in flight still completes for
// its waiters but its result is not stored, and later callers fetch anew.
func (c *Cache) Invalidate(key Key) {
	var r resetter
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.invalidate(e)
		r = e.infinite
	}
	c.mu.Unlock()

	if r != nil {
		r.Reset()
	}
}

// InvalidatePrefix drops the data for every key starting with prefix
func (c *Cache) InvalidatePrefix(prefix string) {
	var resets []resetter
	c.mu.Lock()
	for key, e := range c.entries {
		if key.HasPrefix(prefix) {
			c.invalidate(e)
			if e.infinite != nil {
				resets = append(resets, e.infinite)
			}
		}
	}
	c.mu.Unlock()

	for _, r := range resets {
		r.Reset()
	}
}

func (c *Cache) invalidate(e *entry) {
	e.value, e.hasValue = nil, false
	e.flight = nil
	e.gen++
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[Key]*entry)
	for _, e := range old {
		e.gen++
	}
	c.mu.Unlock()
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Collect evicts entries with no reader and no fetch in flight that have
// gone unused for their GCTime. It returns the number evicted.
func (c *Cache) Collect() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for key, e := range c.entries {
		if e.readers > 0 || e.flight != nil {
			continue
		}
		if now.Sub(e.lastUsed) < e.policy.GCTime {
			continue
		}
		delete(c.entries, key)
		evicted++
	}
	return evicted
}

func (c *Cache) janitor() {
	defer close(c.done)
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if n := c.Collect(); n > 0 {
				c.logger.Debug("cache entries evicted", "count", n, "remaining", c.Len())
			}
		}
	}
}
