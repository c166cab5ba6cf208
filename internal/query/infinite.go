package query

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mmcdole/anidex/internal/domain"
)

// PageFetcher loads one page of a listing (pages start at 1)
type PageFetcher[T any] func(ctx context.Context, page int) (domain.Page[T], error)

// Infinite accumulates the pages of one listing. It is shared by every
// caller of InfiniteQuery with the same key.
type Infinite[T any] struct {
	cache  *Cache
	key    Key
	policy Policy
	id     func(T) int

	mu        sync.Mutex
	fetch     PageFetcher[T]
	pages     []domain.Page[T]
	loaded    map[int]bool
	seen      map[int]bool
	items     []T
	next      int
	hasNext   bool
	loading   bool
	refresh   chan struct{} // open while a refresh runs
	gen       int
	fetchedAt time.Time
	err       error
}

// InfiniteQuery returns the accumulator for key, creating it on first use.
// id identifies items so duplicates across pages are dropped. The latest
// fetcher replaces any earlier one.
//
// A listing whose newest page is older than GCTime is reset. One older than
// StaleTime keeps serving its pages while they are reloaded in the
// background; Refreshing reports when that reload finishes.
func InfiniteQuery[T any](c *Cache, key Key, policy Policy, id func(T) int, fetch PageFetcher[T]) *Infinite[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	e.policy = policy
	now := c.now()
	e.lastUsed = now

	if inf, ok := e.infinite.(*Infinite[T]); ok {
		inf.mu.Lock()
		inf.fetch = fetch
		inf.policy = policy
		var run func()
		if !inf.fetchedAt.IsZero() {
			switch age := now.Sub(inf.fetchedAt); {
			case age >= policy.GCTime:
				inf.reset()
			case age >= policy.StaleTime:
				run = inf.startRefresh(c.ctx)
			}
		}
		inf.mu.Unlock()
		if run != nil {
			go run()
		}
		return inf
	}

	inf := &Infinite[T]{
		cache:  c,
		key:    key,
		policy: policy,
		id:     id,
		fetch:  fetch,
	}
	inf.reset()
	e.infinite = inf
	return inf
}

// Key returns the listing's cache key
func (q *Infinite[T]) Key() Key {
	return q.key
}

// FetchNextPage loads the page after the last one loaded. It does nothing,
// and reports false, when a page is already loading or the listing is
// exhausted. A page number that is already loaded is never appended twice.
func (q *Infinite[T]) FetchNextPage(ctx context.Context) (bool, error) {
	q.mu.Lock()
	if q.loading || !q.hasNext || q.loaded[q.next] {
		q.mu.Unlock()
		return false, nil
	}
	q.loading = true
	page, gen, fetch := q.next, q.gen, q.fetch
	q.mu.Unlock()

	result, err := fetch(ctx, page)
	q.touch()

	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		// Reset while loading; the result belongs to the old listing.
		return false, nil
	}
	q.loading = false
	if err != nil {
		q.err = err
		return false, err
	}
	q.err = nil

	if result.Pagination.CurrentPage == 0 {
		result.Pagination.CurrentPage = page
	}
	if !q.appendPage(result) {
		return false, nil
	}
	q.fetchedAt = q.cache.now()
	return true, nil
}

// appendPage adds a page unless its number is already loaded. Caller holds q.mu.
func (q *Infinite[T]) appendPage(result domain.Page[T]) bool {
	if q.loaded[result.Pagination.CurrentPage] {
		return false
	}
	q.loaded[result.Pagination.CurrentPage] = true
	q.pages = append(q.pages, result)
	for _, item := range result.Items {
		id := q.id(item)
		if q.seen[id] {
			continue
		}
		q.seen[id] = true
		q.items = append(q.items, item)
	}
	q.hasNext = result.Pagination.HasNextPage
	q.next = result.Pagination.CurrentPage + 1
	return true
}

// Refresh reloads every loaded page in order and swaps them in once all of
// them succeed; until then the old pages keep being served. Pages appended
// while it runs are kept, and a Reset while it runs discards its result.
// When a refresh is already running, Refresh waits for that one.
func (q *Infinite[T]) Refresh(ctx context.Context) error {
	q.mu.Lock()
	if running := q.refresh; running != nil {
		q.mu.Unlock()
		select {
		case <-running:
			return q.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	run := q.startRefresh(ctx)
	q.mu.Unlock()
	if run == nil {
		return nil
	}
	run()
	return q.Err()
}

// Refreshing returns a channel closed when the running refresh finishes, or
// nil when none is running.
func (q *Infinite[T]) Refreshing() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.refresh == nil {
		return nil
	}
	return q.refresh
}

// startRefresh marks a refresh as running and returns the function that
// performs it, or nil when one is running or nothing is loaded. Caller holds q.mu.
func (q *Infinite[T]) startRefresh(ctx context.Context) func() {
	n := len(q.pages)
	if q.refresh != nil || n == 0 {
		return nil
	}
	done := make(chan struct{})
	q.refresh = done
	gen, fetch := q.gen, q.fetch

	return func() {
		defer close(done)
		fresh, err := reload(ctx, fetch, n)
		q.touch()

		q.mu.Lock()
		defer q.mu.Unlock()
		q.refresh = nil
		if gen != q.gen {
			return
		}
		if err != nil {
			q.err = err
			q.cache.logger.Debug("listing refresh failed", "key", q.key, "error", err)
			return
		}

		pages := q.pages[n:]
		if last := fresh[len(fresh)-1]; len(fresh) < n || !last.Pagination.HasNextPage {
			// The listing shrank; pages loaded past its new end are gone.
			pages = nil
		}
		pages = append(fresh, pages...)
		q.pages = nil
		q.items = nil
		q.loaded = make(map[int]bool)
		q.seen = make(map[int]bool)
		for _, p := range pages {
			q.appendPage(p)
		}
		q.err = nil
		q.fetchedAt = q.cache.now()
	}
}

// reload fetches pages 1 through n, stopping early at the listing's last page
func reload[T any](ctx context.Context, fetch PageFetcher[T], n int) ([]domain.Page[T], error) {
	fresh := make([]domain.Page[T], 0, n)
	for page := 1; page <= n; page++ {
		result, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		if result.Pagination.CurrentPage == 0 {
			result.Pagination.CurrentPage = page
		}
		fresh = append(fresh, result)
		if !result.Pagination.HasNextPage {
			break
		}
	}
	return fresh, nil
}

// Reset discards every loaded page. A page still loading is dropped when it arrives.
func (q *Infinite[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reset()
}

func (q *Infinite[T]) reset() {
	q.pages = nil
	q.items = nil
	q.loaded = make(map[int]bool)
	q.seen = make(map[int]bool)
	q.next = 1
	q.hasNext = true
	q.loading = false
	q.err = nil
	q.fetchedAt = time.Time{}
	q.gen++
}

// Items returns the de-duplicated items of all loaded pages in order
func (q *Infinite[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// Pages returns the loaded pages in load order
func (q *Infinite[T]) Pages() []domain.Page[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pages)
}

// HasNextPage reports whether another page may be loaded
func (q *Infinite[T]) HasNextPage() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hasNext
}

// Loading reports whether a page fetch is in progress
func (q *Infinite[T]) Loading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loading
}

// Err returns the error of the last page fetch, if it failed
func (q *Infinite[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Stale reports whether the newest page is older than the listing's StaleTime
func (q *Infinite[T]) Stale() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fetchedAt.IsZero() {
		return false
	}
	return q.cache.now().Sub(q.fetchedAt) >= q.policy.StaleTime
}

// touch records use of the listing so it is not collected. Must not be
// called with q.mu held: InfiniteQuery locks the cache before the listing.
func (q *Infinite[T]) touch() {
	q.cache.mu.Lock()
	if e, ok := q.cache.entries[q.key]; ok && e.infinite == q {
		e.lastUsed = q.cache.now()
	}
	q.cache.mu.Unlock()
}
