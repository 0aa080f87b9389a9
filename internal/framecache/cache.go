package framecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultConcurrency is the number of fetches a Cache allows in flight when
// Options.Concurrency is not set.
const DefaultConcurrency = 5

// ErrClosed is returned for reads against a Cache that has been disposed.
// Results of fetches that complete after Close are dropped.
var ErrClosed = errors.New("framecache: cache closed")

// Fetcher retrieves the raw byte buffer of one instance.
type Fetcher interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id string) ([]byte, error)

// Fetch calls f(ctx, id).
func (f FetcherFunc) Fetch(ctx context.Context, id string) ([]byte, error) {
	return f(ctx, id)
}

// FetchError reports a transport failure retrieving one instance. The
// failure leaves the instance uncached; a later read retries it.
type FetchError struct {
	ID  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch instance %s: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the fetch may be attempted again.
func (e *FetchError) Retryable() bool { return true }

// Progress counts cached instances out of the prefetch set.
type Progress struct {
	Fetched int `json:"fetched"`
	Total   int `json:"total"`
}

// Done reports whether every instance of the prefetch set is cached.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Fetched >= p.Total
}

// Options configures a Cache.
type Options struct {
	// Concurrency bounds fetches in flight across prefetch and on-demand
	// reads. Defaults to DefaultConcurrency.
	Concurrency int

	Logger *slog.Logger

	// OnProgress is called, outside the cache lock, after each prefetch-set
	// instance is cached.
	OnProgress func(Progress)
}

// call is one in-flight fetch shared by every reader of the same id.
type call struct {
	done chan struct{}
	data []byte
	err  error
}

// Cache holds raw instance buffers for a single series.
//
// A Cache is a per-series service: it is created when a series is opened
// and disposed with Close when the viewer moves to another series. Each id
// is fetched at most once concurrently; once cached it is never fetched
// again. Cache is safe for concurrent use.
type Cache struct {
	fetcher Fetcher
	log     *slog.Logger
	onProg  func(Progress)

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	entries     map[string][]byte
	inflight    map[string]*call
	tracked     map[string]struct{}
	progress    Progress
	alive       bool
	prefetching bool
}

// New creates a cache that reads through fetcher.
func New(fetcher Fetcher, opts Options) *Cache {
	k := opts.Concurrency
	if k <= 0 {
		k = DefaultConcurrency
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		fetcher:  fetcher,
		log:      log,
		onProg:   opts.OnProgress,
		sem:      make(chan struct{}, k),
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string][]byte),
		inflight: make(map[string]*call),
		tracked:  make(map[string]struct{}),
		alive:    true,
	}
}

// Peek returns the cached buffer for id without fetching.
func (c *Cache) Peek(id string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[id]
	return data, ok
}

// Get returns the buffer for id, fetching it on a miss. Concurrent readers
// of an id that is already being fetched wait for that fetch instead of
// starting another. The fetch itself belongs to the cache, so a reader that
// gives up through ctx does not fail the others. Fetch failures are
// returned as *FetchError.
func (c *Cache) Get(ctx context.Context, id string) ([]byte, error) {
	if data, ok := c.Peek(id); ok {
		return data, nil
	}

	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if data, ok := c.entries[id]; ok {
		c.mu.Unlock()
		return data, nil
	}
	cl, ok := c.inflight[id]
	if !ok {
		cl = &call{done: make(chan struct{})}
		c.inflight[id] = cl
		go c.run(id, cl)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.data, cl.err
	case <-ctx.Done():
		return nil, &FetchError{ID: id, Err: ctx.Err()}
	}
}

// run performs the fetch for a registered call once a concurrency slot is
// free and publishes the result. The cache is only written if it is still
// alive when the fetch completes.
func (c *Cache) run(id string, cl *call) {
	var (
		data []byte
		err  error
	)
	select {
	case c.sem <- struct{}{}:
		data, err = c.fetcher.Fetch(c.ctx, id)
		<-c.sem
	case <-c.ctx.Done():
		err = ErrClosed
	}

	var notify *Progress
	c.mu.Lock()
	delete(c.inflight, id)
	switch {
	case !c.alive:
		data, err = nil, ErrClosed
	case err != nil:
		err = &FetchError{ID: id, Err: err}
	default:
		c.entries[id] = data
		if _, ok := c.tracked[id]; ok {
			c.progress.Fetched++
			p := c.progress
			notify = &p
		}
	}
	c.mu.Unlock()

	cl.data, cl.err = data, err
	close(cl.done)

	if notify != nil && c.onProg != nil {
		c.onProg(*notify)
	}
}

// Prefetch enqueues every id that is not cached or in flight and drains the
// queue in the background with the cache's concurrency bound. Only the
// first call per cache has any effect. Failures are logged and leave the
// instance uncached.
func (c *Cache) Prefetch(ids []string) {
	c.mu.Lock()
	if !c.alive || c.prefetching {
		c.mu.Unlock()
		return
	}
	c.prefetching = true
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := c.tracked[id]; dup {
			continue
		}
		c.tracked[id] = struct{}{}
		if _, ok := c.entries[id]; ok {
			c.progress.Fetched++
			continue
		}
		queue = append(queue, id)
	}
	c.progress.Total = len(c.tracked)
	start := c.progress
	c.mu.Unlock()

	if c.onProg != nil {
		c.onProg(start)
	}
	if len(queue) == 0 {
		return
	}

	work := make(chan string)
	workers := cap(c.sem)
	if workers > len(queue) {
		workers = len(queue)
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.prefetchWorker(work)
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(work)
		for _, id := range queue {
			select {
			case work <- id:
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

func (c *Cache) prefetchWorker(work <-chan string) {
	defer c.wg.Done()
	for id := range work {
		c.mu.Lock()
		if !c.alive {
			c.mu.Unlock()
			return
		}
		_, cached := c.entries[id]
		_, busy := c.inflight[id]
		if cached || busy {
			c.mu.Unlock()
			continue
		}
		cl := &call{done: make(chan struct{})}
		c.inflight[id] = cl
		c.mu.Unlock()

		c.run(id, cl)
		if cl.err != nil && !errors.Is(cl.err, ErrClosed) {
			c.log.Warn("prefetch failed", "instance", id, "error", cl.err)
		}
	}
}

// Wait blocks until background prefetching has drained or been cancelled.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Progress returns the prefetch progress snapshot.
func (c *Cache) Progress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress
}

// Len returns the number of cached buffers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close disposes the cache: all buffers are released, pending fetches are
// cancelled and any result that still arrives is dropped.
func (c *Cache) Close() {
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.alive = false
	c.entries = make(map[string][]byte)
	c.tracked = make(map[string]struct{})
	c.progress = Progress{}
	c.mu.Unlock()
	c.cancel()
}
