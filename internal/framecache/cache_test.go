package framecache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingFetcher records how often each id is fetched and the peak number
// of concurrent fetches.
type countingFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	active  int
	peak    int
	delay   time.Duration
	failIDs map[string]bool
}

func newCountingFetcher(delay time.Duration) *countingFetcher {
	return &countingFetcher{calls: make(map[string]int), delay: delay, failIDs: make(map[string]bool)}
}

func (f *countingFetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	f.calls[id]++
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	fail := f.failIDs[id]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if fail {
		return nil, errors.New("connection reset")
	}
	return []byte("frame-" + id), nil
}

func (f *countingFetcher) snapshot() (map[string]int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make(map[string]int, len(f.calls))
	for k, v := range f.calls {
		calls[k] = v
	}
	return calls, f.peak
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("inst-%02d", i)
	}
	return out
}

func TestCache_GetCachesResult(t *testing.T) {
	f := newCountingFetcher(0)
	c := New(f, Options{})
	defer c.Close()

	for i := 0; i < 3; i++ {
		data, err := c.Get(context.Background(), "a")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(data) != "frame-a" {
			t.Errorf("Get: got %q", data)
		}
	}
	calls, _ := f.snapshot()
	if calls["a"] != 1 {
		t.Errorf("fetch count: got %d, want 1", calls["a"])
	}
}

func TestCache_ConcurrentGetSharesFetch(t *testing.T) {
	f := newCountingFetcher(20 * time.Millisecond)
	c := New(f, Options{})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "shared"); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}
	wg.Wait()

	calls, _ := f.snapshot()
	if calls["shared"] != 1 {
		t.Errorf("fetch count: got %d, want 1", calls["shared"])
	}
}

func TestCache_PrefetchBoundedAndOnce(t *testing.T) {
	f := newCountingFetcher(5 * time.Millisecond)
	var progressCalls atomic.Int32
	c := New(f, Options{Concurrency: 3, OnProgress: func(Progress) { progressCalls.Add(1) }})
	defer c.Close()

	all := ids(20)
	if _, err := c.Get(context.Background(), all[0]); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	c.Prefetch(all)
	c.Prefetch(all) // second call is a no-op
	// On-demand reads racing the prefetch must not duplicate fetches.
	var wg sync.WaitGroup
	for _, id := range all[:8] {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := c.Get(context.Background(), id); err != nil {
				t.Errorf("Get %s failed: %v", id, err)
			}
		}(id)
	}
	wg.Wait()
	c.Wait()

	calls, peak := f.snapshot()
	if peak > 3 {
		t.Errorf("peak concurrency: got %d, want <= 3", peak)
	}
	for _, id := range all {
		if calls[id] != 1 {
			t.Errorf("fetch count for %s: got %d, want 1", id, calls[id])
		}
	}

	p := c.Progress()
	if p.Total != 20 || p.Fetched != 20 || !p.Done() {
		t.Errorf("Progress: got %+v, want 20/20", p)
	}
	if progressCalls.Load() == 0 {
		t.Error("OnProgress was never called")
	}
	if c.Len() != 20 {
		t.Errorf("Len: got %d, want 20", c.Len())
	}
}

func TestCache_PrefetchFailureLeavesUncached(t *testing.T) {
	f := newCountingFetcher(0)
	f.failIDs["inst-01"] = true
	c := New(f, Options{Concurrency: 2})
	defer c.Close()

	c.Prefetch(ids(3))
	c.Wait()

	if _, ok := c.Peek("inst-01"); ok {
		t.Fatal("failed instance should not be cached")
	}
	if p := c.Progress(); p.Fetched != 2 || p.Total != 3 {
		t.Errorf("Progress: got %+v, want 2/3", p)
	}

	// On-demand retry after the transport recovers.
	f.mu.Lock()
	f.failIDs["inst-01"] = false
	f.mu.Unlock()
	if _, err := c.Get(context.Background(), "inst-01"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if p := c.Progress(); p.Fetched != 3 {
		t.Errorf("Progress after retry: got %+v, want 3/3", p)
	}
}

func TestCache_FetchErrorIsRetryable(t *testing.T) {
	f := newCountingFetcher(0)
	f.failIDs["x"] = true
	c := New(f, Options{})
	defer c.Close()

	_, err := c.Get(context.Background(), "x")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Get error: got %v, want *FetchError", err)
	}
	if fe.ID != "x" || !fe.Retryable() {
		t.Errorf("FetchError: got %+v", fe)
	}
}

func TestCache_CancelledReaderDoesNotFailSharedFetch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var fetches atomic.Int32
	f := FetcherFunc(func(ctx context.Context, id string) ([]byte, error) {
		if fetches.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return []byte("frame-" + id), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	c := New(f, Options{})
	defer c.Close()

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Get(ctxA, "x")
		errA <- err
	}()
	<-started

	type result struct {
		data []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		data, err := c.Get(context.Background(), "x")
		resB <- result{data, err}
	}()

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled reader: got %v, want context.Canceled", err)
	}
	close(release)

	b := <-resB
	if b.err != nil {
		t.Fatalf("live reader: got %v, want the shared fetch result", b.err)
	}
	if string(b.data) != "frame-x" {
		t.Errorf("live reader: got %q", b.data)
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("fetch count: got %d, want 1", n)
	}
	if _, ok := c.Peek("x"); !ok {
		t.Error("shared fetch result should be cached")
	}
}

func TestCache_CloseDropsLateResults(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	f := FetcherFunc(func(ctx context.Context, id string) ([]byte, error) {
		once.Do(func() { close(started) })
		<-release
		return []byte("late"), nil
	})
	c := New(f, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "slow")
		done <- err
	}()

	<-started
	c.Close()
	close(release)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close: got %v, want ErrClosed", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len after Close: got %d, want 0", c.Len())
	}
	if _, err := c.Get(context.Background(), "other"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get on closed cache: got %v, want ErrClosed", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instances/1.2.3/file":
			w.Write([]byte{0x44, 0x49, 0x43, 0x4d})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/instances/%s/file", time.Second)

	data, err := f.Fetch(context.Background(), "1.2.3")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "DICM" {
		t.Errorf("Fetch: got %q, want DICM", data)
	}

	if _, err := f.Fetch(context.Background(), "missing"); err == nil {
		t.Error("Fetch of missing instance should fail")
	}

	bad := &HTTPFetcher{URLTemplate: srv.URL + "/no-placeholder"}
	if _, err := bad.Fetch(context.Background(), "1.2.3"); err == nil {
		t.Error("template without placeholder should fail")
	}
}
