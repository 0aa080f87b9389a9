// Package framecache fetches and caches the raw byte buffers of a series'
// instances.
//
// # Lifecycle
//
// A Cache belongs to exactly one series. The viewer constructs it when a
// series is opened and calls Close when the series changes; closing clears
// every buffer and cancels outstanding fetches. Completions that arrive
// after Close check the liveness flag and drop their result.
//
// # Concurrency
//
// At most Options.Concurrency fetches (default 5) are in flight at any
// time, whether they come from background prefetching or from on-demand
// Get calls. An id is never fetched twice concurrently, and a cached id is
// never fetched again.
//
// # Errors
//
// Transport failures are reported as *FetchError, which is always
// retryable. A cache miss is not an error; it falls through to a fetch.
package framecache
