// Package viewer is the render orchestrator of one viewing session.
//
// A Session ties together the per-series frame cache, the frame source
// adapter, the annotation engine, the coordinate mapper and the undo
// history. The shell drives it with commands (open a series, navigate,
// pointer events, view changes, undo/redo) and reads back a State snapshot
// and rendered Surfaces.
//
// Fetch and decode run outside the session lock, so interaction is never
// blocked on the network. Show starts a load and returns at once; Navigate
// waits for it. Watch lets a transport learn about every change. A decode that finishes after the user has moved on
// to another index or another series is dropped instead of replacing the
// frame on screen.
//
// The first navigation away from index 0 starts background prefetching of
// the whole series. Opening another series disposes the previous cache and
// clears annotations and history.
package viewer
