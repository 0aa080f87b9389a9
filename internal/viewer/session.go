package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/ironsheep/frameview/internal/annotation"
	"github.com/ironsheep/frameview/internal/framecache"
	"github.com/ironsheep/frameview/internal/geometry"
	"github.com/ironsheep/frameview/internal/history"
	"github.com/ironsheep/frameview/internal/pixeldata"
	"github.com/ironsheep/frameview/internal/radiometric"
	"github.com/ironsheep/frameview/internal/render"
	"github.com/ironsheep/frameview/internal/series"
	"github.com/ironsheep/frameview/internal/viewport"
)

// Default viewport size used until the shell reports its own.
const (
	DefaultViewportWidth  = 512
	DefaultViewportHeight = 512
)

var (
	// ErrNoSeries is returned by commands that need an open series.
	ErrNoSeries = errors.New("no series open")
	// ErrIndexOutOfRange is returned for a frame index outside the series.
	ErrIndexOutOfRange = errors.New("frame index out of range")
	// ErrFrameNotReady is returned when the requested frame has not been
	// fetched and decoded yet.
	ErrFrameNotReady = errors.New("frame not ready")
)

// Options configures a Session.
type Options struct {
	Fetcher framecache.Fetcher

	// Concurrency bounds fetches in flight per series.
	Concurrency int

	Decode     pixeldata.Options
	Annotation annotation.Options

	ViewportWidth  int
	ViewportHeight int
	MinScale       float64
	MaxScale       float64

	// OnChange is called, outside the session lock, whenever something the
	// shell displays has changed: a frame arrived, prefetch progressed, or
	// a command altered the view or the annotations.
	OnChange func()

	Logger *slog.Logger
}

// windowed is the 8-bit rendition of a frame through one window.
type windowed struct {
	frame  *pixeldata.Frame
	window viewport.Window
	gray   *image.Gray
}

// Session is the state of one viewer. It is safe for concurrent use.
type Session struct {
	fetcher     framecache.Fetcher
	concurrency int
	adapter     *pixeldata.Adapter
	onChange    func()
	log         *slog.Logger

	watchMu   sync.Mutex
	watchers  map[int]func()
	nextWatch int

	mu        sync.Mutex
	gen       uint64
	instances []series.Instance
	cache     *framecache.Cache
	frames    map[string]*pixeldata.Frame
	index     int
	frame     *pixeldata.Frame
	frameErr  error
	gray      *windowed

	engine  *annotation.Engine
	mapper  *viewport.Mapper
	history *history.Manager
}

// New creates a session with no series open.
func New(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	vw, vh := opts.ViewportWidth, opts.ViewportHeight
	if vw <= 0 || vh <= 0 {
		vw, vh = DefaultViewportWidth, DefaultViewportHeight
	}
	decode := opts.Decode
	if decode.Logger == nil {
		decode.Logger = log
	}
	engineOpts := opts.Annotation
	if engineOpts.Logger == nil {
		engineOpts.Logger = log
	}

	s := &Session{
		fetcher:     opts.Fetcher,
		concurrency: opts.Concurrency,
		adapter:     pixeldata.NewAdapter(decode),
		onChange:    opts.OnChange,
		log:         log,
		frames:      make(map[string]*pixeldata.Frame),
		engine:      annotation.New(engineOpts),
		mapper:      viewport.New(0, 0, vw, vh, opts.MinScale, opts.MaxScale),
	}
	s.history = history.New(history.Entry{Transform: s.mapper.Transform()})
	return s
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
	s.watchMu.Lock()
	fns := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Watch registers fn to run after every change OnChange is told about. fn
// is called outside the session lock, possibly from a fetch goroutine, and
// should return quickly.
func (s *Session) Watch(fn func()) (cancel func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchers == nil {
		s.watchers = make(map[int]func())
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

// OpenSeries replaces the current series. The previous cache is disposed,
// every annotation is cleared, the history is reset and the view is fitted
// to the first instance. No frame is fetched until Navigate is called.
func (s *Session) OpenSeries(instances []series.Instance) error {
	if len(instances) == 0 {
		return errors.New("series has no instances")
	}
	if err := series.ValidateAll(instances); err != nil {
		return fmt.Errorf("invalid series: %w", err)
	}
	if s.fetcher == nil {
		return errors.New("no frame fetcher configured")
	}
	sorted := series.Sort(instances)

	s.mu.Lock()
	if s.cache != nil {
		s.cache.Close()
		s.log.Info("series closed", "instances", len(s.instances))
	}
	s.gen++
	gen := s.gen
	s.instances = sorted
	s.cache = framecache.New(s.fetcher, framecache.Options{
		Concurrency: s.concurrency,
		Logger:      s.log,
		OnProgress: func(p framecache.Progress) {
			s.log.Debug("prefetch progress", "fetched", p.Fetched, "total", p.Total, "series", gen)
			s.changed()
		},
	})
	s.frames = make(map[string]*pixeldata.Frame)
	s.index = 0
	s.frame, s.frameErr, s.gray = nil, nil, nil

	s.engine.Clear()
	s.engine.SetRaster("", nil)

	first := sorted[0]
	s.mapper.SetImageSize(first.Columns, first.Rows)
	s.mapper.Set(viewport.Identity())
	s.mapper.Fit()
	s.history.Reset(history.Entry{Transform: s.mapper.Transform()})
	s.mu.Unlock()

	s.log.Info("series opened", "instances", len(sorted), "first", first.ID)
	s.changed()
	return nil
}

// Close disposes the current series cache.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache != nil {
		s.cache.Close()
		s.cache = nil
	}
	s.gen++
}

// Navigate makes frame i current, fetching and decoding it as needed, and
// returns once the frame is displayed or has failed. See Show.
func (s *Session) Navigate(ctx context.Context, i int) error {
	done, err := s.Show(ctx, i)
	if err != nil {
		return err
	}
	return <-done
}

// Show makes frame i current without waiting for it. A frame decoded
// earlier is displayed at once; otherwise the display is cleared and the
// frame is fetched and decoded in the background under ctx. The returned
// channel receives the outcome exactly once.
//
// The first navigation to any index other than 0 starts prefetching the
// rest of the series. If the user navigates elsewhere while this frame is
// loading, the result is kept for later but not displayed.
func (s *Session) Show(ctx context.Context, i int) (<-chan error, error) {
	s.mu.Lock()
	if s.cache == nil {
		s.mu.Unlock()
		return nil, ErrNoSeries
	}
	if i < 0 || i >= len(s.instances) {
		n := len(s.instances)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, n)
	}
	gen, cache := s.gen, s.cache
	in := s.instances[i]
	s.index = i
	var ids []string
	if i != 0 {
		ids = series.IDs(s.instances)
	}
	f, decoded := s.frames[in.ID]
	if decoded {
		s.install(f)
	} else {
		s.frame, s.frameErr, s.gray = nil, nil, nil
		s.engine.SetRaster(in.ID, nil)
	}
	s.mu.Unlock()

	if ids != nil {
		cache.Prefetch(ids)
	}
	s.changed()

	done := make(chan error, 1)
	if decoded {
		done <- nil
		return done, nil
	}
	go func() {
		done <- s.finish(ctx, gen, cache, i, in)
	}()
	return done, nil
}

// finish loads frame i and displays it unless the series or the current
// index changed in the meantime.
func (s *Session) finish(ctx context.Context, gen uint64, cache *framecache.Cache, i int, in series.Instance) error {
	f, err := s.load(ctx, cache, in)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.log.Debug("stale decode dropped", "instance", in.ID, "reason", "series changed")
		return nil
	}
	if err == nil {
		s.frames[in.ID] = f
	}
	if s.index != i {
		s.mu.Unlock()
		s.log.Debug("stale decode dropped", "instance", in.ID, "index", i)
		return err
	}
	if err != nil {
		s.frame, s.frameErr, s.gray = nil, err, nil
		s.engine.SetRaster(in.ID, nil)
	} else {
		s.install(f)
	}
	s.mu.Unlock()

	s.changed()
	return err
}

// load fetches and decodes one instance. It must be called without the lock
// held.
func (s *Session) load(ctx context.Context, cache *framecache.Cache, in series.Instance) (*pixeldata.Frame, error) {
	buf, err := cache.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return s.adapter.Decode(buf, in)
}

// install makes f the displayed frame. Callers hold the lock.
func (s *Session) install(f *pixeldata.Frame) {
	s.frame, s.frameErr, s.gray = f, nil, nil
	s.mapper.SetImageSize(f.Width, f.Height)
	s.engine.SetRaster(f.InstanceID, radiometric.NewSampler(f))
}

// Index returns the current frame index.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Wait blocks until background prefetching of the current series is done.
func (s *Session) Wait() {
	s.mu.Lock()
	cache := s.cache
	s.mu.Unlock()
	if cache != nil {
		cache.Wait()
	}
}

// commit records the current annotations and transform in the history.
// Callers hold the lock.
func (s *Session) commit() {
	s.history.Push(history.Entry{
		Annotations: s.engine.Snapshot(),
		Transform:   s.mapper.Transform(),
	})
}

// after finishes an engine command: committed changes are recorded and
// anything visible triggers a redraw. It unlocks the session.
func (s *Session) after(c annotation.Change) annotation.Change {
	if c == annotation.Committed {
		s.commit()
	}
	s.mu.Unlock()
	if c != annotation.NoChange {
		s.changed()
	}
	return c
}

// PointerKind is the phase of a pointer event.
type PointerKind string

const (
	PointerDown PointerKind = "down"
	PointerMove PointerKind = "move"
	PointerUp   PointerKind = "up"
)

// Pointer feeds a pointer event at a screen position to the annotation
// engine.
func (s *Session) Pointer(kind PointerKind, screen geometry.Point) (annotation.Change, error) {
	s.mu.Lock()
	if s.cache == nil {
		s.mu.Unlock()
		return annotation.NoChange, ErrNoSeries
	}
	p := s.mapper.ScreenToImage(screen)
	scale := s.mapper.Scale()

	var c annotation.Change
	switch kind {
	case PointerDown:
		c = s.engine.PointerDown(p, scale)
	case PointerMove:
		c = s.engine.PointerMove(p, scale)
	case PointerUp:
		c = s.engine.PointerUp(p, scale)
	default:
		s.mu.Unlock()
		return annotation.NoChange, fmt.Errorf("unknown pointer event %q", kind)
	}
	return s.after(c), nil
}

// SetTool selects the drawing tool.
func (s *Session) SetTool(t annotation.Type) {
	s.mu.Lock()
	s.engine.SetTool(t)
	s.mu.Unlock()
	s.changed()
}

// Cancel abandons the annotation being drawn or edited.
func (s *Session) Cancel() annotation.Change {
	s.mu.Lock()
	return s.after(s.engine.Cancel())
}

// Select selects an annotation; "" clears the selection.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	c, err := s.engine.Select(id)
	s.after(c)
	return err
}

// Delete removes an annotation. An empty id deletes the selection.
func (s *Session) Delete(id string) error {
	s.mu.Lock()
	if id == "" {
		s.after(s.engine.DeleteSelected())
		return nil
	}
	c, err := s.engine.Delete(id)
	s.after(c)
	return err
}

// SetText changes the text of a Text annotation.
func (s *Session) SetText(id, text string) error {
	s.mu.Lock()
	c, err := s.engine.SetText(id, text)
	s.after(c)
	return err
}

// SetTextRotation changes the rotation of a Text annotation.
func (s *Session) SetTextRotation(id string, deg float64) error {
	s.mu.Lock()
	c, err := s.engine.SetRotation(id, deg)
	s.after(c)
	return err
}

// Subscribe registers fn for annotation change notifications. fn runs while
// the session is locked and must not call back into the session.
func (s *Session) Subscribe(fn func(annotation.Event)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stop := s.engine.Subscribe(fn)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		stop()
	}
}

// Undo restores the previous annotations and view.
func (s *Session) Undo() bool {
	s.mu.Lock()
	e, ok := s.history.Undo()
	if ok {
		s.restore(e)
	}
	s.mu.Unlock()
	if ok {
		s.changed()
	}
	return ok
}

// Redo reapplies the last undone change.
func (s *Session) Redo() bool {
	s.mu.Lock()
	e, ok := s.history.Redo()
	if ok {
		s.restore(e)
	}
	s.mu.Unlock()
	if ok {
		s.changed()
	}
	return ok
}

func (s *Session) restore(e history.Entry) {
	s.engine.Restore(e.Annotations)
	s.mapper.Set(e.Transform)
}

// HUAt returns the calibrated value under a screen position on the current
// frame, together with the image pixel it was read from.
func (s *Session) HUAt(screen geometry.Point) (hu float64, px image.Point, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return 0, image.Point{}, false, s.notReady()
	}
	p := s.mapper.ScreenToImage(screen)
	px = image.Pt(int(p.X), int(p.Y))
	if p.X < 0 || p.Y < 0 {
		return 0, px, false, nil
	}
	hu, ok = radiometric.HU(s.frame, px.X, px.Y)
	return hu, px, ok, nil
}

// notReady explains why no frame is displayed. Callers hold the lock.
func (s *Session) notReady() error {
	switch {
	case s.cache == nil:
		return ErrNoSeries
	case s.frameErr != nil:
		return fmt.Errorf("%w: %w", ErrFrameNotReady, s.frameErr)
	default:
		return ErrFrameNotReady
	}
}

// window returns the window in effect for f. Callers hold the lock.
func (s *Session) window(f *pixeldata.Frame) viewport.Window {
	if w := s.mapper.Transform().Window; w != nil {
		return *w
	}
	return viewport.Window{Center: f.WindowCenter, Width: radiometric.ClampWidth(f.WindowWidth)}
}

// grayFrame returns the current frame through the effective window, reusing
// the last rendition when neither changed. Callers hold the lock.
func (s *Session) grayFrame() *image.Gray {
	w := s.window(s.frame)
	if g := s.gray; g != nil && g.frame == s.frame && g.window == w {
		return g.gray
	}
	s.gray = &windowed{frame: s.frame, window: w, gray: radiometric.ToGray(s.frame, w.Center, w.Width)}
	return s.gray.gray
}

// Render composes the current frame, the annotations placed on it and any
// draft into a viewport-sized PNG surface.
func (s *Session) Render() (*render.Surface, error) {
	s.mu.Lock()
	if s.frame == nil {
		err := s.notReady()
		s.mu.Unlock()
		return nil, err
	}
	gray := s.grayFrame()
	out := render.Frame(gray, s.mapper, s.mapper.Transform().Invert)

	o := render.Overlay{
		Annotations: s.engine.Visible(),
		Selected:    s.engine.Selected(),
		Palette:     s.engine.Palette(),
	}
	if d, _, ok := s.engine.Draft(); ok {
		o.Draft = &d
	}
	render.DrawOverlay(out, s.mapper, o)
	s.mu.Unlock()

	return render.Encode(out)
}

// Thumbnail renders a small preview of frame i with the current window and
// orientation. Only frames already decoded or cached can be previewed.
func (s *Session) Thumbnail(i, size int) (*render.Surface, error) {
	s.mu.Lock()
	if s.cache == nil {
		s.mu.Unlock()
		return nil, ErrNoSeries
	}
	if i < 0 || i >= len(s.instances) {
		n := len(s.instances)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, n)
	}
	in := s.instances[i]
	f, decoded := s.frames[in.ID]
	cache, gen := s.cache, s.gen
	s.mu.Unlock()

	if !decoded {
		buf, ok := cache.Peek(in.ID)
		if !ok {
			return nil, fmt.Errorf("%w: instance %s not cached", ErrFrameNotReady, in.ID)
		}
		var err error
		if f, err = s.adapter.Decode(buf, in); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	if s.gen == gen && !decoded {
		s.frames[in.ID] = f
	}
	w := s.window(f)
	t := s.mapper.Transform()
	s.mu.Unlock()

	gray := radiometric.ToGray(f, w.Center, w.Width)
	return render.Encode(render.Thumbnail(gray, t, size))
}
