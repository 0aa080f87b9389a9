package annotation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ironsheep/frameview/internal/geometry"
)

// Defaults for Options fields left zero.
const (
	DefaultHandleRadius = 8.0
	DefaultMarkerRadius = 14.0
	DefaultText         = "Label"
)

var (
	// ErrNotFound is returned for an unknown annotation id.
	ErrNotFound = errors.New("annotation not found")
	// ErrNotText is returned when a text-only command targets another type.
	ErrNotText = errors.New("annotation is not a text annotation")
)

// Options configures an Engine.
type Options struct {
	// HandleRadius and MarkerRadius are hit radii in screen pixels. They are
	// divided by the current zoom so the target size stays constant on
	// screen.
	HandleRadius float64
	MarkerRadius float64

	Palette     *Palette
	DefaultText string

	// NewID generates annotation ids; defaults to random UUIDs.
	NewID func() string

	Logger *slog.Logger
}

type draft struct {
	ann   Annotation
	stage Stage
}

type drag struct {
	index  int
	handle int // -1 for whole-shape translation
	last   geometry.Point
	orig   Annotation
	moved  bool
}

type subscriber struct {
	id int
	fn func(Event)
}

// Engine owns the annotation list of one series and turns pointer input into
// annotation commands. It is not safe for concurrent use; callers serialize
// access.
type Engine struct {
	handleRadius float64
	markerRadius float64
	palette      *Palette
	defaultText  string
	newID        func() string
	log          *slog.Logger

	instanceID string
	raster     Raster

	tool     Type
	anns     []Annotation
	selected string
	draft    *draft
	drag     *drag

	subs    []subscriber
	nextSub int
}

// New creates an engine with no raster and the None tool.
func New(opts Options) *Engine {
	e := &Engine{
		handleRadius: opts.HandleRadius,
		markerRadius: opts.MarkerRadius,
		palette:      opts.Palette,
		defaultText:  opts.DefaultText,
		newID:        opts.NewID,
		log:          opts.Logger,
	}
	if e.handleRadius <= 0 {
		e.handleRadius = DefaultHandleRadius
	}
	if e.markerRadius <= 0 {
		e.markerRadius = DefaultMarkerRadius
	}
	if e.palette == nil {
		e.palette = MustPalette(DefaultColor, DefaultSelectedColor)
	}
	if e.defaultText == "" {
		e.defaultText = DefaultText
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// SetRaster makes r, decoded from instanceID, the frame new annotations are
// drawn on and measured against. Any interaction in progress is abandoned.
func (e *Engine) SetRaster(instanceID string, r Raster) {
	e.abandon()
	e.instanceID = instanceID
	e.raster = r
}

// Tool returns the active drawing tool.
func (e *Engine) Tool() Type { return e.tool }

// SetTool switches the drawing tool, dropping any unfinished draft.
func (e *Engine) SetTool(t Type) {
	e.abandon()
	e.tool = t
}

// Palette returns the engine's color palette.
func (e *Engine) Palette() *Palette { return e.palette }

// Selected returns the selected annotation id, or "".
func (e *Engine) Selected() string { return e.selected }

// Len returns the number of annotations.
func (e *Engine) Len() int { return len(e.anns) }

// Annotations returns copies of all annotations in display order.
func (e *Engine) Annotations() []Annotation {
	out := make([]Annotation, len(e.anns))
	for i := range e.anns {
		out[i] = e.anns[i].Clone()
	}
	return out
}

// Visible returns copies of the annotations drawn on the current raster.
func (e *Engine) Visible() []Annotation {
	var out []Annotation
	for i := range e.anns {
		if e.anns[i].InstanceID == e.instanceID {
			out = append(out, e.anns[i].Clone())
		}
	}
	return out
}

// Get returns a copy of the annotation with the given id.
func (e *Engine) Get(id string) (Annotation, bool) {
	if i := e.indexOf(id); i >= 0 {
		return e.anns[i].Clone(), true
	}
	return Annotation{}, false
}

// Draft returns the in-progress annotation and its stage.
func (e *Engine) Draft() (Annotation, Stage, bool) {
	if e.draft == nil {
		return Annotation{}, StageIdle, false
	}
	return e.draft.ann.Clone(), e.draft.stage, true
}

// Busy reports whether a draft or drag is in progress.
func (e *Engine) Busy() bool {
	return e.draft != nil || e.drag != nil
}

func (e *Engine) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range e.anns {
		if e.anns[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) reindex() {
	for i := range e.anns {
		e.anns[i].Index = i + 1
	}
}

func (e *Engine) bounds() (int, int) {
	if e.raster == nil {
		return 0, 0
	}
	return e.raster.Size()
}

// PointerDown handles a press at image point p while the view is at the
// given zoom scale.
func (e *Engine) PointerDown(p geometry.Point, scale float64) Change {
	if scale <= 0 {
		scale = 1
	}
	if e.drag != nil {
		return NoChange
	}
	if e.draft != nil {
		return e.advance(p)
	}

	if h := e.hitTest(p, scale); h.kind != hitNone {
		a := &e.anns[h.index]
		e.drag = &drag{index: h.index, handle: -1, last: p, orig: a.Clone()}
		if h.kind == hitHandle {
			e.drag.handle = h.handle
		}
		return e.selectID(a.ID)
	}

	if e.tool == None || e.raster == nil {
		return e.selectID("")
	}

	a := Annotation{Type: e.tool, Points: []geometry.Point{p}}
	switch e.tool.class() {
	case classPoint:
		if e.tool == Text {
			a.Text = e.defaultText
		}
		return e.commitNew(a)
	case classMultiClick:
		a.Points = append(a.Points, p)
		stage := StageAwaitingVertex
		if e.tool == CobbsAngle {
			stage = StageAwaitingFirstLineEnd
		}
		e.draft = &draft{ann: a, stage: stage}
	default:
		e.draft = &draft{ann: a, stage: StageDragging}
	}
	return Preview
}

// advance moves a multi-click draft to its next stage on pointer-down.
func (e *Engine) advance(p geometry.Point) Change {
	d := e.draft
	pts := d.ann.Points
	switch d.stage {
	case StageAwaitingVertex:
		pts[1] = p
		d.ann.Points = append(pts, p)
		d.stage = StageAwaitingSecondArm
	case StageAwaitingSecondArm:
		pts[2] = p
		d.stage = StageReleasing
	case StageAwaitingFirstLineEnd:
		pts[1] = p
		d.stage = StageAwaitingSecondLineStart
	case StageAwaitingSecondLineStart:
		d.ann.Points = append(pts, p, p)
		d.stage = StageAwaitingSecondLineEnd
	case StageAwaitingSecondLineEnd:
		pts[3] = p
		d.stage = StageReleasing
	default:
		e.log.Debug("pointer-down rejected", "tool", d.ann.Type, "stage", d.stage)
		return NoChange
	}
	return Preview
}

// PointerMove handles pointer motion.
func (e *Engine) PointerMove(p geometry.Point, scale float64) Change {
	if e.drag != nil {
		return e.dragTo(p)
	}
	if e.draft == nil {
		return NoChange
	}
	d := e.draft
	pts := d.ann.Points
	switch d.stage {
	case StageDragging:
		switch {
		case d.ann.Type == Freehand:
			if pts[len(pts)-1] != p {
				d.ann.Points = append(pts, p)
			}
		case len(pts) == 1:
			d.ann.Points = append(pts, p)
		default:
			pts[1] = p
		}
	case StageAwaitingVertex, StageAwaitingFirstLineEnd:
		pts[1] = p
	case StageAwaitingSecondArm:
		pts[2] = p
	case StageAwaitingSecondLineEnd:
		pts[3] = p
	case StageReleasing:
		pts[len(pts)-1] = p
	default:
		return NoChange
	}
	return Preview
}

// PointerUp handles a release. It finalizes single-shot drafts, multi-click
// drafts whose last click was placed, and edits.
func (e *Engine) PointerUp(p geometry.Point, scale float64) Change {
	if e.drag != nil {
		e.dragTo(p)
		return e.endDrag()
	}
	if e.draft == nil {
		return NoChange
	}
	d := e.draft
	switch d.stage {
	case StageDragging:
		if pts := d.ann.Points; pts[len(pts)-1] != p {
			e.PointerMove(p, scale)
		}
		e.draft = nil
		if len(d.ann.Points) < d.ann.Type.pointCount() {
			e.log.Debug("annotation discarded: too few points",
				"type", d.ann.Type, "points", len(d.ann.Points))
			return Preview
		}
		return e.commitNew(d.ann)
	case StageReleasing:
		e.draft = nil
		return e.commitNew(d.ann)
	}
	// Releases between clicks of a multi-click tool are expected.
	return NoChange
}

// commitNew validates a finished draft and appends it.
func (e *Engine) commitNew(a Annotation) Change {
	w, h := e.bounds()
	if !inBounds(a.Points, w, h) {
		e.log.Debug("annotation discarded: outside raster", "type", a.Type)
		return Preview
	}
	a.ID = e.newID()
	a.InstanceID = e.instanceID
	a.Color = e.palette.For(a.Type)
	measure(&a, e.raster)
	e.anns = append(e.anns, a)
	e.reindex()
	e.selected = a.ID
	e.log.Debug("annotation created", "id", a.ID, "type", a.Type, "index", len(e.anns), "label", a.Label())
	e.emit(Event{Kind: Created, ID: a.ID})
	return Committed
}

func (e *Engine) dragTo(p geometry.Point) Change {
	d := e.drag
	if p == d.last {
		return NoChange
	}
	a := &e.anns[d.index]
	if d.handle >= 0 {
		a.Points[d.handle] = p
	} else {
		delta := p.Sub(d.last)
		for i := range a.Points {
			a.Points[i] = a.Points[i].Add(delta)
		}
	}
	d.last = p
	d.moved = true
	if !a.Type.isRegion() {
		measure(a, e.raster)
	}
	return Preview
}

func (e *Engine) endDrag() Change {
	d := e.drag
	e.drag = nil
	if !d.moved {
		return NoChange
	}
	a := &e.anns[d.index]
	w, h := e.bounds()
	if !inBounds(a.Points, w, h) {
		e.log.Debug("edit reverted: outside raster", "id", a.ID)
		e.anns[d.index] = d.orig
		return Preview
	}
	measure(a, e.raster)
	e.log.Debug("annotation edited", "id", a.ID, "label", a.Label())
	e.emit(Event{Kind: Edited, ID: a.ID})
	return Committed
}

// hitTest finds the topmost annotation on the current raster under p.
func (e *Engine) hitTest(p geometry.Point, scale float64) hit {
	threshold := e.handleRadius / scale
	marker := e.markerRadius / scale
	for i := len(e.anns) - 1; i >= 0; i-- {
		a := &e.anns[i]
		if a.InstanceID != e.instanceID {
			continue
		}
		if a.Type.class() != classPoint {
			if k, ok := hitHandleAt(a, p, threshold); ok {
				return hit{kind: hitHandle, index: i, handle: k}
			}
		}
		if hitBodyAt(a, p, threshold, marker) {
			return hit{kind: hitBody, index: i}
		}
	}
	return hit{}
}

// Cancel abandons the draft or edit in progress.
func (e *Engine) Cancel() Change {
	if !e.Busy() {
		return NoChange
	}
	e.abandon()
	return Preview
}

// abandon drops a draft and reverts an unfinished drag.
func (e *Engine) abandon() {
	e.draft = nil
	if d := e.drag; d != nil {
		e.drag = nil
		if d.moved {
			e.anns[d.index] = d.orig
		}
	}
}

func (e *Engine) selectID(id string) Change {
	if e.selected == id {
		return NoChange
	}
	e.selected = id
	e.emit(Event{Kind: Selected, ID: id})
	return Selection
}

// Select selects the annotation with the given id; "" clears the selection.
func (e *Engine) Select(id string) (Change, error) {
	if id != "" && e.indexOf(id) < 0 {
		return NoChange, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.selectID(id), nil
}

// Delete removes an annotation, renumbers the rest 1..N-1 in order and moves
// the selection to the annotation now at the deleted position (or the last
// one), clearing it when none remain.
func (e *Engine) Delete(id string) (Change, error) {
	k := e.indexOf(id)
	if k < 0 {
		return NoChange, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.abandon()
	e.anns = append(e.anns[:k], e.anns[k+1:]...)
	e.reindex()

	switch {
	case len(e.anns) == 0:
		e.selected = ""
	case k >= len(e.anns):
		e.selected = e.anns[len(e.anns)-1].ID
	default:
		e.selected = e.anns[k].ID
	}
	e.emit(Event{Kind: Deleted, ID: id})
	return Committed, nil
}

// DeleteSelected deletes the selected annotation, if any.
func (e *Engine) DeleteSelected() Change {
	if e.selected == "" {
		return NoChange
	}
	c, _ := e.Delete(e.selected)
	return c
}

func (e *Engine) textAnnotation(id string) (*Annotation, error) {
	i := e.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.anns[i].Type != Text {
		return nil, fmt.Errorf("%w: %s", ErrNotText, id)
	}
	return &e.anns[i], nil
}

// SetText replaces the text of a Text annotation.
func (e *Engine) SetText(id, text string) (Change, error) {
	a, err := e.textAnnotation(id)
	if err != nil {
		return NoChange, err
	}
	if a.Text == text {
		return NoChange, nil
	}
	e.abandon()
	a.Text = text
	measure(a, e.raster)
	e.emit(Event{Kind: Edited, ID: id})
	return Committed, nil
}

// SetRotation sets the display rotation of a Text annotation in degrees.
func (e *Engine) SetRotation(id string, deg float64) (Change, error) {
	a, err := e.textAnnotation(id)
	if err != nil {
		return NoChange, err
	}
	if a.Rotation == deg {
		return NoChange, nil
	}
	e.abandon()
	a.Rotation = deg
	e.emit(Event{Kind: Edited, ID: id})
	return Committed, nil
}

// Clear removes every annotation and resets interaction state. It is used
// when the series changes.
func (e *Engine) Clear() {
	e.draft, e.drag = nil, nil
	e.anns = nil
	e.selected = ""
	e.emit(Event{Kind: Cleared})
}

// Snapshot returns a deep copy of the annotation list.
func (e *Engine) Snapshot() []Annotation {
	return e.Annotations()
}

// Restore replaces the annotation list with a copy of list. The selection
// survives when its annotation still exists.
func (e *Engine) Restore(list []Annotation) {
	e.draft, e.drag = nil, nil
	e.anns = make([]Annotation, len(list))
	for i := range list {
		e.anns[i] = list[i].Clone()
	}
	e.reindex()
	if e.indexOf(e.selected) < 0 {
		e.selected = ""
	}
	e.emit(Event{Kind: Restored})
}

// Subscribe registers fn for change notifications and returns a function
// that unregisters it. Notifications are delivered synchronously.
func (e *Engine) Subscribe(fn func(Event)) (cancel func()) {
	id := e.nextSub
	e.nextSub++
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) emit(ev Event) {
	for _, s := range e.subs {
		s.fn(ev)
	}
}
