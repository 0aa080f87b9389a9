// Package viewport maps pointer positions on the display surface to image
// raster coordinates and back.
//
// The forward mapping (image to screen) applies, in order: flip about the
// image center, rotation, uniform scale, and translation to the viewport
// center plus the pan offset. ScreenToImage undoes those steps in reverse.
package viewport

import (
	"math"

	"github.com/ironsheep/frameview/internal/geometry"
)

// DefaultMinScale is the smallest zoom factor a Mapper accepts.
const DefaultMinScale = 0.1

// Window is an explicit window/level override.
type Window struct {
	Center float64 `json:"center"`
	Width  float64 `json:"width"`
}

// Transform is the live view state of one viewport.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	FlipH    bool    `json:"flip_h"`
	FlipV    bool    `json:"flip_v"`
	Invert   bool    `json:"invert"`

	// Window overrides the frame's default window when non-nil.
	Window *Window `json:"window,omitempty"`
}

// Identity returns the default transform: no pan, unit scale, no rotation.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Clone returns a deep copy of t.
func (t Transform) Clone() Transform {
	c := t
	if t.Window != nil {
		w := *t.Window
		c.Window = &w
	}
	return c
}

// Equal reports whether two transforms describe the same view.
func (t Transform) Equal(o Transform) bool {
	if t.X != o.X || t.Y != o.Y || t.Scale != o.Scale || t.Rotation != o.Rotation ||
		t.FlipH != o.FlipH || t.FlipV != o.FlipV || t.Invert != o.Invert {
		return false
	}
	if (t.Window == nil) != (o.Window == nil) {
		return false
	}
	return t.Window == nil || *t.Window == *o.Window
}

// Mapper holds the live transform together with the image and viewport
// sizes it is applied between. The zero value is not usable; call New.
type Mapper struct {
	t        Transform
	minScale float64
	maxScale float64

	imageW, imageH       float64
	viewportW, viewportH float64
}

// New creates a mapper for an image of the given size displayed in a
// viewport of the given size. Scale limits default to DefaultMinScale and
// no upper bound when minScale or maxScale are not positive.
func New(imageW, imageH, viewportW, viewportH int, minScale, maxScale float64) *Mapper {
	if minScale <= 0 {
		minScale = DefaultMinScale
	}
	m := &Mapper{
		minScale:  minScale,
		maxScale:  maxScale,
		imageW:    float64(imageW),
		imageH:    float64(imageH),
		viewportW: float64(viewportW),
		viewportH: float64(viewportH),
	}
	m.Set(Identity())
	return m
}

// Transform returns a copy of the live transform.
func (m *Mapper) Transform() Transform {
	return m.t.Clone()
}

// Set replaces the live transform, clamping the scale into range.
func (m *Mapper) Set(t Transform) {
	m.t = t.Clone()
	m.t.Scale = m.clampScale(t.Scale)
}

// SetImageSize updates the raster size the transform pivots around.
func (m *Mapper) SetImageSize(w, h int) {
	m.imageW, m.imageH = float64(w), float64(h)
}

// SetViewportSize updates the display surface size.
func (m *Mapper) SetViewportSize(w, h int) {
	m.viewportW, m.viewportH = float64(w), float64(h)
}

// ViewportSize returns the display surface size.
func (m *Mapper) ViewportSize() (int, int) {
	return int(m.viewportW), int(m.viewportH)
}

func (m *Mapper) clampScale(s float64) float64 {
	if s < m.minScale || math.IsNaN(s) {
		s = m.minScale
	}
	if m.maxScale > 0 && s > m.maxScale {
		s = m.maxScale
	}
	return s
}

func (m *Mapper) imageCenter() geometry.Point {
	return geometry.Pt(m.imageW/2, m.imageH/2)
}

func (m *Mapper) screenOrigin() geometry.Point {
	return geometry.Pt(m.viewportW/2+m.t.X, m.viewportH/2+m.t.Y)
}

// ImageToScreen maps an image-space point onto the display surface.
func (m *Mapper) ImageToScreen(p geometry.Point) geometry.Point {
	q := p.Sub(m.imageCenter())
	if m.t.FlipH {
		q.X = -q.X
	}
	if m.t.FlipV {
		q.Y = -q.Y
	}
	q = q.Rotate(m.t.Rotation).Scale(m.t.Scale)
	return q.Add(m.screenOrigin())
}

// ScreenToImage recovers the image-space point under a display position by
// undoing translation, scale, rotation and flip in that order.
func (m *Mapper) ScreenToImage(s geometry.Point) geometry.Point {
	q := s.Sub(m.screenOrigin())
	q = q.Scale(1 / m.t.Scale)
	q = q.Rotate(-m.t.Rotation)
	if m.t.FlipH {
		q.X = -q.X
	}
	if m.t.FlipV {
		q.Y = -q.Y
	}
	return q.Add(m.imageCenter())
}

// Pan shifts the view by a screen-space delta.
func (m *Mapper) Pan(dx, dy float64) {
	m.t.X += dx
	m.t.Y += dy
}

// ZoomAt multiplies the scale by factor while keeping the image point under
// the screen anchor fixed.
func (m *Mapper) ZoomAt(factor float64, anchor geometry.Point) {
	if factor <= 0 {
		return
	}
	pinned := m.ScreenToImage(anchor)
	m.t.Scale = m.clampScale(m.t.Scale * factor)
	drift := anchor.Sub(m.ImageToScreen(pinned))
	m.t.X += drift.X
	m.t.Y += drift.Y
}

// Rotate adds deg degrees of rotation, normalized into [0, 360).
func (m *Mapper) Rotate(deg float64) {
	r := math.Mod(m.t.Rotation+deg, 360)
	if r < 0 {
		r += 360
	}
	m.t.Rotation = r
}

// Scale returns the current zoom factor.
func (m *Mapper) Scale() float64 {
	return m.t.Scale
}

// Fit sets a scale that fits the whole image into the viewport and clears
// the pan offset, keeping rotation and flips.
func (m *Mapper) Fit() {
	if m.imageW <= 0 || m.imageH <= 0 || m.viewportW <= 0 || m.viewportH <= 0 {
		m.t.Scale = 1
	} else {
		m.t.Scale = m.clampScale(math.Min(m.viewportW/m.imageW, m.viewportH/m.imageH))
	}
	m.t.X, m.t.Y = 0, 0
}
