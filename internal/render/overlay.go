package render

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/frameview/internal/annotation"
	"github.com/ironsheep/frameview/internal/geometry"
	"github.com/ironsheep/frameview/internal/viewport"
)

// ellipseSegments is the number of chords used to stroke an ellipse.
const ellipseSegments = 72

// Overlay describes what to draw on top of a frame.
type Overlay struct {
	Annotations []annotation.Annotation
	Selected    string
	Draft       *annotation.Annotation
	Palette     *annotation.Palette
}

func rgba(hex string) color.RGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{255, 212, 0, 255}
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 255}
}

// DrawOverlay strokes every annotation, then the draft, onto dst in screen
// space.
func DrawOverlay(dst *image.RGBA, m *viewport.Mapper, o Overlay) {
	for i := range o.Annotations {
		a := &o.Annotations[i]
		hex := a.Color
		selected := a.ID == o.Selected
		if selected && o.Palette != nil {
			hex = o.Palette.Highlight(hex)
		}
		drawAnnotation(dst, m, a, rgba(hex), selected, true)
	}
	if o.Draft != nil && len(o.Draft.Points) > 0 {
		hex := annotation.DefaultColor
		if o.Palette != nil {
			hex = o.Palette.For(o.Draft.Type)
		}
		drawAnnotation(dst, m, o.Draft, rgba(hex), false, false)
	}
}

// outline returns the screen-space outline of a, and whether it is closed.
func outline(m *viewport.Mapper, a *annotation.Annotation) (pts []geometry.Point, closed bool) {
	toScreen := func(ps ...geometry.Point) []geometry.Point {
		out := make([]geometry.Point, len(ps))
		for i, p := range ps {
			out[i] = m.ImageToScreen(p)
		}
		return out
	}

	switch a.Type {
	case annotation.Rectangle:
		if len(a.Points) < 2 {
			return nil, false
		}
		box := geometry.Bounds(a.Points[:2])
		return toScreen(box.Min, geometry.Pt(box.Max.X, box.Min.Y), box.Max, geometry.Pt(box.Min.X, box.Max.Y)), true
	case annotation.Ellipse:
		if len(a.Points) < 2 {
			return nil, false
		}
		box := geometry.Bounds(a.Points[:2])
		c := box.Center()
		rx, ry := box.Width()/2, box.Height()/2
		ring := make([]geometry.Point, ellipseSegments)
		for i := range ring {
			s, co := math.Sincos(2 * math.Pi * float64(i) / ellipseSegments)
			ring[i] = geometry.Pt(c.X+rx*co, c.Y+ry*s)
		}
		return toScreen(ring...), true
	case annotation.Freehand:
		return toScreen(a.Points...), true
	}
	return toScreen(a.Points...), false
}

func drawAnnotation(dst *image.RGBA, m *viewport.Mapper, a *annotation.Annotation, c color.RGBA, selected, finished bool) {
	screen := make([]geometry.Point, len(a.Points))
	for i, p := range a.Points {
		screen[i] = m.ImageToScreen(p)
	}

	switch a.Type {
	case annotation.Text:
		drawCircle(dst, round(screen[0].X), round(screen[0].Y), 3, c)
	case annotation.HU:
		drawCross(dst, screen[0], 6, c)
	case annotation.CobbsAngle:
		drawPath(dst, screen[:min(2, len(screen))], false, c)
		if len(screen) > 2 {
			drawPath(dst, screen[2:], false, c)
		}
	default:
		pts, closed := outline(m, a)
		drawPath(dst, pts, closed && finished, c)
	}

	half := 2
	if selected {
		half = 3
	}
	if a.Type != annotation.Text && a.Type != annotation.HU {
		for _, p := range screen {
			drawHandle(dst, p, half, c)
		}
	}

	if finished && len(a.Labels) > 0 {
		anchor := labelAnchor(a, screen)
		drawLabel(dst, round(anchor.X)+8, round(anchor.Y)+8, a.Labels)
	}
}

// labelAnchor picks where a label is attached: the vertex for angles, the
// second line for Cobb angles, otherwise the last point.
func labelAnchor(a *annotation.Annotation, screen []geometry.Point) geometry.Point {
	switch {
	case a.Type == annotation.Angle && len(screen) > 1:
		return screen[1]
	case a.Type == annotation.CobbsAngle && len(screen) > 3:
		return geometry.Pt((screen[2].X+screen[3].X)/2, (screen[2].Y+screen[3].Y)/2)
	}
	return screen[len(screen)-1]
}
