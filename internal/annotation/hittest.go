package annotation

import (
	"math"

	"github.com/ironsheep/frameview/internal/geometry"
)

// hitKind says which part of an annotation a pointer landed on.
type hitKind int

const (
	hitNone hitKind = iota
	hitHandle
	hitBody
)

type hit struct {
	kind   hitKind
	index  int // position in the annotation list
	handle int // point index for hitHandle
}

// hitHandleAt returns the index of the first control point within threshold
// of p.
func hitHandleAt(a *Annotation, p geometry.Point, threshold float64) (int, bool) {
	for i, q := range a.Points {
		if p.Distance(q) <= threshold {
			return i, true
		}
	}
	return 0, false
}

// segments returns the stroked segments of a line-like annotation.
func segments(a *Annotation) [][2]geometry.Point {
	pts := a.Points
	switch a.Type {
	case Length:
		return [][2]geometry.Point{{pts[0], pts[1]}}
	case Angle:
		return [][2]geometry.Point{{pts[0], pts[1]}, {pts[1], pts[2]}}
	case CobbsAngle:
		return [][2]geometry.Point{{pts[0], pts[1]}, {pts[2], pts[3]}}
	case Rectangle:
		box := geometry.Bounds(pts)
		tl, br := box.Min, box.Max
		tr, bl := geometry.Pt(br.X, tl.Y), geometry.Pt(tl.X, br.Y)
		return [][2]geometry.Point{{tl, tr}, {tr, br}, {br, bl}, {bl, tl}}
	case Freehand:
		out := make([][2]geometry.Point, len(pts))
		for i := range pts {
			out[i] = [2]geometry.Point{pts[i], pts[(i+1)%len(pts)]}
		}
		return out
	}
	return nil
}

// hitBodyAt reports whether p lies on the drawn outline of a.
func hitBodyAt(a *Annotation, p geometry.Point, threshold, markerThreshold float64) bool {
	switch a.Type {
	case Text, HU:
		return p.Distance(a.Points[0]) <= markerThreshold
	case Ellipse:
		c, rx, ry := ellipseFrame(a.Points[0], a.Points[1])
		if rx == 0 || ry == 0 {
			// Degenerate: the ellipse collapses to its major axis.
			return geometry.SegmentDistance(p, a.Points[0], a.Points[1]) <= threshold
		}
		dx, dy := (p.X-c.X)/rx, (p.Y-c.Y)/ry
		d := math.Sqrt(dx*dx + dy*dy)
		return math.Abs(d-1)*math.Min(rx, ry) <= threshold
	}
	for _, s := range segments(a) {
		if geometry.SegmentDistance(p, s[0], s[1]) <= threshold {
			return true
		}
	}
	return false
}
