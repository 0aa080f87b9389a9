package annotation

import (
	"fmt"
	"image"
	"math"
	"strconv"

	"github.com/ironsheep/frameview/internal/geometry"
	"github.com/ironsheep/frameview/internal/radiometric"
)

// Raster is the calibrated frame an annotation is measured against.
type Raster interface {
	Size() (width, height int)
	Spacing() (row, col float64, ok bool)
	HUAt(x, y int) (float64, bool)
	RegionStats(pixels []image.Point) (radiometric.Stats, bool)
}

// inBounds reports whether every point lies on the raster.
func inBounds(pts []geometry.Point, w, h int) bool {
	for _, p := range pts {
		if p.X < 0 || p.Y < 0 || p.X >= float64(w) || p.Y >= float64(h) {
			return false
		}
	}
	return true
}

// ellipseFrame returns the center and radii of the ellipse inscribed in the
// box spanned by two corner points.
func ellipseFrame(a, b geometry.Point) (c geometry.Point, rx, ry float64) {
	c = geometry.Pt((a.X+b.X)/2, (a.Y+b.Y)/2)
	return c, math.Abs(b.X-a.X) / 2, math.Abs(b.Y-a.Y) / 2
}

// clipRange returns the pixel index range [lo, hi) covering [min, max]
// clipped to [0, limit).
func clipRange(min, max float64, limit int) (int, int) {
	lo := int(math.Floor(min))
	hi := int(math.Ceil(max))
	if lo < 0 {
		lo = 0
	}
	if hi > limit {
		hi = limit
	}
	return lo, hi
}

// regionPixels rasterizes the enclosed pixel set of a region annotation.
// A pixel belongs to the region when its center does.
func regionPixels(t Type, pts []geometry.Point, w, h int) []image.Point {
	box := geometry.Bounds(pts)
	x0, x1 := clipRange(box.Min.X, box.Max.X, w)
	y0, y1 := clipRange(box.Min.Y, box.Max.Y, h)

	var inside func(cx, cy float64) bool
	switch t {
	case Rectangle:
		// Direct index range: every pixel in the box.
		out := make([]image.Point, 0, (x1-x0)*(y1-y0))
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				out = append(out, image.Pt(x, y))
			}
		}
		return out
	case Ellipse:
		c, rx, ry := ellipseFrame(pts[0], pts[1])
		if rx == 0 || ry == 0 {
			return nil
		}
		inside = func(cx, cy float64) bool {
			dx, dy := (cx-c.X)/rx, (cy-c.Y)/ry
			return dx*dx+dy*dy <= 1
		}
	case Freehand:
		inside = func(cx, cy float64) bool {
			return geometry.PointInPolygon(geometry.Pt(cx, cy), pts)
		}
	default:
		return nil
	}

	var out []image.Point
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if inside(float64(x)+0.5, float64(y)+0.5) {
				out = append(out, image.Pt(x, y))
			}
		}
	}
	return out
}

// formatHU renders a calibrated value with at most two decimals and no
// trailing zeros.
func formatHU(v float64) string {
	return strconv.FormatFloat(geometry.Round(v, 2), 'f', -1, 64)
}

// measure computes the stats and labels of a in place.
func measure(a *Annotation, r Raster) {
	a.Stats = Stats{}
	a.Labels = nil

	rowSp, colSp, known := 1.0, 1.0, false
	if r != nil {
		if row, col, ok := r.Spacing(); ok {
			rowSp, colSp, known = row, col, true
		}
	}
	unit := "px"
	if known {
		unit = "mm"
	}

	switch a.Type {
	case Length:
		d := a.Points[1].Sub(a.Points[0])
		a.Stats.Length = geometry.Round(math.Hypot(d.X*colSp, d.Y*rowSp), 2)
		a.Stats.Unit = unit
		a.Labels = []string{fmt.Sprintf("%.1f %s", a.Stats.Length, unit)}

	case Angle:
		a.Stats.Angle = geometry.Round(geometry.AngleAt(a.Points[1], a.Points[0], a.Points[2]), 2)
		a.Labels = []string{fmt.Sprintf("%.1f°", a.Stats.Angle)}

	case CobbsAngle:
		theta := geometry.VectorAngle(a.Points[1].Sub(a.Points[0]), a.Points[3].Sub(a.Points[2]))
		a.Stats.Angle = geometry.Round(math.Min(theta, 180-theta), 2)
		a.Labels = []string{fmt.Sprintf("%.1f°", a.Stats.Angle)}

	case Ellipse, Rectangle, Freehand:
		if r == nil {
			return
		}
		w, h := r.Size()
		pixels := regionPixels(a.Type, a.Points, w, h)
		a.Stats.Unit = unit
		a.Stats.Area = geometry.Round(float64(len(pixels))*rowSp*colSp, 2)
		if s, ok := r.RegionStats(pixels); ok {
			a.Stats.Region = &s
			a.Labels = append(a.Labels,
				fmt.Sprintf("Mean: %s HU", formatHU(s.Mean)),
				fmt.Sprintf("Min: %s HU  Max: %s HU", formatHU(s.Min), formatHU(s.Max)),
			)
		}
		a.Labels = append(a.Labels, fmt.Sprintf("Area: %.1f %s²", a.Stats.Area, unit))
		if a.Type == Freehand {
			a.Stats.Perimeter = geometry.Round(geometry.ScaledClosedPerimeter(a.Points, colSp, rowSp), 2)
			a.Labels = append(a.Labels, fmt.Sprintf("Perimeter: %.1f %s", a.Stats.Perimeter, unit))
		}

	case HU:
		if r == nil {
			return
		}
		p := a.Points[0]
		if v, ok := r.HUAt(int(math.Floor(p.X)), int(math.Floor(p.Y))); ok {
			v = geometry.Round(v, 2)
			a.Stats.HU = &v
			a.Labels = []string{fmt.Sprintf("%s HU", formatHU(v))}
		}

	case Text:
		if a.Text != "" {
			a.Labels = []string{a.Text}
		}
	}
}
