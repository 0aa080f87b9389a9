package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/frameview/internal/geometry"
)

var (
	labelForeground = color.RGBA{255, 255, 255, 255}
	labelBackground = color.RGBA{0, 0, 0, 170}
)

// setPixel sets (x, y) when it lies within img.
func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawLine draws a line using Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := -1, -1
	if x1 < x2 {
		sx = 1
	}
	if y1 < y2 {
		sy = 1
	}
	err := dx - dy
	for {
		setPixel(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round(v float64) int {
	return int(math.Round(v))
}

// clipCoord keeps far off-screen points from producing huge Bresenham runs.
func clipCoord(v float64) int {
	const limit = 1 << 15
	return round(math.Max(-limit, math.Min(limit, v)))
}

// drawSegment draws a line between two screen points.
func drawSegment(img *image.RGBA, a, b geometry.Point, c color.RGBA) {
	drawLine(img, clipCoord(a.X), clipCoord(a.Y), clipCoord(b.X), clipCoord(b.Y), c)
}

// drawPath draws consecutive segments, closing the path when closed is set.
func drawPath(img *image.RGBA, pts []geometry.Point, closed bool, c color.RGBA) {
	for i := 0; i+1 < len(pts); i++ {
		drawSegment(img, pts[i], pts[i+1], c)
	}
	if closed && len(pts) > 2 {
		drawSegment(img, pts[len(pts)-1], pts[0], c)
	}
}

// drawCircle draws a circle outline using Bresenham's algorithm.
func drawCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	x, y, err := r, 0, 0
	for x >= y {
		setPixel(img, cx+x, cy+y, c)
		setPixel(img, cx+y, cy+x, c)
		setPixel(img, cx-y, cy+x, c)
		setPixel(img, cx-x, cy+y, c)
		setPixel(img, cx-x, cy-y, c)
		setPixel(img, cx-y, cy-x, c)
		setPixel(img, cx+y, cy-x, c)
		setPixel(img, cx+x, cy-y, c)

		y++
		if err <= 0 {
			err += 2*y + 1
		}
		if err > 0 {
			x--
			err -= 2*x + 1
		}
	}
}

// drawHandle draws a filled square control point marker.
func drawHandle(img *image.RGBA, p geometry.Point, half int, c color.RGBA) {
	cx, cy := clipCoord(p.X), clipCoord(p.Y)
	r := image.Rect(cx-half, cy-half, cx+half+1, cy+half+1).Intersect(img.Bounds())
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawCross draws a plus-shaped marker.
func drawCross(img *image.RGBA, p geometry.Point, arm int, c color.RGBA) {
	cx, cy := clipCoord(p.X), clipCoord(p.Y)
	drawLine(img, cx-arm, cy, cx+arm, cy, c)
	drawLine(img, cx, cy-arm, cx, cy+arm, c)
}

// drawLabel draws lines of text on a translucent box whose top-left corner
// is (x, y).
func drawLabel(img *image.RGBA, x, y int, lines []string) {
	if len(lines) == 0 {
		return
	}
	face := basicfont.Face7x13
	lineHeight := face.Height
	width := 0
	for _, l := range lines {
		if w := font.MeasureString(face, l).Ceil(); w > width {
			width = w
		}
	}
	box := image.Rect(x-2, y-1, x+width+2, y+lineHeight*len(lines)+2)
	draw.Draw(img, box.Intersect(img.Bounds()), image.NewUniform(labelBackground), image.Point{}, draw.Over)

	d := &font.Drawer{Dst: img, Src: image.NewUniform(labelForeground), Face: face}
	for i, l := range lines {
		d.Dot = fixed.P(x, y+face.Ascent+i*lineHeight)
		d.DrawString(l)
	}
}
