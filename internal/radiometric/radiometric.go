// Package radiometric converts decoded samples into calibrated Hounsfield
// units and 8-bit display values, and answers point and region queries over
// a frame.
//
// The display mapping is the linear window/level ramp
//
//	display = clamp(0, 255, (hu - (center - width/2)) / width * 255)
//
// where hu = raw*slope + intercept and width is floored at 1. Every function
// here is pure and safe to call concurrently on a shared frame.
package radiometric

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/frameview/internal/geometry"
	"github.com/ironsheep/frameview/internal/pixeldata"
)

// MinWidth is the smallest usable window width.
const MinWidth = 1.0

// Stats summarizes the calibrated values of a pixel set. Values are rounded
// to two decimals.
type Stats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stdDev"`
	Count  int     `json:"count"`
}

// ClampWidth floors a window width at MinWidth.
func ClampWidth(width float64) float64 {
	if width < MinWidth || math.IsNaN(width) {
		return MinWidth
	}
	return width
}

// Display maps a calibrated value to an 8-bit display value.
func Display(hu, center, width float64) uint8 {
	width = ClampWidth(width)
	v := (hu - (center - width/2)) / width * 255
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(v))
}

// Calibrate returns raw*slope + intercept.
func Calibrate(raw int32, slope, intercept float64) float64 {
	return float64(raw)*slope + intercept
}

// ToGray renders the whole frame through the given window. A lookup table
// over the frame's raw range keeps the cost to one mapping per distinct
// stored value.
func ToGray(f *pixeldata.Frame, center, width float64) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	n := f.Len()
	if n == 0 {
		return out
	}
	lo, hi := f.RawRange()
	lut := make([]uint8, int(hi-lo)+1)
	for i := range lut {
		lut[i] = Display(Calibrate(lo+int32(i), f.Slope, f.Intercept), center, width)
	}
	for i := 0; i < n; i++ {
		out.Pix[i] = lut[f.Raw(i)-lo]
	}
	return out
}

// HU returns the calibrated value at pixel (x, y). ok is false outside the
// raster.
func HU(f *pixeldata.Frame, x, y int) (hu float64, ok bool) {
	if !f.In(x, y) {
		return 0, false
	}
	return Calibrate(f.RawAt(x, y), f.Slope, f.Intercept), true
}

// Region computes Stats over the given pixels. Pixels outside the raster are
// ignored; ok is false when none remain.
func Region(f *pixeldata.Frame, pixels []image.Point) (Stats, bool) {
	vals := make([]float64, 0, len(pixels))
	for _, p := range pixels {
		if hu, ok := HU(f, p.X, p.Y); ok {
			vals = append(vals, hu)
		}
	}
	if len(vals) == 0 {
		return Stats{}, false
	}
	s := Stats{
		Mean:  geometry.Round(stat.Mean(vals, nil), 2),
		Min:   geometry.Round(floats.Min(vals), 2),
		Max:   geometry.Round(floats.Max(vals), 2),
		Count: len(vals),
	}
	if len(vals) > 1 {
		s.StdDev = geometry.Round(stat.PopStdDev(vals, nil), 2)
	}
	return s, true
}

// Sampler exposes a decoded frame to the annotation engine as a calibrated
// raster.
type Sampler struct {
	frame *pixeldata.Frame
}

// NewSampler wraps f.
func NewSampler(f *pixeldata.Frame) *Sampler {
	return &Sampler{frame: f}
}

// Size returns the raster width and height.
func (p *Sampler) Size() (int, int) {
	return p.frame.Width, p.frame.Height
}

// Spacing returns row and column spacing in mm; ok is false when unknown.
func (p *Sampler) Spacing() (row, col float64, ok bool) {
	if !p.frame.HasSpacing() {
		return 0, 0, false
	}
	return p.frame.PixelSpacing[0], p.frame.PixelSpacing[1], true
}

// HUAt returns the calibrated value at (x, y).
func (p *Sampler) HUAt(x, y int) (float64, bool) {
	return HU(p.frame, x, y)
}

// RegionStats computes Stats over pixels.
func (p *Sampler) RegionStats(pixels []image.Point) (Stats, bool) {
	return Region(p.frame, pixels)
}
