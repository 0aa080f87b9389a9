package render

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/effect"

	"github.com/ironsheep/frameview/internal/geometry"
	"github.com/ironsheep/frameview/internal/viewport"
)

// Background fills viewport pixels that map outside the image.
var Background = color.RGBA{0, 0, 0, 255}

// Frame resamples a windowed grayscale frame into a viewport-sized RGBA
// image through the mapper's current transform. Each screen pixel takes the
// nearest image pixel under its center. invert applies a photometric
// inversion first.
func Frame(gray *image.Gray, m *viewport.Mapper, invert bool) *image.RGBA {
	vw, vh := m.ViewportSize()
	out := image.NewRGBA(image.Rect(0, 0, vw, vh))

	var src image.Image = gray
	if invert {
		src = effect.Invert(gray)
	}
	at := sampler(src)
	b := src.Bounds()

	for y := 0; y < vh; y++ {
		for x := 0; x < vw; x++ {
			p := m.ScreenToImage(geometry.Pt(float64(x)+0.5, float64(y)+0.5))
			ix, iy := int(math.Floor(p.X)), int(math.Floor(p.Y))
			c := Background
			if image.Pt(ix, iy).In(b) {
				c = at(ix, iy)
			}
			i := out.PixOffset(x, y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return out
}

// sampler returns a fast pixel reader for the image types produced here.
func sampler(src image.Image) func(x, y int) color.RGBA {
	switch s := src.(type) {
	case *image.Gray:
		return func(x, y int) color.RGBA {
			v := s.Pix[s.PixOffset(x, y)]
			return color.RGBA{v, v, v, 255}
		}
	case *image.RGBA:
		return func(x, y int) color.RGBA {
			i := s.PixOffset(x, y)
			return color.RGBA{s.Pix[i], s.Pix[i+1], s.Pix[i+2], s.Pix[i+3]}
		}
	default:
		return func(x, y int) color.RGBA {
			return color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)
		}
	}
}
