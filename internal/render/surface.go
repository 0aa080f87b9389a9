package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/frameview/internal/viewport"
)

// DefaultThumbnailSize is the longest thumbnail edge in pixels.
const DefaultThumbnailSize = 128

// Surface is an encoded raster handed to the shell.
type Surface struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Encode encodes img as a PNG surface.
func Encode(img image.Image) (*Surface, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode surface: %w", err)
	}
	b := img.Bounds()
	return &Surface{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Thumbnail renders a windowed frame with the orientation and inversion of
// t, without pan or zoom, fitted within size x size.
func Thumbnail(gray *image.Gray, t viewport.Transform, size int) image.Image {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	var img image.Image = gray
	if t.Invert {
		img = effect.Invert(img)
	}
	if t.FlipH {
		img = imaging.FlipH(img)
	}
	if t.FlipV {
		img = imaging.FlipV(img)
	}
	if r := math.Mod(t.Rotation, 360); r != 0 {
		img = transform.Rotate(img, r, &transform.RotationOptions{ResizeBounds: true})
	}
	return imaging.Fit(img, size, size, imaging.Lanczos)
}
