package pixeldata

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"

	"github.com/ironsheep/frameview/internal/series"
)

// Options configures an Adapter.
type Options struct {
	// Wavelet decodes JPEG 2000 family codestreams, usually a *Codecs.
	// Without it those syntaxes fail with ErrNoWaveletDecoder.
	Wavelet WaveletDecoder

	ScanWindow    int // defaults to DefaultScanWindow
	SwapThreshold int // defaults to DefaultSwapThreshold

	Logger *slog.Logger
}

// Adapter decodes instance buffers into frames. It holds no per-frame state
// and is safe for concurrent use.
type Adapter struct {
	wavelet       WaveletDecoder
	scanWindow    int
	swapThreshold int
	log           *slog.Logger
}

// NewAdapter creates an adapter.
func NewAdapter(opts Options) *Adapter {
	a := &Adapter{
		wavelet:       opts.Wavelet,
		scanWindow:    opts.ScanWindow,
		swapThreshold: opts.SwapThreshold,
		log:           opts.Logger,
	}
	if a.scanWindow <= 0 {
		a.scanWindow = DefaultScanWindow
	}
	if a.swapThreshold <= 0 {
		a.swapThreshold = DefaultSwapThreshold
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

// resolved is the merged view of instance metadata and buffer header.
type resolved struct {
	rows, cols    int
	signed        bool
	bitsAllocated int
	bitsStored    int
	slope         float64
	intercept     float64
	center, width float64
	spacing       [2]float64
}

func resolve(in series.Instance, h *header) resolved {
	r := resolved{
		rows:          in.Rows,
		cols:          in.Columns,
		signed:        in.PixelRepresentation == 1,
		bitsAllocated: 16,
		slope:         in.Slope(),
		intercept:     in.RescaleIntercept,
		center:        in.WindowCenter,
		width:         in.WindowWidth,
		spacing:       in.PixelSpacing,
	}
	if h == nil {
		r.bitsStored = r.bitsAllocated
		return r
	}
	if h.rows != nil && *h.rows > 0 {
		r.rows = *h.rows
	}
	if h.columns != nil && *h.columns > 0 {
		r.cols = *h.columns
	}
	if h.pixelRepresentation != nil {
		r.signed = *h.pixelRepresentation == 1
	}
	if h.bitsAllocated != nil && (*h.bitsAllocated == 8 || *h.bitsAllocated == 16) {
		r.bitsAllocated = *h.bitsAllocated
	}
	r.bitsStored = r.bitsAllocated
	if h.bitsStored != nil && *h.bitsStored > 0 && *h.bitsStored <= r.bitsAllocated {
		r.bitsStored = *h.bitsStored
	}
	if h.slope != nil && *h.slope != 0 {
		r.slope = *h.slope
	}
	if h.intercept != nil {
		r.intercept = *h.intercept
	}
	if h.windowCenter != nil && h.windowWidth != nil {
		r.center, r.width = *h.windowCenter, *h.windowWidth
	}
	if len(h.pixelSpacing) == 2 {
		r.spacing = [2]float64{h.pixelSpacing[0], h.pixelSpacing[1]}
	}
	return r
}

// Decode turns the raw buffer of instance in into a frame. When buf is a
// Part 10 file its header attributes override the instance metadata.
// Failures are *DecodeError.
func (a *Adapter) Decode(buf []byte, in series.Instance) (*Frame, error) {
	f, err := a.decode(buf, in)
	if err != nil {
		return nil, &DecodeError{InstanceID: in.ID, Err: err}
	}
	return f, nil
}

func (a *Adapter) decode(buf []byte, in series.Instance) (*Frame, error) {
	// Only a Part 10 buffer is parsed for its header. A bare dataset is
	// left to the walker and described by the instance metadata alone.
	var h *header
	if hasPreamble(buf) {
		var err error
		if h, err = readHeader(buf); err != nil {
			a.log.Debug("header unreadable, using instance metadata", "instance", in.ID, "error", err)
			h = nil
		}
	} else {
		a.log.Debug("no file preamble, using instance metadata", "instance", in.ID, "syntax", in.TransferSyntax)
	}
	r := resolve(in, h)

	syntax := in.TransferSyntax
	if h != nil && h.transferSyntax != "" {
		syntax = h.transferSyntax
	}
	pv, err := locatePixelData(buf, syntax)
	if err != nil {
		return nil, err
	}
	if pv.syntax != "" {
		syntax = pv.syntax
	}
	if r.rows <= 0 || r.cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensionMismatch, r.cols, r.rows)
	}
	pixels := r.rows * r.cols

	var (
		samples []byte
		bigEnd  bool
	)
	switch codec := Classify(syntax); codec {
	case CodecNative:
		if pv.encapsulated() {
			return nil, fmt.Errorf("%w: encapsulated data for native syntax %s", ErrMalformed, syntax)
		}
		samples, bigEnd = pv.native, pv.bigEndian
	case CodecRLE:
		if !pv.encapsulated() {
			return nil, fmt.Errorf("%w: rle data is not encapsulated", ErrMalformed)
		}
		samples, err = decodeRLE(pv.fragments[0], pixels, r.bitsAllocated/8)
		if err != nil {
			return nil, err
		}
	case CodecJPEGBaseline:
		if !pv.encapsulated() {
			return nil, fmt.Errorf("%w: jpeg data is not encapsulated", ErrMalformed)
		}
		samples, err = decodeJPEG(pv.joined(), r.rows, r.cols)
		if err != nil {
			return nil, err
		}
		r.bitsAllocated, r.bitsStored, r.signed = 8, 8, false
	case CodecWavelet:
		data := pv.native
		if pv.encapsulated() {
			data = pv.joined()
		}
		samples, r.bitsAllocated, err = a.decodeWavelet(in.ID, syntax, data, r.rows, r.cols, r.bitsStored)
		if err != nil {
			return nil, err
		}
		if r.bitsStored > r.bitsAllocated {
			r.bitsStored = r.bitsAllocated
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSyntax, syntax)
	}

	if len(samples) < pixels*r.bitsAllocated/8 {
		return nil, fmt.Errorf("%w: %d bytes of pixel data for %dx%d at %d bits",
			ErrTruncated, len(samples), r.cols, r.rows, r.bitsAllocated)
	}

	f := &Frame{
		InstanceID:   in.ID,
		Width:        r.cols,
		Height:       r.rows,
		IsSigned:     r.signed,
		BitsStored:   r.bitsStored,
		Slope:        r.slope,
		Intercept:    r.intercept,
		WindowCenter: r.center,
		WindowWidth:  r.width,
		PixelSpacing: r.spacing,
	}
	f.Unsigned, f.Signed = reinterpret(samples, pixels, r.bitsAllocated, r.bitsStored, r.signed, bigEnd)

	if f.WindowWidth <= 0 {
		lo, hi := f.RawRange()
		loHU := float64(lo)*f.Slope + f.Intercept
		hiHU := float64(hi)*f.Slope + f.Intercept
		if hiHU < loHU {
			loHU, hiHU = hiHU, loHU
		}
		f.WindowCenter = (loHU + hiHU) / 2
		f.WindowWidth = hiHU - loHU
		if f.WindowWidth < 1 {
			f.WindowWidth = 1
		}
	}
	return f, nil
}

// decodeJPEG decodes an 8-bit baseline JPEG into one byte per pixel.
func decodeJPEG(data []byte, rows, cols int) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: jpeg: %v", ErrMalformed, err)
	}
	b := img.Bounds()
	if b.Dx() != cols || b.Dy() != rows {
		return nil, ErrDimensionMismatch
	}
	if g, ok := img.(*image.Gray); ok && g.Stride == cols {
		return g.Pix[:rows*cols], nil
	}
	out := make([]byte, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out[y*cols+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return out, nil
}
