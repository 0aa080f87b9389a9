package pixeldata

import "log/slog"

// DefaultScanWindow bounds the search for the codestream start marker.
const DefaultScanWindow = 4000

// DefaultSwapThreshold is the sampled maximum below which 16-bit wavelet
// output is suspected to be byte-swapped.
const DefaultSwapThreshold = 256

// WaveletResult is the host-memory output of a wavelet decoder.
type WaveletResult struct {
	PixelData  []byte // little-endian samples unless the decoder is wrong
	Width      int
	Height     int
	Components int
	BitDepth   int
}

// WaveletDecoder decodes a JPEG 2000 family codestream stored under the
// given transfer syntax.
type WaveletDecoder interface {
	Decode(syntax string, codestream []byte) (*WaveletResult, error)
}

// findCodestream returns the offset of the SOC+SIZ marker pair within the
// first window bytes of data.
func findCodestream(data []byte, window int) (int, bool) {
	limit := len(data) - 4
	if window > 0 && window < limit {
		limit = window
	}
	for i := 0; i <= limit; i++ {
		if data[i] == 0xFF && data[i+1] == 0x4F && data[i+2] == 0xFF && data[i+3] == 0x51 {
			return i, true
		}
	}
	return 0, false
}

// sampleMax returns the largest 16-bit word among a sparse sample of b read
// little-endian, and the same maximum with each sampled word byte-swapped.
func sampleMax(b []byte) (native, swapped uint16) {
	words := len(b) / 2
	if words == 0 {
		return 0, 0
	}
	step := words / 512
	if step < 1 {
		step = 1
	}
	for i := 0; i < words; i += step {
		lo, hi := b[2*i], b[2*i+1]
		if v := uint16(lo) | uint16(hi)<<8; v > native {
			native = v
		}
		if v := uint16(hi) | uint16(lo)<<8; v > swapped {
			swapped = v
		}
	}
	return native, swapped
}

// shouldSwap decides whether decoded 16-bit output is byte-swapped. The
// swap is only accepted when the swapped samples look like real data for
// the stored bit depth.
func shouldSwap(b []byte, bitsStored, threshold int) bool {
	if bitsStored <= 8 {
		return false
	}
	native, swapped := sampleMax(b)
	if int(native) >= threshold {
		return false
	}
	if int(swapped) < threshold {
		return false
	}
	return bitsStored >= 16 || int(swapped) < 1<<uint(bitsStored)
}

func swapBytes(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}

func (a *Adapter) decodeWavelet(id, syntax string, data []byte, rows, cols, bitsStored int) ([]byte, int, error) {
	if a.wavelet == nil {
		return nil, 0, ErrNoWaveletDecoder
	}
	off, ok := findCodestream(data, a.scanWindow)
	if !ok {
		a.log.Warn("codestream marker not found, decoding from offset 0",
			"instance", id, "window", a.scanWindow)
	}

	res, err := a.wavelet.Decode(syntax, data[off:])
	if err != nil {
		return nil, 0, err
	}
	if res.Width != cols || res.Height != rows {
		return nil, 0, ErrDimensionMismatch
	}
	if res.Components > 1 {
		return nil, 0, ErrUnsupportedSyntax
	}

	bitsAllocated := 16
	if res.BitDepth > 0 && res.BitDepth <= 8 {
		bitsAllocated = 8
	}
	if len(res.PixelData) < rows*cols*bitsAllocated/8 {
		return nil, 0, ErrTruncated
	}
	if bitsAllocated == 16 && shouldSwap(res.PixelData, bitsStored, a.swapThreshold) {
		a.log.Debug("byte-swapping wavelet output", slog.String("instance", id))
		swapBytes(res.PixelData)
	}
	return res.PixelData, bitsAllocated, nil
}
