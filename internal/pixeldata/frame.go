package pixeldata

import "math"

// Frame is one decoded instance: a typed 16-bit sample buffer together with
// the calibration resolved at decode time. Exactly one of Unsigned and
// Signed is populated, in row-major order.
type Frame struct {
	InstanceID string

	Width  int
	Height int

	IsSigned bool
	Unsigned []uint16
	Signed   []int16

	BitsStored int

	Slope     float64
	Intercept float64

	WindowCenter float64
	WindowWidth  float64

	// PixelSpacing is row spacing then column spacing in mm; zero when
	// unknown.
	PixelSpacing [2]float64
}

// Len returns the number of samples.
func (f *Frame) Len() int {
	if f.IsSigned {
		return len(f.Signed)
	}
	return len(f.Unsigned)
}

// Raw returns the stored value of sample i.
func (f *Frame) Raw(i int) int32 {
	if f.IsSigned {
		return int32(f.Signed[i])
	}
	return int32(f.Unsigned[i])
}

// RawAt returns the stored value at column x, row y.
func (f *Frame) RawAt(x, y int) int32 {
	return f.Raw(y*f.Width + x)
}

// In reports whether (x, y) is a pixel of the frame.
func (f *Frame) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// RawRange returns the smallest and largest stored values.
func (f *Frame) RawRange() (lo, hi int32) {
	n := f.Len()
	if n == 0 {
		return 0, 0
	}
	lo, hi = math.MaxInt32, math.MinInt32
	for i := 0; i < n; i++ {
		v := f.Raw(i)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// HasSpacing reports whether both pixel spacing components are known.
func (f *Frame) HasSpacing() bool {
	return f.PixelSpacing[0] > 0 && f.PixelSpacing[1] > 0
}

// reinterpret converts little-endian (or big-endian) sample bytes into a
// typed buffer. Values narrower than 16 bits are sign-extended or masked
// according to bitsStored.
func reinterpret(b []byte, n, bitsAllocated, bitsStored int, signed, bigEndian bool) ([]uint16, []int16) {
	if bitsStored <= 0 || bitsStored > 16 {
		bitsStored = bitsAllocated
	}
	shift := uint(16 - bitsStored)
	mask := uint16(0xFFFF >> shift)

	word := func(i int) uint16 {
		if bitsAllocated == 8 {
			v := uint16(b[i])
			if signed && b[i]&0x80 != 0 && bitsStored == 8 {
				v |= 0xFF00
			}
			return v
		}
		if bigEndian {
			return uint16(b[2*i])<<8 | uint16(b[2*i+1])
		}
		return uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}

	if signed {
		out := make([]int16, n)
		for i := range out {
			w := word(i)
			if bitsAllocated == 16 && shift > 0 {
				out[i] = int16(w<<shift) >> shift
			} else {
				out[i] = int16(w)
			}
		}
		return nil, out
	}
	out := make([]uint16, n)
	for i := range out {
		w := word(i)
		if bitsAllocated == 16 {
			w &= mask
		}
		out[i] = w
	}
	return out, nil
}
