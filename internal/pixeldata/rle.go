package pixeldata

import (
	"encoding/binary"
	"fmt"
)

const rleHeaderLen = 64

// decodeRLE decodes one RLE Lossless fragment (PS3.5 Annex G) into
// little-endian samples. Segments hold the most significant byte plane
// first.
func decodeRLE(frag []byte, pixels, bytesPerSample int) ([]byte, error) {
	if len(frag) < rleHeaderLen {
		return nil, fmt.Errorf("%w: rle header", ErrTruncated)
	}
	nseg := int(binary.LittleEndian.Uint32(frag))
	if nseg != bytesPerSample {
		return nil, fmt.Errorf("%w: rle has %d segments, want %d", ErrMalformed, nseg, bytesPerSample)
	}

	offsets := make([]int, nseg+1)
	for i := 0; i < nseg; i++ {
		offsets[i] = int(binary.LittleEndian.Uint32(frag[4+4*i:]))
	}
	offsets[nseg] = len(frag)

	out := make([]byte, pixels*bytesPerSample)
	for s := 0; s < nseg; s++ {
		start, end := offsets[s], offsets[s+1]
		if start < rleHeaderLen || start > end || end > len(frag) {
			return nil, fmt.Errorf("%w: rle segment %d bounds %d-%d", ErrMalformed, s, start, end)
		}
		plane, err := unpackBits(frag[start:end], pixels)
		if err != nil {
			return nil, fmt.Errorf("rle segment %d: %w", s, err)
		}
		// Segment 0 is the high byte; little-endian output puts it last.
		byteIndex := bytesPerSample - 1 - s
		for i, v := range plane {
			out[i*bytesPerSample+byteIndex] = v
		}
	}
	return out, nil
}

// unpackBits expands a PackBits segment into exactly n bytes.
func unpackBits(src []byte, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for i := 0; i < len(src) && len(out) < n; {
		h := int8(src[i])
		i++
		switch {
		case h >= 0:
			count := int(h) + 1
			if i+count > len(src) {
				return nil, fmt.Errorf("%w: literal run", ErrTruncated)
			}
			out = append(out, src[i:i+count]...)
			i += count
		case h != -128:
			if i >= len(src) {
				return nil, fmt.Errorf("%w: replicate run", ErrTruncated)
			}
			for k := 0; k < 1-int(h); k++ {
				out = append(out, src[i])
			}
			i++
		}
	}
	if len(out) < n {
		return nil, fmt.Errorf("%w: segment yields %d of %d bytes", ErrTruncated, len(out), n)
	}
	return out[:n], nil
}
