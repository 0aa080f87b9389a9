package pixeldata

import (
	"fmt"
	"sort"

	"github.com/cocosip/go-dicom-codec/codec"
)

// wavelet syntaxes whose codestreams a decoder for any member can read:
// Part 1 lossless and lossy share one codestream format, as do the three
// HTJ2K variants.
var waveletFamilies = [][]string{
	{JPEG2000Lossless, JPEG2000},
	{HTJ2KLossless, HTJ2KLosslessRPCL, HTJ2K},
}

// Codecs is a WaveletDecoder backed by go-dicom-codec codecs, each chosen
// by the transfer syntax it reports from UID. A syntax with no codec of its
// own falls back to a codec of the same family.
type Codecs struct {
	byUID map[string]codec.Codec
}

// NewCodecs indexes cs by transfer syntax. A later codec replaces an
// earlier one with the same UID.
func NewCodecs(cs ...codec.Codec) *Codecs {
	c := &Codecs{byUID: make(map[string]codec.Codec, len(cs))}
	for _, dec := range cs {
		if dec != nil {
			c.byUID[dec.UID()] = dec
		}
	}
	return c
}

// Syntaxes returns every wavelet syntax that can be decoded, in sorted
// order.
func (c *Codecs) Syntaxes() []string {
	var out []string
	for _, fam := range waveletFamilies {
		for _, uid := range fam {
			if c.lookup(uid) != nil {
				out = append(out, uid)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (c *Codecs) lookup(syntax string) codec.Codec {
	if dec, ok := c.byUID[syntax]; ok {
		return dec
	}
	for _, fam := range waveletFamilies {
		member := false
		for _, uid := range fam {
			if uid == syntax {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		for _, uid := range fam {
			if dec, ok := c.byUID[uid]; ok {
				return dec
			}
		}
	}
	return nil
}

// Decode implements WaveletDecoder.
func (c *Codecs) Decode(syntax string, codestream []byte) (*WaveletResult, error) {
	dec := c.lookup(syntax)
	if dec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoWaveletDecoder, syntax)
	}
	res, err := dec.Decode(codestream)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, dec.Name(), err)
	}
	return &WaveletResult{
		PixelData:  res.PixelData,
		Width:      res.Width,
		Height:     res.Height,
		Components: res.Components,
		BitDepth:   res.BitDepth,
	}, nil
}
