package pixeldata

import (
	"errors"
	"fmt"
)

// Sentinel decode failure reasons, matched with errors.Is.
var (
	ErrNoPixelData       = errors.New("pixel data element absent")
	ErrTruncated         = errors.New("buffer truncated")
	ErrUnsupportedSyntax = errors.New("unsupported transfer syntax")
	ErrNoWaveletDecoder  = errors.New("no wavelet decoder registered")
	ErrDimensionMismatch = errors.New("decoded dimensions do not match")
	ErrMalformed         = errors.New("malformed dataset")
)

// DecodeError is a per-frame decode failure. It does not affect other
// frames of the series.
type DecodeError struct {
	InstanceID string
	Err        error
}

func (e *DecodeError) Error() string {
	if e.InstanceID == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode instance %s: %v", e.InstanceID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
