package pixeldata

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// header holds the image attributes read from the buffer itself. Absent
// attributes are nil.
type header struct {
	rows                *int
	columns             *int
	pixelRepresentation *int
	bitsAllocated       *int
	bitsStored          *int
	slope               *float64
	intercept           *float64
	windowCenter        *float64
	windowWidth         *float64
	pixelSpacing        []float64
	transferSyntax      string
}

// readHeader parses the dataset attributes of buf without reading the pixel
// data value.
func readHeader(buf []byte) (*header, error) {
	ds, err := dicom.Parse(bytes.NewReader(buf), int64(len(buf)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	h := &header{
		rows:                intAttr(&ds, tag.Rows),
		columns:             intAttr(&ds, tag.Columns),
		pixelRepresentation: intAttr(&ds, tag.PixelRepresentation),
		bitsAllocated:       intAttr(&ds, tag.BitsAllocated),
		bitsStored:          intAttr(&ds, tag.BitsStored),
		slope:               firstFloat(&ds, tag.RescaleSlope),
		intercept:           firstFloat(&ds, tag.RescaleIntercept),
		windowCenter:        firstFloat(&ds, tag.WindowCenter),
		windowWidth:         firstFloat(&ds, tag.WindowWidth),
		pixelSpacing:        floatAttrs(&ds, tag.PixelSpacing),
	}
	if s := stringAttrs(&ds, tag.TransferSyntaxUID); len(s) > 0 {
		h.transferSyntax = s[0]
	}
	return h, nil
}

func intAttr(ds *dicom.Dataset, t tag.Tag) *int {
	el, err := ds.FindElementByTag(t)
	if err != nil || el.Value == nil {
		return nil
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			n := v[0]
			return &n
		}
	case []string:
		if len(v) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(v[0])); err == nil {
				return &n
			}
		}
	}
	return nil
}

func stringAttrs(ds *dicom.Dataset, t tag.Tag) []string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el.Value == nil {
		return nil
	}
	v, ok := el.Value.GetValue().([]string)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, s := range v {
		// Multi-valued strings may arrive unsplit.
		for _, part := range strings.Split(s, `\`) {
			out = append(out, strings.Trim(part, " \x00"))
		}
	}
	return out
}

func floatAttrs(ds *dicom.Dataset, t tag.Tag) []float64 {
	var out []float64
	for _, s := range stringAttrs(ds, t) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}

func firstFloat(ds *dicom.Dataset, t tag.Tag) *float64 {
	v := floatAttrs(ds, t)
	if len(v) == 0 {
		return nil
	}
	return &v[0]
}
