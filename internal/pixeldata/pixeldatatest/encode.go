// Package pixeldatatest builds small DICOM Part-10 buffers for tests.
package pixeldatatest

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"math"
)

const undefinedLength = 0xFFFFFFFF

// Element is one data element to encode. Value is written as-is after even
// padding; set Undefined for sequences whose Value already holds encoded
// items and delimiters.
type Element struct {
	Group, Elem uint16
	VR          string
	Value       []byte
	Undefined   bool
}

// Str builds a string element padded per its VR.
func Str(group, elem uint16, vr, s string) Element {
	b := []byte(s)
	if len(b)%2 == 1 {
		if vr == "UI" {
			b = append(b, 0)
		} else {
			b = append(b, ' ')
		}
	}
	return Element{Group: group, Elem: elem, VR: vr, Value: b}
}

// US builds an unsigned short element in the given byte order.
func US(order binary.ByteOrder, group, elem uint16, v uint16) Element {
	b := make([]byte, 2)
	order.PutUint16(b, v)
	return Element{Group: group, Elem: elem, VR: "US", Value: b}
}

// DS builds a decimal string element from one or more values.
func DS(group, elem uint16, vals ...float64) Element {
	var buf bytes.Buffer
	for i, v := range vals {
		if i > 0 {
			buf.WriteByte('\\')
		}
		fmt.Fprintf(&buf, "%g", v)
	}
	return Str(group, elem, "DS", buf.String())
}

// Words encodes 16-bit samples in the given byte order.
func Words(order binary.ByteOrder, samples []uint16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		order.PutUint16(b[2*i:], s)
	}
	return b
}

// Encapsulated encodes fragments as a Pixel Data item sequence with an
// empty basic offset table.
func Encapsulated(fragments ...[]byte) []byte {
	var buf bytes.Buffer
	item := func(data []byte) {
		binary.Write(&buf, binary.LittleEndian, uint16(0xFFFE))
		binary.Write(&buf, binary.LittleEndian, uint16(0xE000))
		binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
		buf.Write(data)
	}
	item(nil)
	for _, f := range fragments {
		if len(f)%2 == 1 {
			f = append(append([]byte{}, f...), 0)
		}
		item(f)
	}
	binary.Write(&buf, binary.LittleEndian, uint16(0xFFFE))
	binary.Write(&buf, binary.LittleEndian, uint16(0xE0DD))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	return buf.Bytes()
}

// Syntax describes how the dataset is encoded.
type Syntax struct {
	UID       string
	Implicit  bool
	BigEndian bool
	Deflated  bool
}

func (s Syntax) order() binary.ByteOrder {
	if s.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func has32BitLength(vr string) bool {
	switch vr {
	case "OB", "OD", "OF", "OL", "OV", "OW", "SQ", "SV", "UC", "UN", "UR", "UT", "UV":
		return true
	}
	return false
}

func encodeElements(order binary.ByteOrder, implicit bool, elems []Element) []byte {
	var buf bytes.Buffer
	for _, e := range elems {
		v := e.Value
		if !e.Undefined && len(v)%2 == 1 {
			v = append(append([]byte{}, v...), 0)
		}
		length := uint32(len(v))
		if e.Undefined {
			length = undefinedLength
		}
		binary.Write(&buf, order, e.Group)
		binary.Write(&buf, order, e.Elem)
		switch {
		case implicit:
			binary.Write(&buf, order, length)
		case has32BitLength(e.VR):
			buf.WriteString(e.VR)
			buf.Write([]byte{0, 0})
			binary.Write(&buf, order, length)
		default:
			buf.WriteString(e.VR)
			binary.Write(&buf, order, uint16(length))
		}
		buf.Write(v)
	}
	return buf.Bytes()
}

// Part10 encodes a complete file: preamble, file meta information and the
// dataset in the given syntax. Without a preamble only the dataset is
// written.
func Part10(syntax Syntax, preamble bool, dataset []Element) []byte {
	body := encodeElements(syntax.order(), syntax.Implicit, dataset)
	if syntax.Deflated {
		var z bytes.Buffer
		w, _ := flate.NewWriter(&z, flate.DefaultCompression)
		w.Write(body)
		w.Close()
		body = z.Bytes()
	}
	if !preamble {
		return body
	}

	meta := encodeElements(binary.LittleEndian, false, []Element{
		{Group: 0x0002, Elem: 0x0001, VR: "OB", Value: []byte{0, 1}},
		Str(0x0002, 0x0002, "UI", "1.2.840.10008.5.1.4.1.1.2"),
		Str(0x0002, 0x0003, "UI", "1.2.826.0.1.3680043.2.1125.1"),
		Str(0x0002, 0x0010, "UI", syntax.UID),
	})
	groupLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLen, uint32(len(meta)))
	header := encodeElements(binary.LittleEndian, false, []Element{
		{Group: 0x0002, Elem: 0x0000, VR: "UL", Value: groupLen},
	})

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")
	out.Write(header)
	out.Write(meta)
	out.Write(body)
	return out.Bytes()
}

// Image describes a single-frame grayscale image.
type Image struct {
	Rows, Columns       int
	PixelRepresentation int
	BitsStored          int
	Slope, Intercept    float64
	WindowCenter        float64
	WindowWidth         float64
	PixelSpacing        [2]float64

	// PixelData is the encoded Pixel Data value. For native syntaxes it is
	// the sample bytes; for encapsulated ones it comes from Encapsulated.
	PixelData    []byte
	Encapsulated bool

	// WithSequence adds an undefined-length sequence before the image
	// attributes.
	WithSequence bool
}

// Elements returns the dataset elements of img in tag order.
func (img Image) Elements(order binary.ByteOrder) []Element {
	bitsStored := img.BitsStored
	if bitsStored == 0 {
		bitsStored = 16
	}
	elems := []Element{
		Str(0x0008, 0x0018, "UI", "1.2.826.0.1.3680043.2.1125.1"),
	}
	if img.WithSequence {
		var item bytes.Buffer
		item.Write(encodeElements(order, false, []Element{Str(0x0008, 0x1150, "UI", "1.2.840.10008.5.1.4.1.1.2")}))
		// Item and delimiter headers carry no VR.
		seq := itemHeader(order, 0xE000, undefinedLength)
		seq = append(seq, item.Bytes()...)
		seq = append(seq, itemHeader(order, 0xE00D, 0)...)
		seq = append(seq, itemHeader(order, 0xE0DD, 0)...)
		elems = append(elems, Element{Group: 0x0008, Elem: 0x1140, VR: "SQ", Value: seq, Undefined: true})
	}
	elems = append(elems,
		US(order, 0x0028, 0x0002, 1),
		Str(0x0028, 0x0004, "CS", "MONOCHROME2"),
		US(order, 0x0028, 0x0010, uint16(img.Rows)),
		US(order, 0x0028, 0x0011, uint16(img.Columns)),
	)
	if img.PixelSpacing[0] > 0 {
		elems = append(elems, DS(0x0028, 0x0030, img.PixelSpacing[0], img.PixelSpacing[1]))
	}
	elems = append(elems,
		US(order, 0x0028, 0x0100, 16),
		US(order, 0x0028, 0x0101, uint16(bitsStored)),
		US(order, 0x0028, 0x0102, uint16(bitsStored-1)),
		US(order, 0x0028, 0x0103, uint16(img.PixelRepresentation)),
	)
	if img.WindowWidth > 0 {
		elems = append(elems,
			DS(0x0028, 0x1050, img.WindowCenter),
			DS(0x0028, 0x1051, img.WindowWidth),
		)
	}
	slope := img.Slope
	if slope == 0 {
		slope = 1
	}
	elems = append(elems,
		DS(0x0028, 0x1052, img.Intercept),
		DS(0x0028, 0x1053, slope),
	)
	if img.PixelData != nil {
		pd := Element{Group: 0x7FE0, Elem: 0x0010, VR: "OW", Value: img.PixelData}
		if img.Encapsulated {
			pd.VR = "OB"
			pd.Undefined = true
		}
		elems = append(elems, pd)
	}
	return elems
}

func itemHeader(order binary.ByteOrder, elem uint16, length uint32) []byte {
	b := make([]byte, 8)
	order.PutUint16(b, 0xFFFE)
	order.PutUint16(b[2:], elem)
	order.PutUint32(b[4:], length)
	return b
}

// Constant returns n copies of v.
func Constant(n int, v uint16) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Signed converts signed samples to their 16-bit two's complement words.
func Signed(vals []int16) []uint16 {
	out := make([]uint16, len(vals))
	for i, v := range vals {
		out[i] = uint16(v)
	}
	return out
}

// CT returns a native explicit VR little endian CT buffer of constant raw
// value with the given calibration.
func CT(rows, cols int, raw uint16, slope, intercept float64, spacing [2]float64) []byte {
	img := Image{
		Rows: rows, Columns: cols,
		Slope: slope, Intercept: intercept,
		WindowCenter: 40, WindowWidth: 400,
		PixelSpacing: spacing,
		PixelData:    Words(binary.LittleEndian, Constant(rows*cols, raw)),
	}
	syntax := Syntax{UID: "1.2.840.10008.1.2.1"}
	return Part10(syntax, true, img.Elements(binary.LittleEndian))
}

// Ramp returns samples counting up from start by step, wrapping at 16 bits.
func Ramp(n int, start, step float64) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(math.Mod(start+float64(i)*step, 65536))
	}
	return out
}
