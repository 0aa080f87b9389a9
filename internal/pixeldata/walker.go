package pixeldata

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const (
	undefinedLength = 0xFFFFFFFF
	preambleLen     = 128
	metaGroup       = 0x0002
	itemGroup       = 0xFFFE
)

type elementTag struct {
	group, element uint16
}

var (
	tagTransferSyntax = elementTag{0x0002, 0x0010}
	tagPixelData      = elementTag{0x7FE0, 0x0010}
	tagItem           = elementTag{itemGroup, 0xE000}
	tagItemDelim      = elementTag{itemGroup, 0xE00D}
	tagSequenceDelim  = elementTag{itemGroup, 0xE0DD}
)

// has32BitLength reports whether an explicit VR uses the reserved field and
// a 32-bit value length.
func has32BitLength(vr string) bool {
	switch vr {
	case "OB", "OD", "OF", "OL", "OV", "OW", "SQ", "SV", "UC", "UN", "UR", "UT", "UV":
		return true
	}
	return false
}

// pixelValue is the located Pixel Data element.
type pixelValue struct {
	syntax    string
	bigEndian bool

	// native holds the value field of a defined-length element.
	native []byte
	// fragments holds encapsulated fragments, basic offset table excluded.
	fragments [][]byte
}

func (p *pixelValue) encapsulated() bool {
	return p.native == nil
}

// joined returns the concatenation of all fragments.
func (p *pixelValue) joined() []byte {
	if len(p.fragments) == 1 {
		return p.fragments[0]
	}
	var n int
	for _, f := range p.fragments {
		n += len(f)
	}
	out := make([]byte, 0, n)
	for _, f := range p.fragments {
		out = append(out, f...)
	}
	return out
}

// walker reads data elements sequentially from a buffer.
type walker struct {
	buf      []byte
	pos      int
	order    binary.ByteOrder
	explicit bool
}

type element struct {
	tag    elementTag
	vr     string
	length uint32
	value  int // offset of the value field
}

func (w *walker) need(n int) error {
	if w.pos+n > len(w.buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrTruncated, n, w.pos, len(w.buf))
	}
	return nil
}

func (w *walker) readTag() (elementTag, error) {
	if err := w.need(4); err != nil {
		return elementTag{}, err
	}
	t := elementTag{w.order.Uint16(w.buf[w.pos:]), w.order.Uint16(w.buf[w.pos+2:])}
	w.pos += 4
	return t, nil
}

// next reads the header of the element at the current position and leaves
// the position at the start of its value field.
func (w *walker) next() (element, error) {
	t, err := w.readTag()
	if err != nil {
		return element{}, err
	}
	el := element{tag: t}

	// Item and delimitation tags carry no VR in any syntax.
	if t.group == itemGroup || !w.explicit {
		if err := w.need(4); err != nil {
			return element{}, err
		}
		el.length = w.order.Uint32(w.buf[w.pos:])
		w.pos += 4
		el.value = w.pos
		return el, nil
	}

	if err := w.need(2); err != nil {
		return element{}, err
	}
	el.vr = string(w.buf[w.pos : w.pos+2])
	w.pos += 2
	if has32BitLength(el.vr) {
		if err := w.need(6); err != nil {
			return element{}, err
		}
		el.length = w.order.Uint32(w.buf[w.pos+2:])
		w.pos += 6
	} else {
		if err := w.need(2); err != nil {
			return element{}, err
		}
		el.length = uint32(w.order.Uint16(w.buf[w.pos:]))
		w.pos += 2
	}
	el.value = w.pos
	return el, nil
}

// skipValue advances past the value of el, descending into undefined-length
// sequences.
func (w *walker) skipValue(el element) error {
	if el.length == undefinedLength {
		return w.skipSequence()
	}
	if err := w.need(int(el.length)); err != nil {
		return err
	}
	w.pos += int(el.length)
	return nil
}

// skipSequence consumes items up to and including the sequence delimiter.
func (w *walker) skipSequence() error {
	for {
		el, err := w.next()
		if err != nil {
			return err
		}
		switch el.tag {
		case tagSequenceDelim:
			return nil
		case tagItem:
			if el.length == undefinedLength {
				if err := w.skipItem(); err != nil {
					return err
				}
				continue
			}
			if err := w.need(int(el.length)); err != nil {
				return err
			}
			w.pos += int(el.length)
		default:
			return fmt.Errorf("%w: unexpected %04X,%04X inside sequence", ErrMalformed, el.tag.group, el.tag.element)
		}
	}
}

// skipItem consumes the elements of an undefined-length item up to and
// including its delimiter.
func (w *walker) skipItem() error {
	for {
		el, err := w.next()
		if err != nil {
			return err
		}
		if el.tag == tagItemDelim {
			return nil
		}
		if err := w.skipValue(el); err != nil {
			return err
		}
	}
}

// readFragments splits an encapsulated Pixel Data value into fragments.
func (w *walker) readFragments() ([][]byte, error) {
	var frags [][]byte
	first := true
	for {
		el, err := w.next()
		if err != nil {
			return nil, err
		}
		switch el.tag {
		case tagSequenceDelim:
			return frags, nil
		case tagItem:
			if el.length == undefinedLength {
				return nil, fmt.Errorf("%w: undefined-length fragment", ErrMalformed)
			}
			if err := w.need(int(el.length)); err != nil {
				return nil, err
			}
			data := w.buf[w.pos : w.pos+int(el.length)]
			w.pos += int(el.length)
			if first {
				// Basic offset table.
				first = false
				continue
			}
			frags = append(frags, data)
		default:
			return nil, fmt.Errorf("%w: unexpected %04X,%04X inside pixel data", ErrMalformed, el.tag.group, el.tag.element)
		}
	}
}

func trimValue(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

// hasPreamble reports whether buf starts with the Part 10 preamble and the
// DICM prefix.
func hasPreamble(buf []byte) bool {
	return len(buf) >= preambleLen+4 && string(buf[preambleLen:preambleLen+4]) == "DICM"
}

// locatePixelData walks buf to the Pixel Data element. fallbackSyntax is
// used when the buffer carries no file meta information.
func locatePixelData(buf []byte, fallbackSyntax string) (*pixelValue, error) {
	pos := 0
	if hasPreamble(buf) {
		pos = preambleLen + 4
	}

	// File meta information is always explicit VR little endian.
	syntax := ""
	meta := &walker{buf: buf, pos: pos, order: binary.LittleEndian, explicit: true}
	for meta.pos+4 <= len(buf) && binary.LittleEndian.Uint16(buf[meta.pos:]) == metaGroup {
		el, err := meta.next()
		if err != nil {
			return nil, err
		}
		if el.tag == tagTransferSyntax && el.length != undefinedLength {
			if err := meta.need(int(el.length)); err != nil {
				return nil, err
			}
			syntax = trimValue(buf[el.value : el.value+int(el.length)])
		}
		if err := meta.skipValue(el); err != nil {
			return nil, err
		}
	}
	if syntax == "" {
		syntax = fallbackSyntax
	}

	enc := datasetEncoding(syntax)
	body := buf[meta.pos:]
	if enc.deflated {
		inflated, err := io.ReadAll(flate.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("%w: inflate dataset: %v", ErrMalformed, err)
		}
		body = inflated
	}

	w := &walker{buf: body, order: binary.LittleEndian, explicit: enc.explicit}
	if enc.bigEndian {
		w.order = binary.BigEndian
	}

	for w.pos < len(body) {
		el, err := w.next()
		if err != nil {
			return nil, err
		}
		if el.tag != tagPixelData {
			if err := w.skipValue(el); err != nil {
				return nil, err
			}
			continue
		}

		pv := &pixelValue{syntax: syntax, bigEndian: enc.bigEndian}
		if el.length == undefinedLength {
			frags, err := w.readFragments()
			if err != nil {
				return nil, err
			}
			if len(frags) == 0 {
				return nil, fmt.Errorf("%w: no fragments", ErrNoPixelData)
			}
			pv.fragments = frags
			return pv, nil
		}
		if err := w.need(int(el.length)); err != nil {
			return nil, err
		}
		pv.native = body[el.value : el.value+int(el.length)]
		return pv, nil
	}
	return nil, ErrNoPixelData
}
