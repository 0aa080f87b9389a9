package pixeldata

// Transfer syntax UIDs handled by the adapter.
const (
	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"
	JPEGBaseline                   = "1.2.840.10008.1.2.4.50"
	JPEG2000Lossless               = "1.2.840.10008.1.2.4.90"
	JPEG2000                       = "1.2.840.10008.1.2.4.91"
	HTJ2KLossless                  = "1.2.840.10008.1.2.4.201"
	HTJ2KLosslessRPCL              = "1.2.840.10008.1.2.4.202"
	HTJ2K                          = "1.2.840.10008.1.2.4.203"
	RLELossless                    = "1.2.840.10008.1.2.5"
)

// Codec identifies how the pixel data of a transfer syntax is stored.
type Codec int

const (
	CodecNative Codec = iota
	CodecWavelet
	CodecRLE
	CodecJPEGBaseline
	CodecUnsupported
)

func (c Codec) String() string {
	switch c {
	case CodecNative:
		return "native"
	case CodecWavelet:
		return "wavelet"
	case CodecRLE:
		return "rle"
	case CodecJPEGBaseline:
		return "jpeg-baseline"
	default:
		return "unsupported"
	}
}

// Classify maps a transfer syntax UID to its codec. An empty UID is treated
// as implicit VR little endian.
func Classify(uid string) Codec {
	switch uid {
	case "", ImplicitVRLittleEndian, ExplicitVRLittleEndian, DeflatedExplicitVRLittleEndian, ExplicitVRBigEndian:
		return CodecNative
	case JPEG2000Lossless, JPEG2000, HTJ2KLossless, HTJ2KLosslessRPCL, HTJ2K:
		return CodecWavelet
	case RLELossless:
		return CodecRLE
	case JPEGBaseline:
		return CodecJPEGBaseline
	default:
		return CodecUnsupported
	}
}

// encoding describes how the dataset (not the pixel codec) is serialized.
type encoding struct {
	explicit  bool
	bigEndian bool
	deflated  bool
}

func datasetEncoding(uid string) encoding {
	switch uid {
	case ImplicitVRLittleEndian, "":
		return encoding{}
	case ExplicitVRBigEndian:
		return encoding{explicit: true, bigEndian: true}
	case DeflatedExplicitVRLittleEndian:
		return encoding{explicit: true, deflated: true}
	default:
		// Every other syntax, including the compressed ones, is explicit VR
		// little endian (PS3.5 A.4).
		return encoding{explicit: true}
	}
}
