// Package pixeldata turns the raw byte buffer of one DICOM instance into a
// typed sample frame.
//
// # Pipeline
//
// Decoding an instance buffer runs these steps:
//
//  1. Header confirmation: for a Part 10 buffer (preamble and DICM
//     prefix) the buffer's own Rows, Columns, Pixel Representation, Bits
//     Allocated/Stored, rescale and window attributes are read and take
//     precedence over the instance metadata. A bare dataset is not parsed
//     here; the instance metadata describes it and its TransferSyntax
//     drives the walker.
//  2. Pixel Data location: a lightweight element walker finds the Pixel
//     Data element for implicit VR little endian, explicit VR little and
//     big endian, and deflated datasets. Encapsulated values are split into
//     fragments with the basic offset table dropped.
//  3. Codec: native values are sliced and reinterpreted as signed or
//     unsigned 16-bit samples. RLE Lossless and JPEG Baseline are decoded
//     in-process. The wavelet family (JPEG 2000, HTJ2K) is delegated to an
//     injected WaveletDecoder after the codestream start marker has been
//     located. Codecs adapts go-dicom-codec codecs to that interface.
//
// # Endian Heuristic
//
// Some wavelet decoders hand back 16-bit output in the wrong byte order.
// After decoding, a sparse subset of words is sampled; when every sample is
// below the swap threshold although more than 8 bits are stored, and the
// byte-swapped samples are both above the threshold and representable in
// Bits Stored, the whole buffer is swapped. Otherwise the buffer is trusted.
//
// # Errors
//
// Failures are reported as *DecodeError wrapping one of the sentinel
// reasons (ErrNoPixelData, ErrTruncated, ...). A missing codestream marker
// is not an error: decoding falls back to offset 0 and logs a warning.
package pixeldata
