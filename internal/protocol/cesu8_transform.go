package protocol

import (
	"io"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// cesu8Decoder and cesu8Encoder adapt the CESU-8 primitives above to
// golang.org/x/text/transform.Transformer, so LOB streaming (lob.go) can
// drive chunk-boundary-safe CESU-8 conversion with transform.NewReader and
// transform.NewWriter instead of hand-rolled buffering.
type cesu8Decoder struct{ transform.NopResetter }
type cesu8Encoder struct{ transform.NopResetter }

func (cesu8Decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if !FullRune(src[nSrc:]) {
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
		}
		r, size := DecodeRune(src[nSrc:])
		if size == 0 {
			size = 1
		}
		if nDst+utf8.UTFMax > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc += size
	}
	return nDst, nSrc, nil
}

func (cesu8Encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if !utf8.FullRune(src[nSrc:]) {
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
		}
		r, size := utf8.DecodeRune(src[nSrc:])
		if nDst+CESUMax > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += EncodeRune(dst[nDst:], r)
		nSrc += size
	}
	return nDst, nSrc, nil
}

// NewDecodeReader wraps r, translating the CESU-8 wire bytes read from it
// into UTF-8 as they stream through.
func NewDecodeReader(r io.Reader) io.Reader {
	return transform.NewReader(r, cesu8Decoder{})
}

// NewEncodeWriter wraps w, translating UTF-8 text written to it into CESU-8
// wire bytes before forwarding to w.
func NewEncodeWriter(w io.Writer) io.WriteCloser {
	return transform.NewWriter(w, cesu8Encoder{})
}
