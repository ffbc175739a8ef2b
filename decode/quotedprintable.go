package decode

import (
	"golang.org/x/text/transform"

	"github.com/go-formparse/formparse/wire"
)

// QuotedPrintableDecoder incrementally decodes a quoted-printable byte
// stream. Like Base64Decoder it implements transform.Transformer and
// relies on transform.Writer to carry any undecided trailing bytes
// (an "=" that might start a soft line break or a hex escape) across
// chunk boundaries, by simply not consuming them until more input or EOF
// resolves the ambiguity.
type QuotedPrintableDecoder struct{}

// NewQuotedPrintableDecoder returns a fresh decoder. It carries no
// internal state of its own between Transform calls.
func NewQuotedPrintableDecoder() *QuotedPrintableDecoder {
	return &QuotedPrintableDecoder{}
}

// Reset implements transform.Transformer.
func (d *QuotedPrintableDecoder) Reset() {}

// Transform implements transform.Transformer.
func (d *QuotedPrintableDecoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c != '=' {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
			nSrc++
			continue
		}

		rem := len(src) - nSrc
		if rem < 3 {
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			if rem == 2 && src[nSrc+1] == '\n' {
				nSrc += 2 // bare LF soft break at end of input
				continue
			}
			return nDst, nSrc, wire.NewDecodeError("dangling '=' at end of input")
		}

		b1, b2 := src[nSrc+1], src[nSrc+2]
		switch {
		case b1 == '\r' && b2 == '\n':
			nSrc += 3 // CRLF soft break, emit nothing
		case b1 == '\n':
			nSrc += 2 // bare LF soft break
		case isHexDigit(b1) && isHexDigit(b2):
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = hexDigitVal(b1)<<4 | hexDigitVal(b2)
			nDst++
			nSrc += 3
		default:
			return nDst, nSrc, wire.NewDecodeError("invalid quoted-printable escape")
		}
	}
	return nDst, nSrc, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexDigitVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
