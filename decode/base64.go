package decode

import (
	"encoding/base64"

	"golang.org/x/text/transform"

	"github.com/go-formparse/formparse/wire"
)

// Base64Decoder incrementally decodes a base64 byte stream. It implements
// transform.Transformer so it can be driven through transform.NewWriter.
// Every base64 character of src is consumed; the 0-3 characters of a
// trailing partial group are carried in the decoder's own quad buffer and
// completed by the next chunk (or padded and decoded at EOF). Whitespace
// is skipped, not carried.
type Base64Decoder struct {
	quad [4]byte
	n    int
}

// NewBase64Decoder returns a fresh, empty decoder.
func NewBase64Decoder() *Base64Decoder {
	return &Base64Decoder{}
}

// Reset implements transform.Transformer.
func (d *Base64Decoder) Reset() {
	d.n = 0
}

func isBase64Char(c byte) bool {
	return c == '=' || c == '+' || c == '/' ||
		(c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isB64Space(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// Transform implements transform.Transformer.
func (d *Base64Decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if isB64Space(c) {
			nSrc++
			continue
		}
		if !isBase64Char(c) {
			return nDst, nSrc, wire.NewDecodeError("invalid base64 character")
		}
		if len(dst)-nDst < 3 {
			return nDst, nSrc, transform.ErrShortDst
		}
		d.quad[d.n] = c
		d.n++
		nSrc++
		if d.n == 4 {
			n, derr := decodeQuad(d.quad, dst[nDst:])
			if derr != nil {
				return nDst, nSrc, derr
			}
			nDst += n
			d.n = 0
		}
	}
	if atEOF && d.n > 0 {
		if d.n == 1 {
			return nDst, nSrc, wire.NewDecodeError("invalid base64 length: dangling character")
		}
		if len(dst)-nDst < 3 {
			return nDst, nSrc, transform.ErrShortDst
		}
		padded := d.quad
		for i := d.n; i < 4; i++ {
			padded[i] = '='
		}
		n, derr := decodeQuad(padded, dst[nDst:])
		if derr != nil {
			return nDst, nSrc, derr
		}
		nDst += n
		d.n = 0
	}
	return nDst, nSrc, nil
}

func decodeQuad(quad [4]byte, dst []byte) (int, error) {
	var buf [3]byte
	n, err := base64.StdEncoding.Decode(buf[:], quad[:])
	if err != nil {
		return 0, wire.NewDecodeError("invalid base64 group: " + err.Error())
	}
	copy(dst, buf[:n])
	return n, nil
}
