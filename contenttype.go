package formparse

import (
	"bytes"

	"github.com/go-formparse/formparse/options"
	"github.com/go-formparse/formparse/wire"
	"github.com/intuitivelabs/bytescase"
)

// ParseContentType parses a Content-Type header value into its main media
// type and parameters, validating that the main value has the
// "type/subtype" shape RFC 2045 requires. This layers a typed convenience
// over options.Parse the way the teacher layers ParseFLine over the
// generic ParseTokenLst.
func ParseContentType(value []byte) ([]byte, options.Params, error) {
	main, params := options.Parse(value)
	slash := bytes.IndexByte(main, '/')
	if slash <= 0 || slash == len(main)-1 {
		return nil, nil, wire.NewParseError(wire.ErrBadChar, 0)
	}
	return main, params, nil
}

var (
	ctMultipart   = []byte("multipart/form-data")
	ctURLEncoded  = []byte("application/x-www-form-urlencoded")
)

func isMultipart(main []byte) bool  { return bytescase.CmpEq(main, ctMultipart) }
func isURLEncoded(main []byte) bool { return bytescase.CmpEq(main, ctURLEncoded) }

func cteEquals(cte []byte, name string) bool {
	return bytescase.CmpEq(bytes.TrimSpace(cte), []byte(name))
}
