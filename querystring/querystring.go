// Package querystring implements the byte-level state machine for
// application/x-www-form-urlencoded bodies (spec §4.4): a '&'- (and
// optionally ';'-) separated sequence of "name[=value]" fields. No percent-
// decoding happens here; callers decode the raw bytes handed back.
package querystring

import "github.com/go-formparse/formparse/wire"

// Callbacks is the set of optional callbacks a Parser drives, in the order
// on_field_start, on_field_name (1+, or none for an empty name),
// on_field_data (0+), on_field_end, per field. Every (data, start, end) callback borrows a slice of the buffer
// passed to Write; it must not be retained past the call.
type Callbacks struct {
	OnFieldStart func()
	OnFieldName  func(data []byte, start, end int)
	OnFieldData  func(data []byte, start, end int)
	OnFieldEnd   func()
}

// internal states
const (
	sBeforeField uint8 = iota
	sFieldName
	sFieldData
	sEnd
)

// Parser is a resumable application/x-www-form-urlencoded state machine.
type Parser struct {
	cb     Callbacks
	strict bool
	maxSize int64 // <= 0 means unbounded
	total   int64

	state   uint8
	done    bool
	termErr error
}

// New returns a Parser. If strict is true, ';' is not accepted as a field
// separator and empty fields between separators are a hard error; if
// false, ';' behaves exactly like '&' and empty fields are silently
// skipped. maxSize <= 0 disables the size cap.
func New(cb Callbacks, strict bool, maxSize int64) *Parser {
	return &Parser{cb: cb, strict: strict, maxSize: maxSize}
}

func (p *Parser) fail(result wire.Result, offset int) error {
	p.done = true
	p.state = sEnd
	p.termErr = &wire.QuerystringParseError{ParseError: wire.ParseError{Result: result, Offset: offset}}
	return p.termErr
}

// Write consumes data[start:end], driving callbacks as fields and their
// names/values are recognized. It returns the number of bytes consumed
// (always end-start, unless a fatal error truncates consumption at the
// offending byte) and an error once the parser has become terminal through
// a fatal error. After a clean Finalize it consumes nothing and returns a
// nil error.
func (p *Parser) Write(data []byte, start, end int) (int, error) {
	if p.done {
		return 0, p.termErr
	}
	i := start
	segStart := start
	for i < end {
		c := data[i]
		sep := c == '&' || (!p.strict && c == ';')
		if p.strict && c == ';' {
			return i - start, p.fail(wire.ErrBadChar, i)
		}

		switch p.state {
		case sBeforeField:
			if sep {
				if p.strict {
					return i - start, p.fail(wire.ErrEmpty, i)
				}
				break
			}
			if p.cb.OnFieldStart != nil {
				p.cb.OnFieldStart()
			}
			p.state = sFieldName
			segStart = i
		case sFieldName:
			if c == '=' {
				if i > segStart && p.cb.OnFieldName != nil {
					p.cb.OnFieldName(data, segStart, i)
				}
				p.state = sFieldData
				segStart = i + 1
			} else if sep {
				if i > segStart && p.cb.OnFieldName != nil {
					p.cb.OnFieldName(data, segStart, i)
				}
				if p.cb.OnFieldEnd != nil {
					p.cb.OnFieldEnd()
				}
				p.state = sBeforeField
				segStart = i + 1
			}
		case sFieldData:
			if sep {
				if i > segStart && p.cb.OnFieldData != nil {
					p.cb.OnFieldData(data, segStart, i)
				}
				if p.cb.OnFieldEnd != nil {
					p.cb.OnFieldEnd()
				}
				p.state = sBeforeField
				segStart = i + 1
			}
		}
		i++

		if p.maxSize > 0 {
			p.total++
			if p.total > p.maxSize {
				return i - start, p.fail(wire.ErrTooLarge, i)
			}
		}
	}

	// flush whatever partial segment remains unterminated in this chunk;
	// the next Write call (or Finalize) continues from the same state.
	switch p.state {
	case sFieldName:
		if end > segStart && p.cb.OnFieldName != nil {
			p.cb.OnFieldName(data, segStart, end)
		}
	case sFieldData:
		if end > segStart && p.cb.OnFieldData != nil {
			p.cb.OnFieldData(data, segStart, end)
		}
	}
	return end - start, nil
}

// Finalize emits any pending on_field_end for a field left open at the end
// of input and marks the parser terminal. It is idempotent.
func (p *Parser) Finalize() error {
	if p.done {
		return nil
	}
	switch p.state {
	case sFieldName, sFieldData:
		if p.cb.OnFieldEnd != nil {
			p.cb.OnFieldEnd()
		}
	}
	p.done = true
	p.state = sEnd
	return nil
}
