// Package octetstream implements the trivial pass-through parser used for
// application/octet-stream-style bodies and as the FormParser fallback for
// any Content-Type it does not otherwise recognize.
package octetstream

import "github.com/go-formparse/formparse/wire"

// Callbacks is the set of optional callbacks a Parser drives. A nil
// callback is simply skipped.
type Callbacks struct {
	// OnData is called with a borrowed reference to data[start:end] for
	// every chunk written. It must not retain the slice past the call.
	OnData func(data []byte, start, end int)
	OnEnd  func()
}

// Parser forwards every byte it is given straight to OnData, enforcing an
// optional MaxSize cap on the total number of bytes seen.
type Parser struct {
	cb      Callbacks
	maxSize int64 // <= 0 means unbounded
	total   int64
	done    bool
	termErr error // the error that made the parser terminal, if any
}

// New returns a Parser that invokes cb for every write and errors once more
// than maxSize bytes have been seen (maxSize <= 0 disables the cap).
func New(cb Callbacks, maxSize int64) *Parser {
	return &Parser{cb: cb, maxSize: maxSize}
}

// Write forwards data[start:end] to the OnData callback. It returns the
// number of bytes consumed (always end-start on success) and an error if
// the size cap was exceeded, by this call or an earlier one. After a clean
// Finalize it consumes nothing and returns a nil error.
func (p *Parser) Write(data []byte, start, end int) (int, error) {
	if p.done {
		return 0, p.termErr
	}
	n := end - start
	if p.maxSize > 0 {
		if p.total+int64(n) > p.maxSize {
			p.done = true
			p.termErr = wire.NewParseError(wire.ErrTooLarge, 0)
			return 0, p.termErr
		}
	}
	p.total += int64(n)
	if p.cb.OnData != nil && n > 0 {
		p.cb.OnData(data, start, end)
	}
	return n, nil
}

// Finalize marks the stream complete and invokes OnEnd. It is idempotent.
func (p *Parser) Finalize() error {
	if p.done {
		return nil
	}
	p.done = true
	if p.cb.OnEnd != nil {
		p.cb.OnEnd()
	}
	return nil
}
