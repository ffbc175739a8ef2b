// Package multipart implements the byte-level streaming state machine for
// multipart/form-data bodies (spec §4.5): boundary detection, per-part
// header parsing, and part-body streaming, with a Boyer-Moore-Horspool
// skip table accelerating boundary scanning inside part bodies.
package multipart

import "github.com/go-formparse/formparse/wire"

// internal parser states, named after spec §4.5.1
const (
	sStart uint8 = iota
	sBoundary0
	sAfterBoundary
	sCloseBoundary
	sHeaderFieldStart
	sHeaderField
	sHeaderValueStart
	sHeaderValue
	sHeaderValueAlmostDone
	sHeadersAlmostDone
	sPartDataStart
	sPartData
	sPartDataEnd
	sEnd
)

// Callbacks is the set of optional callbacks a Parser drives, in the
// grammar order given by spec §4.5.4. Every (data, start, end) callback
// borrows a slice of the buffer passed to Write (or, during boundary
// candidate resolution, of the parser's own small scratch buffer); it must
// not be retained past the call.
type Callbacks struct {
	OnPartBegin       func()
	OnHeaderBegin     func()
	OnHeaderField     func(data []byte, start, end int)
	OnHeaderValue     func(data []byte, start, end int)
	OnHeaderEnd       func()
	OnHeadersFinished func()
	OnPartData        func(data []byte, start, end int)
	OnPartEnd         func()
	OnEnd             func()
}

// Parser is a resumable multipart/form-data state machine.
type Parser struct {
	cb      Callbacks
	marker0 []byte // "--" + boundary, matched once at the very start
	marker1 []byte // "\r\n--" + boundary, matched after every part body
	skip1   [256]int

	maxHeaderSize int64 // <= 0 means unbounded
	maxBodySize   int64 // <= 0 means unbounded
	totalBytes    int64

	state       uint8
	boundaryIdx int
	matchBuf    []byte // scratch for a candidate boundary match in progress, len <= len(marker1)
	afterSub    int    // sub-state for the 2-byte CRLF/"--" lookahead after a boundary
	closeSub    int    // sub-state for the optional trailing CRLF after the closing boundary
	hdrRunLen   int64  // bytes accumulated in the current header name/value run

	done    bool
	termErr error
}

// maxBoundaryLen is the spec's cap (§3) on a configured boundary's length.
const maxBoundaryLen = 70

// New constructs a Parser for the given boundary (without the leading
// "--"). maxBodySize <= 0 disables the total-size cap; maxHeaderSize <= 0
// disables the per-header scratch cap (a supplemental guard, see
// SPEC_FULL.md §7).
func New(boundary []byte, cb Callbacks, maxBodySize, maxHeaderSize int64) (*Parser, error) {
	if err := validateBoundary(boundary); err != nil {
		return nil, err
	}
	marker0 := append([]byte("--"), boundary...)
	marker1 := append([]byte("\r\n--"), boundary...)
	p := &Parser{
		cb:            cb,
		marker0:       marker0,
		marker1:       marker1,
		maxBodySize:   maxBodySize,
		maxHeaderSize: maxHeaderSize,
		matchBuf:      make([]byte, 0, len(marker1)),
	}
	p.skip1 = buildSkipTable(marker1)
	return p, nil
}

func validateBoundary(b []byte) error {
	if len(b) == 0 {
		return wire.NewMultipartParseError(wire.ErrBadBoundary, -1)
	}
	if len(b) > maxBoundaryLen {
		return wire.NewMultipartParseError(wire.ErrBadBoundary, -1)
	}
	for i, c := range b {
		allowed := isAlnum(c) || isBcharNoSpace(c) || (c == ' ' && i > 0 && i < len(b)-1)
		if !allowed {
			return wire.NewMultipartParseError(wire.ErrBadBoundary, i)
		}
	}
	return nil
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isBcharNoSpace(c byte) bool {
	switch c {
	case '\'', '(', ')', '+', '_', ',', '-', '.', '/', ':', '=', '?':
		return true
	}
	return false
}

// buildSkipTable constructs the Boyer-Moore-Horspool bad-character table
// for marker: for each possible byte, how far a scan may jump forward when
// that byte is found at the position aligned with the end of the current
// match window.
func buildSkipTable(marker []byte) [256]int {
	var t [256]int
	n := len(marker)
	for i := range t {
		t[i] = n
	}
	for i := 0; i < n-1; i++ {
		t[marker[i]] = n - 1 - i
	}
	return t
}

func isTokenChar(c byte) bool {
	if isAlnum(c) {
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func (p *Parser) fail(result wire.Result, offset int) error {
	p.done = true
	p.state = sEnd
	p.termErr = wire.NewMultipartParseError(result, offset)
	return p.termErr
}

// Write consumes data[start:end], driving callbacks as the grammar is
// recognized. It returns the number of bytes consumed and an error once
// the parser becomes terminal. On success it always consumes the full
// range.
func (p *Parser) Write(data []byte, start, end int) (int, error) {
	if p.done {
		if p.termErr == nil && end > start {
			// the closing boundary (and its optional CRLF) was already
			// seen, so any further byte is trailing garbage
			return 0, p.fail(wire.ErrTrailingGarbage, start)
		}
		return 0, p.termErr
	}
	if p.maxBodySize > 0 {
		p.totalBytes += int64(end - start)
		if p.totalBytes > p.maxBodySize {
			return 0, p.fail(wire.ErrTooLarge, start)
		}
	}

	i := start
	for i < end {
		switch p.state {
		case sStart:
			p.state = sBoundary0
			p.boundaryIdx = 0

		case sBoundary0:
			n, res := p.matchExact(p.marker0, data, i, end)
			i = n
			switch res {
			case wire.ErrMoreBytes:
				return end - start, nil
			case wire.ErrOk:
				p.state = sAfterBoundary
				p.afterSub = 0
			default:
				return i - start, p.fail(res, i)
			}

		case sAfterBoundary:
			n, res := p.matchAfterBoundary(data, i, end)
			i = n
			switch res {
			case wire.ErrMoreBytes:
				return end - start, nil
			case wire.ErrOk:
				if p.cb.OnPartBegin != nil {
					p.cb.OnPartBegin()
				}
				p.state = sHeaderFieldStart
			case wire.ErrEOF:
				p.state = sCloseBoundary
				p.closeSub = 0
			default:
				return i - start, p.fail(res, i)
			}

		case sCloseBoundary:
			n, res, waiting := p.matchCloseBoundary(data, i, end)
			i = n
			if waiting {
				return end - start, nil
			}
			if res.Fatal() {
				return i - start, p.fail(res, i)
			}
			if p.cb.OnEnd != nil {
				p.cb.OnEnd()
			}
			p.done = true
			p.state = sEnd

		case sHeaderFieldStart, sHeaderField, sHeaderValueStart, sHeaderValue,
			sHeaderValueAlmostDone, sHeadersAlmostDone:
			n, res, headersDone := p.stepHeaders(data, i, end)
			i = n
			if headersDone {
				continue
			}
			if res == wire.ErrMoreBytes {
				return end - start, nil
			}
			if res.Fatal() {
				return i - start, p.fail(res, i)
			}

		case sPartDataStart:
			p.state = sPartData
			p.boundaryIdx = 0
			p.matchBuf = p.matchBuf[:0]

		case sPartData, sPartDataEnd:
			n, res := p.stepPartData(data, i, end)
			i = n
			switch res {
			case wire.ErrMoreBytes:
				return end - start, nil
			case wire.ErrOk:
				p.state = sAfterBoundary
				p.afterSub = 0
			default:
				return i - start, p.fail(res, i)
			}

		case sEnd:
			return i - start, p.fail(wire.ErrTrailingGarbage, i)
		}
	}
	return end - start, nil
}

// matchExact matches marker from the current boundaryIdx progress,
// treating any mismatch as a hard error (used only for the initial
// boundary, which has no preceding part to flush data into).
func (p *Parser) matchExact(marker []byte, data []byte, i, end int) (int, wire.Result) {
	for i < end {
		if data[i] != marker[p.boundaryIdx] {
			return i, wire.ErrBadBoundary
		}
		p.boundaryIdx++
		i++
		if p.boundaryIdx == len(marker) {
			p.boundaryIdx = 0
			return i, wire.ErrOk
		}
	}
	return i, wire.ErrMoreBytes
}

// matchAfterBoundary resolves the two bytes following a matched boundary:
// CRLF (next part's headers begin) or "--" (final boundary).
func (p *Parser) matchAfterBoundary(data []byte, i, end int) (int, wire.Result) {
	for i < end {
		b := data[i]
		switch p.afterSub {
		case 0:
			switch b {
			case '\r':
				p.afterSub = 1
			case '-':
				p.afterSub = 2
			default:
				return i, wire.ErrBadBoundary
			}
			i++
		case 1:
			if b != '\n' {
				return i, wire.ErrBadBoundary
			}
			return i + 1, wire.ErrOk
		case 2:
			if b != '-' {
				return i, wire.ErrBadBoundary
			}
			return i + 1, wire.ErrEOF
		}
	}
	return i, wire.ErrMoreBytes
}

// matchCloseBoundary resolves the optional trailing CRLF after the final
// "--boundary--". waiting is true when the buffer ran out before the
// question could be resolved (valid: the CRLF is optional, so the caller
// may simply have no more bytes at all).
func (p *Parser) matchCloseBoundary(data []byte, i, end int) (int, wire.Result, bool) {
	for i < end {
		b := data[i]
		switch p.closeSub {
		case 0:
			if b != '\r' {
				return i, wire.ErrTrailingGarbage, false
			}
			p.closeSub = 1
			i++
		case 1:
			if b != '\n' {
				return i, wire.ErrTrailingGarbage, false
			}
			p.closeSub = 0
			return i + 1, wire.ErrOk, false
		}
	}
	return i, wire.ErrOk, true
}

// stepHeaders parses as many header-name/value runs as it can from
// data[i:end], flushing partial runs at the end of the buffer the same way
// querystring.Parser flushes partial fields. headersDone is true once the
// blank line ending the part's headers has been consumed, at which point
// the caller should continue its dispatch loop at the new state
// (sPartDataStart) without returning.
func (p *Parser) stepHeaders(data []byte, i, end int) (int, wire.Result, bool) {
	segStart := i
	for i < end {
		b := data[i]
		switch p.state {
		case sHeaderFieldStart:
			switch {
			case b == '\r':
				p.state = sHeadersAlmostDone
			case b == '\n':
				if p.cb.OnHeadersFinished != nil {
					p.cb.OnHeadersFinished()
				}
				p.state = sPartDataStart
				return i + 1, wire.ErrOk, true
			case isTokenChar(b):
				if p.cb.OnHeaderBegin != nil {
					p.cb.OnHeaderBegin()
				}
				p.state = sHeaderField
				segStart = i
				p.hdrRunLen = 0
			default:
				return i, wire.ErrBadChar, false
			}
		case sHeaderField:
			switch {
			case isTokenChar(b):
				// keep accumulating
			case b == ':':
				if i > segStart && p.cb.OnHeaderField != nil {
					p.cb.OnHeaderField(data, segStart, i)
				}
				p.state = sHeaderValueStart
			default:
				return i, wire.ErrBadChar, false
			}
		case sHeaderValueStart:
			switch {
			case b == ' ' || b == '\t':
				// leading whitespace, not part of the value
			case b == '\r':
				p.state = sHeaderValueAlmostDone
			case b == '\n':
				if p.cb.OnHeaderEnd != nil {
					p.cb.OnHeaderEnd()
				}
				p.state = sHeaderFieldStart
			default:
				p.state = sHeaderValue
				segStart = i
				p.hdrRunLen = 0
				continue // reprocess this byte as the first value byte
			}
		case sHeaderValue:
			switch b {
			case '\r':
				if i > segStart && p.cb.OnHeaderValue != nil {
					p.cb.OnHeaderValue(data, segStart, i)
				}
				p.state = sHeaderValueAlmostDone
			case '\n':
				if i > segStart && p.cb.OnHeaderValue != nil {
					p.cb.OnHeaderValue(data, segStart, i)
				}
				if p.cb.OnHeaderEnd != nil {
					p.cb.OnHeaderEnd()
				}
				p.state = sHeaderFieldStart
			default:
				// keep accumulating
			}
		case sHeaderValueAlmostDone:
			if b != '\n' {
				return i, wire.ErrBadChar, false
			}
			if p.cb.OnHeaderEnd != nil {
				p.cb.OnHeaderEnd()
			}
			p.state = sHeaderFieldStart
		case sHeadersAlmostDone:
			if b != '\n' {
				return i, wire.ErrBadChar, false
			}
			if p.cb.OnHeadersFinished != nil {
				p.cb.OnHeadersFinished()
			}
			p.state = sPartDataStart
			return i + 1, wire.ErrOk, true
		}
		i++
		if p.state == sHeaderField || p.state == sHeaderValue {
			p.hdrRunLen++
			if p.maxHeaderSize > 0 && p.hdrRunLen > p.maxHeaderSize {
				return i, wire.ErrHeaderTooLarge, false
			}
		}
	}
	switch p.state {
	case sHeaderField:
		if end > segStart && p.cb.OnHeaderField != nil {
			p.cb.OnHeaderField(data, segStart, end)
		}
	case sHeaderValue:
		if end > segStart && p.cb.OnHeaderValue != nil {
			p.cb.OnHeaderValue(data, segStart, end)
		}
	}
	return end, wire.ErrMoreBytes, false
}

// stepPartData scans for the next occurrence of marker1 ("\r\n--boundary")
// in data[i:end]. While not already mid-candidate (boundaryIdx == 0) it
// uses the Horspool skip table to jump over runs that cannot contain the
// marker, emitting all skipped bytes as a single on_part_data call; this is
// the performance requirement from spec §4.5.2. Once within marker-length
// bytes of the end of the buffer, or while resuming a candidate match
// begun in a previous Write call, it falls back to matching byte by byte,
// buffering candidate bytes in matchBuf and flushing them as part data in
// one call if the candidate turns out not to be the boundary.
func (p *Parser) stepPartData(data []byte, i, end int) (int, wire.Result) {
	marker := p.marker1
	n := len(marker)

	if p.boundaryIdx == 0 {
		flushStart := i
		for i+n <= end {
			j := n - 1
			for j >= 0 && data[i+j] == marker[j] {
				j--
			}
			if j < 0 {
				if i > flushStart && p.cb.OnPartData != nil {
					p.cb.OnPartData(data, flushStart, i)
				}
				if p.cb.OnPartEnd != nil {
					p.cb.OnPartEnd()
				}
				return i + n, wire.ErrOk
			}
			i += p.skip1[data[i+n-1]]
		}
		if i > flushStart && p.cb.OnPartData != nil {
			p.cb.OnPartData(data, flushStart, i)
		}
	}

	for i < end {
		b := data[i]
		if b == marker[p.boundaryIdx] {
			p.matchBuf = append(p.matchBuf, b)
			p.boundaryIdx++
			i++
			if p.boundaryIdx == n {
				if p.cb.OnPartEnd != nil {
					p.cb.OnPartEnd()
				}
				p.matchBuf = p.matchBuf[:0]
				p.boundaryIdx = 0
				p.state = sPartData
				return i, wire.ErrOk
			}
			p.state = sPartDataEnd
			continue
		}
		if len(p.matchBuf) > 0 {
			if p.cb.OnPartData != nil {
				p.cb.OnPartData(p.matchBuf, 0, len(p.matchBuf))
			}
			p.matchBuf = p.matchBuf[:0]
		}
		p.boundaryIdx = 0
		if b == marker[0] {
			p.matchBuf = append(p.matchBuf, b)
			p.boundaryIdx = 1
			p.state = sPartDataEnd
			i++
			continue
		}
		p.state = sPartData
		runStart := i
		i++
		for i < end && data[i] != marker[0] {
			i++
		}
		if p.cb.OnPartData != nil {
			p.cb.OnPartData(data, runStart, i)
		}
	}
	return i, wire.ErrMoreBytes
}

// Finalize signals end of input. A clean finish (the closing boundary, and
// optionally its trailing CRLF, already seen) fires on_end if it has not
// fired yet and is always safe to call more than once. Ending mid-grammar
// is an error.
func (p *Parser) Finalize() error {
	if p.done {
		return nil
	}
	switch p.state {
	case sCloseBoundary:
		if p.closeSub == 1 {
			// saw the closing boundary's trailing CR but stream ended
			// before the LF that must follow it
			return p.fail(wire.ErrTrailingGarbage, -1)
		}
		if p.cb.OnEnd != nil {
			p.cb.OnEnd()
		}
		p.done = true
		p.state = sEnd
		return nil
	default:
		p.done = true
		p.state = sEnd
		p.termErr = wire.NewMultipartParseError(wire.ErrMoreBytes, -1)
		return p.termErr
	}
}
