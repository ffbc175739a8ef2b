// Package formparse selects and drives a streaming parser for an HTTP
// request body based on its Content-Type, accumulating completed fields
// and files the way a real server-side form handler needs them (spec
// §4.6). The underlying byte-level grammars live in the options, decode,
// octetstream, querystring and multipart subpackages; this package is the
// orchestrator spec.md places "only at its interface to the core".
package formparse

import (
	"strings"

	"github.com/go-formparse/formparse/decode"
	"github.com/go-formparse/formparse/multipart"
	"github.com/go-formparse/formparse/octetstream"
	"github.com/go-formparse/formparse/options"
	"github.com/go-formparse/formparse/querystring"
	"github.com/go-formparse/formparse/wire"
)

// Options configures a FormParser (spec §6.3).
type Options struct {
	// UploadDir is the directory spilled temp files are created in; the
	// empty string means the system default (os.TempDir).
	UploadDir string
	// UploadKeepExtensions keeps the client-supplied filename's extension
	// when naming a spilled temp file.
	UploadKeepExtensions bool
	// UploadErrorOnBadCTE makes an unrecognized Content-Transfer-Encoding
	// a hard error instead of passing the part through undecoded.
	UploadErrorOnBadCTE bool
	// MaxMemoryFileSize is the threshold, in bytes, at which a File's
	// in-memory buffer spills to a temp file. <= 0 disables spilling
	// (files are always held in memory).
	MaxMemoryFileSize int64
	// MaxBodySize is a hard cap on total body bytes across the whole
	// parse. <= 0 disables the cap.
	MaxBodySize int64
	// MaxHeaderSize bounds a multipart part's header name/value scratch
	// growth. <= 0 disables the cap.
	MaxHeaderSize int64
	// StrictQuerystring rejects ';' field separators and empty segments
	// in an application/x-www-form-urlencoded body instead of tolerating
	// them the way most browsers' servers do.
	StrictQuerystring bool
}

// Callbacks receives completed fields and files as the body is parsed.
type Callbacks struct {
	OnField func(*Field)
	OnFile  func(*File)
}

// sinkWriter is the borrowed-slice write shape shared by fileSink and
// decode.Writer, letting a part's body flow through an optional decoder
// wrapper into its sink without an io.Writer adapter.
type sinkWriter interface {
	Write(data []byte, start, end int) (int, error)
}

type formKind uint8

const (
	kindMultipart formKind = iota
	kindQuerystring
	kindOctetStream
)

// FormParser is the Content-Type-driven orchestrator: construct one with
// New, feed it body bytes with Write, and call Finalize once the body is
// exhausted.
type FormParser struct {
	opts Options
	cb   Callbacks
	kind formKind

	mp *multipart.Parser
	qp *querystring.Parser
	op *octetstream.Parser

	err error

	// multipart per-part scratch
	curFile   *File
	curHdrs   map[string]string
	hdrName   strings.Builder
	hdrValue  strings.Builder
	curWriter sinkWriter

	// querystring per-field scratch
	curField *Field
}

// New constructs a FormParser for a request whose Content-Type header
// value is contentType (spec §4.6: dispatch by the main value of
// Content-Type). For multipart/form-data the boundary parameter is
// required; its absence is an error.
func New(contentType []byte, cb Callbacks, opts Options) (*FormParser, error) {
	main, params, err := ParseContentType(contentType)
	if err != nil {
		return nil, err
	}
	p := &FormParser{opts: opts, cb: cb}
	switch {
	case isMultipart(main):
		boundary, ok := params["boundary"]
		if !ok || len(boundary) == 0 {
			return nil, wire.NewMultipartParseError(wire.ErrBadBoundary, -1)
		}
		p.kind = kindMultipart
		mp, err := multipart.New(boundary, p.multipartCallbacks(), opts.MaxBodySize, opts.MaxHeaderSize)
		if err != nil {
			return nil, err
		}
		p.mp = mp
	case isURLEncoded(main):
		p.kind = kindQuerystring
		p.qp = querystring.New(p.querystringCallbacks(), opts.StrictQuerystring, opts.MaxBodySize)
	default:
		p.kind = kindOctetStream
		p.op = octetstream.New(octetstream.Callbacks{}, opts.MaxBodySize)
	}
	return p, nil
}

// Write feeds data[start:end] to the underlying parser, invoking
// Callbacks synchronously as fields and files complete.
func (p *FormParser) Write(data []byte, start, end int) (int, error) {
	var n int
	var err error
	switch p.kind {
	case kindMultipart:
		n, err = p.mp.Write(data, start, end)
	case kindQuerystring:
		n, err = p.qp.Write(data, start, end)
	default:
		n, err = p.op.Write(data, start, end)
	}
	if err != nil {
		return n, err
	}
	if p.err != nil {
		return n, p.err
	}
	return n, nil
}

// Finalize signals end of input.
func (p *FormParser) Finalize() error {
	var err error
	switch p.kind {
	case kindMultipart:
		err = p.mp.Finalize()
	case kindQuerystring:
		err = p.qp.Finalize()
	default:
		err = p.op.Finalize()
	}
	if err != nil {
		return err
	}
	return p.err
}

func (p *FormParser) querystringCallbacks() querystring.Callbacks {
	return querystring.Callbacks{
		OnFieldStart: func() {
			p.curField = &Field{}
		},
		OnFieldName: func(data []byte, start, end int) {
			p.curField.name = append(p.curField.name, data[start:end]...)
		},
		OnFieldData: func(data []byte, start, end int) {
			p.curField.value.Write(data[start:end])
		},
		OnFieldEnd: func() {
			if p.cb.OnField != nil {
				p.cb.OnField(p.curField)
			}
			p.curField = nil
		},
	}
}

func (p *FormParser) multipartCallbacks() multipart.Callbacks {
	return multipart.Callbacks{
		OnPartBegin:       p.onPartBegin,
		OnHeaderBegin:     p.onHeaderBegin,
		OnHeaderField:     p.onHeaderField,
		OnHeaderValue:     p.onHeaderValue,
		OnHeaderEnd:       p.onHeaderEnd,
		OnHeadersFinished: p.onHeadersFinished,
		OnPartData:        p.onPartData,
		OnPartEnd:         p.onPartEnd,
	}
}

func (p *FormParser) onPartBegin() {
	p.curHdrs = make(map[string]string, 4)
	p.curFile = &File{}
}

func (p *FormParser) onHeaderBegin() {
	p.hdrName.Reset()
	p.hdrValue.Reset()
}

func (p *FormParser) onHeaderField(data []byte, start, end int) {
	p.hdrName.Write(data[start:end])
}

func (p *FormParser) onHeaderValue(data []byte, start, end int) {
	p.hdrValue.Write(data[start:end])
}

func (p *FormParser) onHeaderEnd() {
	p.curHdrs[strings.ToLower(p.hdrName.String())] = p.hdrValue.String()
}

func (p *FormParser) onHeadersFinished() {
	if cd, ok := p.curHdrs["content-disposition"]; ok {
		_, params := options.Parse([]byte(cd))
		p.curFile.params = params
		if name, ok := params["name"]; ok {
			p.curFile.fieldName = name
		}
		if filename, ok := params["filename"]; ok {
			p.curFile.fileName = filename
		}
	}
	if ct, ok := p.curHdrs["content-type"]; ok {
		p.curFile.contentType = []byte(strings.TrimSpace(ct))
	}

	p.curFile.sink = newFileSink(p.opts.UploadDir, p.opts.UploadKeepExtensions,
		string(p.curFile.fileName), p.opts.MaxMemoryFileSize)

	cte := []byte(p.curHdrs["content-transfer-encoding"])
	switch {
	case len(cte) == 0, cteEquals(cte, "identity"), cteEquals(cte, "7bit"),
		cteEquals(cte, "8bit"), cteEquals(cte, "binary"):
		p.curWriter = p.curFile.sink
	case cteEquals(cte, "base64"):
		p.curWriter = decode.NewBase64Writer(p.curFile.sink.ioWriter())
	case cteEquals(cte, "quoted-printable"):
		p.curWriter = decode.NewQuotedPrintableWriter(p.curFile.sink.ioWriter())
	default:
		if p.opts.UploadErrorOnBadCTE {
			p.err = wire.NewDecodeError("unrecognized Content-Transfer-Encoding: " + string(cte))
			return
		}
		p.curWriter = p.curFile.sink
	}
}

func (p *FormParser) onPartData(data []byte, start, end int) {
	if p.err != nil {
		return
	}
	if _, err := p.curWriter.Write(data, start, end); err != nil {
		p.err = err
	}
}

func (p *FormParser) onPartEnd() {
	if p.err != nil {
		return
	}
	if dw, ok := p.curWriter.(*decode.Writer); ok {
		if err := dw.Finalize(); err != nil {
			p.err = err
			return
		}
	}
	if err := p.curFile.sink.Close(); err != nil {
		p.err = err
		return
	}
	if _, hasFilename := p.curFile.params["filename"]; !hasFilename {
		// a part without a filename parameter is a plain form field
		data, err := p.curFile.Bytes()
		if err != nil {
			p.err = err
			return
		}
		field := &Field{name: p.curFile.fieldName}
		field.value.Write(data)
		if p.cb.OnField != nil {
			p.cb.OnField(field)
		}
		p.curFile = nil
		return
	}
	if p.cb.OnFile != nil {
		p.cb.OnFile(p.curFile)
	}
	p.curFile = nil
}
