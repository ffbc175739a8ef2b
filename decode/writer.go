package decode

import (
	"io"

	"golang.org/x/text/transform"

	"github.com/go-formparse/formparse/wire"
)

// Writer wraps a downstream io.Writer sink with an incremental transfer-
// encoding decoder (base64 or quoted-printable), exposing the write/
// finalize shape spec'd for decoder wrappers (§4.2): Write feeds raw,
// still-encoded bytes in; Finalize flushes any trailing decoded bytes and
// is safe to call more than once.
type Writer struct {
	tw       *transform.Writer
	finalled bool
}

// NewBase64Writer decodes base64 and streams the decoded bytes to sink.
func NewBase64Writer(sink io.Writer) *Writer {
	return &Writer{tw: transform.NewWriter(sink, NewBase64Decoder())}
}

// NewQuotedPrintableWriter decodes quoted-printable and streams the
// decoded bytes to sink.
func NewQuotedPrintableWriter(sink io.Writer) *Writer {
	return &Writer{tw: transform.NewWriter(sink, NewQuotedPrintableDecoder())}
}

// Write decodes data[start:end] and forwards the decoded bytes to sink.
func (w *Writer) Write(data []byte, start, end int) (int, error) {
	n, err := w.tw.Write(data[start:end])
	if err != nil {
		return n, asDecodeError(err)
	}
	return n, nil
}

// Finalize flushes any trailing decoded bytes. It is idempotent: calling
// it again after a successful Finalize is a no-op.
func (w *Writer) Finalize() error {
	if w.finalled {
		return nil
	}
	w.finalled = true
	if err := w.tw.Close(); err != nil {
		return asDecodeError(err)
	}
	return nil
}

func asDecodeError(err error) error {
	if _, ok := err.(*wire.DecodeError); ok {
		return err
	}
	return wire.NewDecodeError(err.Error())
}
