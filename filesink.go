package formparse

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// fileSink is the in-memory/on-disk sum type backing a File's write side
// (spec §3: "a write sink that is either an in-memory buffer or a temp
// file opened lazily once the in-memory buffer exceeds a threshold").
// Spill happens at most once.
type fileSink struct {
	dir          string
	keepExt      bool
	origFilename string
	maxMemory    int64 // <= 0 means never spill

	buf      bytes.Buffer
	file     *os.File
	filePath string
	spilled  bool
	size     int64
}

func newFileSink(dir string, keepExt bool, origFilename string, maxMemory int64) *fileSink {
	return &fileSink{dir: dir, keepExt: keepExt, origFilename: origFilename, maxMemory: maxMemory}
}

// Write consumes data[start:end], transparently spilling to disk the first
// time the in-memory buffer would exceed maxMemory. It matches the
// (data, start, end) borrowed-slice shape every other writer in this
// module uses, rather than the stdlib io.Writer shape.
func (s *fileSink) Write(data []byte, start, end int) (int, error) {
	p := data[start:end]
	if s.file != nil {
		n, err := s.file.Write(p)
		s.size += int64(n)
		if err != nil {
			return n, errors.Wrap(err, "write spill file")
		}
		return n, nil
	}
	if s.maxMemory > 0 && int64(s.buf.Len())+int64(len(p)) > s.maxMemory {
		if err := s.spill(); err != nil {
			return 0, err
		}
		return s.Write(data, start, end)
	}
	n, _ := s.buf.Write(p)
	s.size += int64(n)
	return n, nil
}

func (s *fileSink) spill() error {
	pattern := "formparse-*"
	if s.keepExt {
		pattern = "formparse-*" + filepath.Ext(s.origFilename)
	}
	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return errors.Wrap(err, "create spill file")
	}
	if _, err := f.Write(s.buf.Bytes()); err != nil {
		f.Close()
		return errors.Wrap(err, "copy buffered data to spill file")
	}
	s.buf.Reset()
	s.file = f
	s.filePath = f.Name()
	s.spilled = true
	return nil
}

// Close flushes and releases the spill file, if any. It is a no-op for a
// sink that never spilled.
func (s *fileSink) Close() error {
	if s.file == nil {
		return nil
	}
	return errors.Wrap(s.file.Close(), "close spill file")
}

// ioWriter adapts the sink to the stdlib io.Writer shape that
// golang.org/x/text/transform.NewWriter requires on its downstream side,
// bridging it to decode.Writer's base64/quoted-printable decoders, which
// sit between the module's own (data, start, end) borrowed-slice writers.
func (s *fileSink) ioWriter() io.Writer { return fileSinkIOWriter{s} }

type fileSinkIOWriter struct{ sink *fileSink }

func (w fileSinkIOWriter) Write(p []byte) (int, error) {
	return w.sink.Write(p, 0, len(p))
}

// File is a completed multipart/form-data file part (spec §3): the
// Content-Disposition name/filename, the declared Content-Type, any other
// disposition parameters, and a sink holding the (possibly
// transfer-decoded) body.
type File struct {
	fieldName   []byte
	fileName    []byte
	contentType []byte
	params      map[string][]byte
	sink        *fileSink
}

// Name returns the form field name from Content-Disposition's "name" param.
func (f *File) Name() []byte { return f.fieldName }

// Filename returns the client-supplied filename, or "" if none was sent.
func (f *File) Filename() string { return string(f.fileName) }

// ContentType returns the part's declared Content-Type, or nil if absent.
func (f *File) ContentType() []byte { return f.contentType }

// Params returns the full set of Content-Disposition parameters.
func (f *File) Params() map[string][]byte { return f.params }

// Size returns the number of (post-decoding) bytes written to the sink.
func (f *File) Size() int64 { return f.sink.size }

// Spilled reports whether the file's content was written to a temp file
// on disk rather than kept in memory.
func (f *File) Spilled() bool { return f.sink.spilled }

// Path returns the temp file path, or "" if the file never spilled.
func (f *File) Path() string { return f.sink.filePath }

// Bytes returns the file's full content. For a spilled file this reads the
// temp file back from disk.
func (f *File) Bytes() ([]byte, error) {
	if f.sink.spilled {
		data, err := os.ReadFile(f.sink.filePath)
		if err != nil {
			return nil, errors.Wrap(err, "read spill file")
		}
		return data, nil
	}
	return append([]byte(nil), f.sink.buf.Bytes()...), nil
}
