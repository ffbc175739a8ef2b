package formparse

import "io"

// parseFormChunkSize is the read chunk size ParseForm uses, per spec §6.4.
const parseFormChunkSize = 1 << 20 // 1 MiB

// ParseForm is the one-shot convenience helper from spec §6.4: it reads r
// in chunks of up to 1 MiB, drives a FormParser built for contentType, and
// returns every field and file seen.
func ParseForm(contentType []byte, r io.Reader, opts Options) ([]*Field, []*File, error) {
	var fields []*Field
	var files []*File
	p, err := New(contentType, Callbacks{
		OnField: func(f *Field) { fields = append(fields, f) },
		OnFile:  func(f *File) { files = append(files, f) },
	}, opts)
	if err != nil {
		return nil, nil, err
	}

	buf := make([]byte, parseFormChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := p.Write(buf[:n], 0, n); werr != nil {
				return fields, files, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fields, files, rerr
		}
	}
	if err := p.Finalize(); err != nil {
		return fields, files, err
	}
	return fields, files, nil
}
