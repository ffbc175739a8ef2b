package formparse

import "bytes"

// Field is a completed application/x-www-form-urlencoded or
// multipart/form-data text field (spec §3). Name and value are the raw
// bytes the parser saw: no percent-decoding or charset transcoding is
// performed anywhere in this module (spec.md §1 Non-goals).
type Field struct {
	name  []byte
	value bytes.Buffer
}

// Name returns the field's name.
func (f *Field) Name() []byte { return f.name }

// Bytes returns the field's accumulated value.
func (f *Field) Bytes() []byte { return f.value.Bytes() }
