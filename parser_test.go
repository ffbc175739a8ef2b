package formparse

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func TestFormParserQuerystring(t *testing.T) {
	var fields []*Field
	p, err := New([]byte("application/x-www-form-urlencoded"), Callbacks{
		OnField: func(f *Field) { fields = append(fields, f) },
	}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	body := []byte("foo=bar&baz=qux")
	if _, err := p.Write(body, 0, len(body)); err != nil {
		t.Fatal(err)
	}
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
	if len(fields) != 2 {
		t.Fatalf("got %d fields", len(fields))
	}
	if string(fields[0].Name()) != "foo" || string(fields[0].Bytes()) != "bar" {
		t.Errorf("field 0 = %q=%q", fields[0].Name(), fields[0].Bytes())
	}
	if string(fields[1].Name()) != "baz" || string(fields[1].Bytes()) != "qux" {
		t.Errorf("field 1 = %q=%q", fields[1].Name(), fields[1].Bytes())
	}
}

func TestFormParserMultipartFieldAndFile(t *testing.T) {
	body := "--AaB03x\r\n" +
		"Content-Disposition: form-data; name=\"field1\"\r\n\r\n" +
		"value1\r\n" +
		"--AaB03x\r\n" +
		"Content-Disposition: form-data; name=\"upload\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"hello world\r\n" +
		"--AaB03x--\r\n"

	var fields []*Field
	var files []*File
	p, err := New([]byte("multipart/form-data; boundary=AaB03x"), Callbacks{
		OnField: func(f *Field) { fields = append(fields, f) },
		OnFile:  func(f *File) { files = append(files, f) },
	}, Options{MaxMemoryFileSize: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b := []byte(body)
	if _, err := p.Write(b, 0, len(b)); err != nil {
		t.Fatal(err)
	}
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}

	if len(fields) != 1 || string(fields[0].Name()) != "field1" || string(fields[0].Bytes()) != "value1" {
		t.Fatalf("got fields %+v", fields)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files", len(files))
	}
	file := files[0]
	if string(file.Name()) != "upload" || file.Filename() != "a.txt" {
		t.Errorf("file name/filename = %q/%q", file.Name(), file.Filename())
	}
	if string(file.ContentType()) != "text/plain" {
		t.Errorf("content-type = %q", file.ContentType())
	}
	data, err := file.Bytes()
	if err != nil || string(data) != "hello world" {
		t.Errorf("file contents = %q, %v", data, err)
	}
	if file.Spilled() {
		t.Error("small file should not have spilled")
	}
}

func TestFormParserMultipartRandomChunking(t *testing.T) {
	body := "--AaB03x\r\n" +
		"Content-Disposition: form-data; name=\"field1\"\r\n\r\n" +
		"value1\r\n" +
		"--AaB03x\r\n" +
		"Content-Disposition: form-data; name=\"upload\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"hello world, this part is long enough to span several random chunks\r\n" +
		"--AaB03x--\r\n"

	for trial := 0; trial < 10; trial++ {
		var fields []*Field
		var files []*File
		p, err := New([]byte("multipart/form-data; boundary=AaB03x"), Callbacks{
			OnField: func(f *Field) { fields = append(fields, f) },
			OnFile:  func(f *File) { files = append(files, f) },
		}, Options{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		feedRandomChunks(t, []byte(body), 7, p.Write)
		if err := p.Finalize(); err != nil {
			t.Fatalf("trial %d: Finalize: %v", trial, err)
		}
		if len(fields) != 1 || string(fields[0].Bytes()) != "value1" {
			t.Fatalf("trial %d: got fields %+v", trial, fields)
		}
		if len(files) != 1 {
			t.Fatalf("trial %d: got %d files", trial, len(files))
		}
		data, err := files[0].Bytes()
		if err != nil || string(data) != "hello world, this part is long enough to span several random chunks" {
			t.Errorf("trial %d: file contents = %q, %v", trial, data, err)
		}
	}
}

func TestFormParserMultipartSpill(t *testing.T) {
	payload := strings.Repeat("x", 64)
	body := "--AaB03x\r\n" +
		"Content-Disposition: form-data; name=\"upload\"; filename=\"big.bin\"\r\n\r\n" +
		payload + "\r\n" +
		"--AaB03x--\r\n"

	var files []*File
	p, err := New([]byte("multipart/form-data; boundary=AaB03x"), Callbacks{
		OnFile: func(f *File) { files = append(files, f) },
	}, Options{MaxMemoryFileSize: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b := []byte(body)
	if _, err := p.Write(b, 0, len(b)); err != nil {
		t.Fatal(err)
	}
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files", len(files))
	}
	if !files[0].Spilled() {
		t.Fatal("expected file to spill past the 8-byte threshold")
	}
	data, err := files[0].Bytes()
	if err != nil || string(data) != payload {
		t.Errorf("spilled contents = %q (err %v), expected %q", data, err, payload)
	}
}

func TestFormParserMultipartBase64Part(t *testing.T) {
	plain := "the quick brown fox"
	encoded := base64.StdEncoding.EncodeToString([]byte(plain))
	body := "--AaB03x\r\n" +
		"Content-Disposition: form-data; name=\"upload\"; filename=\"a.bin\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n\r\n" +
		encoded + "\r\n" +
		"--AaB03x--\r\n"

	var files []*File
	p, err := New([]byte("multipart/form-data; boundary=AaB03x"), Callbacks{
		OnFile: func(f *File) { files = append(files, f) },
	}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b := []byte(body)
	if _, err := p.Write(b, 0, len(b)); err != nil {
		t.Fatal(err)
	}
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
	data, err := files[0].Bytes()
	if err != nil || string(data) != plain {
		t.Errorf("decoded contents = %q (err %v), expected %q", data, err, plain)
	}
}

func TestFormParserMissingBoundary(t *testing.T) {
	if _, err := New([]byte("multipart/form-data"), Callbacks{}, Options{}); err == nil {
		t.Fatal("expected error for missing boundary parameter")
	}
}

func TestFormParserUnknownContentTypeFallsBackToOctetStream(t *testing.T) {
	p, err := New([]byte("application/octet-stream"), Callbacks{}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Write([]byte("raw bytes"), 0, 9); err != nil {
		t.Fatal(err)
	}
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
}

func TestParseFormHelper(t *testing.T) {
	body := "a=1&b=2"
	fields, files, err := ParseForm([]byte("application/x-www-form-urlencoded"), bytes.NewReader([]byte(body)), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 || len(fields) != 2 {
		t.Fatalf("got %d fields, %d files", len(fields), len(files))
	}
}

func TestParseContentTypeRejectsMalformedMainValue(t *testing.T) {
	if _, _, err := ParseContentType([]byte("not-a-media-type")); err == nil {
		t.Fatal("expected error for a Content-Type with no '/'")
	}
}
