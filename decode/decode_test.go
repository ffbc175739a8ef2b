package decode

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"testing"
)

func decodeAllChunks(t *testing.T, newWriter func(io.Writer) *Writer, chunks []string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	w := newWriter(&out)
	for _, c := range chunks {
		if _, err := w.Write([]byte(c), 0, len(c)); err != nil {
			return out.String(), err
		}
	}
	err := w.Finalize()
	return out.String(), err
}

func TestBase64RoundTrip(t *testing.T) {
	tests := []string{"", "f", "fo", "foo", "foob", "fooba", "foobar",
		"the quick brown fox jumps over the lazy dog"}
	for _, s := range tests {
		enc := base64.StdEncoding.EncodeToString([]byte(s))
		got, err := decodeAllChunks(t, NewBase64Writer, []string{enc})
		if err != nil {
			t.Fatalf("decode(%q): %v", enc, err)
		}
		if got != s {
			t.Errorf("decode(%q) = %q, expected %q", enc, got, s)
		}
	}
}

func TestBase64ChunkBoundary(t *testing.T) {
	s := "the quick brown fox jumps over the lazy dog, many times over"
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	for split := 0; split < len(enc); split++ {
		got, err := decodeAllChunks(t, NewBase64Writer, []string{enc[:split], enc[split:]})
		if err != nil {
			t.Fatalf("split %d: %v", split, err)
		}
		if got != s {
			t.Fatalf("split %d: got %q, expected %q", split, got, s)
		}
	}
}

func TestBase64WhitespaceTolerant(t *testing.T) {
	got, err := decodeAllChunks(t, NewBase64Writer, []string{"Zm9v \r\n YmFy"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "foobar" {
		t.Errorf("got %q", got)
	}
}

func TestBase64InvalidLength(t *testing.T) {
	_, err := decodeAllChunks(t, NewBase64Writer, []string{"Z"})
	if err == nil {
		t.Fatal("expected error for dangling base64 char")
	}
}

func TestBase64InvalidChar(t *testing.T) {
	_, err := decodeAllChunks(t, NewBase64Writer, []string{"Zm9v!"})
	if err == nil {
		t.Fatal("expected error for invalid base64 character")
	}
}

func TestQuotedPrintableRoundTrip(t *testing.T) {
	tests := []string{"", "hello", "hello=world", "line one\r\nline two",
		"café résumé naïve"}
	for _, s := range tests {
		var buf bytes.Buffer
		qpw := quotedprintable.NewWriter(&buf)
		if _, err := qpw.Write([]byte(s)); err != nil {
			t.Fatal(err)
		}
		if err := qpw.Close(); err != nil {
			t.Fatal(err)
		}
		got, err := decodeAllChunks(t, NewQuotedPrintableWriter, []string{buf.String()})
		if err != nil {
			t.Fatalf("decode(%q): %v", buf.String(), err)
		}
		if got != s {
			t.Errorf("decode(%q) = %q, expected %q", buf.String(), got, s)
		}
	}
}

func TestQuotedPrintableSoftBreak(t *testing.T) {
	got, err := decodeAllChunks(t, NewQuotedPrintableWriter, []string{"foo=\r\nbar"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "foobar" {
		t.Errorf("got %q", got)
	}
}

func TestQuotedPrintableChunkBoundary(t *testing.T) {
	in := "foo=3Dbar=\r\nbaz=20qux"
	for split := 0; split < len(in); split++ {
		got, err := decodeAllChunks(t, NewQuotedPrintableWriter, []string{in[:split], in[split:]})
		if err != nil {
			t.Fatalf("split %d: %v", split, err)
		}
		if got != "foo=barbaz qux" {
			t.Fatalf("split %d: got %q", split, got)
		}
	}
}

func TestQuotedPrintableDanglingEquals(t *testing.T) {
	_, err := decodeAllChunks(t, NewQuotedPrintableWriter, []string{"foo="})
	if err == nil {
		t.Fatal("expected error for dangling '='")
	}
}

func TestQuotedPrintableBadEscape(t *testing.T) {
	_, err := decodeAllChunks(t, NewQuotedPrintableWriter, []string{"foo=ZZ"})
	if err == nil {
		t.Fatal("expected error for bad escape")
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	var out bytes.Buffer
	w := NewBase64Writer(&out)
	if _, err := w.Write([]byte("Zm9v"), 0, 4); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("second finalize should be a no-op, got %v", err)
	}
	if out.String() != "foo" {
		t.Errorf("got %q", out.String())
	}
}
