package buffer

import (
	"bytes"
	"io"
	"testing"
)

func TestBuffer_LenAndBytes(t *testing.T) {
	b := New([]byte("hello"))
	if b.Len() != 5 {
		t.Fatalf("got Len %d, want 5", b.Len())
	}
	if string(b.Bytes()) != "hello" {
		t.Fatalf("got Bytes %q, want %q", b.Bytes(), "hello")
	}
}

func TestBuffer_EmptyInputIsZeroValue(t *testing.T) {
	b := New(nil)
	if b.Len() != 0 || len(b.Bytes()) != 0 {
		t.Fatalf("expected an empty buffer, got len %d", b.Len())
	}
}

func TestBuffer_FromSegmentsConcatenates(t *testing.T) {
	b := FromSegments([]byte("foo"), []byte("bar"), []byte("baz"))
	if b.Len() != 9 {
		t.Fatalf("got Len %d, want 9", b.Len())
	}
	if string(b.Bytes()) != "foobarbaz" {
		t.Fatalf("got Bytes %q, want %q", b.Bytes(), "foobarbaz")
	}
}

func TestBuffer_FromSegmentsSkipsEmpty(t *testing.T) {
	b := FromSegments([]byte("foo"), nil, []byte("bar"))
	if len(b.Segments()) != 2 {
		t.Fatalf("expected empty segments to be skipped, got %d segments", len(b.Segments()))
	}
}

func TestBuffer_AdvanceAcrossSegmentBoundary(t *testing.T) {
	b := FromSegments([]byte("foo"), []byte("bar"))
	adv := b.Advance(4)
	if string(adv.Bytes()) != "ar" {
		t.Fatalf("got %q, want %q", adv.Bytes(), "ar")
	}
}

func TestBuffer_AdvancePastEndIsEmpty(t *testing.T) {
	b := New([]byte("hello"))
	if got := b.Advance(100); got.Len() != 0 {
		t.Fatalf("expected advancing past the end to empty the buffer, got len %d", got.Len())
	}
}

func TestBuffer_Slice(t *testing.T) {
	b := FromSegments([]byte("foo"), []byte("bar"), []byte("baz"))
	s := b.Slice(2, 7)
	if string(s.Bytes()) != "obarb" {
		t.Fatalf("got %q, want %q", s.Bytes(), "obarb")
	}
}

func TestBuffer_SliceOutOfBoundsIsEmpty(t *testing.T) {
	b := New([]byte("hello"))
	if got := b.Slice(-1, 3); got.Len() != 0 {
		t.Fatalf("negative start should yield an empty buffer, got len %d", got.Len())
	}
	if got := b.Slice(0, 100); got.Len() != 0 {
		t.Fatalf("end beyond length should yield an empty buffer, got len %d", got.Len())
	}
}

func TestBuffer_Truncate(t *testing.T) {
	b := FromSegments([]byte("foo"), []byte("bar"))
	tr := b.Truncate(4)
	if string(tr.Bytes()) != "foob" {
		t.Fatalf("got %q, want %q", tr.Bytes(), "foob")
	}
}

func TestBuffer_CloneSharesBytesNotSlices(t *testing.T) {
	b := New([]byte("hello"))
	clone := b.Clone()
	if !bytes.Equal(b.Bytes(), clone.Bytes()) {
		t.Fatalf("clone should have identical contents")
	}
	if clone.Len() != b.Len() {
		t.Fatalf("clone length mismatch: got %d, want %d", clone.Len(), b.Len())
	}
}

func TestConcat(t *testing.T) {
	a := New([]byte("foo"))
	b := New([]byte("bar"))
	c := Concat(a, b)
	if string(c.Bytes()) != "foobar" {
		t.Fatalf("got %q, want %q", c.Bytes(), "foobar")
	}
}

func TestReader_ReadsSequentiallyThenEOF(t *testing.T) {
	b := FromSegments([]byte("foo"), []byte("bar"))
	r := NewReader(b)

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(out) != "foobar" {
		t.Fatalf("got %q, want %q", out, "foobar")
	}
}

func TestReader_ShortDestinationBuffer(t *testing.T) {
	r := NewReader(New([]byte("hello")))
	p := make([]byte, 2)

	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 2 || string(p) != "he" {
		t.Fatalf("got n=%d p=%q, want n=2 p=%q", n, p, "he")
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll rest: %v", err)
	}
	if string(rest) != "llo" {
		t.Fatalf("got %q, want %q", rest, "llo")
	}
}
