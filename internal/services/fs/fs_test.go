package fs

import (
	"context"
	"io"
	"testing"

	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
)

func newTestAccessor(t *testing.T) *Accessor {
	t.Helper()
	acc, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return acc
}

func writeString(t *testing.T, acc *Accessor, path, content string) {
	t.Helper()
	_, w, err := acc.Write(context.Background(), path, types.OpWrite{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write(context.Background(), buffer.New([]byte(content))); err != nil {
		t.Fatalf("Write body: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func readAll(t *testing.T, acc *Accessor, path string) string {
	t.Helper()
	_, r, err := acc.Read(context.Background(), path, types.OpRead{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer r.Close()

	var out []byte
	p := make([]byte, 4)
	for {
		n, err := r.PollRead(context.Background(), p)
		out = append(out, p[:n]...)
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			t.Fatalf("PollRead: %v", err)
		}
	}
	return string(out)
}

func TestAccessor_WriteThenRead(t *testing.T) {
	acc := newTestAccessor(t)
	writeString(t, acc, "/a.txt", "hello")

	if got := readAll(t, acc, "/a.txt"); got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestAccessor_PathEscapeRejected(t *testing.T) {
	acc := newTestAccessor(t)
	_, _, err := acc.Write(context.Background(), "/../escape.txt", types.OpWrite{})
	if err == nil {
		t.Fatal("expected path escape to be rejected")
	}
}

func TestAccessor_StatAfterWrite(t *testing.T) {
	acc := newTestAccessor(t)
	writeString(t, acc, "/a.txt", "12345")

	reply, err := acc.Stat(context.Background(), "/a.txt", types.OpStat{})
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if reply.Metadata.ContentLength != 5 {
		t.Fatalf("expected content length 5, got %d", reply.Metadata.ContentLength)
	}
}

func TestAccessor_DeleteIsIdempotent(t *testing.T) {
	acc := newTestAccessor(t)
	writeString(t, acc, "/a.txt", "x")

	if _, err := acc.Delete(context.Background(), "/a.txt", types.OpDelete{}); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if _, err := acc.Delete(context.Background(), "/a.txt", types.OpDelete{}); err != nil {
		t.Fatalf("second delete should succeed silently: %v", err)
	}
}

func TestAccessor_ListDirectChildren(t *testing.T) {
	acc := newTestAccessor(t)
	writeString(t, acc, "/dir/a.txt", "a")
	writeString(t, acc, "/dir/b.txt", "b")
	writeString(t, acc, "/dir/sub/c.txt", "c")

	_, lister, err := acc.List(context.Background(), "/dir", types.OpList{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	entries, err := lister.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 2 files + 1 subdir, got %d: %v", len(entries), entries)
	}
}

func TestAccessor_RenameMovesContent(t *testing.T) {
	acc := newTestAccessor(t)
	writeString(t, acc, "/a.txt", "moved")

	if _, err := acc.Rename(context.Background(), "/a.txt", "/b.txt", types.OpRename{}); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got := readAll(t, acc, "/b.txt"); got != "moved" {
		t.Fatalf("got %q, want %q", got, "moved")
	}
}
