package memory

import (
	"context"
	"io"
	"testing"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

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

func readAll(t *testing.T, r raw.Reader) string {
	t.Helper()
	var out []byte
	p := make([]byte, 4)
	for {
		n, err := r.PollRead(context.Background(), p)
		out = append(out, p[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("PollRead: %v", err)
		}
		if n == 0 {
			break
		}
	}
	return string(out)
}

func TestAccessor_WriteThenRead(t *testing.T) {
	acc := New("/")
	writeString(t, acc, "/a.txt", "hello world")

	_, r, err := acc.Read(context.Background(), "/a.txt", types.OpRead{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := readAll(t, r); got != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestAccessor_ReadMissingIsNotFound(t *testing.T) {
	acc := New("/")
	_, _, err := acc.Read(context.Background(), "/missing.txt", types.OpRead{})
	if !xerrors.IsKind(err, xerrors.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestAccessor_StatAfterWrite(t *testing.T) {
	acc := New("/")
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
	acc := New("/")
	writeString(t, acc, "/a.txt", "x")

	if _, err := acc.Delete(context.Background(), "/a.txt", types.OpDelete{}); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if _, err := acc.Delete(context.Background(), "/a.txt", types.OpDelete{}); err != nil {
		t.Fatalf("second delete should succeed silently: %v", err)
	}
}

func TestAccessor_SuffixRangeEquivalence(t *testing.T) {
	acc := New("/")
	writeString(t, acc, "/a.txt", "0123456789")

	_, r, err := acc.Read(context.Background(), "/a.txt", types.OpRead{Range: types.SuffixRange(3)})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := readAll(t, r); got != "789" {
		t.Fatalf("got %q, want %q", got, "789")
	}
}

func TestAccessor_ListNonRecursive(t *testing.T) {
	acc := New("/")
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
	acc := New("/")
	writeString(t, acc, "/a.txt", "moved")

	if _, err := acc.Rename(context.Background(), "/a.txt", "/b.txt", types.OpRename{}); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, _, err := acc.Read(context.Background(), "/a.txt", types.OpRead{}); err == nil {
		t.Fatal("expected source to be gone after rename")
	}
	_, r, err := acc.Read(context.Background(), "/b.txt", types.OpRead{})
	if err != nil {
		t.Fatalf("Read dest: %v", err)
	}
	if got := readAll(t, r); got != "moved" {
		t.Fatalf("got %q, want %q", got, "moved")
	}
}
