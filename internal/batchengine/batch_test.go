package batchengine

import (
	"context"
	"testing"

	"github.com/accessio/accessio/internal/services/memory"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
)

func write(t *testing.T, acc *memory.Accessor, path, content string) {
	t.Helper()
	_, w, err := acc.Write(context.Background(), path, types.OpWrite{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Write(context.Background(), buffer.New([]byte(content)))
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDeleteAll_PartitionsIntoChunks(t *testing.T) {
	acc := memory.New("/")
	paths := []string{"/a", "/b", "/c", "/d", "/e"}
	for _, p := range paths {
		write(t, acc, p, "x")
	}

	results, stats, err := DeleteAll(context.Background(), acc, paths, 2)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if stats.BatchCount != 3 {
		t.Fatalf("expected 3 batches for 5 items at size 2, got %d", stats.BatchCount)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error for %s: %v", r.Path, r.Err)
		}
	}

	for _, p := range paths {
		if _, _, err := acc.Read(context.Background(), p, types.OpRead{}); err == nil {
			t.Fatalf("expected %s to be deleted", p)
		}
	}
}

func TestRemoveAll_File(t *testing.T) {
	acc := memory.New("/")
	write(t, acc, "/a.txt", "content")

	results, _, err := RemoveAll(context.Background(), acc, "/a.txt", 10)
	if err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if len(results) != 1 || results[0].Path != "/a.txt" {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestRemoveAll_Directory(t *testing.T) {
	acc := memory.New("/")
	write(t, acc, "/dir/a.txt", "a")
	write(t, acc, "/dir/b.txt", "b")
	write(t, acc, "/dir/sub/c.txt", "c")

	results, _, err := RemoveAll(context.Background(), acc, "/dir", 10)
	if err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if len(results) < 3 {
		t.Fatalf("expected at least 3 deletions, got %d: %v", len(results), results)
	}
}
