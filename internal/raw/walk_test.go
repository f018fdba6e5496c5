package raw_test

import (
	"context"
	"sort"
	"testing"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/internal/services/memory"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
)

func writeString(t *testing.T, acc *memory.Accessor, path, content string) {
	t.Helper()
	ctx := context.Background()
	_, w, err := acc.Write(ctx, path, types.OpWrite{})
	if err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}
	if _, err := w.Write(ctx, buffer.New([]byte(content))); err != nil {
		t.Fatalf("Write body(%q): %v", path, err)
	}
	if _, err := w.Close(ctx); err != nil {
		t.Fatalf("Close(%q): %v", path, err)
	}
}

func TestCollectAll_WalksNestedDirectories(t *testing.T) {
	acc := memory.New("/")
	ctx := context.Background()

	writeString(t, acc, "/a.txt", "a")
	writeString(t, acc, "/dir/b.txt", "b")
	writeString(t, acc, "/dir/sub/c.txt", "c")

	entries, err := raw.CollectAll(ctx, acc, "/")
	if err != nil {
		t.Fatalf("CollectAll: %v", err)
	}

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	sort.Strings(paths)

	want := []string{"/a.txt", "/dir/", "/dir/b.txt", "/dir/sub/", "/dir/sub/c.txt"}
	sort.Strings(want)

	if len(paths) != len(want) {
		t.Fatalf("got %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("got %v, want %v", paths, want)
		}
	}
}

func TestCollectAll_EmptyDirectory(t *testing.T) {
	acc := memory.New("/")
	entries, err := raw.CollectAll(context.Background(), acc, "/")
	if err != nil {
		t.Fatalf("CollectAll: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries in an empty accessor, got %v", entries)
	}
}

func TestTopDownWalk_VisitErrorAborts(t *testing.T) {
	acc := memory.New("/")
	writeString(t, acc, "/a.txt", "a")
	writeString(t, acc, "/b.txt", "b")

	sentinel := context.Canceled
	visited := 0
	err := raw.TopDownWalk(context.Background(), acc, "/", func(types.Entry) error {
		visited++
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected TopDownWalk to propagate the visit error, got %v", err)
	}
	if visited != 1 {
		t.Fatalf("expected the walk to stop after the first visit error, got %d visits", visited)
	}
}
