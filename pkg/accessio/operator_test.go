package accessio

import (
	"context"
	"testing"

	"github.com/accessio/accessio/internal/services/memory"
	"github.com/accessio/accessio/pkg/types"
)

func newTestOperator() *Operator {
	return New(memory.New("/"))
}

func TestOperator_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	op := newTestOperator()

	if err := op.Write(ctx, "/hello.txt", []byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := op.Read(ctx, "/hello.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestOperator_ReadRange(t *testing.T) {
	ctx := context.Background()
	op := newTestOperator()

	if err := op.Write(ctx, "/data.bin", []byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := op.ReadRange(ctx, "/data.bin", types.NewRange(2, 4))
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if string(got) != "2345" {
		t.Fatalf("got %q, want %q", got, "2345")
	}
}

func TestOperator_IsExist(t *testing.T) {
	ctx := context.Background()
	op := newTestOperator()

	exists, err := op.IsExist(ctx, "/missing.txt")
	if err != nil {
		t.Fatalf("IsExist: %v", err)
	}
	if exists {
		t.Fatal("did not expect /missing.txt to exist")
	}

	if err := op.Write(ctx, "/present.txt", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	exists, err = op.IsExist(ctx, "/present.txt")
	if err != nil {
		t.Fatalf("IsExist: %v", err)
	}
	if !exists {
		t.Fatal("expected /present.txt to exist")
	}
}

func TestOperator_DeleteThenStatIsNotFound(t *testing.T) {
	ctx := context.Background()
	op := newTestOperator()

	if err := op.Write(ctx, "/gone.txt", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := op.Delete(ctx, "/gone.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if exists, err := op.IsExist(ctx, "/gone.txt"); err != nil || exists {
		t.Fatalf("expected /gone.txt to be gone, exists=%v err=%v", exists, err)
	}
}

func TestOperator_WalkAndRemoveAll(t *testing.T) {
	ctx := context.Background()
	op := newTestOperator()

	for _, p := range []string{"/dir/a.txt", "/dir/b.txt", "/dir/sub/c.txt"} {
		if err := op.Write(ctx, p, []byte("x")); err != nil {
			t.Fatalf("Write(%q): %v", p, err)
		}
	}

	entries, err := op.Walk(ctx, "/dir")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected Walk to find entries under /dir")
	}

	if err := op.RemoveAll(ctx, "/dir"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	remaining, err := op.Walk(ctx, "/dir")
	if err != nil {
		t.Fatalf("Walk after RemoveAll: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected nothing left under /dir after RemoveAll, got %v", remaining)
	}
}

func TestOperator_BatchDeletesEachItem(t *testing.T) {
	ctx := context.Background()
	op := newTestOperator()

	for _, p := range []string{"/a.txt", "/b.txt"} {
		if err := op.Write(ctx, p, []byte("x")); err != nil {
			t.Fatalf("Write(%q): %v", p, err)
		}
	}

	result, err := op.Batch(ctx, []types.BatchItem{
		{Path: "/a.txt", Op: types.OpDelete{}},
		{Path: "/b.txt", Op: types.OpDelete{}},
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(result.Results))
	}
	for _, r := range result.Results {
		if r.Err != nil {
			t.Fatalf("unexpected batch item error for %q: %v", r.Path, r.Err)
		}
	}

	for _, p := range []string{"/a.txt", "/b.txt"} {
		if exists, err := op.IsExist(ctx, p); err != nil || exists {
			t.Fatalf("expected %q to be deleted, exists=%v err=%v", p, exists, err)
		}
	}
}

func TestOperator_Healthy(t *testing.T) {
	ctx := context.Background()
	op := newTestOperator()

	status, err := op.Healthy(ctx)
	if err != nil {
		t.Fatalf("Healthy: %v", err)
	}
	if status == "" {
		t.Fatal("expected a non-empty health status")
	}
}

func TestOperator_PresignUnsupportedOnMemory(t *testing.T) {
	ctx := context.Background()
	op := newTestOperator()

	if _, err := op.Presign(ctx, "/x.txt", types.OpPresign{}); err == nil {
		t.Fatal("expected the memory backend to reject Presign")
	}
}
