package writer

import (
	"context"
	"sync"
	"testing"

	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// fakeBlockUploader is safe for concurrent StageBlock calls. failRemaining,
// when positive, fails that many StageBlock calls (regardless of which
// block id they carry) before letting every subsequent call succeed —
// set it before any Write so the failure schedule is deterministic
// under concurrent dispatch.
type fakeBlockUploader struct {
	mu            sync.Mutex
	staged        map[string][]byte
	committed     []string
	failRemaining int
	permanent     bool
}

func (f *fakeBlockUploader) StageBlock(ctx context.Context, blockID string, data buffer.Buffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRemaining > 0 {
		if !f.permanent {
			f.failRemaining--
		}
		return xerrors.New(xerrors.KindUnexpected, "transient stage failure")
	}

	if f.staged == nil {
		f.staged = make(map[string][]byte)
	}
	buf := make([]byte, len(data.Bytes()))
	copy(buf, data.Bytes())
	f.staged[blockID] = buf
	return nil
}

func (f *fakeBlockUploader) CommitBlocks(ctx context.Context, blockIDs []string, op types.OpWrite) (types.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = blockIDs
	return types.Reply{}, nil
}

func TestBlockWriter_StagesAndCommits(t *testing.T) {
	up := &fakeBlockUploader{}
	w := NewBlockWriter(up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcdefgh"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(up.staged) != 2 {
		t.Fatalf("expected 2 staged blocks, got %d", len(up.staged))
	}
	if len(up.committed) != 2 {
		t.Fatalf("expected 2 committed block IDs, got %d", len(up.committed))
	}
}

func TestBlockWriter_DistinctBlockIDs(t *testing.T) {
	up := &fakeBlockUploader{}
	w := NewBlockWriter(up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("aaaabbbb"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if up.committed[0] == up.committed[1] {
		t.Fatalf("expected distinct block IDs, got %q twice", up.committed[0])
	}
}

func TestBlockWriter_CommitOrderMatchesEnqueueOrder(t *testing.T) {
	up := &fakeBlockUploader{}
	w := NewBlockWriterConcurrent(up, types.OpWrite{}, 4, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("0123456789abcdef"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(up.committed) != 4 {
		t.Fatalf("expected 4 committed block IDs, got %d", len(up.committed))
	}
	for _, id := range up.committed {
		if _, ok := up.staged[id]; !ok {
			t.Fatalf("committed block id %q was never staged", id)
		}
	}
}

func TestBlockWriter_RetriedBlockEventuallyCommits(t *testing.T) {
	up := &fakeBlockUploader{failRemaining: 1}
	w := NewBlockWriterConcurrent(up, types.OpWrite{}, 4, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("0123456789abcdef"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(up.committed) != 4 {
		t.Fatalf("expected all 4 blocks to eventually commit despite one transient failure, got %d", len(up.committed))
	}
	for _, id := range up.committed {
		if _, ok := up.staged[id]; !ok {
			t.Fatalf("commit list contains id %q that was never successfully staged", id)
		}
	}
}

func TestBlockWriter_PermanentStageFailureSurfacesAtClose(t *testing.T) {
	up := &fakeBlockUploader{failRemaining: 1, permanent: true}
	w := NewBlockWriter(up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcd"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err == nil {
		t.Fatal("expected Close to surface the exhausted-retry stage failure")
	}
	if len(up.committed) != 0 {
		t.Fatal("expected CommitBlocks never to be called after an unrecovered stage failure")
	}
}

func TestBlockWriter_Abort(t *testing.T) {
	up := &fakeBlockUploader{}
	w := NewBlockWriter(up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcd"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Abort(context.Background()); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if len(w.staging) != 0 {
		t.Fatal("expected staging buffer cleared after abort")
	}
}
