package writer

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// fakeRangeUploader is safe for concurrent UploadRange calls.
type fakeRangeUploader struct {
	mu            sync.Mutex
	ranges        []rangeCall
	finished      bool
	canceled      bool
	failRemaining int
}

type rangeCall struct {
	offset int64
	data   []byte
	final  bool
}

func (f *fakeRangeUploader) UploadRange(ctx context.Context, offset int64, data buffer.Buffer, final bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRemaining > 0 {
		f.failRemaining--
		return xerrors.New(xerrors.KindUnexpected, "transient range upload failure")
	}

	buf := make([]byte, len(data.Bytes()))
	copy(buf, data.Bytes())
	f.ranges = append(f.ranges, rangeCall{offset: offset, data: buf, final: final})
	return nil
}

func (f *fakeRangeUploader) FinishSession(ctx context.Context, op types.OpWrite) (types.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
	return types.Reply{}, nil
}

func (f *fakeRangeUploader) CancelSession(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = true
	return nil
}

func TestRangeWriter_AlignsChunks(t *testing.T) {
	up := &fakeRangeUploader{}
	w := NewRangeWriter(up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcdefgh"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Two aligned 4-byte chunks during Write, plus an empty final chunk
	// issued by Close once nothing unaligned remains to flush.
	if len(up.ranges) != 3 {
		t.Fatalf("expected 3 range uploads, got %d", len(up.ranges))
	}
	sort.Slice(up.ranges, func(i, j int) bool { return up.ranges[i].offset < up.ranges[j].offset })

	if string(up.ranges[0].data) != "abcd" || up.ranges[0].offset != 0 || up.ranges[0].final {
		t.Fatalf("unexpected first range: %+v", up.ranges[0])
	}
	if string(up.ranges[1].data) != "efgh" || up.ranges[1].offset != 4 || up.ranges[1].final {
		t.Fatalf("unexpected second range: %+v", up.ranges[1])
	}
	if len(up.ranges[2].data) != 0 || up.ranges[2].offset != 8 || !up.ranges[2].final {
		t.Fatalf("unexpected final range: %+v", up.ranges[2])
	}
	if !up.finished {
		t.Fatal("expected FinishSession to be called")
	}
}

func TestRangeWriter_HoldsBackUnalignedRemainderUntilClose(t *testing.T) {
	up := &fakeRangeUploader{}
	w := NewRangeWriter(up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcdef"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(up.ranges) != 2 {
		t.Fatalf("expected the aligned chunk plus the final remainder, got %d calls", len(up.ranges))
	}
	sort.Slice(up.ranges, func(i, j int) bool { return up.ranges[i].offset < up.ranges[j].offset })
	if string(up.ranges[1].data) != "ef" || !up.ranges[1].final {
		t.Fatalf("unexpected final flush: %+v", up.ranges[1])
	}
}

func TestRangeWriter_ConcurrentRangesAllLand(t *testing.T) {
	up := &fakeRangeUploader{}
	w := NewRangeWriterConcurrent(up, types.OpWrite{}, 4, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("0123456789abcdef"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(up.ranges) != 5 {
		t.Fatalf("expected 4 aligned ranges plus an empty final range, got %d", len(up.ranges))
	}
}

func TestRangeWriter_RetriesTransientFailure(t *testing.T) {
	up := &fakeRangeUploader{failRemaining: 1}
	w := NewRangeWriter(up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcd"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !up.finished {
		t.Fatal("expected the session to finish despite one transient failure")
	}
}

func TestRangeWriter_Abort(t *testing.T) {
	up := &fakeRangeUploader{}
	w := NewRangeWriter(up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("ab"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Abort(context.Background()); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if !up.canceled {
		t.Fatal("expected CancelSession to be called")
	}
}
