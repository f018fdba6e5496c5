package writer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// fakePartUploader is safe for concurrent UploadPart calls, since the
// writer now drives up to `concurrent` of them in parallel goroutines.
type fakePartUploader struct {
	mu            sync.Mutex
	parts         map[int][]byte
	attempts      map[int]int
	failAttempts  map[int]int // partNumber -> number of leading attempts that fail
	permanentFail map[int]bool
	completed     []*Part
	aborted       bool
}

func (f *fakePartUploader) UploadPart(ctx context.Context, partNumber int, data buffer.Buffer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.attempts == nil {
		f.attempts = make(map[int]int)
	}
	f.attempts[partNumber]++

	if f.permanentFail[partNumber] {
		return "", errors.New("permanently broken")
	}
	if n := f.failAttempts[partNumber]; n > 0 && f.attempts[partNumber] <= n {
		return "", xerrors.New(xerrors.KindUnexpected, "transient network blip")
	}

	if f.parts == nil {
		f.parts = make(map[int][]byte)
	}
	buf := make([]byte, len(data.Bytes()))
	copy(buf, data.Bytes())
	f.parts[partNumber] = buf
	return "etag", nil
}

func (f *fakePartUploader) CompleteMultipart(ctx context.Context, parts []*Part, op types.OpWrite) (types.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = parts
	return types.Reply{}, nil
}

func (f *fakePartUploader) AbortMultipart(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = true
	return nil
}

func TestMultipartWriter_SplitsIntoZeroIndexedChunks(t *testing.T) {
	up := &fakePartUploader{}
	w := NewMultipartWriter("upload-1", "/a/b", up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcdefgh"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if string(up.parts[0]) != "abcd" || string(up.parts[1]) != "efgh" {
		t.Fatalf("unexpected part contents: %v", up.parts)
	}
}

func TestMultipartWriter_FlushesPartialFinalChunk(t *testing.T) {
	up := &fakePartUploader{}
	w := NewMultipartWriter("upload-2", "/a/b", up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcdef"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if string(up.parts[0]) != "abcd" || string(up.parts[1]) != "ef" {
		t.Fatalf("unexpected part contents: %v", up.parts)
	}
}

func TestMultipartWriter_ConcurrentPartsCompleteContiguously(t *testing.T) {
	up := &fakePartUploader{failAttempts: map[int]int{1: 1, 3: 2}}
	w := NewMultipartWriterConcurrent("upload-3", "/a/b", up, types.OpWrite{}, 4, 4)

	data := []byte("0123456789abcdef") // 16 bytes -> 4 parts of 4
	if _, err := w.Write(context.Background(), buffer.New(data)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(up.completed) != 4 {
		t.Fatalf("expected 4 completed parts, got %d", len(up.completed))
	}
	numbers := make([]int, len(up.completed))
	for i, p := range up.completed {
		numbers[i] = p.Number
	}
	sort.Ints(numbers)
	for i, n := range numbers {
		if n != i {
			t.Fatalf("expected contiguous part numbers 0..3, got %v", numbers)
		}
	}
}

func TestMultipartWriter_RetriedPartKeepsItsOriginalNumber(t *testing.T) {
	up := &fakePartUploader{failAttempts: map[int]int{0: 2}}
	w := NewMultipartWriter("upload-4", "/a/b", up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcd"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if up.attempts[0] != 3 {
		t.Fatalf("expected 3 attempts for part 0 (2 failures + 1 success), got %d", up.attempts[0])
	}
	if string(up.parts[0]) != "abcd" {
		t.Fatalf("expected the retried part to still carry its original bytes, got %q", up.parts[0])
	}
	if part := w.State().Parts[0]; part == nil || part.Status != PartCompleted {
		t.Fatalf("expected part 0 marked completed after retry, got %+v", part)
	}
}

func TestMultipartWriter_PermanentPartFailureSurfacesAtClose(t *testing.T) {
	up := &fakePartUploader{permanentFail: map[int]bool{0: true}}
	w := NewMultipartWriter("upload-5", "/a/b", up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcd"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Close(context.Background()); err == nil {
		t.Fatal("expected Close to surface the permanent part failure")
	}
	if w.State().Status != UploadFailed {
		t.Fatalf("expected state failed, got %v", w.State().Status)
	}
	if got := w.State().Parts[0].Status; got != PartFailed {
		t.Fatalf("expected part 0 marked failed, got %v", got)
	}
}

func TestMultipartWriter_Abort(t *testing.T) {
	up := &fakePartUploader{}
	w := NewMultipartWriter("upload-6", "/a/b", up, types.OpWrite{}, 4)

	if _, err := w.Write(context.Background(), buffer.New([]byte("abcd"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Abort(context.Background()); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if !up.aborted {
		t.Fatal("expected AbortMultipart to be called")
	}
	if w.State().Status != UploadAborted {
		t.Fatalf("expected state aborted, got %v", w.State().Status)
	}
}

func TestCalculatePartCount(t *testing.T) {
	tests := []struct {
		totalSize, chunkSize int64
		want                 int
	}{
		{totalSize: 100, chunkSize: 10, want: 10},
		{totalSize: 101, chunkSize: 10, want: 11},
		{totalSize: 0, chunkSize: 10, want: 1},
		{totalSize: 10, chunkSize: 0, want: 0},
	}
	for _, tt := range tests {
		if got := CalculatePartCount(tt.totalSize, tt.chunkSize); got != tt.want {
			t.Errorf("CalculatePartCount(%d, %d) = %d, want %d", tt.totalSize, tt.chunkSize, got, tt.want)
		}
	}
}
