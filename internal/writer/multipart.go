package writer

import (
	"context"
	"sort"
	"sync"

	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// PartUploader uploads numbered, byte-range parts and completes the
// upload from the set of part ETags. S3 and any S3-compatible backend
// is the canonical implementation; GCS's resumable upload is handled
// separately by RangeWriter since it has no part-numbering concept.
type PartUploader interface {
	UploadPart(ctx context.Context, partNumber int, data buffer.Buffer) (etag string, err error)
	CompleteMultipart(ctx context.Context, parts []*Part, op types.OpWrite) (types.Reply, error)
	AbortMultipart(ctx context.Context) error
}

// maxPartAttempts bounds the writer's own internal per-part retry
// loop. A part that still fails after this many attempts gives up and
// surfaces the error at Close rather than retrying forever; per §4.6,
// write retries are confined inside the chunked writer rather than at
// the Accessor seam, since these bytes (unlike a Reader) are owned and
// replayable here.
const maxPartAttempts = 5

// MultipartWriter buffers Write calls into chunkSize parts and keeps up
// to `concurrent` UploadPart calls in flight at once, each running in
// its own goroutine. Part numbers are assigned once, monotonically from
// 0, and never reassigned: a part that fails is retried under its
// original number and bytes until it succeeds or the attempt budget is
// exhausted, so the completed-part set is always a contiguous 0..N-1
// run rather than one with gaps or orphaned numbers. Tracks state via
// UploadState so a caller can inspect progress after a failure.
type MultipartWriter struct {
	uploader   PartUploader
	op         types.OpWrite
	chunkSize  int64
	concurrent int
	state      *UploadState

	staging  []byte
	offset   int64
	nextPart int

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	firstErr error
}

func NewMultipartWriter(id, path string, uploader PartUploader, op types.OpWrite, chunkSize int64) *MultipartWriter {
	return NewMultipartWriterConcurrent(id, path, uploader, op, chunkSize, 1)
}

// NewMultipartWriterConcurrent is NewMultipartWriter with an explicit
// in-flight part bound, wired from OpWrite.Concurrent by each backend's
// writer constructor.
func NewMultipartWriterConcurrent(id, path string, uploader PartUploader, op types.OpWrite, chunkSize int64, concurrent int) *MultipartWriter {
	if chunkSize <= 0 {
		chunkSize = 8 * 1024 * 1024
	}
	if concurrent <= 0 {
		concurrent = 1
	}
	return &MultipartWriter{
		uploader:   uploader,
		op:         op,
		chunkSize:  chunkSize,
		concurrent: concurrent,
		state:      NewUploadState(id, path, chunkSize),
		sem:        make(chan struct{}, concurrent),
	}
}

func (w *MultipartWriter) State() *UploadState { return w.state }

func (w *MultipartWriter) Write(ctx context.Context, bs buffer.Buffer) (int, error) {
	data := bs.Bytes()
	w.staging = append(w.staging, data...)

	for int64(len(w.staging)) >= w.chunkSize {
		chunk := Get(int(w.chunkSize))
		copy(chunk, w.staging[:w.chunkSize])
		w.staging = w.staging[w.chunkSize:]
		if err := w.dispatch(ctx, chunk); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

// dispatch assigns the next part number and hands the chunk to its own
// goroutine, blocking only to acquire a semaphore slot when the
// in-flight bound is already saturated — the writer's only suspension
// point in the steady state.
func (w *MultipartWriter) dispatch(ctx context.Context, chunk []byte) error {
	if err := w.pendingErr(); err != nil {
		return err
	}

	number := w.nextPart
	w.nextPart++
	offset := w.offset
	w.offset += int64(len(chunk))

	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.wg.Add(1)
	go w.uploadPart(ctx, number, offset, chunk)
	return nil
}

func (w *MultipartWriter) uploadPart(ctx context.Context, number int, offset int64, chunk []byte) {
	defer w.wg.Done()
	defer func() { <-w.sem }()
	defer Put(chunk)

	var lastErr error
	for attempt := 0; attempt < maxPartAttempts; attempt++ {
		etag, err := w.uploader.UploadPart(ctx, number, buffer.New(chunk))
		if err == nil {
			w.state.MarkPartCompleted(number, offset, int64(len(chunk)), etag)
			return
		}
		lastErr = err
		w.state.MarkPartFailed(number, err)
		if !xerrors.IsTemporary(err) {
			break
		}
	}
	w.setErr(xerrors.Newf(xerrors.KindUnexpected, "upload part %d: %v", number, lastErr).WithCause(lastErr))
}

func (w *MultipartWriter) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.firstErr == nil {
		w.firstErr = err
	}
}

func (w *MultipartWriter) pendingErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstErr
}

func (w *MultipartWriter) Close(ctx context.Context) (types.Reply, error) {
	if len(w.staging) > 0 {
		chunk := Get(len(w.staging))
		copy(chunk, w.staging)
		w.staging = nil
		if err := w.dispatch(ctx, chunk); err != nil {
			return types.Reply{}, err
		}
	}

	w.wg.Wait()
	if err := w.pendingErr(); err != nil {
		w.state.SetStatus(UploadFailed)
		return types.Reply{}, err
	}

	parts := w.state.CompletedParts()
	sort.Slice(parts, func(i, j int) bool { return parts[i].Number < parts[j].Number })

	reply, err := w.uploader.CompleteMultipart(ctx, parts, w.op)
	if err != nil {
		w.state.SetStatus(UploadFailed)
		return reply, err
	}
	w.state.SetStatus(UploadCompleted)
	return reply, nil
}

func (w *MultipartWriter) Abort(ctx context.Context) error {
	w.wg.Wait()
	w.staging = nil
	w.state.SetStatus(UploadAborted)
	return w.uploader.AbortMultipart(ctx)
}
