package writer

import (
	"context"
	"sync"

	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// RangeUploader appends a byte range to a resumable upload session. GCS
// resumable uploads require every non-final chunk be a multiple of 256KB
// (WriteMultiAlignSize advertises that requirement via Capability), and
// take the whole object size only once, on the final chunk.
type RangeUploader interface {
	UploadRange(ctx context.Context, offset int64, data buffer.Buffer, final bool) error
	FinishSession(ctx context.Context, op types.OpWrite) (types.Reply, error)
	CancelSession(ctx context.Context) error
}

// RangeWriter accumulates Write calls and flushes alignSize-rounded
// chunks to a resumable upload session, keeping up to `concurrent`
// range puts in flight at once. Each put carries its own explicit
// offset, so the backend can land them out of order; the one exception
// is the final chunk, issued from Close only after every prior put has
// completed, since it carries the object's total size to the backend
// and must be the last byte range applied to the session.
type RangeWriter struct {
	uploader   RangeUploader
	op         types.OpWrite
	alignSize  int64
	concurrent int

	staging []byte
	offset  int64

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	firstErr error
}

func NewRangeWriter(uploader RangeUploader, op types.OpWrite, alignSize int64) *RangeWriter {
	return NewRangeWriterConcurrent(uploader, op, alignSize, 1)
}

// NewRangeWriterConcurrent is NewRangeWriter with an explicit in-flight
// range-put bound, wired from OpWrite.Concurrent.
func NewRangeWriterConcurrent(uploader RangeUploader, op types.OpWrite, alignSize int64, concurrent int) *RangeWriter {
	if alignSize <= 0 {
		alignSize = 256 * 1024
	}
	if concurrent <= 0 {
		concurrent = 1
	}
	return &RangeWriter{
		uploader:   uploader,
		op:         op,
		alignSize:  alignSize,
		concurrent: concurrent,
		sem:        make(chan struct{}, concurrent),
	}
}

func (w *RangeWriter) Write(ctx context.Context, bs buffer.Buffer) (int, error) {
	data := bs.Bytes()
	w.staging = append(w.staging, data...)

	for int64(len(w.staging)) >= w.alignSize {
		chunk := Get(int(w.alignSize))
		copy(chunk, w.staging[:w.alignSize])
		w.staging = w.staging[w.alignSize:]
		if err := w.dispatch(ctx, chunk, false); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (w *RangeWriter) dispatch(ctx context.Context, chunk []byte, final bool) error {
	if err := w.pendingErr(); err != nil {
		return err
	}

	offset := w.offset
	w.offset += int64(len(chunk))

	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.wg.Add(1)
	go w.upload(ctx, offset, chunk, final)
	return nil
}

func (w *RangeWriter) upload(ctx context.Context, offset int64, chunk []byte, final bool) {
	defer w.wg.Done()
	defer func() { <-w.sem }()
	defer Put(chunk)

	var lastErr error
	for attempt := 0; attempt < maxPartAttempts; attempt++ {
		err := w.uploader.UploadRange(ctx, offset, buffer.New(chunk), final)
		if err == nil {
			return
		}
		lastErr = err
		if !xerrors.IsTemporary(err) {
			break
		}
	}
	w.setErr(xerrors.Newf(xerrors.KindUnexpected, "upload range at offset %d: %v", offset, lastErr).WithCause(lastErr))
}

func (w *RangeWriter) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.firstErr == nil {
		w.firstErr = err
	}
}

func (w *RangeWriter) pendingErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstErr
}

func (w *RangeWriter) Close(ctx context.Context) (types.Reply, error) {
	final := Get(len(w.staging))
	copy(final, w.staging)
	w.staging = nil

	// Every prior in-flight put must land before the final, size-bearing
	// chunk is issued.
	w.wg.Wait()
	if err := w.pendingErr(); err != nil {
		return types.Reply{}, err
	}

	if err := w.dispatch(ctx, final, true); err != nil {
		return types.Reply{}, err
	}
	w.wg.Wait()
	if err := w.pendingErr(); err != nil {
		return types.Reply{}, err
	}

	return w.uploader.FinishSession(ctx, w.op)
}

func (w *RangeWriter) Abort(ctx context.Context) error {
	w.wg.Wait()
	w.staging = nil
	return w.uploader.CancelSession(ctx)
}
