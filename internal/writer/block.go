package writer

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// BlockUploader stages fixed-size blocks identified by opaque IDs and
// commits the block list once writing finishes. Azure block blobs are
// the canonical backend; any backend with a stage/commit split (blocks,
// not byte-range parts) implements this to get a BlockWriter for free.
type BlockUploader interface {
	StageBlock(ctx context.Context, blockID string, data buffer.Buffer) error
	CommitBlocks(ctx context.Context, blockIDs []string, op types.OpWrite) (types.Reply, error)
}

// blockIDSequence mints unique, ordered block IDs: a UUID4 shared across
// the whole upload plus an autoincrementing sequence number, base64
// encoded. Grounded on the vendored azblob chunk-writer's id type.
// Minting an id does not commit it to anything — BlockWriter only
// records an id as part of the final commit list once StageBlock for it
// has actually succeeded, so a block that is never staged can never
// appear in CommitBlocks.
type blockIDSequence struct {
	base [20]byte
	num  uint32
}

func newBlockIDSequence() *blockIDSequence {
	u := uuid.New()
	var base [20]byte
	copy(base[:16], u[:])
	return &blockIDSequence{base: base}
}

func (s *blockIDSequence) next() string {
	binary.BigEndian.PutUint32(s.base[16:], s.num)
	s.num++
	return base64.StdEncoding.EncodeToString(s.base[:])
}

// BlockWriter buffers Write calls into chunkSize blocks and keeps up to
// `concurrent` StageBlock calls in flight at once. Azure's
// CommitBlockList takes ids in the order supplied, not numerically, so
// the writer tracks each block by the sequence position it was enqueued
// at rather than by its id, and reassembles the final id list in that
// enqueue order at Close. A block that fails StageBlock is retried
// under its original id and sequence position — never a freshly minted
// id — so a retried block keeps its place in the final commit order.
type BlockWriter struct {
	uploader   BlockUploader
	op         types.OpWrite
	chunkSize  int
	concurrent int

	ids     *blockIDSequence
	staging []byte
	written int64
	aborted bool

	nextSeq int
	sem     chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	staged   map[int]string
	firstErr error
}

func NewBlockWriter(uploader BlockUploader, op types.OpWrite, chunkSize int) *BlockWriter {
	return NewBlockWriterConcurrent(uploader, op, chunkSize, 1)
}

// NewBlockWriterConcurrent is NewBlockWriter with an explicit in-flight
// block bound, wired from OpWrite.Concurrent.
func NewBlockWriterConcurrent(uploader BlockUploader, op types.OpWrite, chunkSize, concurrent int) *BlockWriter {
	if chunkSize <= 0 {
		chunkSize = 4 * 1024 * 1024
	}
	if concurrent <= 0 {
		concurrent = 1
	}
	return &BlockWriter{
		uploader:   uploader,
		op:         op,
		chunkSize:  chunkSize,
		concurrent: concurrent,
		ids:        newBlockIDSequence(),
		sem:        make(chan struct{}, concurrent),
		staged:     make(map[int]string),
	}
}

func (w *BlockWriter) Write(ctx context.Context, bs buffer.Buffer) (int, error) {
	data := bs.Bytes()
	w.staging = append(w.staging, data...)
	w.written += int64(len(data))

	for len(w.staging) >= w.chunkSize {
		chunk := Get(w.chunkSize)
		copy(chunk, w.staging[:w.chunkSize])
		w.staging = w.staging[w.chunkSize:]
		if err := w.dispatch(ctx, chunk); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (w *BlockWriter) dispatch(ctx context.Context, chunk []byte) error {
	if err := w.pendingErr(); err != nil {
		return err
	}

	seq := w.nextSeq
	w.nextSeq++
	id := w.ids.next()

	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.wg.Add(1)
	go w.stage(ctx, seq, id, chunk)
	return nil
}

func (w *BlockWriter) stage(ctx context.Context, seq int, id string, chunk []byte) {
	defer w.wg.Done()
	defer func() { <-w.sem }()
	defer Put(chunk)

	var lastErr error
	for attempt := 0; attempt < maxPartAttempts; attempt++ {
		err := w.uploader.StageBlock(ctx, id, buffer.New(chunk))
		if err == nil {
			w.mu.Lock()
			w.staged[seq] = id
			w.mu.Unlock()
			return
		}
		lastErr = err
		if !xerrors.IsTemporary(err) {
			break
		}
	}
	w.setErr(xerrors.Newf(xerrors.KindUnexpected, "stage block %d: %v", seq, lastErr).WithCause(lastErr))
}

func (w *BlockWriter) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.firstErr == nil {
		w.firstErr = err
	}
}

func (w *BlockWriter) pendingErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstErr
}

func (w *BlockWriter) Close(ctx context.Context) (types.Reply, error) {
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
		return types.Reply{}, err
	}

	w.mu.Lock()
	ids := make([]string, w.nextSeq)
	for seq, id := range w.staged {
		ids[seq] = id
	}
	w.mu.Unlock()

	return w.uploader.CommitBlocks(ctx, ids, w.op)
}

func (w *BlockWriter) Abort(ctx context.Context) error {
	w.wg.Wait()
	w.aborted = true
	w.staging = nil
	// Uncommitted staged blocks are left for the backend's own garbage
	// collection (Azure expires uncommitted blocks after ~7 days); there
	// is no cross-backend "delete this block" primitive to call here.
	return nil
}
