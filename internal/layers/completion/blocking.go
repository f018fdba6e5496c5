package completion

import (
	"context"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

type runtimeKey struct{}

// Runtime is a thread-owned handle to an async runtime: a single
// dedicated goroutine that blocking-bridge calls are driven on, so a
// blocking caller never shares its own goroutine's scheduling with the
// async accessor it's driving.
type Runtime struct {
	jobs chan func()
}

// NewRuntime starts the runtime's goroutine.
func NewRuntime() *Runtime {
	r := &Runtime{jobs: make(chan func())}
	go r.loop()
	return r
}

func (r *Runtime) loop() {
	for job := range r.jobs {
		job()
	}
}

// Stop shuts down the runtime's goroutine. No further calls may be
// driven on it afterward.
func (r *Runtime) Stop() {
	close(r.jobs)
}

func (r *Runtime) run(fn func() error) error {
	done := make(chan error, 1)
	r.jobs <- func() {
		done <- fn()
	}
	return <-done
}

// insideRuntime returns a context carrying r's marker. Nothing in this
// package calls it, and run does not mark the contexts of its jobs.
func insideRuntime(ctx context.Context, r *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, r)
}

// NewBlockingBridge wraps an async-only Accessor in a BlockingAccessor
// that drives every call on runtime's owned goroutine. Construction is
// rejected with ConfigInvalid only when ctx carries runtime's marker (see
// insideRuntime); a call made from inside the runtime's executor without
// that marker is not detected.
func NewBlockingBridge(ctx context.Context, inner raw.Accessor, runtime *Runtime) (raw.BlockingAccessor, error) {
	if v, ok := ctx.Value(runtimeKey{}).(*Runtime); ok && v == runtime {
		return nil, xerrors.New(xerrors.KindConfigInvalid, "cannot construct blocking bridge from inside its own runtime's executor")
	}
	return &blockingBridge{inner: inner, runtime: runtime}, nil
}

type blockingBridge struct {
	inner   raw.Accessor
	runtime *Runtime
}

func (b *blockingBridge) Info() types.AccessorInfo { return b.inner.Info() }

func (b *blockingBridge) CreateDirBlocking(path string, op types.OpCreateDir) (types.Reply, error) {
	var reply types.Reply
	err := b.runtime.run(func() error {
		var err error
		reply, err = b.inner.CreateDir(context.Background(), path, op)
		return err
	})
	return reply, err
}

func (b *blockingBridge) StatBlocking(path string, op types.OpStat) (types.Reply, error) {
	var reply types.Reply
	err := b.runtime.run(func() error {
		var err error
		reply, err = b.inner.Stat(context.Background(), path, op)
		return err
	})
	return reply, err
}

func (b *blockingBridge) ReadBlocking(path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	var reply types.Reply
	var reader raw.Reader
	err := b.runtime.run(func() error {
		var err error
		reply, reader, err = b.inner.Read(context.Background(), path, op)
		return err
	})
	return reply, newBlockingReader(reader, b.runtime), err
}

func (b *blockingBridge) WriteBlocking(path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	var reply types.Reply
	var writer raw.Writer
	err := b.runtime.run(func() error {
		var err error
		reply, writer, err = b.inner.Write(context.Background(), path, op)
		return err
	})
	return reply, newBlockingWriter(writer, b.runtime), err
}

func (b *blockingBridge) DeleteBlocking(path string, op types.OpDelete) (types.Reply, error) {
	var reply types.Reply
	err := b.runtime.run(func() error {
		var err error
		reply, err = b.inner.Delete(context.Background(), path, op)
		return err
	})
	return reply, err
}

func (b *blockingBridge) CopyBlocking(from, to string, op types.OpCopy) (types.Reply, error) {
	var reply types.Reply
	err := b.runtime.run(func() error {
		var err error
		reply, err = b.inner.Copy(context.Background(), from, to, op)
		return err
	})
	return reply, err
}

func (b *blockingBridge) RenameBlocking(from, to string, op types.OpRename) (types.Reply, error) {
	var reply types.Reply
	err := b.runtime.run(func() error {
		var err error
		reply, err = b.inner.Rename(context.Background(), from, to, op)
		return err
	})
	return reply, err
}

func (b *blockingBridge) ListBlocking(path string, op types.OpList) (types.Reply, raw.Lister, error) {
	var reply types.Reply
	var lister raw.Lister
	err := b.runtime.run(func() error {
		var err error
		reply, lister, err = b.inner.List(context.Background(), path, op)
		return err
	})
	return reply, newBlockingLister(lister, b.runtime), err
}

func (b *blockingBridge) PresignBlocking(path string, op types.OpPresign) (types.ReplyPresign, error) {
	var reply types.ReplyPresign
	err := b.runtime.run(func() error {
		var err error
		reply, err = b.inner.Presign(context.Background(), path, op)
		return err
	})
	return reply, err
}

func (b *blockingBridge) BatchBlocking(op types.OpBatch) (types.ReplyBatch, error) {
	var reply types.ReplyBatch
	err := b.runtime.run(func() error {
		var err error
		reply, err = b.inner.Batch(context.Background(), op)
		return err
	})
	return reply, err
}

// blockingReader wraps an async Reader with a per-call blocking drive.
type blockingReader struct {
	inner   raw.Reader
	runtime *Runtime
}

func newBlockingReader(inner raw.Reader, runtime *Runtime) *blockingReader {
	if inner == nil {
		return nil
	}
	return &blockingReader{inner: inner, runtime: runtime}
}

func (r *blockingReader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	var out buffer.Buffer
	err := r.runtime.run(func() error {
		var err error
		out, err = r.inner.ReadAt(context.Background(), offset, limit)
		return err
	})
	return out, err
}

func (r *blockingReader) PollRead(ctx context.Context, p []byte) (int, error) {
	var n int
	err := r.runtime.run(func() error {
		var err error
		n, err = r.inner.PollRead(context.Background(), p)
		return err
	})
	return n, err
}

func (r *blockingReader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	var pos int64
	err := r.runtime.run(func() error {
		var err error
		pos, err = r.inner.PollSeek(context.Background(), offset, whence)
		return err
	})
	return pos, err
}

func (r *blockingReader) PollNextSegment(ctx context.Context) (buffer.Buffer, bool, error) {
	var out buffer.Buffer
	var ok bool
	err := r.runtime.run(func() error {
		var err error
		out, ok, err = r.inner.PollNextSegment(context.Background())
		return err
	})
	return out, ok, err
}

func (r *blockingReader) Close() error {
	return r.inner.Close()
}

// blockingWriter wraps an async Writer with a per-call blocking drive.
type blockingWriter struct {
	inner   raw.Writer
	runtime *Runtime
}

func newBlockingWriter(inner raw.Writer, runtime *Runtime) *blockingWriter {
	if inner == nil {
		return nil
	}
	return &blockingWriter{inner: inner, runtime: runtime}
}

func (w *blockingWriter) Write(ctx context.Context, bs buffer.Buffer) (int, error) {
	var n int
	err := w.runtime.run(func() error {
		var err error
		n, err = w.inner.Write(context.Background(), bs)
		return err
	})
	return n, err
}

func (w *blockingWriter) Close(ctx context.Context) (types.Reply, error) {
	var reply types.Reply
	err := w.runtime.run(func() error {
		var err error
		reply, err = w.inner.Close(context.Background())
		return err
	})
	return reply, err
}

func (w *blockingWriter) Abort(ctx context.Context) error {
	return w.runtime.run(func() error {
		return w.inner.Abort(context.Background())
	})
}

// blockingLister wraps an async Lister with a per-call blocking drive.
type blockingLister struct {
	inner   raw.Lister
	runtime *Runtime
}

func newBlockingLister(inner raw.Lister, runtime *Runtime) *blockingLister {
	if inner == nil {
		return nil
	}
	return &blockingLister{inner: inner, runtime: runtime}
}

func (l *blockingLister) Next(ctx context.Context) ([]types.Entry, error) {
	var entries []types.Entry
	err := l.runtime.run(func() error {
		var err error
		entries, err = l.inner.Next(context.Background())
		return err
	})
	return entries, err
}

func (l *blockingLister) Close() error {
	return l.inner.Close()
}
