package layers

import (
	"context"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// ErrorContext is the layer nearest the leaf that attaches
// (scheme, operation, path) to every error the backend raises. The
// builder attaches this unconditionally, regardless of user choice.
func ErrorContext() Layer {
	return LayerFunc(func(inner raw.Accessor) raw.Accessor {
		return &errorContextAccessor{inner: inner}
	})
}

type errorContextAccessor struct {
	inner raw.Accessor
}

func (a *errorContextAccessor) annotate(err error, operation, path string) error {
	if err == nil {
		return nil
	}
	scheme := string(a.inner.Info().Scheme)
	if xe, ok := err.(*xerrors.Error); ok {
		return xe.WithContext("scheme", scheme).WithContext("operation", operation).WithContext("path", path)
	}
	return xerrors.New(xerrors.KindUnexpected, err.Error()).
		WithCause(err).
		WithContext("scheme", scheme).
		WithContext("operation", operation).
		WithContext("path", path)
}

func (a *errorContextAccessor) Info() types.AccessorInfo { return a.inner.Info() }

func (a *errorContextAccessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	r, err := a.inner.CreateDir(ctx, path, op)
	return r, a.annotate(err, "create_dir", path)
}

func (a *errorContextAccessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	r, err := a.inner.Stat(ctx, path, op)
	return r, a.annotate(err, "stat", path)
}

func (a *errorContextAccessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	r, reader, err := a.inner.Read(ctx, path, op)
	if err != nil {
		return r, nil, a.annotate(err, "read", path)
	}
	return r, &errorContextReader{inner: reader, a: a, path: path}, nil
}

func (a *errorContextAccessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	r, writer, err := a.inner.Write(ctx, path, op)
	if err != nil {
		return r, nil, a.annotate(err, "write", path)
	}
	return r, &errorContextWriter{inner: writer, a: a, path: path}, nil
}

func (a *errorContextAccessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	r, err := a.inner.Delete(ctx, path, op)
	return r, a.annotate(err, "delete", path)
}

func (a *errorContextAccessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	r, err := a.inner.Copy(ctx, from, to, op)
	return r, a.annotate(err, "copy", from+" -> "+to)
}

func (a *errorContextAccessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	r, err := a.inner.Rename(ctx, from, to, op)
	return r, a.annotate(err, "rename", from+" -> "+to)
}

func (a *errorContextAccessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	r, lister, err := a.inner.List(ctx, path, op)
	if err != nil {
		return r, nil, a.annotate(err, "list", path)
	}
	return r, &errorContextLister{inner: lister, a: a, path: path}, nil
}

func (a *errorContextAccessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	r, err := a.inner.Presign(ctx, path, op)
	return r, a.annotate(err, "presign", path)
}

func (a *errorContextAccessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	r, err := a.inner.Batch(ctx, op)
	return r, a.annotate(err, "batch", "")
}

type errorContextReader struct {
	inner raw.Reader
	a     *errorContextAccessor
	path  string
}

func (r *errorContextReader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	b, err := r.inner.ReadAt(ctx, offset, limit)
	return b, r.a.annotate(err, "read_at", r.path)
}

func (r *errorContextReader) PollRead(ctx context.Context, p []byte) (int, error) {
	n, err := r.inner.PollRead(ctx, p)
	return n, r.a.annotate(err, "poll_read", r.path)
}

func (r *errorContextReader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	n, err := r.inner.PollSeek(ctx, offset, whence)
	return n, r.a.annotate(err, "poll_seek", r.path)
}

func (r *errorContextReader) PollNextSegment(ctx context.Context) (buffer.Buffer, bool, error) {
	b, ok, err := r.inner.PollNextSegment(ctx)
	return b, ok, r.a.annotate(err, "poll_next_segment", r.path)
}

func (r *errorContextReader) Close() error {
	return r.inner.Close()
}

type errorContextWriter struct {
	inner raw.Writer
	a     *errorContextAccessor
	path  string
}

func (w *errorContextWriter) Write(ctx context.Context, bs buffer.Buffer) (int, error) {
	n, err := w.inner.Write(ctx, bs)
	return n, w.a.annotate(err, "write", w.path)
}

func (w *errorContextWriter) Close(ctx context.Context) (types.Reply, error) {
	r, err := w.inner.Close(ctx)
	return r, w.a.annotate(err, "close", w.path)
}

func (w *errorContextWriter) Abort(ctx context.Context) error {
	return w.a.annotate(w.inner.Abort(ctx), "abort", w.path)
}

type errorContextLister struct {
	inner raw.Lister
	a     *errorContextAccessor
	path  string
}

func (l *errorContextLister) Next(ctx context.Context) ([]types.Entry, error) {
	entries, err := l.inner.Next(ctx)
	return entries, l.a.annotate(err, "list_next", l.path)
}

func (l *errorContextLister) Close() error {
	return l.inner.Close()
}
