package layers

import (
	"context"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
)

// ContentCache adds whole-object content caching backed by a pluggable
// Accessor, commonly the memory service. This layer only maintains its
// own state: callers that write to the underlying accessor directly, or
// share the same path across nodes without a shared cache backend, can
// observe stale reads. Eviction/TTL policy is entirely the backing
// accessor's to choose; the memory service itself applies none, so
// callers capping memory use should wrap it or swap in a bounded
// Accessor of their own.
func ContentCache(cache raw.Accessor) Layer {
	return LayerFunc(func(inner raw.Accessor) raw.Accessor {
		return &contentCacheAccessor{cache: cache, inner: inner}
	})
}

type contentCacheAccessor struct {
	cache raw.Accessor
	inner raw.Accessor
}

func (a *contentCacheAccessor) Info() types.AccessorInfo { return a.inner.Info() }

func (a *contentCacheAccessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	return a.inner.CreateDir(ctx, path, op)
}

func (a *contentCacheAccessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	return a.inner.Stat(ctx, path, op)
}

// Read serves from cache on a full-object request; partial-range reads
// bypass the cache and go straight to inner, since a whole-object cache
// cannot serve a slice without first materializing the whole object.
func (a *contentCacheAccessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	if !op.Range.IsFull() {
		return a.inner.Read(ctx, path, op)
	}
	if reply, reader, err := a.cache.Read(ctx, path, op); err == nil {
		return reply, reader, nil
	}

	reply, reader, err := a.inner.Read(ctx, path, op)
	if err != nil {
		return reply, nil, err
	}
	return reply, &cachePopulatingReader{inner: reader, cache: a.cache, path: path}, nil
}

func (a *contentCacheAccessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	a.cache.Delete(ctx, path, types.OpDelete{})
	return a.inner.Write(ctx, path, op)
}

func (a *contentCacheAccessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	a.cache.Delete(ctx, path, types.OpDelete{})
	return a.inner.Delete(ctx, path, op)
}

func (a *contentCacheAccessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	a.cache.Delete(ctx, to, types.OpDelete{})
	return a.inner.Copy(ctx, from, to, op)
}

func (a *contentCacheAccessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	a.cache.Delete(ctx, from, types.OpDelete{})
	a.cache.Delete(ctx, to, types.OpDelete{})
	return a.inner.Rename(ctx, from, to, op)
}

func (a *contentCacheAccessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	return a.inner.List(ctx, path, op)
}

func (a *contentCacheAccessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	return a.inner.Presign(ctx, path, op)
}

func (a *contentCacheAccessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	return a.inner.Batch(ctx, op)
}

// cachePopulatingReader mirrors bytes read from inner into the cache
// accessor as they're consumed, so the next full-object read is served
// from cache.
type cachePopulatingReader struct {
	inner raw.Reader
	cache raw.Accessor
	path  string

	buffered []byte
}

func (r *cachePopulatingReader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	return r.inner.ReadAt(ctx, offset, limit)
}

func (r *cachePopulatingReader) PollRead(ctx context.Context, p []byte) (int, error) {
	n, err := r.inner.PollRead(ctx, p)
	if n > 0 {
		r.buffered = append(r.buffered, p[:n]...)
	}
	return n, err
}

func (r *cachePopulatingReader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	return r.inner.PollSeek(ctx, offset, whence)
}

func (r *cachePopulatingReader) PollNextSegment(ctx context.Context) (buffer.Buffer, bool, error) {
	seg, ok, err := r.inner.PollNextSegment(ctx)
	if ok {
		r.buffered = append(r.buffered, seg.Bytes()...)
	}
	return seg, ok, err
}

func (r *cachePopulatingReader) Close() error {
	if len(r.buffered) > 0 {
		ctx := context.Background()
		if _, writer, err := r.cache.Write(ctx, r.path, types.OpWrite{}); err == nil {
			writer.Write(ctx, buffer.New(r.buffered))
			writer.Close(ctx)
		}
	}
	return r.inner.Close()
}
