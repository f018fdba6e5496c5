package accessio

import (
	"context"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/types"
)

// WriterBuilder configures a write before issuing it: content type,
// chunk size, append mode, concurrency, and the create-if-not-exists
// precondition, mirroring types.OpWrite's fields one-for-one.
type WriterBuilder struct {
	acc  raw.Accessor
	path string
	op   types.OpWrite
}

func (b *WriterBuilder) ContentType(ct string) *WriterBuilder {
	b.op.ContentType = ct
	return b
}

func (b *WriterBuilder) ContentDisposition(cd string) *WriterBuilder {
	b.op.ContentDisposition = cd
	return b
}

func (b *WriterBuilder) CacheControl(cc string) *WriterBuilder {
	b.op.CacheControl = cc
	return b
}

func (b *WriterBuilder) UserMetadata(m map[string]string) *WriterBuilder {
	b.op.UserMetadata = m
	return b
}

// Append opens the write in append mode, when the backend's Capability
// advertises WriteCanAppend.
func (b *WriterBuilder) Append(enabled bool) *WriterBuilder {
	b.op.Append = enabled
	return b
}

// Concurrent sets how many parts a multipart-capable write may stage in
// parallel.
func (b *WriterBuilder) Concurrent(n int) *WriterBuilder {
	b.op.Concurrent = n
	return b
}

// Chunk overrides the backend's default part/block/range size for this
// write.
func (b *WriterBuilder) Chunk(bytes int64) *WriterBuilder {
	b.op.Chunk = int(bytes)
	return b
}

// IfNotExists fails the write if an object already exists at path, on
// backends that support the precondition.
func (b *WriterBuilder) IfNotExists(enabled bool) *WriterBuilder {
	b.op.IfNotExists = enabled
	return b
}

// StorageClass requests a backend-specific storage tier (S3 storage
// class, GCS storage class, Azure access tier).
func (b *WriterBuilder) StorageClass(class string) *WriterBuilder {
	b.op.StorageClass = class
	return b
}

// Build issues the write and returns a streaming Writer.
func (b *WriterBuilder) Build(ctx context.Context) (*Writer, error) {
	_, w, err := b.acc.Write(ctx, b.path, b.op)
	if err != nil {
		return nil, err
	}
	return &Writer{ctx: ctx, raw: w}, nil
}

// Writer adapts a raw.Writer to io.Writer, plus a context-taking Close
// that returns the resulting Reply and the explicit Abort every backend's
// server-side partial-upload cleanup needs. It is not an io.Closer.
type Writer struct {
	ctx context.Context
	raw raw.Writer
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.raw.Write(w.ctx, bufferBytes(p))
}

// Close finalizes the write and returns the resulting metadata.
func (w *Writer) Close(ctx context.Context) (types.Reply, error) {
	return w.raw.Close(ctx)
}

// Abort cancels the write, cleaning up any server-side partial upload
// the backend created.
func (w *Writer) Abort(ctx context.Context) error {
	return w.raw.Abort(ctx)
}
