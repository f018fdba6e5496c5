package accessio

import (
	"context"
	"io"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/types"
)

// ReaderBuilder configures a read before issuing it, mirroring the
// original implementation's reader-options builder (range/if-match/
// if-none-match) adapted into Go's fluent-method-chain idiom instead of
// Rust's consuming builder.
type ReaderBuilder struct {
	acc         raw.Accessor
	path        string
	rng         types.Range
	ifMatch     string
	ifNoneMatch string
}

// Range restricts the read to rng.
func (b *ReaderBuilder) Range(rng types.Range) *ReaderBuilder {
	b.rng = rng
	return b
}

// IfMatch only serves the read if the object's current ETag matches etag.
func (b *ReaderBuilder) IfMatch(etag string) *ReaderBuilder {
	b.ifMatch = etag
	return b
}

// IfNoneMatch only serves the read if the object's current ETag does not
// match etag.
func (b *ReaderBuilder) IfNoneMatch(etag string) *ReaderBuilder {
	b.ifNoneMatch = etag
	return b
}

// Build issues the read and returns a streaming Reader.
func (b *ReaderBuilder) Build(ctx context.Context) (*Reader, error) {
	reply, r, err := b.acc.Read(ctx, b.path, types.OpRead{
		Range:       b.rng,
		IfMatch:     b.ifMatch,
		IfNoneMatch: b.ifNoneMatch,
	})
	if err != nil {
		return nil, err
	}
	return &Reader{ctx: ctx, raw: r, metadata: reply.Metadata}, nil
}

// Reader adapts a raw.Reader to io.ReadSeekCloser, the shape most Go
// callers expect, while still exposing the underlying Metadata the
// backend returned at open time.
type Reader struct {
	ctx      context.Context
	raw      raw.Reader
	metadata types.Metadata
}

// Metadata returns the metadata the backend attached to this read.
func (r *Reader) Metadata() types.Metadata { return r.metadata }

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.raw.PollRead(r.ctx, p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	return r.raw.PollSeek(r.ctx, offset, whence)
}

func (r *Reader) Close() error {
	return r.raw.Close()
}
