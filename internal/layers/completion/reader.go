package completion

import (
	"context"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

const defaultSegmentSize = 64 * 1024

// wrapReader picks the reader adapter the capability-completion matrix
// calls for, based on (native seek, native stream):
//
//	seek  stream  adapter
//	yes   yes     identity
//	yes   no      segment-slicer
//	no    yes     range-reader
//	no    no      both, segment-slicer wrapping range-reader
func wrapReader(ctx context.Context, acc raw.Accessor, path string, inner raw.Reader, hints types.Hints) raw.Reader {
	r := inner
	if !hints.ReadSeekable {
		r = newRangeReader(ctx, acc, path, r)
	}
	if !hints.ReadStreamable {
		r = newSegmentSlicer(r, defaultSegmentSize)
	}
	return r
}

// segmentSlicer wraps a reader that lacks native chunk-streaming,
// cutting PollRead into bounded segments for PollNextSegment.
type segmentSlicer struct {
	inner     raw.Reader
	chunkSize int
}

func newSegmentSlicer(inner raw.Reader, chunkSize int) *segmentSlicer {
	return &segmentSlicer{inner: inner, chunkSize: chunkSize}
}

func (s *segmentSlicer) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	return s.inner.ReadAt(ctx, offset, limit)
}

func (s *segmentSlicer) PollRead(ctx context.Context, p []byte) (int, error) {
	return s.inner.PollRead(ctx, p)
}

func (s *segmentSlicer) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	return s.inner.PollSeek(ctx, offset, whence)
}

func (s *segmentSlicer) PollNextSegment(ctx context.Context) (buffer.Buffer, bool, error) {
	buf := make([]byte, s.chunkSize)
	n, err := s.inner.PollRead(ctx, buf)
	if err != nil {
		return buffer.Buffer{}, false, err
	}
	if n == 0 {
		return buffer.Buffer{}, false, nil
	}
	return buffer.New(buf[:n]), true, nil
}

func (s *segmentSlicer) Close() error {
	return s.inner.Close()
}

// rangeReader wraps a reader that lacks native seek: each seek cancels
// the conceptual in-flight stream and issues a fresh ReadAt at the new
// offset on the next poll. A seek relative to end requires a single
// size-discovering Stat, cached for the handle's lifetime.
type rangeReader struct {
	ctx  context.Context
	acc  raw.Accessor
	path string

	inner  raw.Reader
	cursor int64
	size   *int64
}

func newRangeReader(ctx context.Context, acc raw.Accessor, path string, inner raw.Reader) *rangeReader {
	return &rangeReader{ctx: ctx, acc: acc, path: path, inner: inner}
}

func (r *rangeReader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	return r.inner.ReadAt(ctx, offset, limit)
}

func (r *rangeReader) sizeOf(ctx context.Context) (int64, error) {
	if r.size != nil {
		return *r.size, nil
	}
	reply, err := r.acc.Stat(ctx, r.path, types.OpStat{})
	if err != nil {
		return 0, err
	}
	size := int64(reply.Metadata.ContentLength)
	r.size = &size
	return size, nil
}

func (r *rangeReader) PollRead(ctx context.Context, p []byte) (int, error) {
	buf, err := r.inner.ReadAt(ctx, r.cursor, int64(len(p)))
	if err != nil {
		return 0, err
	}
	n := copy(p, buf.Bytes())
	r.cursor += int64(n)
	return n, nil
}

func (r *rangeReader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	switch whence {
	case raw.SeekStart:
		if offset < 0 {
			return 0, xerrors.New(xerrors.KindInvalidInput, "seek to negative absolute position")
		}
		r.cursor = offset
	case raw.SeekCurrent:
		if r.cursor+offset < 0 {
			return 0, xerrors.New(xerrors.KindInvalidInput, "seek to negative absolute position")
		}
		r.cursor += offset
	case raw.SeekEnd:
		size, err := r.sizeOf(ctx)
		if err != nil {
			return 0, err
		}
		if size+offset < 0 {
			return 0, xerrors.New(xerrors.KindInvalidInput, "seek to negative absolute position")
		}
		r.cursor = size + offset
	default:
		return 0, xerrors.New(xerrors.KindInvalidInput, "unknown seek whence")
	}
	return r.cursor, nil
}

func (r *rangeReader) PollNextSegment(ctx context.Context) (buffer.Buffer, bool, error) {
	buf, err := r.inner.ReadAt(ctx, r.cursor, int64(defaultSegmentSize))
	if err != nil {
		return buffer.Buffer{}, false, err
	}
	if buf.Len() == 0 {
		return buffer.Buffer{}, false, nil
	}
	r.cursor += int64(buf.Len())
	return buf, true, nil
}

func (r *rangeReader) Close() error {
	return r.inner.Close()
}
