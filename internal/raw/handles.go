package raw

import (
	"context"

	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
)

// Seek whence values, mirroring io.Seeker.
const (
	SeekStart = iota
	SeekCurrent
	SeekEnd
)

// Reader is the suspension-capable contract returned by Accessor.Read.
// Every method must be present; a backend returns Unsupported from the
// ones it cannot serve natively and reports its native traits in
// AccessorInfo.Hints, from which layers/completion picks the adapters.
//
// Readers are single-owner and cooperatively cancellable: dropping one
// before EOF is valid and side-effect-free.
type Reader interface {
	// ReadAt copies up to limit bytes starting at offset into a Buffer.
	// Native range-capable readers implement this directly.
	ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error)

	// PollRead copies up to len(p) bytes at the current cursor into p,
	// advancing it, returning 0 and no error at EOF instead of io.EOF —
	// callers distinguish EOF by a zero-length, nil-error result
	// together with a subsequent call also returning zero.
	PollRead(ctx context.Context, p []byte) (int, error)

	// PollSeek repositions the cursor. Backends without native seek are
	// wrapped by the completion engine's range-reader adapter.
	PollSeek(ctx context.Context, offset int64, whence int) (int64, error)

	// PollNextSegment yields the next raw buffer segment without an
	// extra copy, or a zero Buffer with ok=false at EOF.
	PollNextSegment(ctx context.Context) (seg buffer.Buffer, ok bool, err error)

	Close() error
}

// Writer is the contract returned by Accessor.Write. Write may be called
// repeatedly; the writer buffers and flushes at its own discretion.
// Close finalizes and must be called before the result is durable.
// Abort cancels and, where the backend supports it, cleans up any
// server-side partial upload.
type Writer interface {
	// Write enqueues bs and reports how many bytes were accepted.
	Write(ctx context.Context, bs buffer.Buffer) (int, error)
	Close(ctx context.Context) (types.Reply, error)
	Abort(ctx context.Context) error
}

// Lister is a lazy, finite sequence of Entry records. Next may return 0,
// 1, or many entries per call (the contract speaks in pages). A Lister
// may be terminated early by Close without leaking backend state.
type Lister interface {
	Next(ctx context.Context) ([]types.Entry, error)
	Close() error
}
