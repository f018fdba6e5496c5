// Package completion implements the capability-completion engine: the
// layer that inspects an accessor's advertised Hints and synthesizes
// reader seek/stream adapters, hierarchical/flat lister adapters, and
// the async-to-blocking bridge.
//
// Go interfaces cannot express "this method is unimplemented" the way a
// trait object with a default method can: every Accessor and Reader
// here implements the whole contract. So completion's job is narrower
// than in the source design — it picks the adapter that performs best
// given what the leaf natively offers (Hints), while correctness holds
// regardless of which adapter is chosen. A backend that sets
// ReadSeekable=false still needs a working PollSeek; completion just
// decides whether to call through to it directly (identity) or reissue
// ReadAt calls around it (range-reader) for efficiency.
package completion

import (
	"context"

	"github.com/accessio/accessio/internal/layers"
	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/types"
)

// New builds the completion layer, inserted once above the leaf's
// error-context layer.
func New() layers.Layer {
	return layers.LayerFunc(func(inner raw.Accessor) raw.Accessor {
		return &completionAccessor{inner: inner}
	})
}

type completionAccessor struct {
	inner raw.Accessor
}

func (a *completionAccessor) Info() types.AccessorInfo { return a.inner.Info() }

func (a *completionAccessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	return a.inner.CreateDir(ctx, path, op)
}

func (a *completionAccessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	return a.inner.Stat(ctx, path, op)
}

// Read wraps the leaf's reader with whichever seek/stream adapter its
// Hints call for.
func (a *completionAccessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	reply, reader, err := a.inner.Read(ctx, path, op)
	if err != nil {
		return reply, nil, err
	}
	hints := a.inner.Info().Hints
	reader = wrapReader(ctx, a.inner, path, reader, hints)
	return reply, reader, nil
}

func (a *completionAccessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	return a.inner.Write(ctx, path, op)
}

func (a *completionAccessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	return a.inner.Delete(ctx, path, op)
}

func (a *completionAccessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	return a.inner.Copy(ctx, from, to, op)
}

func (a *completionAccessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	return a.inner.Rename(ctx, from, to, op)
}

// List synthesizes hierarchical<->flat forms per the capability matrix.
func (a *completionAccessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	capa := a.inner.Info().Capability
	needHierarchical := !op.Recursive && !capa.List
	needFlat := op.Recursive && !capa.ListWithRecursive

	reply, lister, err := a.inner.List(ctx, path, op)
	if err != nil {
		return reply, nil, err
	}

	switch {
	case needFlat && capa.List:
		// Only hierarchical native: synthesize a recursive scan by
		// expanding DIR entries breadth-first.
		return reply, newRecursiveExpander(ctx, a.inner, path), nil
	case needHierarchical && capa.ListWithRecursive:
		// Only flat native: synthesize direct-children listing by
		// grouping the flat stream by next path segment.
		return reply, newHierarchyFromFlat(path, lister), nil
	default:
		return reply, lister, nil
	}
}

func (a *completionAccessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	return a.inner.Presign(ctx, path, op)
}

func (a *completionAccessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	return a.inner.Batch(ctx, op)
}
