// Package accessio is the public entry point: Operator wraps a fully
// layered raw.Accessor behind the small set of path-oriented
// convenience methods most callers want, grounded on the original
// implementation's Operator/BlockingOperator split (original_source's
// src/operator.rs and src/operator/operator.rs) adapted to Go's
// synchronous-by-default style — there is no separate blocking
// variant here since Go has no async/await split to mirror.
package accessio

import (
	"bytes"
	"context"
	"io"

	"github.com/accessio/accessio/internal/health"
	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

func isNotFound(err error) bool {
	return xerrors.IsKind(err, xerrors.KindNotFound)
}

// Operator is the entry point for all public operations against a
// configured backend. It is safe for concurrent use; the layers it
// wraps are responsible for their own synchronization.
type Operator struct {
	acc raw.Accessor
}

// New wraps a fully built accessor (typically the result of
// internal/builder.OperatorBuilder.Build, or Open/FromMap below) in an
// Operator.
func New(acc raw.Accessor) *Operator {
	return &Operator{acc: acc}
}

// Info reports the scheme, root, and negotiated capability of the
// wrapped accessor.
func (o *Operator) Info() types.AccessorInfo {
	return o.acc.Info()
}

// Read reads an entire object into memory. For large objects or
// streaming, use Reader instead.
func (o *Operator) Read(ctx context.Context, path string) ([]byte, error) {
	r, err := o.Reader(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ReadRange reads the half-open byte range rng of path into memory.
func (o *Operator) ReadRange(ctx context.Context, path string, rng types.Range) ([]byte, error) {
	r, err := o.ReaderBuilder(path).Range(rng).Build(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Reader opens a streaming reader over the whole object.
func (o *Operator) Reader(ctx context.Context, path string) (*Reader, error) {
	return o.ReaderBuilder(path).Build(ctx)
}

// ReaderBuilder starts a fluent reader configuration for path.
func (o *Operator) ReaderBuilder(path string) *ReaderBuilder {
	return &ReaderBuilder{acc: o.acc, path: path, rng: types.WholeRange()}
}

// Write writes data to path in a single call, buffering it through
// whatever chunking the backend requires.
func (o *Operator) Write(ctx context.Context, path string, data []byte) error {
	w, err := o.Writer(ctx, path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Abort(ctx)
		return err
	}
	_, err = w.Close(ctx)
	return err
}

// Writer opens a streaming writer over path with default options.
func (o *Operator) Writer(ctx context.Context, path string) (*Writer, error) {
	return o.WriterBuilder(path).Build(ctx)
}

// WriterBuilder starts a fluent writer configuration for path.
func (o *Operator) WriterBuilder(path string) *WriterBuilder {
	return &WriterBuilder{acc: o.acc, path: path}
}

// Stat returns metadata for path.
func (o *Operator) Stat(ctx context.Context, path string) (types.Metadata, error) {
	reply, err := o.acc.Stat(ctx, path, types.OpStat{})
	if err != nil {
		return types.Metadata{}, err
	}
	return reply.Metadata, nil
}

// IsExist reports whether path exists, treating a NotFound error as a
// false result rather than an error.
func (o *Operator) IsExist(ctx context.Context, path string) (bool, error) {
	_, err := o.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// CreateDir creates an empty directory marker at path.
func (o *Operator) CreateDir(ctx context.Context, path string) error {
	_, err := o.acc.CreateDir(ctx, path, types.OpCreateDir{})
	return err
}

// Delete removes path. Deleting a path that does not exist is not an
// error.
func (o *Operator) Delete(ctx context.Context, path string) error {
	_, err := o.acc.Delete(ctx, path, types.OpDelete{})
	return err
}

// Copy copies from to to within the same backend.
func (o *Operator) Copy(ctx context.Context, from, to string) error {
	_, err := o.acc.Copy(ctx, from, to, types.OpCopy{})
	return err
}

// Rename moves from to to within the same backend.
func (o *Operator) Rename(ctx context.Context, from, to string) error {
	_, err := o.acc.Rename(ctx, from, to, types.OpRename{})
	return err
}

// List lists the immediate children of path. For a recursive walk, see
// Walk.
func (o *Operator) List(ctx context.Context, path string) ([]types.Entry, error) {
	_, lister, err := o.acc.List(ctx, path, types.OpList{})
	if err != nil {
		return nil, err
	}
	defer lister.Close()

	var entries []types.Entry
	for {
		page, err := lister.Next(ctx)
		if err != nil {
			return entries, err
		}
		if len(page) == 0 {
			return entries, nil
		}
		entries = append(entries, page...)
	}
}

// Walk recursively lists every entry at or below path using
// internal/raw's top-down walker.
func (o *Operator) Walk(ctx context.Context, path string) ([]types.Entry, error) {
	return raw.CollectAll(ctx, o.acc, path)
}

// RemoveAll deletes path and, if it is a directory, every entry beneath
// it.
func (o *Operator) RemoveAll(ctx context.Context, path string) error {
	entries, err := o.Walk(ctx, path)
	if err != nil {
		return err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if err := o.Delete(ctx, entries[i].Path); err != nil {
			return err
		}
	}
	return o.Delete(ctx, path)
}

// Healthy builds a health.Checker wired to this Operator's backend via
// health.AccessorCheck, registers the single "backend" check, and runs
// it once. Callers that want periodic background checks instead of a
// one-shot probe should call health.NewChecker/RegisterCheck directly
// with the same AccessorCheck(o.Stat) hook and call Start themselves.
func (o *Operator) Healthy(ctx context.Context) (health.Status, error) {
	checker, err := health.NewChecker(nil)
	if err != nil {
		return health.StatusUnknown, err
	}
	check := health.AccessorCheck(func(ctx context.Context, path string) error {
		_, err := o.Stat(ctx, path)
		return err
	})
	if err := checker.RegisterCheck("backend", "backend accessor reachability", health.CategoryStorage, health.PriorityCritical, check); err != nil {
		return health.StatusUnknown, err
	}
	result, err := checker.RunCheck(ctx, "backend")
	if err != nil {
		return health.StatusUnknown, err
	}
	return result.Status, nil
}

// Presign generates a presigned URL for op against path, valid for the
// duration in op.Expire.
func (o *Operator) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	return o.acc.Presign(ctx, path, op)
}

// Batch submits a batch of operations (currently delete-only, per
// types.OpBatch) and returns the per-path results.
func (o *Operator) Batch(ctx context.Context, items []types.BatchItem) (types.ReplyBatch, error) {
	return o.acc.Batch(ctx, types.OpBatch{Items: items})
}

// bufferBytes is a helper used by Writer.Write to adapt a []byte into
// the buffer.Buffer the underlying raw.Writer expects.
func bufferBytes(p []byte) buffer.Buffer {
	cp := make([]byte, len(p))
	copy(cp, p)
	return buffer.New(cp)
}
