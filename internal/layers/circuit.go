package layers

import (
	"context"

	"github.com/accessio/accessio/internal/circuit"
	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// Circuit wraps an Accessor with the teacher's generic circuit breaker,
// tripping to Unexpected/temporary errors once the per-scheme failure
// rate crosses config's threshold. One breaker is created per accessor
// the layer wraps, named after its scheme.
func Circuit(config circuit.Config) Layer {
	return LayerFunc(func(inner raw.Accessor) raw.Accessor {
		name := string(inner.Info().Scheme)
		return &circuitAccessor{inner: inner, breaker: circuit.NewCircuitBreaker(name, config)}
	})
}

type circuitAccessor struct {
	inner   raw.Accessor
	breaker *circuit.CircuitBreaker
}

func (a *circuitAccessor) Info() types.AccessorInfo { return a.inner.Info() }

// translate maps the breaker's own open/too-many-requests sentinel
// errors into the closed error model; errors from the wrapped call pass
// through unchanged.
func (a *circuitAccessor) translate(err error) error {
	if err == circuit.ErrOpenState || err == circuit.ErrTooManyRequests {
		return xerrors.New(xerrors.KindUnexpected, "circuit breaker "+a.breaker.Name()+" is open").WithTemporary(true)
	}
	return err
}

func (a *circuitAccessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	var reply types.Reply
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, err = a.inner.CreateDir(ctx, path, op)
		return err
	})
	return reply, a.translate(err)
}

func (a *circuitAccessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	var reply types.Reply
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, err = a.inner.Stat(ctx, path, op)
		return err
	})
	return reply, a.translate(err)
}

func (a *circuitAccessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	var reply types.Reply
	var reader raw.Reader
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, reader, err = a.inner.Read(ctx, path, op)
		return err
	})
	return reply, reader, a.translate(err)
}

func (a *circuitAccessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	var reply types.Reply
	var writer raw.Writer
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, writer, err = a.inner.Write(ctx, path, op)
		return err
	})
	return reply, writer, a.translate(err)
}

func (a *circuitAccessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	var reply types.Reply
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, err = a.inner.Delete(ctx, path, op)
		return err
	})
	return reply, a.translate(err)
}

func (a *circuitAccessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	var reply types.Reply
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, err = a.inner.Copy(ctx, from, to, op)
		return err
	})
	return reply, a.translate(err)
}

func (a *circuitAccessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	var reply types.Reply
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, err = a.inner.Rename(ctx, from, to, op)
		return err
	})
	return reply, a.translate(err)
}

func (a *circuitAccessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	var reply types.Reply
	var lister raw.Lister
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, lister, err = a.inner.List(ctx, path, op)
		return err
	})
	return reply, lister, a.translate(err)
}

func (a *circuitAccessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	var reply types.ReplyPresign
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, err = a.inner.Presign(ctx, path, op)
		return err
	})
	return reply, a.translate(err)
}

func (a *circuitAccessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	var reply types.ReplyBatch
	err := a.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		reply, err = a.inner.Batch(ctx, op)
		return err
	})
	return reply, a.translate(err)
}
