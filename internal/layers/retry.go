package layers

import (
	"context"
	"time"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/retry"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// OnRetry is notified with the error and the delay before the next
// attempt, for logging.
type OnRetry func(operation, path string, err error, delay time.Duration)

// Retry wraps each Accessor method (other than Write; see below) in a
// bounded backoff retry driven by policy. The retry predicate is
// error.Temporary(); on final giveup the error is re-tagged permanent.
//
// Write is not transparently retried at this seam: the Reader feeding a
// writer is not generally restartable. Retries for writes are confined
// to the chunked writer, where each part's bytes are owned and
// replayable.
func Retry(policy retry.Policy, onRetry OnRetry) Layer {
	return LayerFunc(func(inner raw.Accessor) raw.Accessor {
		return &retryAccessor{inner: inner, policy: policy, onRetry: onRetry}
	})
}

type retryAccessor struct {
	inner   raw.Accessor
	policy  retry.Policy
	onRetry OnRetry
}

func (a *retryAccessor) Info() types.AccessorInfo { return a.inner.Info() }

func do(ctx context.Context, policy retry.Policy, notify func(err error, delay time.Duration), fn func() error) error {
	seq := policy.NewDelaySequence()
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if !xerrors.IsTemporary(err) {
			return err
		}
		delay, ok := seq.Next()
		if !ok {
			if xe, ok := err.(*xerrors.Error); ok {
				return xe.MarkPersistent()
			}
			return err
		}
		if notify != nil {
			notify(err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (a *retryAccessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	var reply types.Reply
	err := do(ctx, a.policy, a.notifier("create_dir", path), func() error {
		var err error
		reply, err = a.inner.CreateDir(ctx, path, op)
		return err
	})
	return reply, err
}

func (a *retryAccessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	var reply types.Reply
	err := do(ctx, a.policy, a.notifier("stat", path), func() error {
		var err error
		reply, err = a.inner.Stat(ctx, path, op)
		return err
	})
	return reply, err
}

func (a *retryAccessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	var reply types.Reply
	var reader raw.Reader
	err := do(ctx, a.policy, a.notifier("read", path), func() error {
		var err error
		reply, reader, err = a.inner.Read(ctx, path, op)
		return err
	})
	return reply, reader, err
}

// Write is never retried transparently at this seam (see doc comment).
func (a *retryAccessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	return a.inner.Write(ctx, path, op)
}

func (a *retryAccessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	var reply types.Reply
	err := do(ctx, a.policy, a.notifier("delete", path), func() error {
		var err error
		reply, err = a.inner.Delete(ctx, path, op)
		return err
	})
	return reply, err
}

func (a *retryAccessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	var reply types.Reply
	err := do(ctx, a.policy, a.notifier("copy", from+" -> "+to), func() error {
		var err error
		reply, err = a.inner.Copy(ctx, from, to, op)
		return err
	})
	return reply, err
}

func (a *retryAccessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	var reply types.Reply
	err := do(ctx, a.policy, a.notifier("rename", from+" -> "+to), func() error {
		var err error
		reply, err = a.inner.Rename(ctx, from, to, op)
		return err
	})
	return reply, err
}

func (a *retryAccessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	var reply types.Reply
	var lister raw.Lister
	err := do(ctx, a.policy, a.notifier("list", path), func() error {
		var err error
		reply, lister, err = a.inner.List(ctx, path, op)
		return err
	})
	return reply, lister, err
}

func (a *retryAccessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	var reply types.ReplyPresign
	err := do(ctx, a.policy, a.notifier("presign", path), func() error {
		var err error
		reply, err = a.inner.Presign(ctx, path, op)
		return err
	})
	return reply, err
}

func (a *retryAccessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	var reply types.ReplyBatch
	err := do(ctx, a.policy, a.notifier("batch", ""), func() error {
		var err error
		reply, err = a.inner.Batch(ctx, op)
		return err
	})
	return reply, err
}

func (a *retryAccessor) notifier(operation, path string) func(err error, delay time.Duration) {
	if a.onRetry == nil {
		return nil
	}
	return func(err error, delay time.Duration) {
		a.onRetry(operation, path, err, delay)
	}
}
