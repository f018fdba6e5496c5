// Package raw defines the Accessor contract: the polymorphic boundary
// every backend and every layer implements.
package raw

import (
	"context"

	"github.com/accessio/accessio/pkg/types"
)

// Accessor is the service-facing contract every backend and every layer
// implements. Every method takes a logical path and the matching
// Op-record. Methods returning a handle (Read, Write, List) return it
// alongside the reply record.
//
// An accessor must reject operations whose capabilities it does not
// advertise with error kind Unsupported — this is how layers detect
// missing capabilities at build time and install completion shims.
//
// Implementations are Send+Sync in spirit: methods take no exclusive
// receiver state and must be safe for concurrent use from multiple
// goroutines. Any per-path state an implementation keeps (e.g. a stat
// cache) must be internally synchronized.
type Accessor interface {
	// Info returns the accessor's immutable identity and capability set.
	Info() types.AccessorInfo

	CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error)
	Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error)
	Read(ctx context.Context, path string, op types.OpRead) (types.Reply, Reader, error)
	Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, Writer, error)
	Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error)
	Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error)
	Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error)
	List(ctx context.Context, path string, op types.OpList) (types.Reply, Lister, error)
	Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error)
	Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error)
}

// BlockingAccessor is the blocking half of the contract. A backend may
// implement only the async Accessor and let the completion engine derive
// BlockingAccessor on a runtime of its choosing (see layers/completion).
// The backends in this module, fs and memory included, implement only
// Accessor.
type BlockingAccessor interface {
	Info() types.AccessorInfo

	CreateDirBlocking(path string, op types.OpCreateDir) (types.Reply, error)
	StatBlocking(path string, op types.OpStat) (types.Reply, error)
	ReadBlocking(path string, op types.OpRead) (types.Reply, Reader, error)
	WriteBlocking(path string, op types.OpWrite) (types.Reply, Writer, error)
	DeleteBlocking(path string, op types.OpDelete) (types.Reply, error)
	CopyBlocking(from, to string, op types.OpCopy) (types.Reply, error)
	RenameBlocking(from, to string, op types.OpRename) (types.Reply, error)
	ListBlocking(path string, op types.OpList) (types.Reply, Lister, error)
	PresignBlocking(path string, op types.OpPresign) (types.ReplyPresign, error)
	BatchBlocking(op types.OpBatch) (types.ReplyBatch, error)
}
