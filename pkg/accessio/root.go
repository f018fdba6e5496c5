package accessio

import (
	"context"

	"github.com/accessio/accessio/internal/builder"
	"github.com/accessio/accessio/internal/config"
	"github.com/accessio/accessio/internal/layers"
	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/internal/services/azblob"
	"github.com/accessio/accessio/internal/services/fs"
	"github.com/accessio/accessio/internal/services/gcs"
	httpservice "github.com/accessio/accessio/internal/services/http"
	"github.com/accessio/accessio/internal/services/memory"
	"github.com/accessio/accessio/internal/services/s3"
	"github.com/accessio/accessio/internal/services/sftp"
	"github.com/accessio/accessio/internal/services/webhdfs"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// Config describes a backend to open: its scheme, its raw configuration
// map (see each services/<scheme> package's New for the keys it reads),
// and the optional layers to stack above the mandatory error-context/
// completion/type-erasure trio every built accessor carries.
type Config struct {
	Scheme types.Scheme
	Values map[string]string
	Layers []layers.Layer
}

// Open builds the leaf accessor named by cfg.Scheme, stacks cfg.Layers
// on top of it via internal/builder, and returns the resulting
// Operator. This is the one place in the module that knows about every
// backend package — every other consumer depends only on raw.Accessor.
func Open(ctx context.Context, cfg Config) (*Operator, error) {
	leaf, err := openLeaf(ctx, cfg.Scheme, cfg.Values)
	if err != nil {
		return nil, err
	}
	b := builder.New(leaf)
	for _, l := range cfg.Layers {
		b = b.With(l)
	}
	return New(b.Build()), nil
}

func openLeaf(ctx context.Context, scheme types.Scheme, values map[string]string) (raw.Accessor, error) {
	fromMap := config.NewFromMap(string(scheme), values)

	switch scheme {
	case types.SchemeMemory:
		root := fromMap.Optional("root", "/")
		return memory.New(root), nil
	case types.SchemeFS:
		root, err := fromMap.Require("root")
		if err != nil {
			return nil, err
		}
		return fs.New(root)
	case types.SchemeS3:
		return s3.New(ctx, fromMap)
	case types.SchemeGCS:
		return gcs.New(ctx, fromMap)
	case types.SchemeAzblob:
		return azblob.New(fromMap)
	case types.SchemeHTTP:
		return httpservice.New(fromMap)
	case types.SchemeWebHDFS:
		return webhdfs.New(fromMap)
	case types.SchemeSFTP:
		return sftp.New(fromMap)
	default:
		return nil, xerrors.Newf(xerrors.KindUnsupported, "unknown scheme %q", scheme)
	}
}
