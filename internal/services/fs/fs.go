// Package fs implements an Accessor over the local filesystem, grounded
// on the original fs backend (services/fs/backend.rs)'s root+relative
// path resolution, and the teacher's pkg/utils.SecureJoin for the
// directory-traversal guard every path resolution goes through.
package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/utils"
	"github.com/accessio/accessio/pkg/xerrors"
)

// Accessor serves an Accessor rooted at a directory on the local
// filesystem. CreateDir happens eagerly (mirroring the original
// backend's Builder.finish which creates root if missing) as well as on
// request.
type Accessor struct {
	root string
}

func New(root string) (*Accessor, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, xerrors.Newf(xerrors.KindConfigInvalid, "resolve fs root %q: %v", root, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, xerrors.Newf(xerrors.KindConfigInvalid, "create fs root %q: %v", abs, err)
	}
	return &Accessor{root: abs}, nil
}

func (a *Accessor) Info() types.AccessorInfo {
	return types.AccessorInfo{
		Scheme: types.SchemeFS,
		Root:   types.NormalizeRoot(a.root),
		Name:   "fs",
		Capability: types.Capability{
			Read: true, Stat: true, Write: true, WriteCanAppend: true, WriteCanEmpty: true,
			CreateDir: true, Delete: true, Copy: true, Rename: true,
			List: true, Batch: true, BatchMaxOperations: 1000,
			Blocking: true,
		},
		Hints: types.Hints{ReadStreamable: true, ReadSeekable: true},
	}
}

func (a *Accessor) resolve(path string) (string, error) {
	rel := strings.TrimPrefix(path, "/")
	if rel == "" {
		return a.root, nil
	}
	abs, err := utils.SecureJoin(a.root, rel)
	if err != nil {
		return "", xerrors.Newf(xerrors.KindInvalidInput, "path escapes root: %v", err).WithContext("path", path)
	}
	return abs, nil
}

func translateErr(err error, path string) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return xerrors.New(xerrors.KindNotFound, "no such file or directory").WithContext("path", path).WithCause(err)
	}
	if os.IsPermission(err) {
		return xerrors.New(xerrors.KindPermissionDenied, "permission denied").WithContext("path", path).WithCause(err)
	}
	if os.IsExist(err) {
		return xerrors.New(xerrors.KindAlreadyExists, "already exists").WithContext("path", path).WithCause(err)
	}
	return xerrors.New(xerrors.KindUnexpected, err.Error()).WithContext("path", path).WithCause(err)
}

func (a *Accessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	abs, err := a.resolve(path)
	if err != nil {
		return types.Reply{}, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return types.Reply{}, translateErr(err, path)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	abs, err := a.resolve(path)
	if err != nil {
		return types.Reply{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return types.Reply{}, translateErr(err, path)
	}
	return types.Reply{Metadata: metadataFromFileInfo(info)}, nil
}

func metadataFromFileInfo(info os.FileInfo) types.Metadata {
	mode := types.ModeFile
	if info.IsDir() {
		mode = types.ModeDir
	}
	return types.Metadata{
		Mode:          mode,
		ContentLength: uint64(info.Size()),
		LastModified:  info.ModTime(),
	}
}

func (a *Accessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	abs, err := a.resolve(path)
	if err != nil {
		return types.Reply{}, nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return types.Reply{}, nil, translateErr(err, path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return types.Reply{}, nil, translateErr(err, path)
	}
	if info.IsDir() {
		f.Close()
		return types.Reply{}, nil, xerrors.New(xerrors.KindIsADirectory, "cannot read a directory").WithContext("path", path)
	}

	start, _ := op.Range.Resolve(info.Size())
	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			f.Close()
			return types.Reply{}, nil, translateErr(err, path)
		}
	}

	return types.Reply{Metadata: metadataFromFileInfo(info)}, newReader(f), nil
}

func (a *Accessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	abs, err := a.resolve(path)
	if err != nil {
		return types.Reply{}, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return types.Reply{}, nil, translateErr(err, path)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if op.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	if op.IfNotExists {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(abs, flags, 0o640)
	if err != nil {
		return types.Reply{}, nil, translateErr(err, path)
	}
	return types.Reply{}, newWriter(f), nil
}

func (a *Accessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	abs, err := a.resolve(path)
	if err != nil {
		return types.Reply{}, err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return types.Reply{}, translateErr(err, path)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	srcAbs, err := a.resolve(from)
	if err != nil {
		return types.Reply{}, err
	}
	dstAbs, err := a.resolve(to)
	if err != nil {
		return types.Reply{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o750); err != nil {
		return types.Reply{}, translateErr(err, to)
	}

	src, err := os.Open(srcAbs)
	if err != nil {
		return types.Reply{}, translateErr(err, from)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstAbs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return types.Reply{}, translateErr(err, to)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return types.Reply{}, translateErr(err, to)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	srcAbs, err := a.resolve(from)
	if err != nil {
		return types.Reply{}, err
	}
	dstAbs, err := a.resolve(to)
	if err != nil {
		return types.Reply{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o750); err != nil {
		return types.Reply{}, translateErr(err, to)
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return types.Reply{}, translateErr(err, to)
	}
	return types.Reply{}, nil
}

func (a *Accessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	abs, err := a.resolve(path)
	if err != nil {
		return types.Reply{}, nil, err
	}

	var entries []types.Entry
	if op.Recursive {
		err = filepath.Walk(abs, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if p == abs {
				return nil
			}
			rel, _ := filepath.Rel(a.root, p)
			entries = append(entries, types.Entry{
				Path:     "/" + filepath.ToSlash(rel),
				Metadata: metadataFromFileInfo(info),
			})
			return nil
		})
		if err != nil {
			return types.Reply{}, nil, translateErr(err, path)
		}
	} else {
		dirEntries, readErr := os.ReadDir(abs)
		if readErr != nil {
			return types.Reply{}, nil, translateErr(readErr, path)
		}
		for _, de := range dirEntries {
			info, infoErr := de.Info()
			if infoErr != nil {
				return types.Reply{}, nil, translateErr(infoErr, path)
			}
			rel, _ := filepath.Rel(a.root, filepath.Join(abs, de.Name()))
			entries = append(entries, types.Entry{
				Path:     "/" + filepath.ToSlash(rel),
				Metadata: metadataFromFileInfo(info),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return types.Reply{}, newLister(entries), nil
}

func (a *Accessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	return types.ReplyPresign{}, xerrors.New(xerrors.KindUnsupported, "fs backend does not support presign")
}

func (a *Accessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	results := make([]types.BatchResult, len(op.Items))
	for i, item := range op.Items {
		_, err := a.Delete(ctx, item.Path, item.Op)
		results[i] = types.BatchResult{Path: item.Path, Err: err}
	}
	return types.ReplyBatch{Results: results}, nil
}

type reader struct {
	f *os.File
}

func newReader(f *os.File) *reader { return &reader{f: f} }

func (r *reader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	buf := make([]byte, limit)
	n, err := r.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return buffer.Buffer{}, translateErr(err, r.f.Name())
	}
	return buffer.New(buf[:n]), nil
}

func (r *reader) PollRead(ctx context.Context, p []byte) (int, error) {
	n, err := r.f.Read(p)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (r *reader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	pos, err := r.f.Seek(offset, whence)
	if err != nil {
		return 0, translateErr(err, r.f.Name())
	}
	return pos, nil
}

func (r *reader) PollNextSegment(ctx context.Context) (buffer.Buffer, bool, error) {
	tmp := make([]byte, 64*1024)
	n, err := r.f.Read(tmp)
	if n == 0 {
		if err == io.EOF || err == nil {
			return buffer.Buffer{}, false, nil
		}
		return buffer.Buffer{}, false, translateErr(err, r.f.Name())
	}
	return buffer.New(tmp[:n]), true, nil
}

func (r *reader) Close() error { return r.f.Close() }

type writer struct {
	f         *os.File
	written   int64
	startedAt time.Time
}

func newWriter(f *os.File) *writer { return &writer{f: f, startedAt: time.Now()} }

func (w *writer) Write(ctx context.Context, bs buffer.Buffer) (int, error) {
	data := bs.Bytes()
	n, err := w.f.Write(data)
	w.written += int64(n)
	if err != nil {
		return n, translateErr(err, w.f.Name())
	}
	return n, nil
}

func (w *writer) Close(ctx context.Context) (types.Reply, error) {
	if err := w.f.Close(); err != nil {
		return types.Reply{}, translateErr(err, w.f.Name())
	}
	return types.Reply{Metadata: types.Metadata{Mode: types.ModeFile, ContentLength: uint64(w.written)}}, nil
}

func (w *writer) Abort(ctx context.Context) error {
	name := w.f.Name()
	w.f.Close()
	return os.Remove(name)
}

type lister struct {
	entries []types.Entry
	done    bool
}

func newLister(entries []types.Entry) *lister { return &lister{entries: entries} }

func (l *lister) Next(ctx context.Context) ([]types.Entry, error) {
	if l.done {
		return nil, nil
	}
	l.done = true
	return l.entries, nil
}

func (l *lister) Close() error { return nil }
