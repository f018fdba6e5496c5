// Package memory implements an in-process Accessor backed by a typed
// key-value store, grounded on the original kv typed-adapter backend
// (adapters/typed_kv/backend.rs) — buffer-then-set writes, full-value
// reads, path-prefix scans synthesized into listing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

type entry struct {
	value    []byte
	metadata types.Metadata
}

// Accessor is a goroutine-safe in-memory store. It natively supports
// the whole capability surface except Presign, Batch native-acceleration
// (it falls back to sequential deletes, same as any backend the
// batchengine can't accelerate), and Rename as an atomic primitive
// (implemented as copy+delete, same as S3/GCS would do).
type Accessor struct {
	root string
	name string

	mu    sync.RWMutex
	store map[string]*entry
}

func New(root string) *Accessor {
	return &Accessor{
		root:  types.NormalizeRoot(root),
		name:  "memory",
		store: make(map[string]*entry),
	}
}

func (a *Accessor) Info() types.AccessorInfo {
	return types.AccessorInfo{
		Scheme: types.SchemeMemory,
		Root:   a.root,
		Name:   a.name,
		Capability: types.Capability{
			Read: true, Stat: true, Write: true, WriteCanEmpty: true,
			CreateDir: true, Delete: true, Copy: true, Rename: true,
			List: true, ListWithRecursive: true,
			Batch: true, BatchMaxOperations: 1000,
			Blocking: true,
		},
		Hints: types.Hints{ReadStreamable: true, ReadSeekable: true},
	}
}

func (a *Accessor) abs(path string) string {
	return types.JoinPath(a.root, path)
}

func (a *Accessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	p := a.abs(path)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.store[p]; !exists {
		a.store[p] = &entry{metadata: types.Metadata{Mode: types.ModeDir, LastModified: time.Now()}}
	}
	return types.Reply{}, nil
}

func (a *Accessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	p := a.abs(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if p == a.root {
		return types.Reply{Metadata: types.Metadata{Mode: types.ModeDir}}, nil
	}
	if e, ok := a.store[p]; ok {
		return types.Reply{Metadata: e.metadata}, nil
	}
	return types.Reply{}, xerrors.New(xerrors.KindNotFound, "path not found").WithContext("path", path)
}

func (a *Accessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	p := a.abs(path)

	a.mu.RLock()
	e, ok := a.store[p]
	a.mu.RUnlock()
	if !ok {
		return types.Reply{}, nil, xerrors.New(xerrors.KindNotFound, "path not found").WithContext("path", path)
	}
	if e.metadata.IsDir() {
		return types.Reply{}, nil, xerrors.New(xerrors.KindIsADirectory, "cannot read a directory").WithContext("path", path)
	}

	size := int64(len(e.value))
	start, end := op.Range.Resolve(size)
	if start < 0 || start > size {
		start = size
	}
	if end > size {
		end = size
	}
	window := make([]byte, end-start)
	copy(window, e.value[start:end])

	return types.Reply{Metadata: e.metadata}, newReader(window), nil
}

func (a *Accessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	p := a.abs(path)
	return types.Reply{}, newWriter(a, p, op), nil
}

func (a *Accessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	p := a.abs(path)

	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.store, p)
	return types.Reply{}, nil
}

func (a *Accessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	src := a.abs(from)
	dst := a.abs(to)

	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.store[src]
	if !ok {
		return types.Reply{}, xerrors.New(xerrors.KindNotFound, "source not found").WithContext("path", from)
	}
	value := make([]byte, len(e.value))
	copy(value, e.value)
	a.store[dst] = &entry{value: value, metadata: e.metadata}
	return types.Reply{}, nil
}

func (a *Accessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	if _, err := a.Copy(ctx, from, to, types.OpCopy{}); err != nil {
		return types.Reply{}, err
	}
	return a.Delete(ctx, from, types.OpDelete{})
}

func (a *Accessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	prefix := a.abs(path)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	var matches []string
	for p := range a.store {
		if strings.HasPrefix(p, prefix) && p != prefix {
			matches = append(matches, p)
		}
	}
	sort.Strings(matches)

	entries := make([]types.Entry, 0, len(matches))
	seenDirs := make(map[string]bool)
	for _, p := range matches {
		e := a.store[p]
		under := strings.TrimPrefix(p, prefix)
		if op.Recursive {
			entries = append(entries, types.Entry{Path: p, Metadata: e.metadata})
			continue
		}
		if idx := strings.Index(under, "/"); idx >= 0 {
			dirPath := prefix + under[:idx+1]
			if !seenDirs[dirPath] {
				seenDirs[dirPath] = true
				entries = append(entries, types.Entry{Path: dirPath, Metadata: types.Metadata{Mode: types.ModeDir}})
			}
			continue
		}
		entries = append(entries, types.Entry{Path: p, Metadata: e.metadata})
	}

	return types.Reply{}, newLister(entries), nil
}

func (a *Accessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	return types.ReplyPresign{}, xerrors.New(xerrors.KindUnsupported, "memory backend does not support presign")
}

func (a *Accessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	results := make([]types.BatchResult, len(op.Items))
	for i, item := range op.Items {
		_, err := a.Delete(ctx, item.Path, item.Op)
		results[i] = types.BatchResult{Path: item.Path, Err: err}
	}
	return types.ReplyBatch{Results: results}, nil
}

func (a *Accessor) put(p string, value []byte, op types.OpWrite) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store[p] = &entry{
		value: value,
		metadata: types.Metadata{
			Mode:          types.ModeFile,
			ContentLength: uint64(len(value)),
			ContentType:   op.ContentType,
			CacheControl:  op.CacheControl,
			LastModified:  time.Now(),
			UserMetadata:  op.UserMetadata,
		},
	}
}

// reader serves a fully-materialized byte window. Since the whole window
// already lives in memory, ReadAt and PollSeek are native rather than
// delegated to the completion layer's range-reader adapter.
type reader struct {
	mu     sync.Mutex
	data   []byte
	cursor int64
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if offset < 0 || offset > int64(len(r.data)) {
		return buffer.Buffer{}, xerrors.New(xerrors.KindInvalidInput, "offset out of range")
	}
	end := offset + limit
	if end > int64(len(r.data)) {
		end = int64(len(r.data))
	}
	out := make([]byte, end-offset)
	copy(out, r.data[offset:end])
	return buffer.New(out), nil
}

func (r *reader) PollRead(ctx context.Context, p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor >= int64(len(r.data)) {
		return 0, nil
	}
	n := copy(p, r.data[r.cursor:])
	r.cursor += int64(n)
	return n, nil
}

func (r *reader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target int64
	switch whence {
	case raw.SeekStart:
		target = offset
	case raw.SeekCurrent:
		target = r.cursor + offset
	case raw.SeekEnd:
		target = int64(len(r.data)) + offset
	}
	if target < 0 {
		return 0, xerrors.New(xerrors.KindInvalidInput, "seek to negative absolute position")
	}
	r.cursor = target
	return r.cursor, nil
}

func (r *reader) PollNextSegment(ctx context.Context) (buffer.Buffer, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor >= int64(len(r.data)) {
		return buffer.Buffer{}, false, nil
	}
	end := r.cursor + 64*1024
	if end > int64(len(r.data)) {
		end = int64(len(r.data))
	}
	out := make([]byte, end-r.cursor)
	copy(out, r.data[r.cursor:end])
	r.cursor = end
	return buffer.New(out), true, nil
}

func (r *reader) Close() error { return nil }

type writer struct {
	acc  *Accessor
	path string
	op   types.OpWrite
	buf  []byte
}

func newWriter(acc *Accessor, path string, op types.OpWrite) *writer {
	return &writer{acc: acc, path: path, op: op}
}

func (w *writer) Write(ctx context.Context, bs buffer.Buffer) (int, error) {
	data := bs.Bytes()
	w.buf = append(w.buf, data...)
	return len(data), nil
}

func (w *writer) Close(ctx context.Context) (types.Reply, error) {
	w.acc.put(w.path, w.buf, w.op)
	return types.Reply{}, nil
}

func (w *writer) Abort(ctx context.Context) error {
	w.buf = nil
	return nil
}

type lister struct {
	entries []types.Entry
	done    bool
}

func newLister(entries []types.Entry) *lister {
	return &lister{entries: entries}
}

func (l *lister) Next(ctx context.Context) ([]types.Entry, error) {
	if l.done {
		return nil, nil
	}
	l.done = true
	return l.entries, nil
}

func (l *lister) Close() error { return nil }
