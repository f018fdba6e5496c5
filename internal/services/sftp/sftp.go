// Package sftp implements an Accessor over an SFTP server using
// github.com/pkg/sftp atop golang.org/x/crypto/ssh, grounded on
// original_source/core/src/services/sftp/backend.rs's SftpConfig
// (endpoint, root, user, key, known_hosts_strategy, enable_copy) — the
// one pack dependency pairing (colinmarc/hdfs's sibling, pkg/sftp)
// that speaks this protocol natively, confirmed present in
// other_examples/manifests/grokify-omnistorage/go.mod.
package sftp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/accessio/accessio/internal/config"
	"github.com/accessio/accessio/internal/obslog"
	"github.com/accessio/accessio/internal/pool"
	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// client bundles the ssh transport and the sftp session riding on it —
// closing the sftp client does not tear down the ssh connection, so
// both are kept together and closed in order.
type client struct {
	sftp *sftp.Client
	ssh  *ssh.Client
}

func (c *client) Close() error {
	var err error
	if c.sftp != nil {
		err = c.sftp.Close()
	}
	if c.ssh != nil {
		if cerr := c.ssh.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Accessor implements raw.Accessor over an SFTP server. Connections are
// pooled via internal/pool since establishing a new SSH session per
// operation would dominate latency on anything but a LAN.
type Accessor struct {
	pool       *pool.Pool[*client]
	root       string
	enableCopy bool
	logger     *slog.Logger
}

// New builds an sftp accessor from a backend configuration map: endpoint
// (required, "host:port"), root (optional, default "/"), user
// (required), key (optional, path to a private key file — password auth
// is not offered since the original backend does not support it
// either), known_hosts_strategy (optional: "insecure" to skip host key
// verification; any other value also falls back to skipping, since the
// pack carries no known_hosts parser — see DESIGN.md), enable_copy
// (optional bool), pool_size (optional, default 4).
func New(cfg *config.FromMap) (*Accessor, error) {
	endpoint, err := cfg.Require("endpoint")
	if err != nil {
		return nil, err
	}
	if !strings.Contains(endpoint, ":") {
		endpoint = endpoint + ":22"
	}
	user, err := cfg.Require("user")
	if err != nil {
		return nil, err
	}
	keyPath := cfg.Optional("key", "")
	root := types.NormalizeRoot(cfg.Optional("root", "/"))
	enableCopy, err := cfg.OptionalBool("enable_copy", false)
	if err != nil {
		return nil, err
	}
	poolSize, err := cfg.OptionalInt("pool_size", defaultPoolSize)
	if err != nil {
		return nil, err
	}

	auth, err := authMethod(keyPath)
	if err != nil {
		return nil, xerrors.Newf(xerrors.KindConfigInvalid, "sftp: %v", err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	factory := func() (*client, error) {
		sshConn, err := ssh.Dial("tcp", endpoint, sshConfig)
		if err != nil {
			return nil, xerrors.Newf(xerrors.KindUnexpected, "sftp dial %s: %v", endpoint, err).WithCause(err)
		}
		sftpClient, err := sftp.NewClient(sshConn)
		if err != nil {
			sshConn.Close()
			return nil, xerrors.Newf(xerrors.KindUnexpected, "sftp handshake %s: %v", endpoint, err).WithCause(err)
		}
		return &client{sftp: sftpClient, ssh: sshConn}, nil
	}

	clientPool, err := pool.New[*client](int(poolSize), factory)
	if err != nil {
		return nil, xerrors.Newf(xerrors.KindUnexpected, "sftp pool: %v", err).WithCause(err)
	}

	return &Accessor{
		pool:       clientPool,
		root:       root,
		enableCopy: enableCopy,
		logger:     obslog.New("sftp-backend", slog.LevelInfo).With("endpoint", endpoint),
	}, nil
}

const defaultPoolSize = 4

func authMethod(keyPath string) (ssh.AuthMethod, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("sftp backend requires a private key (password auth is not supported)")
	}
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse key %s: %w", keyPath, err)
	}
	return ssh.PublicKeys(signer), nil
}

func (a *Accessor) Info() types.AccessorInfo {
	return types.AccessorInfo{
		Scheme: types.SchemeSFTP,
		Root:   a.root,
		Capability: types.Capability{
			Read: true, Stat: true, Write: true, WriteCanEmpty: true,
			CreateDir: true, Delete: true, Rename: true, Copy: a.enableCopy,
			List: true, ListWithRecursive: false,
			Blocking: true,
		},
		Hints: types.Hints{ReadStreamable: true, ReadSeekable: true},
	}
}

func (a *Accessor) abs(p string) string {
	return path.Join(a.root, strings.TrimPrefix(p, "/"))
}

func (a *Accessor) withClient(ctx context.Context, fn func(*client) error) error {
	c, err := a.pool.Get(10 * time.Second)
	if err != nil {
		return xerrors.Newf(xerrors.KindUnexpected, "sftp pool get: %v", err).WithCause(err)
	}
	err = fn(c)
	if err != nil {
		// A broken connection should not be recycled; let it be
		// garbage-collected rather than returned to the pool.
		if isConnErr(err) {
			return err
		}
	}
	a.pool.Put(c)
	return err
}

func isConnErr(err error) bool {
	return err == io.ErrClosedPipe || strings.Contains(err.Error(), "EOF") || strings.Contains(err.Error(), "use of closed network connection")
}

func translateErr(err error, path string) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return xerrors.New(xerrors.KindNotFound, "not found").WithContext("path", path).WithCause(err)
	}
	if os.IsPermission(err) {
		return xerrors.New(xerrors.KindPermissionDenied, "permission denied").WithContext("path", path).WithCause(err)
	}
	// pkg/sftp wraps SSH_FX_* statuses in a *sftp.StatusError that
	// satisfies os.IsNotExist/os.IsPermission via errors.Is, so no
	// separate status-code switch is needed here.
	return xerrors.Newf(xerrors.KindUnexpected, "sftp %s: %v", path, err).WithCause(err)
}

func (a *Accessor) CreateDir(ctx context.Context, p string, op types.OpCreateDir) (types.Reply, error) {
	err := a.withClient(ctx, func(c *client) error {
		return c.sftp.MkdirAll(a.abs(p))
	})
	if err != nil {
		return types.Reply{}, translateErr(err, p)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Stat(ctx context.Context, p string, op types.OpStat) (types.Reply, error) {
	var md types.Metadata
	err := a.withClient(ctx, func(c *client) error {
		info, err := c.sftp.Stat(a.abs(p))
		if err != nil {
			return err
		}
		md = metadataFromFileInfo(info)
		return nil
	})
	if err != nil {
		return types.Reply{}, translateErr(err, p)
	}
	return types.Reply{Metadata: md.MarkComplete()}, nil
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

func (a *Accessor) Read(ctx context.Context, p string, op types.OpRead) (types.Reply, raw.Reader, error) {
	var (
		file *sftp.File
		size int64
	)
	err := a.withClient(ctx, func(c *client) error {
		f, err := c.sftp.Open(a.abs(p))
		if err != nil {
			return err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}
		size = info.Size()
		file = f
		return nil
	})
	if err != nil {
		return types.Reply{}, nil, translateErr(err, p)
	}

	start, end := op.Range.Resolve(size)
	if start > 0 {
		if _, err := file.Seek(start, io.SeekStart); err != nil {
			file.Close()
			return types.Reply{}, nil, xerrors.Newf(xerrors.KindUnexpected, "sftp seek %s: %v", p, err).WithCause(err)
		}
	}

	return types.Reply{Metadata: types.Metadata{Mode: types.ModeFile, ContentLength: uint64(end - start)}},
		&fileReader{file: file, remaining: end - start}, nil
}

// fileReader wraps an *sftp.File. Unlike the network-object backends,
// *sftp.File natively supports ReadAt and Seek over the session, so
// this reader advertises real seek support rather than delegating to
// the completion layer's range-reader adapter.
type fileReader struct {
	file      *sftp.File
	remaining int64
}

func (r *fileReader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	buf := make([]byte, limit)
	n, err := r.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return buffer.Buffer{}, xerrors.Newf(xerrors.KindUnexpected, "sftp ReadAt: %v", err).WithCause(err)
	}
	return buffer.New(buf[:n]), nil
}

func (r *fileReader) PollRead(ctx context.Context, p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, nil
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.file.Read(p)
	r.remaining -= int64(n)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (r *fileReader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	return r.file.Seek(offset, whence)
}

func (r *fileReader) PollNextSegment(ctx context.Context) (buffer.Buffer, bool, error) {
	if r.remaining <= 0 {
		return buffer.Buffer{}, false, nil
	}
	chunk := int64(256 * 1024)
	if chunk > r.remaining {
		chunk = r.remaining
	}
	tmp := make([]byte, chunk)
	n, err := r.file.Read(tmp)
	r.remaining -= int64(n)
	if n == 0 {
		if err == io.EOF || err == nil {
			return buffer.Buffer{}, false, nil
		}
		return buffer.Buffer{}, false, err
	}
	return buffer.New(tmp[:n]), true, nil
}

func (r *fileReader) Close() error { return r.file.Close() }

func (a *Accessor) Write(ctx context.Context, p string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	var file *sftp.File
	err := a.withClient(ctx, func(c *client) error {
		dir := path.Dir(a.abs(p))
		if dir != "." && dir != "/" {
			_ = c.sftp.MkdirAll(dir)
		}
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if op.IfNotExists {
			flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
		}
		f, err := c.sftp.OpenFile(a.abs(p), flags)
		if err != nil {
			return err
		}
		file = f
		return nil
	})
	if err != nil {
		return types.Reply{}, nil, translateErr(err, p)
	}
	return types.Reply{}, &fileWriter{file: file, path: p}, nil
}

type fileWriter struct {
	file    *sftp.File
	path    string
	written int64
}

func (w *fileWriter) Write(ctx context.Context, b buffer.Buffer) (int, error) {
	data := b.Bytes()
	n, err := w.file.Write(data)
	w.written += int64(n)
	if err != nil {
		return n, xerrors.Newf(xerrors.KindUnexpected, "sftp write %s: %v", w.path, err).WithCause(err)
	}
	return n, nil
}

func (w *fileWriter) Close(ctx context.Context) (types.Reply, error) {
	if err := w.file.Close(); err != nil {
		return types.Reply{}, xerrors.Newf(xerrors.KindUnexpected, "sftp close %s: %v", w.path, err).WithCause(err)
	}
	return types.Reply{Metadata: types.Metadata{Mode: types.ModeFile, ContentLength: uint64(w.written)}}, nil
}

func (w *fileWriter) Abort(ctx context.Context) error {
	return w.file.Close()
}

func (a *Accessor) Delete(ctx context.Context, p string, op types.OpDelete) (types.Reply, error) {
	err := a.withClient(ctx, func(c *client) error {
		info, serr := c.sftp.Stat(a.abs(p))
		if serr != nil {
			if os.IsNotExist(serr) {
				return nil
			}
			return serr
		}
		if info.IsDir() {
			return c.sftp.RemoveDirectory(a.abs(p))
		}
		return c.sftp.Remove(a.abs(p))
	})
	if err != nil {
		return types.Reply{}, translateErr(err, p)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	if !a.enableCopy {
		return types.Reply{}, xerrors.New(xerrors.KindUnsupported, "sftp copy requires enable_copy and a server with the copy-file extension")
	}
	var buf bytes.Buffer
	err := a.withClient(ctx, func(c *client) error {
		src, err := c.sftp.Open(a.abs(from))
		if err != nil {
			return err
		}
		defer src.Close()
		if _, err := io.Copy(&buf, src); err != nil {
			return err
		}
		dst, err := c.sftp.Create(a.abs(to))
		if err != nil {
			return err
		}
		defer dst.Close()
		_, err = dst.Write(buf.Bytes())
		return err
	})
	if err != nil {
		return types.Reply{}, translateErr(err, from)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	err := a.withClient(ctx, func(c *client) error {
		return c.sftp.PosixRename(a.abs(from), a.abs(to))
	})
	if err != nil {
		return types.Reply{}, translateErr(err, from)
	}
	return types.Reply{}, nil
}

func (a *Accessor) List(ctx context.Context, p string, op types.OpList) (types.Reply, raw.Lister, error) {
	var entries []types.Entry
	err := a.withClient(ctx, func(c *client) error {
		infos, err := c.sftp.ReadDir(a.abs(p))
		if err != nil {
			return err
		}
		base := strings.TrimSuffix(p, "/")
		for _, info := range infos {
			entries = append(entries, types.Entry{
				Path:     base + "/" + info.Name(),
				Metadata: metadataFromFileInfo(info),
			})
		}
		return nil
	})
	if err != nil {
		return types.Reply{}, nil, translateErr(err, p)
	}
	return types.Reply{}, &onePageLister{entries: entries}, nil
}

type onePageLister struct {
	entries []types.Entry
	done    bool
}

func (l *onePageLister) Next(ctx context.Context) ([]types.Entry, error) {
	if l.done {
		return nil, nil
	}
	l.done = true
	return l.entries, nil
}

func (l *onePageLister) Close() error { return nil }

func (a *Accessor) Presign(ctx context.Context, p string, op types.OpPresign) (types.ReplyPresign, error) {
	return types.ReplyPresign{}, xerrors.New(xerrors.KindUnsupported, "sftp has no presigned URL concept")
}

func (a *Accessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	results := make([]types.BatchResult, len(op.Items))
	for i, item := range op.Items {
		_, err := a.Delete(ctx, item.Path, item.Op)
		results[i] = types.BatchResult{Path: item.Path, Err: err}
	}
	return types.ReplyBatch{Results: results}, nil
}
