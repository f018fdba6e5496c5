// Package http implements a read-only Accessor over a plain HTTP(S)
// origin — the same "serve a directory through nginx/Caddy" backend the
// original implementation's HttpBuilder documents — using only
// net/http, since the pack carries no HTTP client library beyond the
// standard one for this scheme.
package http

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/accessio/accessio/internal/config"
	"github.com/accessio/accessio/internal/obslog"
	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// Accessor serves a read-only view over an HTTP origin. It advertises
// no Write/Delete/CreateDir/Rename capability; the completion and
// facade layers reject those calls with Unsupported before they ever
// reach here.
type Accessor struct {
	client   *http.Client
	endpoint string
	username string
	password string
	token    string
	logger   *slog.Logger
}

// New builds an http accessor from a backend configuration map:
// endpoint (required), username/password (optional, basic auth), token
// (optional, bearer auth — mutually exclusive with basic auth).
func New(cfg *config.FromMap) (*Accessor, error) {
	endpoint, err := cfg.Require("endpoint")
	if err != nil {
		return nil, err
	}
	return &Accessor{
		client:   &http.Client{},
		endpoint: strings.TrimSuffix(endpoint, "/"),
		username: cfg.Optional("username", ""),
		password: cfg.Optional("password", ""),
		token:    cfg.Optional("token", ""),
		logger:   obslog.New("http-backend", slog.LevelInfo).With("endpoint", endpoint),
	}, nil
}

func (a *Accessor) Info() types.AccessorInfo {
	return types.AccessorInfo{
		Scheme: types.SchemeHTTP,
		Root:   "/",
		Name:   a.endpoint,
		Capability: types.Capability{
			Read: true, Stat: true,
		},
		Hints: types.Hints{ReadStreamable: true},
	}
}

func (a *Accessor) url(path string) string {
	return a.endpoint + path
}

func (a *Accessor) authenticate(req *http.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
		return
	}
	if a.username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(a.username + ":" + a.password))
		req.Header.Set("Authorization", "Basic "+cred)
	}
}

func translateStatus(status int, path string) error {
	switch {
	case status == http.StatusNotFound:
		return xerrors.New(xerrors.KindNotFound, "not found").WithContext("path", path)
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return xerrors.New(xerrors.KindPermissionDenied, "access denied").WithContext("path", path)
	case status == http.StatusTooManyRequests:
		return xerrors.New(xerrors.KindRateLimited, "rate limited").WithContext("path", path)
	case status == http.StatusPreconditionFailed || status == http.StatusNotModified:
		return xerrors.New(xerrors.KindConditionNotMatch, "precondition failed").WithContext("path", path)
	case status >= 400:
		return xerrors.Newf(xerrors.KindUnexpected, "unexpected status %d", status).WithContext("path", path)
	}
	return nil
}

func (a *Accessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	return types.Reply{}, xerrors.New(xerrors.KindUnsupported, "http backend is read-only")
}

func (a *Accessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.url(path), nil)
	if err != nil {
		return types.Reply{}, xerrors.Newf(xerrors.KindInvalidInput, "build request: %v", err)
	}
	a.authenticate(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return types.Reply{}, xerrors.Newf(xerrors.KindUnexpected, "HEAD %s: %v", path, err).WithCause(err)
	}
	defer resp.Body.Close()
	if err := translateStatus(resp.StatusCode, path); err != nil {
		return types.Reply{}, err
	}
	return types.Reply{Metadata: metadataFromResponse(resp).MarkComplete()}, nil
}

func metadataFromResponse(resp *http.Response) types.Metadata {
	return types.Metadata{
		Mode:          types.ModeFile,
		ContentLength: uint64(resp.ContentLength),
		ETag:          strings.Trim(resp.Header.Get("ETag"), `"`),
		ContentType:   resp.Header.Get("Content-Type"),
	}
}

func (a *Accessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url(path), nil)
	if err != nil {
		return types.Reply{}, nil, xerrors.Newf(xerrors.KindInvalidInput, "build request: %v", err)
	}
	a.authenticate(req)
	if !op.Range.IsFull() {
		if h := op.Range.Header(); h != "" {
			req.Header.Set("Range", h)
		}
	}
	if op.IfMatch != "" {
		req.Header.Set("If-Match", op.IfMatch)
	}
	if op.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", op.IfNoneMatch)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return types.Reply{}, nil, xerrors.Newf(xerrors.KindUnexpected, "GET %s: %v", path, err).WithCause(err)
	}
	if err := translateStatus(resp.StatusCode, path); err != nil {
		resp.Body.Close()
		return types.Reply{}, nil, err
	}
	return types.Reply{Metadata: metadataFromResponse(resp)}, &streamReader{body: resp.Body}, nil
}

// streamReader wraps the HTTP response body: a forward-only stream with
// no native seek, same as every other network-backed reader here.
type streamReader struct {
	body io.ReadCloser
}

func (r *streamReader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	return buffer.Buffer{}, xerrors.New(xerrors.KindUnsupported, "http stream reader has no native ReadAt")
}

func (r *streamReader) PollRead(ctx context.Context, p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (r *streamReader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	return 0, xerrors.New(xerrors.KindUnsupported, "http stream reader has no native seek")
}

func (r *streamReader) PollNextSegment(ctx context.Context) (buffer.Buffer, bool, error) {
	tmp := make([]byte, 256*1024)
	n, err := r.body.Read(tmp)
	if n == 0 {
		if err == io.EOF || err == nil {
			return buffer.Buffer{}, false, nil
		}
		return buffer.Buffer{}, false, err
	}
	return buffer.New(tmp[:n]), true, nil
}

func (r *streamReader) Close() error { return r.body.Close() }

func (a *Accessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	return types.Reply{}, nil, xerrors.New(xerrors.KindUnsupported, "http backend is read-only")
}

func (a *Accessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	return types.Reply{}, xerrors.New(xerrors.KindUnsupported, "http backend is read-only")
}

func (a *Accessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	return types.Reply{}, xerrors.New(xerrors.KindUnsupported, "http backend is read-only")
}

func (a *Accessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	return types.Reply{}, xerrors.New(xerrors.KindUnsupported, "http backend is read-only")
}

func (a *Accessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	return types.Reply{}, nil, xerrors.New(xerrors.KindUnsupported, "http backend has no directory listing")
}

func (a *Accessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	return types.ReplyPresign{}, xerrors.New(xerrors.KindUnsupported, "http backend does not support presign")
}

func (a *Accessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	return types.ReplyBatch{}, xerrors.New(xerrors.KindUnsupported, "http backend is read-only")
}
