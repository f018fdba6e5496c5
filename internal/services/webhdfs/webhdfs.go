// Package webhdfs implements an Accessor over Hadoop's WebHDFS REST API
// (op=OPEN/CREATE/GETFILESTATUS/LISTSTATUS/DELETE/MKDIRS/RENAME),
// grounded on original_source/core/src/services/webhdfs/{backend,
// message}.rs's JSON envelope shapes. No vendored client in the
// retrieval pack speaks WebHDFS's REST dialect specifically —
// colinmarc/hdfs speaks the binary RPC protocol instead — so this is
// built directly on net/http and encoding/json, the same pairing the
// teacher's own ambient stack reaches for whenever no domain library
// applies.
package webhdfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/accessio/accessio/internal/config"
	"github.com/accessio/accessio/internal/obslog"
	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

// Accessor implements raw.Accessor over a WebHDFS NameNode endpoint.
type Accessor struct {
	client     *http.Client
	endpoint   string
	root       string
	delegation string
	logger     *slog.Logger
}

// New builds a webhdfs accessor from a backend configuration map:
// endpoint (required, e.g. "http://namenode:9870"), root (optional,
// default "/"), delegation (optional delegation token).
func New(cfg *config.FromMap) (*Accessor, error) {
	endpoint, err := cfg.Require("endpoint")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	return &Accessor{
		client:     &http.Client{Timeout: 30 * time.Second},
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		root:       types.NormalizeRoot(cfg.Optional("root", "/")),
		delegation: cfg.Optional("delegation", ""),
		logger:     obslog.New("webhdfs-backend", slog.LevelInfo).With("endpoint", endpoint),
	}, nil
}

func (a *Accessor) Info() types.AccessorInfo {
	return types.AccessorInfo{
		Scheme: types.SchemeWebHDFS,
		Root:   a.root,
		Name:   a.endpoint,
		Capability: types.Capability{
			Read: true, Stat: true, Write: true, WriteCanEmpty: true,
			CreateDir: true, Delete: true, Rename: true,
			List: true, ListWithRecursive: false,
			Batch: true, BatchMaxOperations: 1,
		},
		Hints: types.Hints{ReadStreamable: true},
	}
}

// fileStatus mirrors message.rs's FileStatusWrapper -> FileStatus JSON
// shape: {"FileStatus": {...}}.
type fileStatus struct {
	Type       string `json:"type"`
	Length     int64  `json:"length"`
	ModTimeMs  int64  `json:"modificationTime"`
	Owner      string `json:"owner"`
	Permission string `json:"permission"`
	PathSuffix string `json:"pathSuffix"`
}

type fileStatusWrapper struct {
	FileStatus fileStatus `json:"FileStatus"`
}

type fileStatusesWrapper struct {
	FileStatuses struct {
		FileStatus []fileStatus `json:"FileStatus"`
	} `json:"FileStatuses"`
}

type booleanResp struct {
	Boolean bool `json:"boolean"`
}

type remoteException struct {
	RemoteException struct {
		Message   string `json:"message"`
		Exception string `json:"exception"`
	} `json:"RemoteException"`
}

func (a *Accessor) abs(path string) string {
	return types.JoinPath(a.root, strings.TrimPrefix(path, "/"))
}

func (a *Accessor) buildURL(path string, op string, extra url.Values) string {
	v := url.Values{}
	v.Set("op", op)
	if a.delegation != "" {
		v.Set("delegation", a.delegation)
	}
	for k, vs := range extra {
		for _, val := range vs {
			v.Add(k, val)
		}
	}
	return fmt.Sprintf("%s/webhdfs/v1%s?%s", a.endpoint, a.abs(path), v.Encode())
}

// do issues a request and, on a non-2xx status, decodes the
// RemoteException envelope WebHDFS returns and maps it to an xerrors.Kind.
func (a *Accessor) do(req *http.Request) (*http.Response, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, xerrors.Newf(xerrors.KindUnexpected, "webhdfs request: %v", err).WithCause(err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var re remoteException
	_ = json.Unmarshal(body, &re)

	kind := xerrors.KindUnexpected
	switch {
	case resp.StatusCode == http.StatusNotFound || re.RemoteException.Exception == "FileNotFoundException":
		kind = xerrors.KindNotFound
	case resp.StatusCode == http.StatusForbidden || re.RemoteException.Exception == "AccessControlException":
		kind = xerrors.KindPermissionDenied
	case re.RemoteException.Exception == "FileAlreadyExistsException":
		kind = xerrors.KindAlreadyExists
	}
	msg := re.RemoteException.Message
	if msg == "" {
		msg = string(body)
	}
	return nil, xerrors.New(kind, msg).WithContext("status", strconv.Itoa(resp.StatusCode))
}

func (a *Accessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut, a.buildURL(path, "MKDIRS", nil), nil)
	resp, err := a.do(req)
	if err != nil {
		return types.Reply{}, err
	}
	defer resp.Body.Close()
	return types.Reply{}, nil
}

func (a *Accessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, a.buildURL(path, "GETFILESTATUS", nil), nil)
	resp, err := a.do(req)
	if err != nil {
		return types.Reply{}, err
	}
	defer resp.Body.Close()

	var wrapper fileStatusWrapper
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return types.Reply{}, xerrors.Newf(xerrors.KindUnexpected, "decode FileStatus: %v", err).WithCause(err)
	}
	return types.Reply{Metadata: metadataFromStatus(wrapper.FileStatus).MarkComplete()}, nil
}

func metadataFromStatus(fs fileStatus) types.Metadata {
	mode := types.ModeFile
	if fs.Type == "DIRECTORY" {
		mode = types.ModeDir
	}
	return types.Metadata{
		Mode:          mode,
		ContentLength: uint64(fs.Length),
		LastModified:  time.UnixMilli(fs.ModTimeMs),
	}
}

func (a *Accessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	extra := url.Values{}
	if op.Range.HasOffset() || op.Range.IsSuffix() {
		start, end := op.Range.Resolve(1 << 62)
		extra.Set("offset", strconv.FormatInt(start, 10))
		if op.Range.HasEnd() {
			extra.Set("length", strconv.FormatInt(end-start, 10))
		}
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, a.buildURL(path, "OPEN", extra), nil)
	resp, err := a.do(req)
	if err != nil {
		return types.Reply{}, nil, err
	}
	return types.Reply{Metadata: types.Metadata{Mode: types.ModeFile, ContentLength: uint64(resp.ContentLength)}}, &streamReader{body: resp.Body}, nil
}

type streamReader struct{ body io.ReadCloser }

func (r *streamReader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	return buffer.Buffer{}, xerrors.New(xerrors.KindUnsupported, "webhdfs stream reader has no native ReadAt")
}

func (r *streamReader) PollRead(ctx context.Context, p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (r *streamReader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	return 0, xerrors.New(xerrors.KindUnsupported, "webhdfs stream reader has no native seek")
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

// Write issues a two-step CREATE: the NameNode responds 307 with a
// Location header pointing at the DataNode that will actually receive
// the bytes, matching WebHDFS's documented redirect protocol.
func (a *Accessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	return types.Reply{}, &bufferedWriter{a: a, path: path, op: op}, nil
}

type bufferedWriter struct {
	a    *Accessor
	path string
	op   types.OpWrite
	buf  []byte
}

func (w *bufferedWriter) Write(ctx context.Context, bs buffer.Buffer) (int, error) {
	data := bs.Bytes()
	w.buf = append(w.buf, data...)
	return len(data), nil
}

func (w *bufferedWriter) Close(ctx context.Context) (types.Reply, error) {
	extra := url.Values{}
	extra.Set("overwrite", "true")
	noRedirect := &http.Client{
		Timeout: w.a.client.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut, w.a.buildURL(w.path, "CREATE", extra), nil)
	resp, err := noRedirect.Do(req)
	if err != nil {
		return types.Reply{}, xerrors.Newf(xerrors.KindUnexpected, "webhdfs create: %v", err).WithCause(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		return types.Reply{}, xerrors.Newf(xerrors.KindUnexpected, "webhdfs create: expected redirect, got %d", resp.StatusCode)
	}
	location := resp.Header.Get("Location")

	putReq, _ := http.NewRequestWithContext(ctx, http.MethodPut, location, newByteReader(w.buf))
	putReq.ContentLength = int64(len(w.buf))
	putResp, err := w.a.client.Do(putReq)
	if err != nil {
		return types.Reply{}, xerrors.Newf(xerrors.KindUnexpected, "webhdfs upload: %v", err).WithCause(err)
	}
	defer putResp.Body.Close()
	if putResp.StatusCode >= 300 {
		return types.Reply{}, xerrors.Newf(xerrors.KindUnexpected, "webhdfs upload: status %d", putResp.StatusCode)
	}
	return types.Reply{Metadata: types.Metadata{Mode: types.ModeFile, ContentLength: uint64(len(w.buf))}}, nil
}

func (w *bufferedWriter) Abort(ctx context.Context) error {
	w.buf = nil
	return nil
}

func newByteReader(b []byte) io.Reader { return strings.NewReader(string(b)) }

func (a *Accessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	extra := url.Values{}
	extra.Set("recursive", "true")
	req, _ := http.NewRequestWithContext(ctx, http.MethodDelete, a.buildURL(path, "DELETE", extra), nil)
	resp, err := a.do(req)
	if err != nil {
		if xerrors.IsKind(err, xerrors.KindNotFound) {
			return types.Reply{}, nil
		}
		return types.Reply{}, err
	}
	defer resp.Body.Close()
	var br booleanResp
	_ = json.NewDecoder(resp.Body).Decode(&br)
	return types.Reply{}, nil
}

func (a *Accessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	return types.Reply{}, xerrors.New(xerrors.KindUnsupported, "webhdfs has no server-side copy primitive")
}

func (a *Accessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	extra := url.Values{}
	extra.Set("destination", a.abs(to))
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut, a.buildURL(from, "RENAME", extra), nil)
	resp, err := a.do(req)
	if err != nil {
		return types.Reply{}, err
	}
	defer resp.Body.Close()
	return types.Reply{}, nil
}

func (a *Accessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, a.buildURL(path, "LISTSTATUS", nil), nil)
	resp, err := a.do(req)
	if err != nil {
		return types.Reply{}, nil, err
	}
	defer resp.Body.Close()

	var wrapper fileStatusesWrapper
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return types.Reply{}, nil, xerrors.Newf(xerrors.KindUnexpected, "decode FileStatuses: %v", err).WithCause(err)
	}

	base := strings.TrimSuffix(path, "/")
	entries := make([]types.Entry, 0, len(wrapper.FileStatuses.FileStatus))
	for _, fs := range wrapper.FileStatuses.FileStatus {
		entries = append(entries, types.Entry{
			Path:     base + "/" + fs.PathSuffix,
			Metadata: metadataFromStatus(fs),
		})
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

func (a *Accessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	return types.ReplyPresign{}, xerrors.New(xerrors.KindUnsupported, "webhdfs does not support presign")
}

func (a *Accessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	results := make([]types.BatchResult, len(op.Items))
	for i, item := range op.Items {
		_, err := a.Delete(ctx, item.Path, item.Op)
		results[i] = types.BatchResult{Path: item.Path, Err: err}
	}
	return types.ReplyBatch{Results: results}, nil
}
