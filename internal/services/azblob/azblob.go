// Package azblob implements an Accessor over Azure Blob Storage block
// blobs, using github.com/Azure/azure-storage-blob-go/azblob directly.
// The stage/commit block-list split is the same one the retrieval
// pack's vendored rclone chunkwriting.go drives — that file's
// blockWriter.StageBlock/CommitBlockList signatures are what
// internal/writer/block.go's BlockUploader interface is shaped after —
// but where rclone rolls its own concurrent chunk pump, this backend
// delegates that to the shared, sequential BlockWriter.
package azblob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/accessio/accessio/internal/config"
	"github.com/accessio/accessio/internal/obslog"
	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/internal/writer"
	"github.com/accessio/accessio/pkg/buffer"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
)

const defaultBlockSize = 4 * 1024 * 1024

// Accessor implements raw.Accessor over a single Azure Blob container.
type Accessor struct {
	container     azblob.ContainerURL
	containerName string
	blockSize     int
	logger        *slog.Logger
}

// New builds an azblob accessor from a backend configuration map:
// account (required), account_key (required, shared-key auth — SAS/AAD
// are a future Open Question, see DESIGN.md), container (required),
// endpoint_suffix (optional, default "core.windows.net").
func New(cfg *config.FromMap) (*Accessor, error) {
	account, err := cfg.Require("account")
	if err != nil {
		return nil, err
	}
	accountKey, err := cfg.Require("account_key")
	if err != nil {
		return nil, err
	}
	container, err := cfg.Require("container")
	if err != nil {
		return nil, err
	}
	endpointSuffix := cfg.Optional("endpoint_suffix", "core.windows.net")
	blockSize, err := cfg.OptionalSize("block_size", defaultBlockSize)
	if err != nil {
		return nil, err
	}

	credential, err := azblob.NewSharedKeyCredential(account, accountKey)
	if err != nil {
		return nil, xerrors.Newf(xerrors.KindConfigInvalid, "azblob credential: %v", err).WithCause(err)
	}
	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	rawURL := "https://" + account + "." + "blob." + endpointSuffix + "/" + container
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, xerrors.Newf(xerrors.KindConfigInvalid, "azblob container URL: %v", err).WithCause(err)
	}

	return &Accessor{
		container:     azblob.NewContainerURL(*u, pipeline),
		containerName: container,
		blockSize:     int(blockSize),
		logger:        obslog.New("azblob-backend", slog.LevelInfo).With("container", container),
	}, nil
}

func (a *Accessor) Info() types.AccessorInfo {
	return types.AccessorInfo{
		Scheme: types.SchemeAzblob,
		Root:   "/",
		Name:   a.containerName,
		Capability: types.Capability{
			Read: true, Stat: true, Write: true, WriteCanMulti: true, WriteCanEmpty: true,
			WriteWithContentType: true,
			Delete:               true,
			Copy:                 true,
			List:                 true, ListWithRecursive: true, ListWithLimit: true,
			Presign: false, PresignRead: false,
			Batch: true, BatchMaxOperations: 256,
		},
		Hints: types.Hints{ReadStreamable: true},
	}
}

func key(path string) string { return strings.TrimPrefix(path, "/") }

func (a *Accessor) blobURL(path string) azblob.BlockBlobURL {
	return a.container.NewBlockBlobURL(key(path))
}

func translateErr(err error, path string) error {
	if err == nil {
		return nil
	}
	var serr azblob.StorageError
	if errors.As(err, &serr) {
		switch serr.ServiceCode() {
		case azblob.ServiceCodeBlobNotFound, azblob.ServiceCodeContainerNotFound:
			return xerrors.New(xerrors.KindNotFound, "blob not found").WithContext("path", path).WithCause(err)
		case azblob.ServiceCodeBlobAlreadyExists, azblob.ServiceCodeContainerAlreadyExists:
			return xerrors.New(xerrors.KindAlreadyExists, "blob already exists").WithContext("path", path).WithCause(err)
		case azblob.ServiceCodeInsufficientAccountPermissions, azblob.ServiceCodeAuthenticationFailed:
			return xerrors.New(xerrors.KindPermissionDenied, "access denied").WithContext("path", path).WithCause(err)
		case azblob.ServiceCodeConditionNotMet:
			return xerrors.New(xerrors.KindConditionNotMatch, "precondition failed").WithContext("path", path).WithCause(err)
		}
		if resp := serr.Response(); resp != nil && resp.StatusCode == 429 {
			return xerrors.New(xerrors.KindRateLimited, "rate limited").WithContext("path", path).WithCause(err)
		}
	}
	return xerrors.Newf(xerrors.KindUnexpected, "%v", err).WithContext("path", path).WithCause(err)
}

func (a *Accessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	k := key(path)
	if !strings.HasSuffix(k, "/") {
		k += "/"
	}
	blob := a.container.NewBlockBlobURL(k)
	_, err := blob.Upload(ctx, strings.NewReader(""), azblob.BlobHTTPHeaders{}, nil, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{}, azblob.ImmutabilityPolicyOptions{})
	if err != nil {
		return types.Reply{}, translateErr(err, path)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	resp, err := a.blobURL(path).GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return types.Reply{}, translateErr(err, path)
	}
	return types.Reply{Metadata: metadataFromProperties(resp).MarkComplete()}, nil
}

func metadataFromProperties(resp *azblob.BlobGetPropertiesResponse) types.Metadata {
	return types.Metadata{
		Mode:          types.ModeFile,
		ContentLength: uint64(resp.ContentLength()),
		ETag:          string(resp.ETag()),
		ContentType:   resp.ContentType(),
		LastModified:  resp.LastModified(),
		UserMetadata:  resp.NewMetadata(),
	}
}

func (a *Accessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	blob := a.blobURL(path)

	offset, count := int64(0), azblob.CountToEnd
	if !op.Range.IsFull() {
		if op.Range.IsSuffix() {
			props, err := blob.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
			if err != nil {
				return types.Reply{}, nil, translateErr(err, path)
			}
			start, end := op.Range.Resolve(props.ContentLength())
			offset, count = start, end-start
		} else {
			start, end := op.Range.Resolve(1 << 62)
			offset = start
			if op.Range.HasEnd() {
				count = end - start
			}
		}
	}

	resp, err := blob.Download(ctx, offset, count, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return types.Reply{}, nil, translateErr(err, path)
	}

	meta := types.Metadata{
		Mode:          types.ModeFile,
		ContentLength: uint64(resp.ContentLength()),
		ETag:          string(resp.ETag()),
		ContentType:   resp.ContentType(),
		LastModified:  resp.LastModified(),
	}
	body := resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	return types.Reply{Metadata: meta}, &streamReader{body: body}, nil
}

// streamReader wraps the Download response body, which — like S3 and
// GCS — is a forward-only network stream with no native seek.
type streamReader struct {
	body io.ReadCloser
}

func (r *streamReader) ReadAt(ctx context.Context, offset, limit int64) (buffer.Buffer, error) {
	return buffer.Buffer{}, xerrors.New(xerrors.KindUnsupported, "azblob stream reader has no native ReadAt")
}

func (r *streamReader) PollRead(ctx context.Context, p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (r *streamReader) PollSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	return 0, xerrors.New(xerrors.KindUnsupported, "azblob stream reader has no native seek")
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
	blockSize := a.blockSize
	if op.Chunk > 0 {
		blockSize = op.Chunk
	}
	uploader := &blockUploaderAdapter{a: a, path: path}
	return types.Reply{}, writer.NewBlockWriterConcurrent(uploader, op, blockSize, op.Concurrent), nil
}

// blockUploaderAdapter bridges the azblob BlockBlobURL to
// writer.BlockUploader.
type blockUploaderAdapter struct {
	a    *Accessor
	path string
}

func (u *blockUploaderAdapter) StageBlock(ctx context.Context, blockID string, data buffer.Buffer) error {
	blob := u.a.blobURL(u.path)
	_, err := blob.StageBlock(ctx, blockID, bytes.NewReader(data.Bytes()), azblob.LeaseAccessConditions{}, nil, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return translateErr(err, u.path)
	}
	return nil
}

func (u *blockUploaderAdapter) CommitBlocks(ctx context.Context, blockIDs []string, op types.OpWrite) (types.Reply, error) {
	blob := u.a.blobURL(u.path)
	headers := azblob.BlobHTTPHeaders{}
	if op.ContentType != "" {
		headers.ContentType = op.ContentType
	}
	if op.CacheControl != "" {
		headers.CacheControl = op.CacheControl
	}
	metadata := azblob.Metadata(op.UserMetadata)
	_, err := blob.CommitBlockList(ctx, blockIDs, headers, metadata, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{}, azblob.ImmutabilityPolicyOptions{})
	if err != nil {
		return types.Reply{}, translateErr(err, u.path)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	_, err := a.blobURL(path).Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if err != nil {
		if se, ok := err.(azblob.StorageError); ok && se.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return types.Reply{}, nil
		}
		return types.Reply{}, translateErr(err, path)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	src := a.blobURL(from).URL()
	dst := a.blobURL(to)
	_, err := dst.StartCopyFromURL(ctx, src, nil, azblob.ModifiedAccessConditions{}, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil)
	if err != nil {
		return types.Reply{}, translateErr(err, to)
	}
	return types.Reply{}, nil
}

func (a *Accessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	if _, err := a.Copy(ctx, from, to, types.OpCopy{}); err != nil {
		return types.Reply{}, err
	}
	if _, err := a.Delete(ctx, from, types.OpDelete{}); err != nil {
		return types.Reply{}, err
	}
	return types.Reply{}, nil
}

func (a *Accessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	prefix := key(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	options := azblob.ListBlobsSegmentOptions{Prefix: prefix}
	if op.Limit > 0 {
		n := int32(op.Limit)
		options.MaxResults = n
	}
	return types.Reply{}, &segmentLister{a: a, recursive: op.Recursive, options: options}, nil
}

type segmentLister struct {
	a         *Accessor
	recursive bool
	options   azblob.ListBlobsSegmentOptions
	marker    azblob.Marker
	started   bool
	done      bool
}

func (l *segmentLister) Next(ctx context.Context) ([]types.Entry, error) {
	if l.done {
		return nil, nil
	}
	if !l.started {
		l.marker = azblob.Marker{}
		l.started = true
	}

	var entries []types.Entry
	var resp *azblob.ListBlobsHierarchySegmentResponse
	var err error
	if l.recursive {
		flat, flatErr := l.a.container.ListBlobsFlatSegment(ctx, l.marker, l.options)
		if flatErr != nil {
			return nil, translateErr(flatErr, l.options.Prefix)
		}
		for _, b := range flat.Segment.BlobItems {
			entries = append(entries, types.Entry{
				Path: "/" + b.Name,
				Metadata: types.Metadata{
					Mode:          types.ModeFile,
					ContentLength: uint64(*b.Properties.ContentLength),
					LastModified:  b.Properties.LastModified,
				},
			})
		}
		l.marker = flat.NextMarker
		l.done = !flat.NextMarker.NotDone()
		return entries, nil
	}

	resp, err = l.a.container.ListBlobsHierarchySegment(ctx, l.marker, "/", l.options)
	if err != nil {
		return nil, translateErr(err, l.options.Prefix)
	}
	for _, p := range resp.Segment.BlobPrefixes {
		entries = append(entries, types.Entry{Path: "/" + p.Name, Metadata: types.Metadata{Mode: types.ModeDir}})
	}
	for _, b := range resp.Segment.BlobItems {
		entries = append(entries, types.Entry{
			Path: "/" + b.Name,
			Metadata: types.Metadata{
				Mode:          types.ModeFile,
				ContentLength: uint64(*b.Properties.ContentLength),
				LastModified:  b.Properties.LastModified,
			},
		})
	}
	l.marker = resp.NextMarker
	l.done = !resp.NextMarker.NotDone()
	return entries, nil
}

func (l *segmentLister) Close() error { return nil }

func (a *Accessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	return types.ReplyPresign{}, xerrors.New(xerrors.KindUnsupported, "azblob presign requires a SAS credential, not yet wired (see DESIGN.md)")
}

func (a *Accessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	results := make([]types.BatchResult, len(op.Items))
	for i, item := range op.Items {
		_, err := a.Delete(ctx, item.Path, item.Op)
		results[i] = types.BatchResult{Path: item.Path, Err: err}
	}
	return types.ReplyBatch{Results: results}, nil
}
