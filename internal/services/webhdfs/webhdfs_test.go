package webhdfs

import (
	"testing"
	"time"

	"github.com/accessio/accessio/internal/config"
	"github.com/accessio/accessio/pkg/types"
	"github.com/accessio/accessio/pkg/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingEndpointIsConfigInvalid(t *testing.T) {
	cfg := config.NewFromMap("webhdfs", map[string]string{})
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, xerrors.IsKind(err, xerrors.KindConfigInvalid))
}

func TestNew_AddsSchemeAndDefaultsRoot(t *testing.T) {
	cfg := config.NewFromMap("webhdfs", map[string]string{"endpoint": "namenode:9870"})
	a, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://namenode:9870", a.endpoint)
	assert.Equal(t, "/", a.root)
}

func TestBuildURL_IncludesOpAndDelegation(t *testing.T) {
	cfg := config.NewFromMap("webhdfs", map[string]string{
		"endpoint":   "http://nn:9870",
		"delegation": "tok123",
	})
	a, err := New(cfg)
	require.NoError(t, err)

	u := a.buildURL("/foo/bar", "GETFILESTATUS", nil)
	assert.Contains(t, u, "/webhdfs/v1/foo/bar")
	assert.Contains(t, u, "op=GETFILESTATUS")
	assert.Contains(t, u, "delegation=tok123")
}

func TestMetadataFromStatus_File(t *testing.T) {
	fs := fileStatus{Type: "FILE", Length: 42, ModTimeMs: 1000}
	md := metadataFromStatus(fs)
	assert.Equal(t, types.ModeFile, md.Mode)
	assert.Equal(t, uint64(42), md.ContentLength)
	assert.Equal(t, time.UnixMilli(1000), md.LastModified)
}

func TestMetadataFromStatus_Directory(t *testing.T) {
	fs := fileStatus{Type: "DIRECTORY"}
	md := metadataFromStatus(fs)
	assert.Equal(t, types.ModeDir, md.Mode)
}

func TestInfo_AdvertisesWebHDFSCapabilities(t *testing.T) {
	cfg := config.NewFromMap("webhdfs", map[string]string{"endpoint": "http://nn:9870"})
	a, err := New(cfg)
	require.NoError(t, err)

	info := a.Info()
	assert.True(t, info.Capability.Read)
	assert.True(t, info.Capability.Write)
	assert.True(t, info.Capability.CreateDir)
	assert.True(t, info.Capability.Rename)
	assert.False(t, info.Hints.ReadSeekable)
}
