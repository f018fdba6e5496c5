package sftp

import (
	"os"
	"testing"

	"github.com/accessio/accessio/internal/config"
	"github.com/accessio/accessio/pkg/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingEndpointIsConfigInvalid(t *testing.T) {
	cfg := config.NewFromMap("sftp", map[string]string{"user": "alice"})
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, xerrors.IsKind(err, xerrors.KindConfigInvalid))
}

func TestNew_MissingUserIsConfigInvalid(t *testing.T) {
	cfg := config.NewFromMap("sftp", map[string]string{"endpoint": "host:22"})
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, xerrors.IsKind(err, xerrors.KindConfigInvalid))
}

func TestNew_MissingKeyIsConfigInvalid(t *testing.T) {
	cfg := config.NewFromMap("sftp", map[string]string{"endpoint": "host:22", "user": "alice"})
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, xerrors.IsKind(err, xerrors.KindConfigInvalid))
}

func TestAuthMethod_UnreadableKeyPathErrors(t *testing.T) {
	_, err := authMethod("/nonexistent/path/to/key")
	require.Error(t, err)
}

func TestAuthMethod_MalformedKeyErrors(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "key")
	require.NoError(t, err)
	_, werr := f.WriteString("not a real key")
	require.NoError(t, werr)
	f.Close()

	_, err = authMethod(f.Name())
	require.Error(t, err)
}
