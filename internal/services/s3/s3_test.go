package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessio/accessio/internal/config"
	"github.com/accessio/accessio/pkg/xerrors"
)

func TestNew_MissingBucketIsConfigInvalid(t *testing.T) {
	cfg := config.NewFromMap("s3", map[string]string{"region": "us-east-1"})
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, xerrors.IsKind(err, xerrors.KindConfigInvalid))
}

func TestKey_StripsLeadingSlash(t *testing.T) {
	assert.Equal(t, "a/b.txt", key("/a/b.txt"))
	assert.Equal(t, "", key("/"))
}

type fakeAPIError struct{ code string }

func (e fakeAPIError) Error() string     { return e.code }
func (e fakeAPIError) ErrorCode() string { return e.code }

func TestTranslateErr_MapsAPIErrorCodes(t *testing.T) {
	tests := []struct {
		code string
		want xerrors.Kind
	}{
		{"NoSuchKey", xerrors.KindNotFound},
		{"NotFound", xerrors.KindNotFound},
		{"AccessDenied", xerrors.KindPermissionDenied},
		{"SlowDown", xerrors.KindRateLimited},
		{"SomethingElse", xerrors.KindUnexpected},
	}
	for _, tt := range tests {
		err := translateErr(fakeAPIError{code: tt.code}, "Read", "/a.txt")
		assert.True(t, xerrors.IsKind(err, tt.want), "code %s: got %v", tt.code, err)
	}
}

func TestTranslateErr_NilIsNil(t *testing.T) {
	assert.Nil(t, translateErr(nil, "Read", "/a.txt"))
}
