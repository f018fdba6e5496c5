package xerrors

import (
	"errors"
	"strings"
	"testing"
)

func TestNew_DefaultTemporaryByKind(t *testing.T) {
	if !New(KindUnexpected, "boom").Temporary {
		t.Fatal("Unexpected should default to temporary")
	}
	if !New(KindRateLimited, "slow down").Temporary {
		t.Fatal("RateLimited should default to temporary")
	}
	if New(KindNotFound, "missing").Temporary {
		t.Fatal("NotFound should default to permanent")
	}
}

func TestIsKind_WalksCauseChain(t *testing.T) {
	inner := New(KindNotFound, "object missing")
	outer := New(KindUnexpected, "read failed").WithCause(inner)

	if !IsKind(outer, KindUnexpected) {
		t.Fatal("expected outer kind to match")
	}
	if !IsKind(outer, KindNotFound) {
		t.Fatal("expected IsKind to walk into the cause chain")
	}
	if IsKind(outer, KindPermissionDenied) {
		t.Fatal("did not expect a match for an unrelated kind")
	}
}

func TestIsKind_NonErrorValue(t *testing.T) {
	if IsKind(errors.New("plain"), KindNotFound) {
		t.Fatal("a plain error should never match any Kind")
	}
}

func TestIs_MatchesOnKindOnly(t *testing.T) {
	a := New(KindAlreadyExists, "one message")
	b := New(KindAlreadyExists, "a different message")
	if !a.Is(b) {
		t.Fatal("two errors of the same Kind should satisfy Is")
	}
	c := New(KindNotFound, "one message")
	if a.Is(c) {
		t.Fatal("errors of different Kind must not satisfy Is")
	}
}

func TestWithContext_AccumulatesAndRendersInError(t *testing.T) {
	err := New(KindInvalidInput, "bad range").
		WithContext("scheme", "s3").
		WithContext("path", "/foo")

	ctx := err.Context()
	if ctx["scheme"] != "s3" || ctx["path"] != "/foo" {
		t.Fatalf("unexpected context: %+v", ctx)
	}
	msg := err.Error()
	if !strings.Contains(msg, "scheme=s3") || !strings.Contains(msg, "path=/foo") {
		t.Fatalf("expected Error() to render context pairs, got %q", msg)
	}
}

func TestMarkPersistent_ClearsTemporaryAndStopsRetry(t *testing.T) {
	err := New(KindUnexpected, "transient failure")
	if !IsTemporary(err) {
		t.Fatal("expected a fresh Unexpected error to be temporary")
	}
	err.MarkPersistent()
	if IsTemporary(err) {
		t.Fatal("MarkPersistent should stop IsTemporary from retrying")
	}
	if !err.Persistent {
		t.Fatal("expected Persistent flag set")
	}
}

func TestIsTemporary_NonErrorValueIsPermanent(t *testing.T) {
	if IsTemporary(errors.New("plain")) {
		t.Fatal("a plain error should never be considered temporary")
	}
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := errors.New("network reset")
	err := New(KindUnexpected, "write failed").WithCause(cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause via Unwrap")
	}
}
