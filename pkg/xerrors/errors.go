// Package xerrors provides the closed error-kind taxonomy shared by every
// accessor, layer, and backend in accessio.
package xerrors

import (
	"fmt"
	"strings"
)

// Kind is the closed set of error kinds an Accessor may return. Backends
// must translate their native errors into one of these; layers and the
// facade never see backend-specific error types.
type Kind string

const (
	KindUnexpected         Kind = "Unexpected"
	KindUnsupported        Kind = "Unsupported"
	KindConfigInvalid      Kind = "ConfigInvalid"
	KindNotFound           Kind = "NotFound"
	KindPermissionDenied   Kind = "PermissionDenied"
	KindIsADirectory       Kind = "IsADirectory"
	KindNotADirectory      Kind = "NotADirectory"
	KindAlreadyExists      Kind = "AlreadyExists"
	KindRateLimited        Kind = "RateLimited"
	KindIsSameFile         Kind = "IsSameFile"
	KindConditionNotMatch  Kind = "ConditionNotMatch"
	KindContentTruncated   Kind = "ContentTruncated"
	KindContentIncomplete  Kind = "ContentIncomplete"
	KindInvalidInput       Kind = "InvalidInput"
)

// temporaryByDefault mirrors §7: transport errors and RateLimited are
// temporary; client errors are permanent.
var temporaryByDefault = map[Kind]bool{
	KindUnexpected:  true,
	KindRateLimited: true,
}

// Error is the structured error type returned by every Accessor, Layer,
// and backend. It carries a closed Kind, a temporary/permanent flag
// consumed by the retry layer, and a context stack that layers append to
// as the error crosses them (§7).
type Error struct {
	Kind      Kind
	Message   string
	Temporary bool
	Persistent bool // set by the retry layer on final giveup

	context []kv
	cause   error
}

type kv struct {
	key, val string
}

// New creates an Error of the given kind with the default temporary flag.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Temporary: temporaryByDefault[kind],
	}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	for _, c := range e.context {
		fmt.Fprintf(&b, " %s=%s", c.key, c.val)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %s", e.cause.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on Kind, the same convention the teacher's ObjectFSError
// used for its error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithContext appends a key-value pair to the error's context stack. Each
// layer an error crosses calls this once, per §7's "Context stack".
func (e *Error) WithContext(key, value string) *Error {
	e.context = append(e.context, kv{key, value})
	return e
}

// WithCause attaches the underlying error that triggered this one.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithTemporary overrides the default temporary/permanent classification.
func (e *Error) WithTemporary(temporary bool) *Error {
	e.Temporary = temporary
	return e
}

// MarkPersistent tags the error as a final retry giveup (§7: "the retry
// layer annotates with final-giveup").
func (e *Error) MarkPersistent() *Error {
	e.Persistent = true
	e.Temporary = false
	return e
}

// Context returns the accumulated context pairs in crossing order.
func (e *Error) Context() map[string]string {
	m := make(map[string]string, len(e.context))
	for _, c := range e.context {
		m[c.key] = c.val
	}
	return m
}

// IsKind reports whether err is an *Error of the given kind, walking the
// cause chain the way errors.Is does.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsTemporary reports whether err should be retried. Non-*Error values
// are treated as permanent: only backends and layers that construct an
// *Error opt in to retry.
func IsTemporary(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Temporary && !e.Persistent
}
