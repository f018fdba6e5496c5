// Package layers implements the composable wrapping protocol: a Layer is
// a function from an Accessor to an Accessor, and the mandatory
// error-context/completion/type-erasure layers the builder always
// attaches.
package layers

import "github.com/accessio/accessio/internal/raw"

// Layer wraps an Accessor in another Accessor with added behavior. A
// layer that wraps readers/writers returned by its inner accessor must
// implement the matching Reader/Writer contracts itself, delegating
// suspension points to the wrapped handle. A layer must never silently
// swallow an error: it either recovers (retry) or propagates.
type Layer interface {
	Apply(inner raw.Accessor) raw.Accessor
}

// LayerFunc adapts a plain function to the Layer interface.
type LayerFunc func(inner raw.Accessor) raw.Accessor

func (f LayerFunc) Apply(inner raw.Accessor) raw.Accessor {
	return f(inner)
}
