package layers

import "github.com/accessio/accessio/internal/raw"

// TypeErase caps the layer chain at the outermost position, hiding the
// static composition type behind a single fused Accessor shape so the
// facade can store one handle regardless of how many layers were
// stacked underneath. Since raw.Accessor is already an interface, the
// erasure here is a documentation boundary more than a runtime one: it
// marks the point past which no layer may type-assert on its inner
// accessor's concrete type.
func TypeErase() Layer {
	return LayerFunc(func(inner raw.Accessor) raw.Accessor {
		return erasedAccessor{inner}
	})
}

type erasedAccessor struct {
	raw.Accessor
}
