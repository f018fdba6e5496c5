// Package builder implements OperatorBuilder: the composer that stacks
// user-chosen layers around a leaf Accessor and caps the chain with the
// three layers every built accessor carries regardless of user choice.
package builder

import (
	"github.com/accessio/accessio/internal/layers"
	"github.com/accessio/accessio/internal/layers/completion"
	"github.com/accessio/accessio/internal/raw"
)

// OperatorBuilder composes layers left-to-right, each new layer wrapping
// the previously built accessor. Three layers are always attached
// regardless of user choice: error-context nearest the leaf, completion
// above it, and type-erasure at the outermost position.
type OperatorBuilder struct {
	leaf   raw.Accessor
	layers []layers.Layer
}

// New starts a builder around leaf.
func New(leaf raw.Accessor) *OperatorBuilder {
	return &OperatorBuilder{leaf: leaf}
}

// With appends a user-chosen layer, applied after error-context and
// completion but before the final type-erasure cap.
func (b *OperatorBuilder) With(l layers.Layer) *OperatorBuilder {
	b.layers = append(b.layers, l)
	return b
}

// Build assembles the final accessor: error-context, then completion,
// then every user layer in the order added, then type-erasure.
func (b *OperatorBuilder) Build() raw.Accessor {
	acc := layers.ErrorContext().Apply(b.leaf)
	acc = completion.New().Apply(acc)
	for _, l := range b.layers {
		acc = l.Apply(acc)
	}
	return layers.TypeErase().Apply(acc)
}
