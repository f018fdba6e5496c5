package completion

import (
	"context"
	"strings"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/types"
)

// hierarchyFromFlat synthesizes direct-children listing from a native
// flat scan: each file is emitted directly; entries are grouped by the
// prefix up to the next "/" after root, and each distinct prefix is
// emitted exactly once as a DIR entry. Deduplication uses a set of
// already-emitted DIR prefixes.
type hierarchyFromFlat struct {
	root  string
	inner raw.Lister
	seen  map[string]bool
}

func newHierarchyFromFlat(root string, inner raw.Lister) *hierarchyFromFlat {
	return &hierarchyFromFlat{root: root, inner: inner, seen: make(map[string]bool)}
}

func (l *hierarchyFromFlat) Next(ctx context.Context) ([]types.Entry, error) {
	flat, err := l.inner.Next(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Entry
	for _, e := range flat {
		rel := strings.TrimPrefix(e.Path, l.root)
		if rel == "" {
			continue
		}
		if idx := strings.Index(rel, "/"); idx >= 0 {
			prefix := l.root + rel[:idx+1]
			if !l.seen[prefix] {
				l.seen[prefix] = true
				out = append(out, types.Entry{Path: prefix, Metadata: types.Metadata{Mode: types.ModeDir}})
			}
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *hierarchyFromFlat) Close() error {
	return l.inner.Close()
}

// recursiveExpander synthesizes a flat recursive scan from a native
// hierarchical (direct-children-only) list, maintaining a work queue of
// directories expanded breadth-first. There is no guaranteed order among
// siblings.
type recursiveExpander struct {
	ctx   context.Context
	acc   raw.Accessor
	queue []string
}

func newRecursiveExpander(ctx context.Context, acc raw.Accessor, root string) *recursiveExpander {
	return &recursiveExpander{ctx: ctx, acc: acc, queue: []string{root}}
}

func (l *recursiveExpander) Next(ctx context.Context) ([]types.Entry, error) {
	if len(l.queue) == 0 {
		return nil, nil
	}
	dir := l.queue[0]
	l.queue = l.queue[1:]

	_, lister, err := l.acc.List(ctx, dir, types.OpList{Recursive: false})
	if err != nil {
		return nil, err
	}
	defer lister.Close()

	var out []types.Entry
	for {
		entries, err := lister.Next(ctx)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			out = append(out, e)
			if e.Metadata.IsDir() {
				l.queue = append(l.queue, e.Path)
			}
		}
	}
	return out, nil
}

func (l *recursiveExpander) Close() error {
	l.queue = nil
	return nil
}
