package raw

import (
	"context"

	"github.com/accessio/accessio/pkg/types"
)

// TopDownWalk lists dir first, then descends into nested directories one
// by one, depth-first. There is no guaranteed order among siblings;
// parent directories are only guaranteed to appear before the entries
// nested dirs themselves list.
//
// visit is called once per entry discovered, in the order emitted.
func TopDownWalk(ctx context.Context, acc Accessor, dir string, visit func(types.Entry) error) error {
	pending := []string{dir}
	for len(pending) > 0 {
		n := len(pending) - 1
		cur := pending[n]
		pending = pending[:n]

		_, lister, err := acc.List(ctx, cur, types.OpList{Recursive: false})
		if err != nil {
			return err
		}
		for {
			entries, err := lister.Next(ctx)
			if err != nil {
				lister.Close()
				return err
			}
			if len(entries) == 0 {
				break
			}
			for _, e := range entries {
				if err := visit(e); err != nil {
					lister.Close()
					return err
				}
				if e.Metadata.IsDir() {
					pending = append(pending, e.Path)
				}
			}
		}
		lister.Close()
	}
	return nil
}

// CollectAll drains a TopDownWalk into a slice, used by tests and by the
// batch deletion engine's recursive scan of remove_all.
func CollectAll(ctx context.Context, acc Accessor, dir string) ([]types.Entry, error) {
	var out []types.Entry
	err := TopDownWalk(ctx, acc, dir, func(e types.Entry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}
