package fragment

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Slot is one view requested for a page.
type Slot struct {
	Ref   Ref
	Props Props
}

// ComposeAll renders every slot through b concurrently. Results are in slot
// order. A failing slot yields its fallback and does not affect the others.
func ComposeAll(ctx context.Context, b *Boundary, slots []Slot) []Result {
	results := make([]Result, len(slots))
	var g errgroup.Group
	for i, s := range slots {
		g.Go(func() error {
			results[i] = b.Render(ctx, s.Ref, s.Props)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
