package workload

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MultiplyParallel computes a×b on OS threads, one goroutine per row range
// with at most parts running at once. It stops early if ctx is cancelled.
func MultiplyParallel(ctx context.Context, a, b *Matrix, parts int) (*Matrix, error) {
	if err := check(a, b); err != nil {
		return nil, err
	}
	c := NewMatrix(a.N)
	ranges := SplitRows(a.N, parts)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(len(ranges))
	for _, r := range ranges {
		g.Go(func() error {
			for i := r.Start; i < r.End; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				MultiplyRow(a, b, c, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c, nil
}
