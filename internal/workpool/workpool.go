// Package workpool runs indexed tasks on a bounded set of goroutines.
package workpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Map calls fn for every index in [0,n), running at most workers calls at
// once, and returns the results in index order. workers <= 0 means GOMAXPROCS.
//
// The first error returned by fn cancels the context passed to the remaining
// calls and is returned by Map. Tasks that must not affect each other should
// report failures in T instead.
func Map[T any](ctx context.Context, workers, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	out := make([]T, n)
	if n == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v, err := fn(gctx, i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}
