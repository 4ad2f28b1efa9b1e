// Package parallel runs independent translation jobs concurrently with a
// bounded number of workers. Each job must own its state: sentences,
// stores and solvers are never shared between workers.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers normalizes a worker count. Zero or negative means one worker per
// CPU core.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Map applies fn to every item with at most workers calls in flight and
// returns the results in input order. The first error cancels the context
// passed to the remaining calls and is returned once all calls finished.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, i, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
