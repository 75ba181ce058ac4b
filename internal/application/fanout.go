package application

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// failurePolicy names how a concurrent fan-out treats a failing item. The two
// aggregators deliberately differ: membership resolution is all-or-nothing
// (a partial member list could produce a false "user not found"), while sprint
// discovery is best-effort per board. Keeping the policy an explicit value
// makes the asymmetry auditable instead of re-implemented ad hoc.
type failurePolicy int

const (
	// failFast aborts the whole fan-out on the first error.
	failFast failurePolicy = iota
	// bestEffort keeps every per-item error in its slot and never fails.
	bestEffort
)

// fanoutItem is one slot of a fan-out result, in input order.
type fanoutItem[T any] struct {
	Value T
	Err   error
}

// fanOut runs fn for indices 0..n-1 concurrently and collects the results in
// input order, so the caller's merge is independent of completion order.
// Under failFast the first error cancels the remaining calls and is returned;
// under bestEffort the returned error is always nil and each slot carries its
// own outcome.
func fanOut[T any](ctx context.Context, n int, policy failurePolicy, fn func(ctx context.Context, i int) (T, error)) ([]fanoutItem[T], error) {
	results := make([]fanoutItem[T], n)

	if policy == failFast {
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				v, err := fn(gctx, i)
				results[i] = fanoutItem[T]{Value: v, Err: err}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			v, err := fn(ctx, i)
			results[i] = fanoutItem[T]{Value: v, Err: err}
		}()
	}
	wg.Wait()
	return results, nil
}
