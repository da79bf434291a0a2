package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map calls mapFunc for every element of in, with at most limit calls in
// flight (limit <= 0 means no limit), and yields the results in the order of
// in. It is context aware: once ctx is done, elements not yet started yield
// the context error without calling mapFunc. Stopping the iteration early
// cancels the context passed to running calls.
//
//	for d, err := range parallel.Map(ctx, 4, files, check) {}
func Map[E, D any](ctx context.Context, limit int, in []E, mapFunc func(context.Context, E) (D, error)) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		// every slot is buffered, so workers never block on a consumer
		// which stopped reading
		slots := make([]chan result[D], len(in))
		for i := range slots {
			slots[i] = make(chan result[D], 1)
		}

		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}
		go func() {
			for i, e := range in {
				if err := ctx.Err(); err != nil {
					slots[i] <- result[D]{e: err}
					continue
				}
				g.Go(func() error {
					d, err := mapFunc(ctx, e)
					slots[i] <- result[D]{d: d, e: err}
					return nil
				})
			}
			_ = g.Wait()
		}()

		for _, slot := range slots {
			r := <-slot
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}
