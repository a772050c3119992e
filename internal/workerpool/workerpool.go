// Package workerpool bounds the number of concurrent CPU-bound or blocking
// calls (embedding extraction, PLDA scoring) dispatched by the verifier
// orchestrator, regardless of how many requests arrive at once.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultSize is the worker pool size used when no explicit size is given.
const DefaultSize = 4

// Pool bounds concurrent execution of submitted functions to a fixed number
// of workers, using a buffered channel as a semaphore ahead of an
// errgroup.Group for the actual join and error propagation.
type Pool struct {
	sem chan struct{}
}

// New creates a Pool that runs at most size functions at a time. A size of
// 0 or less is treated as DefaultSize.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Run submits fns to the pool and blocks until every one has finished or
// ctx is cancelled. It returns the first non-nil error from any fn, if any,
// after waiting for the others to release their slot.
func (p *Pool) Run(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			select {
			case p.sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-p.sem }()
			return fn(gctx)
		})
	}
	return g.Wait()
}
