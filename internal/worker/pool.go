package worker

import (
	"context"
	"sync"
)

// Pool fans queue work out to a small fixed set of workers. The pool is
// deliberately tiny; the external AI quota makes more than two workers
// counterproductive.
type Pool struct {
	workers []*Worker
}

// NewPool creates a Pool.
func NewPool(workers []*Worker) *Pool {
	return &Pool{workers: workers}
}

// Run starts all workers and blocks until the context finishes and every
// worker has returned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(wk *Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}
