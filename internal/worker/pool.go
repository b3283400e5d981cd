package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Result pairs an input with the outcome of processing it.
type Result[T any, R any] struct {
	Input  T
	Output R
	Err    error
	// Skipped is set when the context was cancelled before the input ran.
	Skipped bool
}

// ProcessFunc processes a single input.
type ProcessFunc[T any, R any] func(ctx context.Context, input T) (R, error)

// Pool runs a ProcessFunc over a slice of inputs with bounded concurrency.
type Pool[T any, R any] struct {
	workers int
	process ProcessFunc[T, R]
	onDone  func(Result[T, R])
	mu      sync.Mutex
}

// NewPool creates a new worker pool.
func NewPool[T any, R any](workers int, fn ProcessFunc[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{
		workers: workers,
		process: fn,
	}
}

// OnDone registers a callback invoked after each input is processed.
// Calls are serialized.
func (p *Pool[T, R]) OnDone(fn func(Result[T, R])) *Pool[T, R] {
	p.onDone = fn
	return p
}

// Execute runs all inputs through the pool and returns results in input order.
// Inputs not started before ctx is cancelled are marked Skipped.
func (p *Pool[T, R]) Execute(ctx context.Context, inputs []T) []Result[T, R] {
	results := make([]Result[T, R], len(inputs))
	for i, in := range inputs {
		results[i] = Result[T, R]{Input: in, Skipped: true}
	}
	inputCh := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range inputCh {
				output, err := p.process(ctx, inputs[idx])
				res := Result[T, R]{Input: inputs[idx], Output: output, Err: err}
				results[idx] = res
				if err != nil {
					log.Debug().Err(err).Int("worker", workerID).Int("index", idx).Msg("Task failed")
				}
				if p.onDone != nil {
					p.mu.Lock()
					p.onDone(res)
					p.mu.Unlock()
				}
			}
		}(w)
	}

send:
	for i := range inputs {
		select {
		case <-ctx.Done():
			break send
		case inputCh <- i:
		}
	}
	close(inputCh)

	wg.Wait()
	return results
}

// Failed returns the results that carry an error.
func Failed[T any, R any](results []Result[T, R]) []Result[T, R] {
	var failed []Result[T, R]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
