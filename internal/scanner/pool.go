package scanner

import (
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of goroutines scanning subdirectories.
type Pool struct {
	workers int
	sem     *semaphore.Weighted
}

// NewPool returns a pool of the given size.
func NewPool(workers int) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("worker pool needs at least one worker, got %d", workers)
	}
	return &Pool{workers: workers, sem: semaphore.NewWeighted(int64(workers))}, nil
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Go runs fn on a pool goroutine tracked by wg. If all workers are busy fn
// runs synchronously in the caller instead of spawning a blocked goroutine,
// so recursive fan-out can never deadlock on the pool.
func (p *Pool) Go(wg *sync.WaitGroup, fn func()) {
	if !p.sem.TryAcquire(1) {
		fn()
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer p.sem.Release(1)
		fn()
	}()
}
