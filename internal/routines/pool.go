// Package routines provides a pool of go-routines that run queued functions
// with bounded concurrency.
package routines

import "sync"

// Pool executes queued functions in a fixed number of go-routines.
type Pool struct {
	queue chan func()
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewPool starts workers go-routines that process queued functions.
// If workers is smaller than 1, 1 go-routine is started.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := Pool{
		queue: make(chan func(), workers),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return &p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for fn := range p.queue {
		fn()
	}
}

// Queue schedules fn for execution, it blocks while all workers are busy
// and the queue is full.
// Calling Queue after Wait panics.
func (p *Pool) Queue(fn func()) {
	p.queue <- fn
}

// Wait waits until all queued functions were executed and terminates the
// go-routines of the pool.
// It can be called multiple times.
func (p *Pool) Wait() {
	p.closeOnce.Do(func() { close(p.queue) })
	p.wg.Wait()
}
