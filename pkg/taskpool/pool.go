package taskpool

import (
	"context"
	"sync"
)

// Pool is a counted semaphore with FIFO admission.
//
// Unlike a bare buffered-channel semaphore, Pool guarantees that waiters are
// granted slots in the order they arrived. A slot freed by Release transfers
// directly to the oldest waiter without dropping to zero in between.
type Pool struct {
	mu      sync.Mutex
	limit   int
	running int
	waiters []chan struct{}
}

// New creates a Pool that admits at most limit concurrent tasks.
// A non-positive limit is treated as 1.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{limit: limit}
}

// Acquire blocks until a slot is available or the context is done.
// On success the caller owns one slot and must call Release exactly once.
func (p *Pool) Acquire(ctx context.Context) error {
	p.mu.Lock()
	if p.running < p.limit && len(p.waiters) == 0 {
		p.running++
		p.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	p.waiters = append(p.waiters, ready)
	p.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == ready {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return ctx.Err()
			}
		}
		p.mu.Unlock()
		// The slot was granted concurrently with cancellation; hand it on.
		p.Release()
		return ctx.Err()
	}
}

// Release returns a slot to the pool. If waiters are queued, the slot
// transfers to the oldest one.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.waiters) > 0 {
		ready := p.waiters[0]
		p.waiters = p.waiters[1:]
		close(ready)
		return
	}
	if p.running > 0 {
		p.running--
	}
}

// Run executes task in a new goroutine once a slot is acquired, releasing
// the slot when the task returns. It blocks only for admission; if the
// context is done before a slot frees up, the task never runs.
func (p *Pool) Run(ctx context.Context, wg *sync.WaitGroup, task func()) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		defer p.Release()
		if wg != nil {
			defer wg.Done()
		}
		task()
	}()
	return nil
}

// Limit returns the configured concurrency limit.
func (p *Pool) Limit() int {
	return p.limit
}

// Running returns the number of tasks currently holding a slot.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Waiting returns the number of queued waiters.
func (p *Pool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
