package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// LibPool is the library-backed flavor: a golang.org/x/sync/errgroup.Group
// with SetLimit(size) bounding concurrency, the Go analogue of the
// original project's RayonThreadPool wrapping a rayon::ThreadPool.
// errgroup.Group.Go blocks once the limit is reached, so Submit only
// ever pushes onto an unbounded queue; an internal dispatcher goroutine
// pops from it and feeds the errgroup, keeping Submit itself
// non-blocking for callers regardless of queue depth, matching the
// other flavors' contract.
type LibPool struct {
	tasks *unboundedQueue

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewLibPool starts an errgroup-backed dispatcher limited to size
// concurrent tasks.
func NewLibPool(size int) *LibPool {
	if size <= 0 {
		size = 1
	}
	p := &LibPool{
		tasks: newUnboundedQueue(),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(p.done)

		g, _ := errgroup.WithContext(context.Background())
		g.SetLimit(size)

		for {
			task, ok := p.tasks.Pop()
			if !ok {
				break
			}
			task := task
			g.Go(func() error {
				task()
				return nil
			})
		}
		g.Wait()
	}()

	return p
}

// Submit enqueues task for the errgroup dispatcher to run, subject to
// the configured concurrency limit. Submit itself never blocks.
func (p *LibPool) Submit(task func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.tasks.Push(task)
}

// Close stops accepting new tasks and waits for the errgroup to drain.
func (p *LibPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.tasks.Close()
	p.mu.Unlock()

	<-p.done
	return nil
}
