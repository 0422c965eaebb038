package workerpool

import "sync"

// NaivePool spawns a fresh goroutine for every task, same as the
// original project's NaiveThreadPool — a deliberately simple baseline,
// not the default. Close waits for every goroutine ever spawned to
// finish.
type NaivePool struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewNaivePool returns a ready NaivePool.
func NewNaivePool() *NaivePool {
	return &NaivePool{}
}

// Submit spawns task on its own goroutine. Submit after Close is a no-op.
func (p *NaivePool) Submit(task func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		task()
	}()
}

// Close blocks new Submits and waits for every spawned goroutine to
// return.
func (p *NaivePool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
