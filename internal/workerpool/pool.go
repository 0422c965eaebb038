// Package workerpool provides the three connection-dispatch strategies
// of spec §4.7: spawn-per-task, a fixed set of persistent workers reading
// off a shared queue, and a library-backed pool built on
// golang.org/x/sync/errgroup. All three satisfy the same Pool interface
// so the server can switch flavors via options.PoolKind without any
// other code change.
//
// Grounded on the original project's src/thread_pool/{mod,shared_queue}.rs:
// the panic-respawn behavior of SharedQueuePool mirrors
// SharedQueueThreadPool's Drop-based respawn-on-panic guarantee.
package workerpool

import "github.com/nilotpal-labs/emberkv/pkg/options"

// Pool runs submitted tasks, each eventually on some goroutine. Submit
// never blocks the caller waiting for a free worker; queued tasks simply
// wait their turn.
type Pool interface {
	// Submit schedules task to run. Submit itself does not return
	// task's error; tasks are expected to handle their own errors
	// (typically by writing a response to a connection).
	Submit(task func())

	// Close stops accepting new tasks and waits for in-flight and
	// already-queued tasks to finish.
	Close() error
}

// New returns the Pool flavor selected by kind, sized for size persistent
// workers where the flavor uses any.
func New(kind options.PoolKind, size int) Pool {
	switch kind {
	case options.PoolNaive:
		return NewNaivePool()
	case options.PoolLib:
		return NewLibPool(size)
	default:
		return NewSharedQueuePool(size)
	}
}
