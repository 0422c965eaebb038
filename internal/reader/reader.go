// Package reader implements the per-caller reader pool of spec §4.5: a
// cache of open read-only segment handles, cloned fresh (empty cache) for
// every worker goroutine, sharing a single atomic "safe point" — the
// lowest generation a reader may still touch. Before every read a reader
// drops any cached handle whose generation has fallen below the safe
// point, so a compaction that unlinks old segments can never be raced
// past by a reader holding a stale handle.
package reader

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/nilotpal-labs/emberkv/internal/index"
	"github.com/nilotpal-labs/emberkv/internal/segment"
	"github.com/nilotpal-labs/emberkv/pkg/kverrors"
)

// SafePoint is the shared, atomically published low-water generation.
// Compaction stores into it (release) after the compacted segment is
// fully written and flushed; readers load it (acquire) before honoring
// it, so eviction can never outrun durability. Go's sync/atomic already
// gives sequentially consistent ordering, a strictly stronger guarantee
// than the release/acquire pairing spec §5 asks for.
type SafePoint struct {
	gen atomic.Uint64
}

// NewSafePoint returns a SafePoint initialized to generation 0.
func NewSafePoint() *SafePoint { return &SafePoint{} }

// Load returns the current safe point.
func (s *SafePoint) Load() uint64 { return s.gen.Load() }

// Store publishes a new, presumably larger, safe point.
func (s *SafePoint) Store(gen uint64) { s.gen.Store(gen) }

// Reader owns a single goroutine's cache of open segment file handles.
// It is not safe for concurrent use — each worker goroutine must hold
// its own clone, obtained via Clone.
type Reader struct {
	store     *segment.Store
	safePoint *SafePoint
	handles   map[uint64]*os.File
}

// New returns a Reader with an empty handle cache, rooted at store and
// sharing safePoint.
func New(store *segment.Store, safePoint *SafePoint) *Reader {
	return &Reader{store: store, safePoint: safePoint, handles: make(map[uint64]*os.File)}
}

// Clone returns a fresh Reader for a new worker goroutine: same store
// and safe point, empty handle cache. This is the "interior-mutable
// per-thread cache" of spec §9 — cloned, never shared.
func (r *Reader) Clone() *Reader {
	return New(r.store, r.safePoint)
}

// closeStale drops and closes any cached handle for a generation below
// the current safe point.
func (r *Reader) closeStale() {
	sp := r.safePoint.Load()
	for gen, f := range r.handles {
		if gen < sp {
			f.Close()
			delete(r.handles, gen)
		}
	}
}

func (r *Reader) handleFor(gen uint64) (*os.File, error) {
	r.closeStale()

	if r.safePoint.Load() > gen {
		return nil, kverrors.NewIOError(nil, "segment below safe point").WithPath(r.store.Path(gen))
	}

	if f, ok := r.handles[gen]; ok {
		return f, nil
	}

	f, err := r.store.OpenRead(gen)
	if err != nil {
		return nil, err
	}
	r.handles[gen] = f
	return f, nil
}

// ReadAt locates entry's record bytes, exposes a bounded io.Reader over
// exactly entry.Length bytes starting at entry.Offset in generation
// entry.Gen to fn, and returns fn's result. If the generation's file was
// already unlinked by compaction, the caller sees an io error rather
// than silently wrong data — never the wrong bytes.
func ReadAt[R any](r *Reader, entry index.Entry, fn func(io.Reader) (R, error)) (R, error) {
	var zero R

	f, err := r.handleFor(entry.Gen)
	if err != nil {
		return zero, err
	}

	if _, err := f.Seek(entry.Offset, io.SeekStart); err != nil {
		return zero, kverrors.NewIOError(err, "seek segment").WithPath(r.store.Path(entry.Gen))
	}

	bounded := io.LimitReader(f, int64(entry.Length))
	return fn(bounded)
}

// Close releases every cached handle. A Reader must not be used after
// Close.
func (r *Reader) Close() error {
	var firstErr error
	for gen, f := range r.handles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.handles, gen)
	}
	return firstErr
}
