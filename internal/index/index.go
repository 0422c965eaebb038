// Package index is the in-memory map from key to the location of its
// most recent Set record (spec §4.4): a point Get that never blocks a
// concurrent Insert/Remove, an Insert/Remove that report the prior
// entry for the writer's uncompacted-byte accounting, and an ordered
// traversal the compactor walks.
//
// It is backed by github.com/launix-de/NonLockingReadMap, a generic
// read-optimized ordered map: Get is a wait-free binary search over an
// atomically loaded snapshot slice, while Set/Remove rebuild and
// CAS-swap the snapshot. This is the Go analogue of the reference
// implementation's lock-free skip list (spec §4.4, §9) — reads never
// take a lock, and compaction's traversal sees a consistent, sorted
// snapshot even while writes race ahead of it.
package index

import (
	nlrm "github.com/launix-de/NonLockingReadMap"
)

// Entry is a single index record: the location of the newest live Set
// for Key, as (Gen, Offset, Length).
type Entry struct {
	Key    string
	Gen    uint64
	Offset int64
	Length uint32
}

// GetKey implements NonLockingReadMap's KeyGetter so Entry can be stored
// directly, without a wrapper allocation per lookup. NonLockingReadMap's
// generic constraint is matched against the value type, so these must be
// value, not pointer, receivers.
func (e Entry) GetKey() string { return e.Key }

// ComputeSize estimates the entry's retained memory footprint — used for
// size reporting only, not correctness.
func (e Entry) ComputeSize() uint {
	return uint(16 + 8 + 8 + 4 + len(e.Key))
}

// Index is the concurrent key -> Entry map described above.
type Index struct {
	m nlrm.NonLockingReadMap[Entry, string]
}

// New returns an empty Index.
func New() *Index {
	return &Index{m: nlrm.New[Entry, string]()}
}

// Get returns the live entry for key, or ok=false if key has no live
// entry. Never blocks a concurrent Insert or Remove.
func (idx *Index) Get(key string) (Entry, bool) {
	e := idx.m.Get(key)
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Insert records that key's newest Set lives at entry, returning the
// entry it replaced (ok=false if key had none). Callers use the prior
// entry's Length to update the writer's uncompacted-byte counter.
func (idx *Index) Insert(entry Entry) (prior Entry, ok bool) {
	old := idx.m.Set(&entry)
	if old == nil {
		return Entry{}, false
	}
	return *old, true
}

// Remove deletes key's entry, returning it (ok=false if key had none).
func (idx *Index) Remove(key string) (removed Entry, ok bool) {
	old := idx.m.Remove(key)
	if old == nil {
		return Entry{}, false
	}
	return *old, true
}

// Len reports the number of live keys.
func (idx *Index) Len() int {
	return len(idx.m.GetAll())
}

// Range walks every live entry in ascending key order, the traversal
// order compaction (spec §4.6 step 3) streams records in. Writes
// observed mid-traversal may or may not appear, per spec §4.4's
// "need not see a strictly atomic snapshot" allowance — NonLockingReadMap
// gives us a consistent snapshot taken at the start of Range, which is
// strictly stronger and still safe.
func (idx *Index) Range(fn func(Entry) error) error {
	for _, e := range idx.m.GetAll() {
		if err := fn(*e); err != nil {
			return err
		}
	}
	return nil
}
