package reader

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nilotpal-labs/emberkv/internal/index"
	"github.com/nilotpal-labs/emberkv/internal/segment"
)

func writeRaw(t *testing.T, store *segment.Store, gen uint64, data string) index.Entry {
	t.Helper()
	f, err := store.OpenAppend(gen)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return index.Entry{Key: "k", Gen: gen, Offset: 0, Length: uint32(len(data))}
}

func readAll(r *Reader, e index.Entry) (string, error) {
	return ReadAt[string](r, e, func(src io.Reader) (string, error) {
		buf, err := io.ReadAll(src)
		return string(buf), err
	})
}

func TestReadAtReturnsExactBytes(t *testing.T) {
	store, err := segment.Open(t.TempDir())
	require.NoError(t, err)
	entry := writeRaw(t, store, 1, "hello world")

	sp := NewSafePoint()
	r := New(store, sp)
	defer r.Close()

	got, err := readAll(r, entry)
	require.NoError(t, err)
	require.Equal(t, "hello world", got)
}

func TestCloneStartsWithEmptyHandleCacheButSharesSafePoint(t *testing.T) {
	store, err := segment.Open(t.TempDir())
	require.NoError(t, err)
	entry := writeRaw(t, store, 1, "value")

	sp := NewSafePoint()
	r := New(store, sp)
	defer r.Close()

	_, err = readAll(r, entry)
	require.NoError(t, err)
	require.Len(t, r.handles, 1)

	clone := r.Clone()
	defer clone.Close()
	require.Empty(t, clone.handles)
	require.Same(t, r.safePoint, clone.safePoint)
}

func TestReadAtBelowSafePointIsRejected(t *testing.T) {
	store, err := segment.Open(t.TempDir())
	require.NoError(t, err)
	entry := writeRaw(t, store, 1, "stale")

	sp := NewSafePoint()
	r := New(store, sp)
	defer r.Close()

	sp.Store(2)

	_, err = readAll(r, entry)
	require.Error(t, err)
}

func TestStaleHandlesAreClosedOnSafePointAdvance(t *testing.T) {
	store, err := segment.Open(t.TempDir())
	require.NoError(t, err)
	e1 := writeRaw(t, store, 1, "gen1")
	e2 := writeRaw(t, store, 2, "gen2")

	sp := NewSafePoint()
	r := New(store, sp)
	defer r.Close()

	_, err = readAll(r, e1)
	require.NoError(t, err)
	require.Contains(t, r.handles, uint64(1))

	sp.Store(2)
	_, err = readAll(r, e2)
	require.NoError(t, err)
	require.NotContains(t, r.handles, uint64(1))
}

