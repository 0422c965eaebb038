package index

import (
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertGetRemove(t *testing.T) {
	idx := New()

	_, ok := idx.Get("a")
	require.False(t, ok)

	_, replaced := idx.Insert(Entry{Key: "a", Gen: 1, Offset: 0, Length: 10})
	require.False(t, replaced)

	got, ok := idx.Get("a")
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Gen)

	prior, replaced := idx.Insert(Entry{Key: "a", Gen: 2, Offset: 20, Length: 5})
	require.True(t, replaced)
	require.Equal(t, uint32(10), prior.Length)

	removed, ok := idx.Remove("a")
	require.True(t, ok)
	require.Equal(t, uint64(2), removed.Gen)

	_, ok = idx.Get("a")
	require.False(t, ok)
}

func TestRangeVisitsAllLiveKeysInOrder(t *testing.T) {
	idx := New()
	for _, k := range []string{"c", "a", "b"} {
		idx.Insert(Entry{Key: k, Gen: 1})
	}
	idx.Remove("b")

	var seen []string
	require.NoError(t, idx.Range(func(e Entry) error {
		seen = append(seen, e.Key)
		return nil
	}))

	require.True(t, sort.StringsAreSorted(seen))

	sorted := append([]string(nil), seen...)
	sort.Strings(sorted)
	require.Equal(t, []string{"a", "c"}, sorted)
	require.Equal(t, 2, idx.Len())
}

func TestConcurrentInsertsNeverLoseAKey(t *testing.T) {
	idx := New()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx.Insert(Entry{Key: "k" + strconv.Itoa(i), Gen: 1, Length: uint32(i)})
		}(i)
	}
	wg.Wait()

	require.Equal(t, 200, idx.Len())
}
