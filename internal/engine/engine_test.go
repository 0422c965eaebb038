package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nilotpal-labs/emberkv/pkg/kverrors"
	"github.com/nilotpal-labs/emberkv/pkg/options"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return zap.NewNop().Sugar()
}

func openTestEngine(t *testing.T, dir string, threshold uint64) *KVEngine {
	t.Helper()
	opts := options.Apply(
		options.WithDataDir(dir),
		options.WithCompactionThreshold(threshold),
	)
	eng, err := Open(opts, testLogger(t))
	require.NoError(t, err)
	return eng
}

func TestSetGetOverwrite(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), options.DefaultCompactionThreshold)
	defer eng.Close()

	require.NoError(t, eng.Set("key", "v1"))
	v, ok, err := eng.Get("key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", v)

	require.NoError(t, eng.Set("key", "v2"))
	v, ok, err = eng.Get("key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)
}

func TestGetMissingKeyReturnsNotFoundNotError(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), options.DefaultCompactionThreshold)
	defer eng.Close()

	_, ok, err := eng.Get("absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoveMissingKeyIsKeyNotFoundError(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), options.DefaultCompactionThreshold)
	defer eng.Close()

	err := eng.Remove("absent")
	require.Error(t, err)
	require.True(t, kverrors.IsKeyNotFound(err))
}

func TestRemoveThenGetIsMissing(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), options.DefaultCompactionThreshold)
	defer eng.Close()

	require.NoError(t, eng.Set("key", "value"))
	require.NoError(t, eng.Remove("key"))

	_, ok, err := eng.Get("key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecoveryAfterReopenPreservesLiveData(t *testing.T) {
	dir := t.TempDir()

	eng := openTestEngine(t, dir, options.DefaultCompactionThreshold)
	require.NoError(t, eng.Set("a", "1"))
	require.NoError(t, eng.Set("b", "2"))
	require.NoError(t, eng.Remove("a"))
	require.NoError(t, eng.Close())

	reopened := openTestEngine(t, dir, options.DefaultCompactionThreshold)
	defer reopened.Close()

	_, ok, err := reopened.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err := reopened.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", v)
}

func snapshot(t *testing.T, eng *KVEngine, keys []string) map[string]string {
	t.Helper()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok, err := eng.Get(k); err == nil && ok {
			out[k] = v
		}
	}
	return out
}

func TestReopenedEngineMatchesPreCloseSnapshot(t *testing.T) {
	dir := t.TempDir()
	keys := []string{"a", "b", "c"}

	eng := openTestEngine(t, dir, options.DefaultCompactionThreshold)
	require.NoError(t, eng.Set("a", "1"))
	require.NoError(t, eng.Set("b", "2"))
	require.NoError(t, eng.Set("c", "3"))
	before := snapshot(t, eng, keys)
	require.NoError(t, eng.Close())

	reopened := openTestEngine(t, dir, options.DefaultCompactionThreshold)
	defer reopened.Close()
	after := snapshot(t, reopened, keys)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("reopened engine state diverged from pre-close snapshot (-before +after):\n%s", diff)
	}
}

func TestCompactionReclaimsSpaceAndPreservesLiveValues(t *testing.T) {
	dir := t.TempDir()
	// A tiny threshold forces a compaction pass during the loop below.
	eng := openTestEngine(t, dir, 64)
	defer eng.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, eng.Set("churn", "value-that-keeps-getting-overwritten"))
	}
	require.NoError(t, eng.Set("stable", "kept"))

	v, ok, err := eng.Get("churn")
	require.NoError(t, err)
	require.True(t, ok)

	v2, ok, err := eng.Get("stable")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "kept", v2)
	require.NotEmpty(t, v)

	// The first segment (generation 1) is retired by the first compaction.
	gens, err := eng.store.Generations()
	require.NoError(t, err)
	require.NotContains(t, gens, uint64(1))
}

// TestConcurrentGetAcrossManyGoroutinesIsSafe drives many goroutines
// against the same engine handle's Get, each cloning its own handle
// first. Each clone's reader.Reader holds a private, unsynchronized
// handle cache, so without Clone this test reliably crashes with Go's
// "concurrent map read and map write" fatal error or returns corrupted
// bytes from an interleaved Seek; run under -race to catch a regression
// back to a shared reader even when it doesn't crash outright.
func TestConcurrentGetAcrossManyGoroutinesIsSafe(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), options.DefaultCompactionThreshold)
	defer eng.Close()

	const numKeys = 1000
	keys := make([]string, numKeys)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		require.NoError(t, eng.Set(keys[i], fmt.Sprintf("value-%d", i)))
	}

	const numReaders = 32
	var wg sync.WaitGroup
	for g := 0; g < numReaders; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			clone := eng.Clone()
			defer clone.Close()

			for i := 0; i < numKeys; i++ {
				k := keys[(i+seed)%numKeys]
				v, ok, err := clone.Get(k)
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, "value-"+k[len("key-"):], v)
			}
		}(g)
	}
	wg.Wait()
}

// TestConcurrentSetAndGetDoesNotRace interleaves writers and readers:
// writers mutate through the owning engine handle (the writer already
// serializes itself), readers each clone their own handle and repeatedly
// Get, tolerating either outcome of a racing Set but never an error or
// a crash.
func TestConcurrentSetAndGetDoesNotRace(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), options.DefaultCompactionThreshold)
	defer eng.Close()

	require.NoError(t, eng.Set("shared", "initial"))

	const iterations = 500
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			require.NoError(t, eng.Set("shared", fmt.Sprintf("v%d", i)))
		}
	}()

	const numReaders = 16
	for g := 0; g < numReaders; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clone := eng.Clone()
			defer clone.Close()

			for i := 0; i < iterations; i++ {
				_, ok, err := clone.Get("shared")
				require.NoError(t, err)
				require.True(t, ok)
			}
		}()
	}
	wg.Wait()
}
