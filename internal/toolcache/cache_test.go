package toolcache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnrun/kiln/internal/tools"
)

func TestGetOrLoad_DedupesConcurrentLoads(t *testing.T) {
	c := New()
	defer c.Close()

	var loadCount int32
	release := make(chan struct{})
	loader := func(ctx context.Context, name string) (*tools.Tool, error) {
		atomic.AddInt32(&loadCount, 1)
		<-release
		return &tools.Tool{Name: name}, nil
	}

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := c.GetOrLoad(context.Background(), "shared", loader)
			assert.NoError(t, err)
		}()
	}

	// give every goroutine a chance to enter GetOrLoad before releasing
	// the in-flight load
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&loadCount), "expected exactly 1 load for %d concurrent callers", n)
}

func TestGetOrLoad_CachesAfterFirstLoad(t *testing.T) {
	c := New()
	defer c.Close()

	var loadCount int32
	loader := func(ctx context.Context, name string) (*tools.Tool, error) {
		atomic.AddInt32(&loadCount, 1)
		return &tools.Tool{Name: name}, nil
	}

	for i := 0; i < 3; i++ {
		_, err := c.GetOrLoad(context.Background(), "cached", loader)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&loadCount), "expected exactly 1 load across repeated calls")
}

func TestInvalidate_ForcesReload(t *testing.T) {
	c := New()
	defer c.Close()

	var loadCount int32
	loader := func(ctx context.Context, name string) (*tools.Tool, error) {
		atomic.AddInt32(&loadCount, 1)
		return &tools.Tool{Name: name}, nil
	}

	_, err := c.GetOrLoad(context.Background(), "x", loader)
	require.NoError(t, err)

	c.Invalidate("x")

	_, err = c.GetOrLoad(context.Background(), "x", loader)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&loadCount), "expected a fresh load after Invalidate")

	_, ok := c.Get("x")
	assert.True(t, ok, "expected x to be cached again after the second load")
}

func TestEviction_RespectsMaxEntries(t *testing.T) {
	c := New()
	defer c.Close()

	loader := func(ctx context.Context, name string) (*tools.Tool, error) {
		return &tools.Tool{Name: name}, nil
	}
	for i := 0; i < MaxEntries+10; i++ {
		name := "tool-" + strconv.Itoa(i)
		_, err := c.GetOrLoad(context.Background(), name, loader)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, c.Len(), MaxEntries)
}

func TestEviction_PrefersFrequentlyUsedOverRecentlyTouched(t *testing.T) {
	c := New()
	defer c.Close()

	loader := func(ctx context.Context, name string) (*tools.Tool, error) {
		return &tools.Tool{Name: name}, nil
	}

	_, err := c.GetOrLoad(context.Background(), "frequent", loader)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := c.GetOrLoad(context.Background(), "frequent", loader)
		require.NoError(t, err)
	}

	_, err = c.GetOrLoad(context.Background(), "rare", loader)
	require.NoError(t, err)

	for i := 0; i < MaxEntries; i++ {
		name := "filler-" + strconv.Itoa(i)
		_, err := c.GetOrLoad(context.Background(), name, loader)
		require.NoError(t, err)
	}

	_, stillCached := c.Get("frequent")
	assert.True(t, stillCached, "expected the frequently used entry to survive eviction over rarely used, newer entries")
}

func TestEvictIdle_ExemptsCoreCategory(t *testing.T) {
	c := New()
	defer c.Close()

	loader := func(ctx context.Context, name string) (*tools.Tool, error) {
		return &tools.Tool{Name: name}, nil
	}
	c.put("core-tool", &tools.Tool{Name: "core-tool", Category: coreCategory})
	_, err := c.GetOrLoad(context.Background(), "ordinary", loader)
	require.NoError(t, err)

	stale := time.Now().Add(-IdleTimeout * 2)
	c.mu.Lock()
	c.entries["core-tool"].lastAccess = stale
	c.entries["ordinary"].lastAccess = stale
	c.mu.Unlock()

	c.evictIdle()

	_, coreStillCached := c.Get("core-tool")
	assert.True(t, coreStillCached, "expected a core-category tool to survive the idle sweep")
	_, ordinaryStillCached := c.Get("ordinary")
	assert.False(t, ordinaryStillCached, "expected a non-core idle tool to be evicted")
}

func TestClose_IsIdempotent(t *testing.T) {
	c := New()
	c.Close()
	c.Close() // must not panic
}
