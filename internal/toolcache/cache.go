// Package toolcache implements the Dynamic Tool Cache: a bounded,
// idle-evicting cache of loaded tool implementations, with in-flight load
// de-duplication so concurrent GetOrLoad calls for the same tool name
// trigger exactly one load. The bucket/sweep-goroutine/sync.Once-close
// shape is grounded on
// ashita-ai-akashi/internal/ratelimit/memory.go's MemoryLimiter.
package toolcache

import (
	"container/list"
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kilnrun/kiln/internal/tools"
)

const (
	// MaxEntries bounds the number of loaded tools kept resident.
	MaxEntries = 100
	// MaxBytes bounds the approximate total size of cached tool state.
	// Builtin tool closures carry no meaningful heap footprint of their
	// own, so this budget mostly matters for descriptor/schema payloads
	// held alongside them; it is enforced best-effort via EntrySize.
	MaxBytes = 50 * 1024 * 1024
	// IdleTimeout evicts a tool that hasn't been used in this long.
	IdleTimeout = 10 * time.Minute
	// SweepInterval is how often the background evictor runs.
	SweepInterval = 2 * time.Minute
	// coreCategory tools are exempt from the idle sweep - always-needed
	// tools shouldn't cold-load again just because a run went quiet.
	coreCategory = "core"
	// accessCreditMillis is how many milliseconds of idle time one access
	// forgives, per worstScoreLocked's eviction scoring.
	accessCreditMillis = 60000
)

type entry struct {
	name        string
	tool        *tools.Tool
	size        int
	lastAccess  time.Time
	loadTime    time.Time
	accessCount int
	elem        *list.Element
}

// Loader loads a tool implementation given its catalog name. It is
// injected by the caller (internal/registry) rather than owned by the
// cache, so the cache stays agnostic of where implementations come from.
type Loader func(ctx context.Context, name string) (*tools.Tool, error)

// Cache is a bounded cache of loaded tools with usage-scored eviction,
// idle-timeout eviction and singleflight load de-duplication.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	order      *list.List // front = most recently used
	totalBytes int
	group      singleflight.Group
	stopOnce   sync.Once
	done       chan struct{}
}

func New() *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get returns a cached tool without loading it, bumping its recency.
func (c *Cache) Get(name string) (*tools.Tool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	e.lastAccess = time.Now()
	e.accessCount++
	c.order.MoveToFront(e.elem)
	return e.tool, true
}

// GetOrLoad returns a cached tool, or loads it via loader if absent.
// Concurrent calls for the same name share one in-flight load courtesy of
// singleflight.Group.
func (c *Cache) GetOrLoad(ctx context.Context, name string, loader Loader) (*tools.Tool, error) {
	if t, ok := c.Get(name); ok {
		return t, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		// Re-check under the singleflight key: another goroutine may
		// have finished loading while we waited to enter Do.
		if t, ok := c.Get(name); ok {
			return t, nil
		}
		t, err := loader(ctx, name)
		if err != nil {
			return nil, err
		}
		c.put(name, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tools.Tool), nil
}

func (c *Cache) put(name string, t *tools.Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[name]; ok {
		existing.tool = t
		existing.lastAccess = time.Now()
		existing.accessCount++
		c.order.MoveToFront(existing.elem)
		return
	}

	now := time.Now()
	size := EntrySize(t)
	e := &entry{name: name, tool: t, size: size, lastAccess: now, loadTime: now, accessCount: 1}
	e.elem = c.order.PushFront(e)
	c.entries[name] = e
	c.totalBytes += size

	c.evictLocked()
}

// Invalidate drops a single entry, used by Registry.Unregister so a
// removed tool never serves a stale cached implementation.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(name)
}

func (c *Cache) removeLocked(name string) {
	e, ok := c.entries[name]
	if !ok {
		return
	}
	c.order.Remove(e.elem)
	delete(c.entries, name)
	c.totalBytes -= e.size
}

// evictLocked drops entries over the size/count bound, worst-score first.
// Entries idle past IdleTimeout are dropped separately, by the sweep
// loop's evictIdle. Callers must hold c.mu.
func (c *Cache) evictLocked() {
	for len(c.entries) > MaxEntries || c.totalBytes > MaxBytes {
		victim := c.worstScoreLocked()
		if victim == "" {
			return
		}
		c.removeLocked(victim)
	}
}

// worstScoreLocked picks the entry least deserving of staying resident:
// score = idle time since last access, discounted by 60 seconds for every
// access it's ever received, so a tool called 50 times survives well past
// one that's merely been touched more recently. The highest score loses.
// Callers must hold c.mu.
func (c *Cache) worstScoreLocked() string {
	now := time.Now()
	var victim string
	worst := int64(math.MinInt64)
	for name, e := range c.entries {
		idleMillis := now.Sub(e.lastAccess).Milliseconds()
		score := idleMillis - int64(e.accessCount)*accessCreditMillis
		if score > worst {
			worst = score
			victim = name
		}
	}
	return victim
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictIdle()
		}
	}
}

func (c *Cache) evictIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-IdleTimeout)
	for elem := c.order.Back(); elem != nil; {
		e := elem.Value.(*entry)
		prev := elem.Prev()
		if e.lastAccess.Before(cutoff) && e.tool.Category != coreCategory {
			c.removeLocked(e.name)
		}
		elem = prev
	}
}

// Len reports the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweep goroutine. Safe to call more than
// once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}

// EntrySize gives a rough byte estimate for a loaded tool, used only to
// enforce MaxBytes; it does not need to be exact.
func EntrySize(t *tools.Tool) int {
	size := len(t.Name) + len(t.Description) + len(t.Category)
	for _, tag := range t.Tags {
		size += len(tag)
	}
	if t.InputSchema != nil {
		size += len(t.InputSchema.Keys()) * 32
	}
	if size == 0 {
		size = 64
	}
	return size
}
