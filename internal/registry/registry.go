// Package registry composes the tool catalog, embedding index and dynamic
// cache into the Tool Registry component: the single place tool
// discovery, semantic search and loading happen.
//
// All mutation of the catalog/index/cache triple goes through Register
// and Unregister - nothing outside this package ever writes to the
// catalog or cache maps directly. The source implementation mutated a
// private map straight from composer code; that made it impossible to
// keep the embedding index and cache consistent with the catalog, so
// this registry closes that gap by making Register/Unregister the only
// mutation path.
package registry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kilnrun/kiln/internal/catalog"
	"github.com/kilnrun/kiln/internal/embedindex"
	"github.com/kilnrun/kiln/internal/toolcache"
	"github.com/kilnrun/kiln/internal/tools"
)

// Loader resolves a catalog entry into a runnable tool implementation. It
// is supplied by the caller (cmd/kiln) as a closure over the plugin
// table, so the registry itself never imports concrete tool packages -
// the same constructor-injection idiom spec.md calls for to avoid the
// registry owning a cyclic dependency on individual tools.
type Loader func(ctx context.Context, entry catalog.Entry) (*tools.Tool, error)

// Registry is the Tool Registry: catalog scan, semantic search, dynamic
// loading, and cache/index maintenance.
type Registry struct {
	catalog *catalog.Catalog
	index   *embedindex.Index
	cache   *toolcache.Cache
	loader  Loader
	logger  *zap.Logger
}

func New(cat *catalog.Catalog, index *embedindex.Index, cache *toolcache.Cache, loader Loader, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{catalog: cat, index: index, cache: cache, loader: loader, logger: logger}
}

// Scan (re)populates the catalog from a descriptor directory. It does not
// touch the embedding index or cache; call RebuildIndex separately once
// the catalog shape has settled, so a caller loading many descriptor
// directories in sequence doesn't pay for a rebuild after each one.
func (r *Registry) Scan(dir string) error {
	return r.catalog.Scan(dir)
}

// Register adds or replaces a single catalog entry and its loader-backed
// (or directly supplied) implementation, then incrementally updates the
// embedding index for just that entry - the redesigned incremental-append
// path instead of a full synchronous rebuild on every registration.
func (r *Registry) Register(ctx context.Context, entry catalog.Entry, impl *tools.Tool) error {
	r.catalog.Put(entry)
	if impl != nil {
		r.cache.Invalidate(entry.Name) // drop any stale cached copy first
		r.warmCache(entry.Name, impl)
	}
	if err := r.index.Upsert(ctx, entry, r.catalog); err != nil {
		return fmt.Errorf("indexing %q: %w", entry.Name, err)
	}
	return nil
}

// warmCache seeds the cache directly, used when Register is given an
// already-constructed implementation (builtin tools registered at
// process start) so the very first Get doesn't need a Loader round trip.
func (r *Registry) warmCache(name string, impl *tools.Tool) {
	_, _ = r.cache.GetOrLoad(context.Background(), name, func(context.Context, string) (*tools.Tool, error) {
		return impl, nil
	})
}

// Unregister removes a catalog entry, its cached implementation, and its
// embedding record.
func (r *Registry) Unregister(name string) error {
	r.catalog.Remove(name)
	r.cache.Invalidate(name)
	return r.index.Remove(name)
}

// Get returns an already-loaded tool from the cache without triggering a
// load.
func (r *Registry) Get(name string) (*tools.Tool, bool) {
	return r.cache.Get(name)
}

// GetOrLoad returns a cached tool or loads it via the registry's Loader,
// de-duplicating concurrent loads for the same name.
func (r *Registry) GetOrLoad(ctx context.Context, name string) (*tools.Tool, error) {
	if _, ok := r.catalog.Get(name); !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return r.cache.GetOrLoad(ctx, name, func(ctx context.Context, name string) (*tools.Tool, error) {
		entry, ok := r.catalog.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown tool: %s", name)
		}
		if r.loader == nil {
			return nil, fmt.Errorf("no loader configured for tool: %s", name)
		}
		return r.loader(ctx, entry)
	})
}

// List returns every catalog entry, loaded or not.
func (r *Registry) List() []catalog.Entry {
	return r.catalog.List()
}

// RebuildIndex fully recomputes the embedding index over the current
// catalog. Call this after a bulk Scan, or when Valid reports the
// persisted index stale relative to the catalog.
func (r *Registry) RebuildIndex(ctx context.Context) error {
	return r.index.Rebuild(ctx, r.catalog)
}

// IndexValid reports whether the persisted embedding index still matches
// the current catalog shape.
func (r *Registry) IndexValid() bool {
	return r.index.Valid(r.catalog)
}

// EnsureIndex rebuilds the index if and only if it's currently invalid,
// so process startup only pays the embedding cost when the catalog
// actually changed since the index was last saved.
func (r *Registry) EnsureIndex(ctx context.Context) error {
	if r.IndexValid() {
		return nil
	}
	r.logger.Info("embedding index stale, rebuilding")
	return r.RebuildIndex(ctx)
}

// Search returns the top-k catalog entries most relevant to query. Each
// returned candidate is also loaded via GetOrLoad before Search returns,
// so a caller acting on a result never pays a separate load round trip -
// the cache absorbs the cost of already-loaded tools, and only genuinely
// new candidates trigger the Loader.
func (r *Registry) Search(ctx context.Context, query string, k int) ([]catalog.Entry, error) {
	scored, err := r.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	out := make([]catalog.Entry, 0, len(scored))
	for _, s := range scored {
		e, ok := r.catalog.Get(s.Name)
		if !ok {
			continue
		}
		out = append(out, e)
		if _, err := r.GetOrLoad(ctx, e.Name); err != nil {
			r.logger.Debug("search candidate failed to load", zap.String("tool", e.Name), zap.Error(err))
		}
	}
	return out, nil
}

// RecordUsage bumps a tool's usage stats, feeding future Search rankings
// toward tools this run (or a prior one) actually relied on.
func (r *Registry) RecordUsage(name string) {
	r.index.RecordUsage(name, time.Now())
}

// PreloadSimilar warms the cache with the top-k tools related to query,
// without returning them - used after a successful tool call to
// speculatively load likely next steps.
func (r *Registry) PreloadSimilar(ctx context.Context, query string, k int) {
	entries, err := r.Search(ctx, query, k)
	if err != nil {
		r.logger.Debug("preload search failed", zap.Error(err))
		return
	}
	for _, e := range entries {
		go func(name string) {
			if _, err := r.GetOrLoad(ctx, name); err != nil {
				r.logger.Debug("preload failed", zap.String("tool", name), zap.Error(err))
			}
		}(e.Name)
	}
}

// SmartPreload combines usage history and a task description to decide
// what to warm: the top-k most similar tools to the task text, boosted
// (via the index's own usage-frequency scoring) toward tools this
// registry has actually seen used before.
func (r *Registry) SmartPreload(ctx context.Context, taskDescription string, k int) {
	r.PreloadSimilar(ctx, taskDescription, k)
}
