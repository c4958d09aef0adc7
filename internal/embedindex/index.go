// Package embedindex maintains the persisted vector index the Tool
// Registry searches over. Its rescoring formula (similarity plus a usage
// boost) is grounded on ashita-ai-akashi/internal/search/search.go's
// ReScore, which blends raw vector similarity with metadata the way this
// index blends similarity with recency/usage.
package embedindex

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kilnrun/kiln/internal/catalog"
	"github.com/kilnrun/kiln/internal/embedprovider"
)

const (
	// MaxEmbedCache bounds how many distinct (query, k) result sets the
	// query cache keeps resident.
	MaxEmbedCache = 1000
	// SearchCacheTTL is how long a cached query-result pair stays valid
	// before Search re-embeds and re-ranks.
	SearchCacheTTL = 5 * time.Minute
)

// queryCacheEntry is one cached (query, k) -> ranked-results pair.
type queryCacheEntry struct {
	key       string
	results   []Scored
	expiresAt time.Time
	elem      *list.Element
}

// queryCache is a bounded LRU cache of recent Search results, grounded on
// toolcache.Cache's own bucket/list shape: same eviction discipline
// (recency-ordered list plus a size bound), applied here to query results
// instead of loaded tool implementations.
type queryCache struct {
	mu      sync.Mutex
	entries map[string]*queryCacheEntry
	order   *list.List
}

func newQueryCache() *queryCache {
	return &queryCache{entries: make(map[string]*queryCacheEntry), order: list.New()}
}

func (c *queryCache) get(key string, now time.Time) ([]Scored, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.After(e.expiresAt) {
		c.removeLocked(key)
		return nil, false
	}
	c.order.MoveToFront(e.elem)
	return e.results, true
}

func (c *queryCache) put(key string, results []Scored, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		existing.results = results
		existing.expiresAt = now.Add(SearchCacheTTL)
		c.order.MoveToFront(existing.elem)
		return
	}
	e := &queryCacheEntry{key: key, results: results, expiresAt: now.Add(SearchCacheTTL)}
	e.elem = c.order.PushFront(e)
	c.entries[key] = e
	for len(c.entries) > MaxEmbedCache {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.removeLocked(back.Value.(*queryCacheEntry).key)
	}
}

func (c *queryCache) removeLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.order.Remove(e.elem)
	delete(c.entries, key)
}

func (c *queryCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*queryCacheEntry)
	c.order = list.New()
}

// record is one embedded catalog entry plus usage bookkeeping.
type record struct {
	Name       string    `json:"name"`
	Vector     []float32 `json:"vector"`
	UsageCount int       `json:"usage_count"`
	LastUsed   time.Time `json:"last_used"`
}

// document is the on-disk persisted format.
type document struct {
	EmbedModelID string    `json:"embed_model_id"`
	Dimensions   int       `json:"dimensions"`
	NamesHash    string    `json:"names_hash"`
	DescsHash    string    `json:"descs_hash"`
	Records      []record  `json:"records"`
}

// Scored is a search hit: a catalog entry name plus the score it was
// ranked by.
type Scored struct {
	Name  string
	Score float64
}

// Index is the persisted embedding index over a Catalog's entries.
//
// Validity is judged on (embedModelId, namesHash, descsHash, dim) - the
// dim check is a deliberate addition over what the source implementation
// checked (name+description hash only): swapping to an embedding model
// with a different vector width while the model ID string happens to
// collide would otherwise silently corrupt every cosine-similarity
// computation downstream.
//
// Index additions are incremental: RecordUsage and a targeted Upsert
// append or update a single record without triggering the full Rebuild
// batch pass, which only runs when the persisted index is missing or
// stale relative to the catalog.
type Index struct {
	mu       sync.RWMutex
	path     string
	provider embedprovider.Provider
	doc      document
	byName   map[string]int // name -> index into doc.Records
	queries  *queryCache
}

func New(path string, provider embedprovider.Provider) *Index {
	return &Index{path: path, provider: provider, byName: map[string]int{}, queries: newQueryCache()}
}

// Load reads the persisted index from disk, if present. A missing file is
// not an error - Valid will simply report false and a Rebuild is needed.
func (idx *Index) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	raw, err := os.ReadFile(idx.path)
	if os.IsNotExist(err) {
		idx.doc = document{}
		idx.byName = map[string]int{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading index file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshaling index file: %w", err)
	}
	idx.doc = doc
	idx.byName = make(map[string]int, len(doc.Records))
	for i, r := range doc.Records {
		idx.byName[r.Name] = i
	}
	return nil
}

// Save persists the index to disk via a temp-file-then-rename, the same
// atomicity discipline the run store uses for its per-run documents.
func (idx *Index) Save() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.saveLocked()
}

func (idx *Index) saveLocked() error {
	raw, err := json.Marshal(idx.doc)
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(idx.path), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("writing temp index file: %w", err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

// Valid reports whether the persisted index still matches the catalog's
// current shape: same embedding model, same set of names+descriptions
// (via hash), same vector width.
func (idx *Index) Valid(cat *catalog.Catalog) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.doc.EmbedModelID != idx.provider.ModelID() {
		return false
	}
	if idx.doc.Dimensions != idx.provider.Dimensions() {
		return false
	}
	namesHash, descsHash := hashCatalog(cat)
	return idx.doc.NamesHash == namesHash && idx.doc.DescsHash == descsHash
}

func hashCatalog(cat *catalog.Catalog) (namesHash, descsHash string) {
	entries := cat.List() // already sorted by name, so hashing is order-stable
	nh := sha256.New()
	dh := sha256.New()
	for _, e := range entries {
		nh.Write([]byte(e.Name))
		nh.Write([]byte{0})
		dh.Write([]byte(e.Description))
		dh.Write([]byte{0})
	}
	return hex.EncodeToString(nh.Sum(nil)), hex.EncodeToString(dh.Sum(nil))
}

// batchSize bounds how many entries Rebuild embeds before yielding a
// context check, matching the resource-bound naming of the embedding
// batching budget.
const batchSize = 20

// Rebuild recomputes the index from scratch for every catalog entry, in
// batches of batchSize, checking ctx between batches so a long rebuild
// over a large catalog can be interrupted.
func (idx *Index) Rebuild(ctx context.Context, cat *catalog.Catalog) error {
	entries := cat.List()
	records := make([]record, 0, len(entries))

	for i := 0; i < len(entries); i += batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		end := i + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		for _, e := range entries[i:end] {
			vec, err := idx.provider.Embed(ctx, e.SearchText())
			if err != nil {
				return fmt.Errorf("embedding %q: %w", e.Name, err)
			}
			records = append(records, record{Name: e.Name, Vector: vec})
		}
	}

	namesHash, descsHash := hashCatalog(cat)

	idx.mu.Lock()
	idx.doc = document{
		EmbedModelID: idx.provider.ModelID(),
		Dimensions:   idx.provider.Dimensions(),
		NamesHash:    namesHash,
		DescsHash:    descsHash,
		Records:      records,
	}
	idx.byName = make(map[string]int, len(records))
	for i, r := range records {
		idx.byName[r.Name] = i
	}
	err := idx.saveLocked()
	idx.mu.Unlock()
	idx.queries.purge()
	return err
}

// Upsert embeds a single entry, appends (or replaces) its record, and
// updates the catalog hash from cat - the redesigned incremental path
// used when a single new tool is registered after the index was last
// built. Recomputing the hash is cheap (no re-embedding); skipping it
// would leave Valid reporting stale immediately after every
// registration, forcing a full Rebuild on the very next EnsureIndex
// call regardless of this Upsert.
func (idx *Index) Upsert(ctx context.Context, e catalog.Entry, cat *catalog.Catalog) error {
	vec, err := idx.provider.Embed(ctx, e.SearchText())
	if err != nil {
		return fmt.Errorf("embedding %q: %w", e.Name, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if i, ok := idx.byName[e.Name]; ok {
		idx.doc.Records[i].Vector = vec
	} else {
		idx.byName[e.Name] = len(idx.doc.Records)
		idx.doc.Records = append(idx.doc.Records, record{Name: e.Name, Vector: vec})
	}
	idx.doc.EmbedModelID = idx.provider.ModelID()
	idx.doc.Dimensions = idx.provider.Dimensions()
	idx.doc.NamesHash, idx.doc.DescsHash = hashCatalog(cat)
	err = idx.saveLocked()
	idx.queries.purge()
	return err
}

// Remove drops a record, used by Registry.Unregister.
func (idx *Index) Remove(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	i, ok := idx.byName[name]
	if !ok {
		return nil
	}
	idx.doc.Records = append(idx.doc.Records[:i], idx.doc.Records[i+1:]...)
	delete(idx.byName, name)
	for j := i; j < len(idx.doc.Records); j++ {
		idx.byName[idx.doc.Records[j].Name] = j
	}
	err := idx.saveLocked()
	idx.queries.purge()
	return err
}

// RecordUsage bumps a record's usage count and last-used timestamp,
// feeding the recency/frequency boost Search applies. now is passed in
// rather than read from time.Now() so callers control the clock in
// tests.
func (idx *Index) RecordUsage(name string, now time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if i, ok := idx.byName[name]; ok {
		idx.doc.Records[i].UsageCount++
		idx.doc.Records[i].LastUsed = now
	}
	idx.queries.purge()
}

// Search embeds query and returns the top k entries ranked by
// score = cosineSimilarity + usageBoost, where usageBoost rewards tools
// used recently and often - the same "similarity times a metadata
// factor" shape as ashita-ai-akashi's ReScore, adapted from a quality/age
// decay to a usage/recency boost since tool calls don't have a quality
// score, only a call history.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]Scored, error) {
	now := time.Now()
	cacheKey := fmt.Sprintf("%d\x00%s", k, query)
	if cached, ok := idx.queries.get(cacheKey, now); ok {
		return cached, nil
	}

	vec, err := idx.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	idx.mu.RLock()
	scored := make([]Scored, 0, len(idx.doc.Records))
	for _, r := range idx.doc.Records {
		sim := cosineSimilarity(vec, r.Vector)
		scored = append(scored, Scored{Name: r.Name, Score: sim + usageBoost(r, now)})
	}
	idx.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})
	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	idx.queries.put(cacheKey, scored, now)
	return scored, nil
}

func usageBoost(r record, now time.Time) float64 {
	if r.UsageCount == 0 {
		return 0
	}
	frequency := math.Min(0.01*float64(r.UsageCount), 0.10)
	recency := 0.0
	if !r.LastUsed.IsZero() {
		daysSinceUsed := now.Sub(r.LastUsed).Hours() / 24.0
		recency = 0.05 * math.Max(0, 1-daysSinceUsed/30.0)
	}
	return frequency + recency
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
