package embedindex

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnrun/kiln/internal/catalog"
	"github.com/kilnrun/kiln/internal/embedprovider"
)

func newCatalog(entries ...catalog.Entry) *catalog.Catalog {
	cat := catalog.New(nil)
	for _, e := range entries {
		cat.Put(e)
	}
	return cat
}

func TestValid_FalseBeforeRebuild(t *testing.T) {
	cat := newCatalog(catalog.Entry{Name: "grep", Description: "search files"})
	idx := New(filepath.Join(t.TempDir(), "index.json"), embedprovider.NewNoop())
	assert.False(t, idx.Valid(cat), "expected an empty index to be invalid against a non-empty catalog")
}

func TestValid_TrueAfterRebuild(t *testing.T) {
	cat := newCatalog(catalog.Entry{Name: "grep", Description: "search files"})
	idx := New(filepath.Join(t.TempDir(), "index.json"), embedprovider.NewNoop())
	require.NoError(t, idx.Rebuild(context.Background(), cat))
	assert.True(t, idx.Valid(cat), "expected index to be valid immediately after rebuilding against the same catalog")
}

func TestValid_FalseAfterCatalogChanges(t *testing.T) {
	cat := newCatalog(catalog.Entry{Name: "grep", Description: "search files"})
	idx := New(filepath.Join(t.TempDir(), "index.json"), embedprovider.NewNoop())
	require.NoError(t, idx.Rebuild(context.Background(), cat))

	cat.Put(catalog.Entry{Name: "calculator", Description: "does math"})
	assert.False(t, idx.Valid(cat), "expected index to be stale once the catalog gains a new entry")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	cat := newCatalog(catalog.Entry{Name: "grep", Description: "search files"})

	idx := New(path, embedprovider.NewNoop())
	require.NoError(t, idx.Rebuild(context.Background(), cat))

	reloaded := New(path, embedprovider.NewNoop())
	require.NoError(t, reloaded.Load())
	assert.True(t, reloaded.Valid(cat), "expected a reloaded index to still validate against the same catalog")
}

func TestSearch_ExactTextMatchRanksHighest(t *testing.T) {
	cat := newCatalog(
		catalog.Entry{Name: "grep", Description: "search file contents for a pattern"},
		catalog.Entry{Name: "calculator", Description: "evaluate arithmetic expressions"},
	)
	idx := New(filepath.Join(t.TempDir(), "index.json"), embedprovider.NewNoop())
	require.NoError(t, idx.Rebuild(context.Background(), cat))

	results, err := idx.Search(context.Background(), "grep search file contents for a pattern", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "grep", results[0].Name, "expected grep to rank first for a near-identical query")
}

func TestUsageBoost_RewardsFrequencyAndRecency(t *testing.T) {
	now := time.Now()
	unused := record{}
	frequentRecent := record{UsageCount: 10, LastUsed: now}
	rareOld := record{UsageCount: 1, LastUsed: now.Add(-30 * 24 * time.Hour)}

	assert.Zero(t, usageBoost(unused, now), "expected zero boost for a never-used record")
	assert.Greater(t, usageBoost(frequentRecent, now), usageBoost(rareOld, now),
		"expected a frequently and recently used record to score higher than a rarely, long-ago used one")
}

func TestRecordUsage_UpdatesStoredRecord(t *testing.T) {
	cat := newCatalog(catalog.Entry{Name: "web_search", Description: "search the web"})
	idx := New(filepath.Join(t.TempDir(), "index.json"), embedprovider.NewNoop())
	require.NoError(t, idx.Rebuild(context.Background(), cat))

	now := time.Now()
	idx.RecordUsage("web_search", now)

	i, ok := idx.byName["web_search"]
	require.True(t, ok, "expected web_search to be indexed")
	rec := idx.doc.Records[i]
	assert.EqualValues(t, 1, rec.UsageCount, "expected usage count 1 after one RecordUsage call")
	assert.True(t, rec.LastUsed.Equal(now), "expected last-used timestamp to be updated to %v, got %v", now, rec.LastUsed)
}

func TestUpsert_AddsWithoutFullRebuild(t *testing.T) {
	cat := newCatalog(catalog.Entry{Name: "grep", Description: "search files"})
	idx := New(filepath.Join(t.TempDir(), "index.json"), embedprovider.NewNoop())
	require.NoError(t, idx.Rebuild(context.Background(), cat))

	newEntry := catalog.Entry{Name: "calculator", Description: "evaluate arithmetic expressions"}
	cat.Put(newEntry)
	require.NoError(t, idx.Upsert(context.Background(), newEntry, cat))

	results, err := idx.Search(context.Background(), "calculator", 5)
	require.NoError(t, err)

	found := false
	for _, r := range results {
		if r.Name == "calculator" {
			found = true
		}
	}
	assert.True(t, found, "expected upserted entry to be searchable without a full Rebuild")
}

func TestUpsert_KeepsIndexValidWithoutFullRebuild(t *testing.T) {
	cat := newCatalog(catalog.Entry{Name: "grep", Description: "search files"})
	idx := New(filepath.Join(t.TempDir(), "index.json"), embedprovider.NewNoop())
	require.NoError(t, idx.Rebuild(context.Background(), cat))

	newEntry := catalog.Entry{Name: "calculator", Description: "evaluate arithmetic expressions"}
	cat.Put(newEntry)
	require.False(t, idx.Valid(cat), "expected index to be stale immediately after the catalog gains an entry Upsert hasn't seen yet")

	require.NoError(t, idx.Upsert(context.Background(), newEntry, cat))
	assert.True(t, idx.Valid(cat), "expected Upsert to bring the index back in sync with the catalog without a full Rebuild")
}

func TestRemove_DropsRecord(t *testing.T) {
	cat := newCatalog(
		catalog.Entry{Name: "grep", Description: "search"},
		catalog.Entry{Name: "calculator", Description: "math"},
	)
	idx := New(filepath.Join(t.TempDir(), "index.json"), embedprovider.NewNoop())
	require.NoError(t, idx.Rebuild(context.Background(), cat))
	require.NoError(t, idx.Remove("grep"))

	results, err := idx.Search(context.Background(), "search", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "grep", r.Name, "expected removed entry to no longer appear in search results")
	}
}
