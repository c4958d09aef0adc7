// Package catalog scans a directory of tool descriptor files into
// lightweight catalog entries, without loading or executing any tool
// implementation. Concrete Go implementations are supplied separately by
// a Loader (see internal/registry) keyed by descriptor Plugin name -
// mirroring how the teacher's main.go wires named tool constructors
// (tools.NewShellTool, tools.NewGrepTool, ...) into a registry, but
// data-driven so the catalog scales past a fixed set of Go files.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// Entry is one scanned catalog record: metadata only, no behaviour.
type Entry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Priority    int      `json:"priority"`
	Sensitive   bool     `json:"sensitive"`
	Plugin      string   `json:"plugin"`
	Command     string   `json:"command,omitempty"`
}

// SearchText returns the text an embedding index should embed for this
// entry: name, description, category and tags concatenated.
func (e Entry) SearchText() string {
	text := e.Name + " " + e.Description + " " + e.Category
	for _, t := range e.Tags {
		text += " " + t
	}
	return text
}

// Catalog holds the scanned entries, keyed by name.
type Catalog struct {
	entries map[string]Entry
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{entries: make(map[string]Entry), logger: logger}
}

// Scan reads every *.json descriptor under dir and (re)populates the
// catalog. It is idempotent: calling it again fully replaces the prior
// contents rather than merging, so a deleted descriptor file disappears
// from the catalog on the next scan. Per-file parse errors are logged and
// skipped rather than aborting the whole scan.
func (c *Catalog) Scan(dir string) error {
	entries := make(map[string]Entry)

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("globbing tool descriptors: %w", err)
	}

	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn("skipping unreadable tool descriptor", zap.String("path", path), zap.Error(err))
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			c.logger.Warn("skipping malformed tool descriptor", zap.String("path", path), zap.Error(err))
			continue
		}
		if e.Name == "" {
			c.logger.Warn("skipping tool descriptor without a name", zap.String("path", path))
			continue
		}
		entries[e.Name] = e
	}

	c.entries = entries
	return nil
}

// Put registers or replaces a single entry directly, used by
// Registry.Register for tools that aren't backed by a descriptor file
// (builtin tools wired at process start, dynamic tools).
func (c *Catalog) Put(e Entry) {
	c.entries[e.Name] = e
}

// Remove deletes an entry, used by Registry.Unregister.
func (c *Catalog) Remove(name string) {
	delete(c.entries, name)
}

// Get returns a single entry by name.
func (c *Catalog) Get(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// List returns all entries sorted by name for deterministic output.
func (c *Catalog) List() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len reports the number of catalog entries.
func (c *Catalog) Len() int { return len(c.entries) }
