package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGrep_FindsMatchesInSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	os.WriteFile(path, []byte("TODO: fix this\nnothing here\nTODO: and this"), 0644)

	tool := Grep()
	out, err := tool.Run(context.Background(), map[string]any{
		"pattern": "TODO",
		"paths":   []any{path},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "Found 2 matches") {
		t.Errorf("expected 2 matches, got %q", out)
	}
}

func TestGrep_RecursiveSearchesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	os.MkdirAll(sub, 0755)
	os.WriteFile(filepath.Join(dir, "top.txt"), []byte("match here"), 0644)
	os.WriteFile(filepath.Join(sub, "nested.txt"), []byte("match here too"), 0644)

	tool := Grep()
	out, err := tool.Run(context.Background(), map[string]any{
		"pattern":   "match",
		"paths":     []any{dir},
		"recursive": true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "Found 2 matches") {
		t.Errorf("expected recursive search to find both files' matches, got %q", out)
	}
}

func TestGrep_NonRecursiveSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	os.MkdirAll(sub, 0755)
	os.WriteFile(filepath.Join(sub, "nested.txt"), []byte("match here"), 0644)

	tool := Grep()
	out, err := tool.Run(context.Background(), map[string]any{
		"pattern": "match",
		"paths":   []any{dir},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "Found 0 matches") {
		t.Errorf("expected a non-recursive search over a directory to find nothing, got %q", out)
	}
}

func TestGrep_InvalidPatternIsAnError(t *testing.T) {
	tool := Grep()
	if _, err := tool.Run(context.Background(), map[string]any{
		"pattern": "(unclosed",
		"paths":   []any{"whatever"},
	}); err == nil {
		t.Error("expected an invalid regex to fail")
	}
}
