package ui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathCompleter_CompletesFilesInCurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "alpha.txt"), []byte("a"), 0644)
	os.WriteFile(filepath.Join(dir, "beta.txt"), []byte("b"), 0644)
	t.Chdir(dir)

	c := &PathCompleter{}
	line := []rune("al")
	suggestions, offset := c.Do(line, len(line))

	if offset != 0 {
		t.Errorf("expected offset 0 for a bare filename prefix, got %d", offset)
	}
	if len(suggestions) != 1 || string(suggestions[0]) != "alpha.txt" {
		t.Errorf("expected exactly alpha.txt to complete, got %v", runesToStrings(suggestions))
	}
}

func TestPathCompleter_SkipsHiddenFilesUnlessDotPrefixGiven(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, ".hidden"), []byte("h"), 0644)
	os.WriteFile(filepath.Join(dir, "visible.txt"), []byte("v"), 0644)
	t.Chdir(dir)

	c := &PathCompleter{}
	line := []rune("")
	suggestions, _ := c.Do(line, 0)
	for _, s := range suggestions {
		if strings.HasPrefix(string(s), ".") {
			t.Errorf("expected hidden files to be excluded without a dot prefix, got %v", string(s))
		}
	}

	line = []rune(".")
	suggestions, _ = c.Do(line, len(line))
	found := false
	for _, s := range suggestions {
		if string(s) == ".hidden" {
			found = true
		}
	}
	if !found {
		t.Error("expected a dot prefix to surface hidden files")
	}
}

func TestPathCompleter_AppendsTrailingSlashForDirectories(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "subdir"), 0755)
	t.Chdir(dir)

	c := &PathCompleter{}
	line := []rune("sub")
	suggestions, _ := c.Do(line, len(line))

	if len(suggestions) != 1 || string(suggestions[0]) != "subdir/" {
		t.Errorf("expected subdir/ with trailing slash, got %v", runesToStrings(suggestions))
	}
}

func TestPathCompleter_CompletesAfterASpace(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "target.txt"), []byte("t"), 0644)
	t.Chdir(dir)

	c := &PathCompleter{}
	line := []rune("open targ")
	suggestions, offset := c.Do(line, len(line))

	if offset != len("open ") {
		t.Errorf("expected offset to point past the space, got %d", offset)
	}
	if len(suggestions) != 1 || string(suggestions[0]) != "target.txt" {
		t.Errorf("expected target.txt to complete, got %v", runesToStrings(suggestions))
	}
}

func runesToStrings(rs [][]rune) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
