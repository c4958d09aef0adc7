package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilnrun/kiln/internal/schema"
	"github.com/kilnrun/kiln/internal/tools"
)

// FileRead reads a (possibly partial, by line range) file from disk. It is
// the concrete tool the Planner's "file-read" heuristic fallback targets
// when a task looks like "read/open/show file X".
func FileRead() *tools.Tool {
	sc := schema.New()
	sc.Properties["path"] = schema.Property{Type: "string", Description: "The path to the file to read"}
	sc.Properties["start"] = schema.Property{Type: "integer", Description: "First line to read (1-based, optional)"}
	sc.Properties["end"] = schema.Property{Type: "integer", Description: "Last line to read (1-based inclusive, optional)"}
	sc.Required = []string{"path"}

	return &tools.Tool{
		Name:        "file_read",
		Description: "Read the contents of a text file, optionally restricted to a line range",
		Category:    "filesystem",
		Tags:        []string{"file", "read", "disk"},
		InputSchema: sc,
		Explain: func(input map[string]any) tools.ExplainResult {
			path, _ := input["path"].(string)
			return tools.ExplainResult{
				Title:   fmt.Sprintf("FileRead(%s)", path),
				Context: fmt.Sprintf("Will read the contents of '%s'", path),
			}
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			path, _ := input["path"].(string)
			startF, hasStart := numberArg(input["start"])
			endF, hasEnd := numberArg(input["end"])

			absPath, err := filepath.Abs(path)
			if err != nil {
				return "", fmt.Errorf("resolving path: %w", err)
			}
			info, err := os.Stat(absPath)
			if err != nil {
				return "", fmt.Errorf("accessing file: %w", err)
			}
			if info.IsDir() {
				return "", fmt.Errorf("path %q is a directory, not a file", path)
			}

			content, err := os.ReadFile(absPath)
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}

			lines := strings.Split(string(content), "\n")
			start := 1
			if hasStart && int(startF) >= 1 {
				start = int(startF)
			}
			end := len(lines)
			if hasEnd && int(endF) < end {
				end = int(endF)
			}
			if start > len(lines) {
				start = len(lines)
			}
			if start > end {
				return "", fmt.Errorf("start line (%d) is after end line (%d)", start, end)
			}

			var b strings.Builder
			for _, line := range lines[start-1 : end] {
				b.WriteString(line)
				b.WriteString("\n")
			}
			return b.String(), nil
		},
	}
}

func numberArg(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
