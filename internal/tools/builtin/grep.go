package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kilnrun/kiln/internal/schema"
	"github.com/kilnrun/kiln/internal/tools"
)

// Grep searches files for a regular expression.
func Grep() *tools.Tool {
	sc := schema.New()
	sc.Properties["pattern"] = schema.Property{Type: "string", Description: "The regex pattern to search for"}
	sc.Properties["paths"] = schema.Property{Type: "array", Description: "Paths to search in", Items: &schema.Property{Type: "string"}}
	sc.Properties["recursive"] = schema.Property{Type: "boolean", Description: "Search directories recursively"}
	sc.Required = []string{"pattern", "paths"}

	return &tools.Tool{
		Name:        "grep",
		Description: "Search files for lines matching a regular expression",
		Category:    "filesystem",
		Tags:        []string{"search", "regex", "file"},
		InputSchema: sc,
		Explain: func(input map[string]any) tools.ExplainResult {
			pattern, _ := input["pattern"].(string)
			return tools.ExplainResult{Title: fmt.Sprintf("Grep(%s)", pattern), Context: "Will search for pattern " + pattern}
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			pattern, _ := input["pattern"].(string)
			pathsAny, _ := input["paths"].([]any)
			recursive, _ := input["recursive"].(bool)

			paths := make([]string, 0, len(pathsAny))
			for _, p := range pathsAny {
				if s, ok := p.(string); ok {
					paths = append(paths, s)
				}
			}

			regex, err := regexp.Compile(pattern)
			if err != nil {
				return "", fmt.Errorf("compiling pattern: %w", err)
			}

			type match struct {
				file    string
				line    int
				content string
			}
			var matches []match

			search := func(path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					return
				}
				for i, line := range strings.Split(string(content), "\n") {
					if regex.MatchString(line) {
						matches = append(matches, match{path, i + 1, line})
					}
				}
			}

			for _, path := range paths {
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				if info.IsDir() {
					if recursive {
						_ = filepath.Walk(path, func(p string, fi fs.FileInfo, err error) error {
							if err != nil || fi.IsDir() {
								return nil
							}
							search(p)
							return nil
						})
					}
					continue
				}
				search(path)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Found %d matches for pattern %q:\n\n", len(matches), pattern)
			for _, m := range matches {
				fmt.Fprintf(&b, "%s:%d: %s\n", m.file, m.line, m.content)
			}
			return b.String(), nil
		},
	}
}
