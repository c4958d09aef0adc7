package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/kilnrun/kiln/internal/schema"
	"github.com/kilnrun/kiln/internal/tools"
)

// FileWrite writes content to a file, previewing a diff against any
// existing content in its Explain output. Marked sensitive: it mutates
// the filesystem.
func FileWrite() *tools.Tool {
	sc := schema.New()
	sc.Properties["path"] = schema.Property{Type: "string", Description: "The path to the file to write"}
	sc.Properties["content"] = schema.Property{Type: "string", Description: "The content to write to the file"}
	sc.Required = []string{"path", "content"}

	return &tools.Tool{
		Name:        "file_write",
		Description: "Write content to a file, creating parent directories as needed",
		Category:    "filesystem",
		Tags:        []string{"file", "write", "disk"},
		Sensitive:   true,
		InputSchema: sc,
		Explain: func(input map[string]any) tools.ExplainResult {
			path, _ := input["path"].(string)
			content, _ := input["content"].(string)

			existing, err := os.ReadFile(path)
			var body string
			if err == nil {
				body = fmt.Sprintf("Diff:\n```diff\n%s\n```", diffPreview(string(existing), content))
			} else {
				body = fmt.Sprintf("New content:\n```\n%s\n```", content)
			}
			return tools.ExplainResult{
				Title:   fmt.Sprintf("FileWrite(%s)", path),
				Context: fmt.Sprintf("Will write %d bytes to '%s'\n\n%s", len(content), path, body),
			}
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			path, _ := input["path"].(string)
			content, _ := input["content"].(string)

			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return "", fmt.Errorf("creating directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}
			return fmt.Sprintf("File written to %s (%d bytes)", path, len(content)), nil
		},
	}
}

func diffPreview(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, true)

	var out strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			out.WriteString(d.Text)
		case diffmatchpatch.DiffInsert:
			out.WriteString(fmt.Sprintf("\x1b[32m%s\x1b[0m", d.Text))
		case diffmatchpatch.DiffDelete:
			out.WriteString(fmt.Sprintf("\x1b[31m%s\x1b[0m", d.Text))
		}
	}
	return out.String()
}
