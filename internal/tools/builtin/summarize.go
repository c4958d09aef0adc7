package builtin

import (
	"context"
	"fmt"

	"github.com/kilnrun/kiln/internal/llmprovider"
	"github.com/kilnrun/kiln/internal/schema"
	"github.com/kilnrun/kiln/internal/tools"
)

// SummarizeText condenses a block of text via the configured LLM
// provider. It is the concrete tool the argument inferencer's
// deterministic shortcut targets for summarize_text calls.
func SummarizeText(provider llmprovider.Provider) *tools.Tool {
	sc := schema.New()
	sc.Properties["text"] = schema.Property{Type: "string", Description: "The text to summarize"}
	sc.Properties["max_words"] = schema.Property{Type: "integer", Description: "Target maximum length of the summary in words"}
	sc.Required = []string{"text"}

	return &tools.Tool{
		Name:        "summarize_text",
		Description: "Summarize a block of text to a target length",
		Category:    "text",
		Tags:        []string{"summarize", "text", "llm"},
		InputSchema: sc,
		Explain: func(input map[string]any) tools.ExplainResult {
			return tools.ExplainResult{Title: "SummarizeText", Context: "Will summarize the supplied text"}
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			text, _ := input["text"].(string)
			maxWords := 100
			if mw, ok := numberArg(input["max_words"]); ok {
				maxWords = int(mw)
			}

			prompt := fmt.Sprintf(
				"Summarize the following text in at most %d words. Reply with only the summary.\n\n%s",
				maxWords, text,
			)
			summary, err := provider.Complete(ctx, prompt)
			if err != nil {
				return "", fmt.Errorf("summarizing: %w", err)
			}
			return summary, nil
		},
	}
}
