package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilnrun/kiln/internal/schema"
	"github.com/kilnrun/kiln/internal/tools"
)

// WebSearch queries the DuckDuckGo Instant Answer API, following the same
// plain-HTTP-client-plus-JSON pattern as
// ashita-ai-akashi/internal/service/embedding/embedding.go's OpenAI
// client, generalized to a GET query instead of a POST embedding call. It
// is the concrete tool the Planner's "websearch" heuristic fallback
// targets.
func WebSearch() *tools.Tool {
	sc := schema.New()
	sc.Properties["query"] = schema.Property{Type: "string", Description: "The search query"}
	sc.Required = []string{"query"}

	client := &http.Client{Timeout: 10 * time.Second}

	return &tools.Tool{
		Name:        "web_search",
		Description: "Search the web for a short factual answer to a query",
		Category:    "research",
		Tags:        []string{"search", "web", "lookup"},
		InputSchema: sc,
		Explain: func(input map[string]any) tools.ExplainResult {
			query, _ := input["query"].(string)
			return tools.ExplainResult{Title: fmt.Sprintf("WebSearch(%s)", query), Context: "Will search the web for: " + query}
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			query, _ := input["query"].(string)

			reqURL := "https://api.duckduckgo.com/?" + url.Values{
				"q":      {query},
				"format": {"json"},
				"no_html": {"1"},
			}.Encode()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return "", fmt.Errorf("building request: %w", err)
			}

			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("calling search API: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", fmt.Errorf("reading response: %w", err)
			}

			var parsed struct {
				AbstractText string `json:"AbstractText"`
				Heading      string `json:"Heading"`
				RelatedTopics []struct {
					Text string `json:"Text"`
				} `json:"RelatedTopics"`
			}
			if err := json.Unmarshal(body, &parsed); err != nil {
				return "", fmt.Errorf("unmarshaling response: %w", err)
			}

			if parsed.AbstractText != "" {
				return parsed.AbstractText, nil
			}
			var related []string
			for _, t := range parsed.RelatedTopics {
				if t.Text != "" {
					related = append(related, t.Text)
				}
			}
			if len(related) > 0 {
				return strings.Join(related[:min(3, len(related))], "\n"), nil
			}
			return fmt.Sprintf("No results found for %q", query), nil
		},
	}
}
