package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilnrun/kiln/internal/llmprovider"
	"github.com/kilnrun/kiln/internal/tools"
)

// Inferencer fills in a tool call's arguments from a natural-language
// task description. It tries a small set of deterministic shortcuts
// first - most tool calls in a task-execution loop have an obvious
// single-argument shape - and only falls back to an LLM repair call when
// those don't apply, keeping the common case free of model latency and
// nondeterminism.
type Inferencer struct {
	provider llmprovider.Provider
}

func NewInferencer(provider llmprovider.Provider) *Inferencer {
	return &Inferencer{provider: provider}
}

// Infer produces a validated argument map for tool given the task text,
// the run's history so far, and whatever partial args the planner
// already extracted. partial wins over any inferred value for keys it
// already sets.
func (inf *Inferencer) Infer(ctx context.Context, tool *tools.Tool, taskText string, history []Observation, partial map[string]any) (map[string]any, error) {
	args := map[string]any{}
	for k, v := range partial {
		args[k] = v
	}

	if shortcut := deterministicShortcut(tool.Name, taskText, history); shortcut != nil {
		for k, v := range shortcut {
			if _, set := args[k]; !set {
				args[k] = v
			}
		}
	}

	if err := tool.Validate(args); err == nil {
		return args, nil
	}

	repaired, err := inf.repairViaLLM(ctx, tool, taskText, args)
	if err != nil {
		return nil, fmt.Errorf("inferring arguments for %s: %w", tool.Name, err)
	}
	if err := tool.Validate(repaired); err != nil {
		return nil, fmt.Errorf("inferred arguments for %s still invalid: %w", tool.Name, err)
	}
	return repaired, nil
}

// deterministicShortcut covers the handful of builtin tools whose sole
// meaningful argument can be read straight off the task text, avoiding an
// LLM round trip for the overwhelmingly common case.
func deterministicShortcut(toolName, taskText string, history []Observation) map[string]any {
	switch toolName {
	case "calculator":
		if expr, ok := extractArithmeticExpression(taskText); ok {
			return map[string]any{"expression": expr}
		}
	case "web_search":
		return map[string]any{"query": strings.TrimSpace(taskText), "maxResults": 5}
	case "summarize_text":
		return map[string]any{
			"text":        truncate(joinHistory(history), 4000),
			"instruction": "Summarize succinctly with key bullets",
		}
	}
	return nil
}

// joinHistory renders history the same way the planner's own prompt does,
// giving the summarize_text shortcut the full run narrative to condense.
func joinHistory(history []Observation) string {
	lines := make([]string, 0, len(history))
	for _, o := range history {
		lines = append(lines, o.render())
	}
	return strings.Join(lines, "\n")
}

func extractArithmeticExpression(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	if _, _, ok := splitComparison(trimmed); ok {
		return "", false // comparisons are handled by the heuristic fallback, not the calculator
	}
	expr := sanitizeExpression(trimmed)
	if !looksArithmetic(expr) {
		return "", false
	}
	return expr, true
}

// repairViaLLM asks the model to fill in the tool's declared keys (via
// Schema.Keys introspection, required keys first) from the task text and
// whatever arguments are already known. The model is asked for a bare
// JSON object matching those keys, nothing else.
func (inf *Inferencer) repairViaLLM(ctx context.Context, tool *tools.Tool, taskText string, known map[string]any) (map[string]any, error) {
	keys := tool.InputSchema.Keys()
	knownJSON, _ := json.Marshal(known)

	var b strings.Builder
	fmt.Fprintf(&b, "Tool %q needs these arguments: %s\n", tool.Name, strings.Join(keys, ", "))
	fmt.Fprintf(&b, "Task: %s\n", taskText)
	fmt.Fprintf(&b, "Known so far: %s\n", string(knownJSON))
	b.WriteString("Respond with ONLY a JSON object containing exactly these keys, filled in from the task. No other text.")

	response, err := inf.provider.Complete(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("calling provider: %w", err)
	}

	jsonText := extractJSONObject(response)
	var filled map[string]any
	if err := json.Unmarshal([]byte(jsonText), &filled); err != nil {
		return nil, fmt.Errorf("parsing inferred arguments: %w", err)
	}

	args := map[string]any{}
	for k, v := range filled {
		args[k] = v
	}
	for k, v := range known {
		args[k] = v
	}
	return args, nil
}

// extractJSONObject trims any surrounding prose an LLM adds around a JSON
// object, taking the substring between the first '{' and the last '}'.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
