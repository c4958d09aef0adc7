// Package tools defines the Tool Specification data model: what the
// registry catalogs, what the reliability wrapper executes, and what the
// approval policy decides about.
package tools

import (
	"context"

	"github.com/kilnrun/kiln/internal/schema"
)

// ExplainResult is a short human-facing description of what a tool call
// is about to do, shown in approval prompts and tool-call panels.
type ExplainResult struct {
	Title   string
	Context string
}

// BreakerConfig configures the reliability wrapper's per-tool circuit
// breaker. A zero value means "use the wrapper's defaults".
type BreakerConfig struct {
	FailureThreshold int
	CooldownSeconds  int
}

// RetryConfig configures the reliability wrapper's retry behaviour for a
// tool. A zero value means "use the wrapper's defaults".
type RetryConfig struct {
	MaxAttempts   int
	BaseDelayMS   int
}

// Tool is the full specification of one catalog entry: the metadata the
// registry indexes and searches on, plus the executable behaviour.
// Execute and Explain are nil for entries that have only been scanned,
// not loaded - see internal/registry.
type Tool struct {
	Name        string
	Description string
	Category    string
	Tags        []string
	Priority    int
	Sensitive   bool
	Retry       RetryConfig
	Breaker     BreakerConfig
	InputSchema *schema.Schema

	Execute func(ctx context.Context, input map[string]any) (string, error)
	Explain func(input map[string]any) ExplainResult
}

// Validate checks input against the tool's declared schema.
func (t *Tool) Validate(input map[string]any) error {
	if t.InputSchema == nil {
		return nil
	}
	return t.InputSchema.Validate(input)
}

// Run validates input and, if valid, executes the tool body directly -
// without approval, retry, or circuit-breaking. Those concerns live one
// layer up, in internal/approval and internal/reliability; the
// reliability wrapper performs the same validation and then calls
// Execute itself.
func (t *Tool) Run(ctx context.Context, input map[string]any) (string, error) {
	if err := t.Validate(input); err != nil {
		return "", err
	}
	return t.Execute(ctx, input)
}
