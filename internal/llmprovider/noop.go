package llmprovider

import "context"

// Noop never reaches a network. It lets the planner's deterministic
// heuristics and the reliability/approval layers run (and be tested)
// without a live model; the LLM planning step simply reports no viable
// action and the planner falls through to AskHuman.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Name() string { return "noop" }

func (n *Noop) Complete(ctx context.Context, prompt string) (string, error) {
	return `{"kind":"ask_human","question":"No LLM provider is configured. How should I proceed?"}`, nil
}
