package ui

import "context"

// Prompter adapts a UserInterface to internal/approval.Prompter, adding
// the ctx parameter that interface requires so the agent loop's
// cancellation can in principle interrupt an in-flight prompt (the
// underlying readline call is not itself cancellable, but the loop's
// caller can still stop waiting on this call once ctx is done).
type Prompter struct {
	UI UserInterface
}

func (p Prompter) AskToolCallConfirmation(_ context.Context, explanation string) (bool, string) {
	return p.UI.AskToolCallConfirmation(explanation)
}
