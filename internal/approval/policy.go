// Package approval implements the Approval Policy: a pure decision over
// run mode and a tool's sensitivity, plus the human-prompt side effect
// for the cases that need one. Grounded on the teacher's
// internal/common.PermissionManager (auto-approve table plus a UI
// handler fallback) and internal/ui/traditional.go's
// AskToolCallConfirmation/AskPermission, generalized from a per-tool
// auto-approve map to the three-mode policy spec.md names.
package approval

import "context"

// Mode is the run-wide approval mode.
type Mode string

const (
	// ModeAuto approves every tool call without asking, including
	// sensitive ones. Intended for scripted/non-interactive runs that
	// have already been vetted.
	ModeAuto Mode = "auto"
	// ModeSensitive approves non-sensitive tool calls automatically and
	// asks the human only for tools marked Sensitive. This is the
	// default.
	ModeSensitive Mode = "sensitive"
	// ModeAlways asks the human before every tool call, sensitive or
	// not.
	ModeAlways Mode = "always"
)

// Decision is the outcome of Decide: either the call proceeds without
// asking, or the human must be consulted.
type Decision int

const (
	DecisionProceed Decision = iota
	DecisionAskHuman
)

// Decide is a pure function of run mode and a tool's sensitivity flag -
// no I/O, so it's trivially testable and safe to call speculatively.
func Decide(mode Mode, sensitive bool) Decision {
	switch mode {
	case ModeAuto:
		return DecisionProceed
	case ModeAlways:
		return DecisionAskHuman
	case ModeSensitive:
		fallthrough
	default:
		if sensitive {
			return DecisionAskHuman
		}
		return DecisionProceed
	}
}

// Prompter asks the human to approve or deny a tool call, given a short
// human-readable explanation of what the call is about to do. It returns
// whether the call was approved and, if not, an alternate instruction
// the human gave instead.
type Prompter interface {
	AskToolCallConfirmation(ctx context.Context, explanation string) (approved bool, alternate string)
}

// ErrHumanDenied-shaped outcomes are represented as a value, not an
// error, because a denial is an expected branch of the run, not a
// failure: see Policy.Approve's return values.

// Policy combines the pure Decide function with a Prompter to produce
// the actual approve/deny/alternate outcome for a tool call.
//
// AutoApprove names tools that skip both Decide and the human prompt
// entirely, mirroring the teacher's PermissionManager auto-approve table
// - a user-configured exception list that wins over run mode.
type Policy struct {
	Mode        Mode
	AutoApprove map[string]bool
	Prompter    Prompter
}

func New(mode Mode, autoApprove map[string]bool, prompter Prompter) *Policy {
	return &Policy{Mode: mode, AutoApprove: autoApprove, Prompter: prompter}
}

// Approve decides whether a tool call may proceed. approved=false with a
// non-empty alternate means the human declined and gave different
// instructions to follow instead.
func (p *Policy) Approve(ctx context.Context, toolName, explanation string, sensitive bool) (approved bool, alternate string) {
	if p.AutoApprove[toolName] {
		return true, ""
	}
	if Decide(p.Mode, sensitive) == DecisionProceed {
		return true, ""
	}
	if p.Prompter == nil {
		// No interactive surface available (e.g. a non-interactive CLI
		// invocation) - deny by default rather than silently proceeding
		// past a policy that asked for a human.
		return false, "no prompter configured to ask for approval"
	}
	return p.Prompter.AskToolCallConfirmation(ctx, explanation)
}
