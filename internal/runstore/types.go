package runstore

import "time"

// Status is a run's lifecycle state.
type Status string

const (
	StatusRunning Status = "running"
	// StatusPaused marks a run stopped for human attention - it hit its
	// step budget, a tool call was denied approval, or the process was
	// interrupted - as distinct from StatusFailed (a fatal error).
	// Paused runs are resumable, same as running ones.
	StatusPaused Status = "paused"
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Step kinds, one per entry in a run's trajectory. A single planner turn
// produces several of these in sequence - thought, then either final, or
// approval-request/approval-response followed by tool/observation.
const (
	StepThought          = "thought"
	StepTool             = "tool"
	StepObservation      = "observation"
	StepApprovalRequest  = "approval-request"
	StepApprovalResponse = "approval-response"
	StepFinal            = "final"
	StepInterruption     = "interruption"
)

// Step is one durable, append-only record in a run's trajectory. Which
// fields are meaningful depends on Kind: a thought carries ActionType and
// Rationale, an approval-request carries Summary and Sensitive, a tool
// step carries ToolName/Args, an observation carries Result/Error, and so
// on.
type Step struct {
	Index      int            `json:"index"`
	Kind       string         `json:"kind"`
	ActionType string         `json:"action_type,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Sensitive  bool           `json:"sensitive,omitempty"`
	Question   string         `json:"question,omitempty"`
	Answer     string         `json:"answer,omitempty"`
	Rationale  string         `json:"rationale,omitempty"`
	Result     string         `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Approved   *bool          `json:"approved,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}

// Run is the durable record of one task execution: its steps, and enough
// bookkeeping to resume it later.
type Run struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	Status    Status    `json:"status"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// FinalAnswer is set once Status is StatusDone.
	FinalAnswer string `json:"final_answer,omitempty"`
}
