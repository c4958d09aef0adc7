// Package planner turns a task description and run history into the next
// Action to take: call a tool, ask the human a question, or produce a
// final answer. It is grounded on the teacher's internal/llm/agent.go
// decision loop, generalized from a fixed tool-calling chat loop to a
// discriminated Action union so the agent controller can treat every
// outcome uniformly.
package planner

// Kind discriminates the Action union.
type Kind string

const (
	KindUseTool     Kind = "use_tool"
	KindAskHuman    Kind = "ask_human"
	KindFinalAnswer Kind = "final_answer"
)

// Action is the tagged union the Planner produces each step. Exactly one
// of the kind-specific fields is meaningful, selected by Kind.
type Action struct {
	Kind Kind

	// KindUseTool
	ToolName string
	Args     map[string]any

	// KindAskHuman
	Question string

	// KindFinalAnswer
	Answer string

	// Rationale is a short human-readable explanation of why this action
	// was chosen, surfaced in the run log and CLI output but never parsed.
	Rationale string
}

func UseTool(name string, args map[string]any, rationale string) Action {
	return Action{Kind: KindUseTool, ToolName: name, Args: args, Rationale: rationale}
}

func AskHuman(question, rationale string) Action {
	return Action{Kind: KindAskHuman, Question: question, Rationale: rationale}
}

func FinalAnswer(answer, rationale string) Action {
	return Action{Kind: KindFinalAnswer, Answer: answer, Rationale: rationale}
}
