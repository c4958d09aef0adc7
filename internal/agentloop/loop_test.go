package agentloop

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kilnrun/kiln/internal/approval"
	"github.com/kilnrun/kiln/internal/catalog"
	"github.com/kilnrun/kiln/internal/planner"
	"github.com/kilnrun/kiln/internal/reliability"
	"github.com/kilnrun/kiln/internal/runstore"
	"github.com/kilnrun/kiln/internal/schema"
	"github.com/kilnrun/kiln/internal/tools"
)

// stubRegistry implements both planner.Registry (Search) and
// agentloop.Registry (GetOrLoad/RecordUsage/PreloadSimilar) over a fixed
// in-memory tool set, so a Loop can be driven end to end without a real
// catalog/index/cache stack.
type stubRegistry struct {
	byName map[string]*tools.Tool
	usage  []string
}

func (s *stubRegistry) Search(ctx context.Context, query string, k int) ([]catalog.Entry, error) {
	var out []catalog.Entry
	for name, t := range s.byName {
		out = append(out, catalog.Entry{Name: name, Description: t.Description})
	}
	return out, nil
}

func (s *stubRegistry) GetOrLoad(ctx context.Context, name string) (*tools.Tool, error) {
	t, ok := s.byName[name]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return t, nil
}

func (s *stubRegistry) RecordUsage(name string) { s.usage = append(s.usage, name) }

func (s *stubRegistry) PreloadSimilar(ctx context.Context, query string, k int) {}

type stubProvider struct {
	responses []string
	i         int
}

func (s *stubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if s.i >= len(s.responses) {
		return `{"kind":"ask_human","question":"out of scripted responses"}`, nil
	}
	r := s.responses[s.i]
	s.i++
	return r, nil
}

func (s *stubProvider) Name() string { return "stub" }

func echoTool() *tools.Tool {
	sc := schema.New()
	sc.Properties["text"] = schema.Property{Type: "string"}
	sc.Required = []string{"text"}
	return &tools.Tool{
		Name:        "echo",
		Description: "echoes text back",
		InputSchema: sc,
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			return input["text"].(string), nil
		},
	}
}

func newTestLoop(t *testing.T, provider *stubProvider, reg *stubRegistry, mode approval.Mode) *Loop {
	t.Helper()
	inferencer := planner.NewInferencer(provider)
	p := planner.New(reg, provider, inferencer, 0)
	wrapper := reliability.New()
	policy := approval.New(mode, nil, nil)
	store := runstore.New(t.TempDir())
	return New(reg, p, inferencer, wrapper, policy, store, zap.NewNop(), 0)
}

func TestRun_CompletesOnFinalAnswer(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"kind":"final_answer","answer":"42","reason":"done"}`,
	}}
	reg := &stubRegistry{byName: map[string]*tools.Tool{}}
	loop := newTestLoop(t, provider, reg, approval.ModeAuto)

	run, err := loop.Run(context.Background(), "what is the answer")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != runstore.StatusDone {
		t.Fatalf("expected StatusDone, got %s", run.Status)
	}
	if run.FinalAnswer != "42" {
		t.Errorf("expected final answer 42, got %s", run.FinalAnswer)
	}
	// thought, then final.
	if len(run.Steps) != 2 {
		t.Fatalf("expected exactly 2 recorded steps, got %d", len(run.Steps))
	}
	if run.Steps[0].Kind != runstore.StepThought {
		t.Errorf("expected first step to be a thought, got %s", run.Steps[0].Kind)
	}
	if run.Steps[1].Kind != runstore.StepFinal {
		t.Errorf("expected last step to be final, got %s", run.Steps[1].Kind)
	}
}

func TestRun_ExecutesToolThenFinalAnswer(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"kind":"use_tool","tool":"echo","args":{"text":"hello"},"reason":"try it"}`,
		`{"kind":"final_answer","answer":"hello","reason":"got the echo back"}`,
	}}
	reg := &stubRegistry{byName: map[string]*tools.Tool{"echo": echoTool()}}
	loop := newTestLoop(t, provider, reg, approval.ModeAuto)

	run, err := loop.Run(context.Background(), "produce some greeting output")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != runstore.StatusDone {
		t.Fatalf("expected StatusDone, got %s", run.Status)
	}
	// First turn: thought, approval-request, approval-response, tool,
	// observation. Second turn: thought, final.
	wantKinds := []string{
		runstore.StepThought,
		runstore.StepApprovalRequest,
		runstore.StepApprovalResponse,
		runstore.StepTool,
		runstore.StepObservation,
		runstore.StepThought,
		runstore.StepFinal,
	}
	if len(run.Steps) != len(wantKinds) {
		t.Fatalf("expected %d steps, got %d: %+v", len(wantKinds), len(run.Steps), run.Steps)
	}
	for i, want := range wantKinds {
		if run.Steps[i].Kind != want {
			t.Errorf("step %d: expected kind %s, got %s", i, want, run.Steps[i].Kind)
		}
	}
	if run.Steps[4].Result != "hello" {
		t.Errorf("expected observation result 'hello', got %q", run.Steps[4].Result)
	}
	if len(reg.usage) != 1 || reg.usage[0] != "echo" {
		t.Errorf("expected echo's usage to be recorded, got %v", reg.usage)
	}
}

func TestRun_AskHumanPausesTheRun(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"kind":"ask_human","question":"which file do you mean?","reason":"ambiguous"}`,
	}}
	reg := &stubRegistry{byName: map[string]*tools.Tool{}}
	loop := newTestLoop(t, provider, reg, approval.ModeAuto)

	run, err := loop.Run(context.Background(), "delete the file")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != runstore.StatusPaused {
		t.Errorf("expected run to pause while waiting on a human answer, got %s", run.Status)
	}
	if len(run.Steps) != 1 || run.Steps[0].Kind != runstore.StepThought || run.Steps[0].ActionType != string(planner.KindAskHuman) {
		t.Fatalf("expected a single ask_human thought step, got %+v", run.Steps)
	}
}

func TestResume_AnswersAskHumanAsAnObservation(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"kind":"ask_human","question":"which file do you mean?","reason":"ambiguous"}`,
		`{"kind":"final_answer","answer":"config.yaml","reason":"human told me"}`,
	}}
	reg := &stubRegistry{byName: map[string]*tools.Tool{}}
	loop := newTestLoop(t, provider, reg, approval.ModeAuto)

	run, err := loop.Run(context.Background(), "delete the file")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != runstore.StatusPaused {
		t.Fatalf("expected the run to pause on ask_human, got %s", run.Status)
	}

	resumed, err := loop.Resume(context.Background(), run.ID, "config.yaml")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != runstore.StatusDone {
		t.Fatalf("expected the resumed run to complete, got %s", resumed.Status)
	}
	if resumed.Steps[0].Answer != "config.yaml" {
		t.Errorf("expected the ask_human thought to record the answer, got %q", resumed.Steps[0].Answer)
	}
	if resumed.Steps[1].Kind != runstore.StepObservation || resumed.Steps[1].Answer != "config.yaml" {
		t.Errorf("expected an observation recording the human's answer, got %+v", resumed.Steps[1])
	}
}

func TestRun_DeniedSensitiveToolPausesNotFails(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"kind":"use_tool","tool":"echo","args":{"text":"hello"},"reason":"try it"}`,
	}}
	sensitiveEcho := echoTool()
	sensitiveEcho.Sensitive = true
	reg := &stubRegistry{byName: map[string]*tools.Tool{"echo": sensitiveEcho}}
	// ModeAlways with no prompter configured denies every sensitive call.
	loop := newTestLoop(t, provider, reg, approval.ModeAlways)

	run, err := loop.Run(context.Background(), "produce some greeting output")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != runstore.StatusPaused {
		t.Fatalf("expected a denial to pause the run for human review, got %s", run.Status)
	}
	// thought, approval-request, approval-response(denied), observation.
	if len(run.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d: %+v", len(run.Steps), run.Steps)
	}
	response := run.Steps[2]
	if response.Kind != runstore.StepApprovalResponse || response.Approved == nil || *response.Approved {
		t.Errorf("expected the approval-response step to record a denial, got %+v", response)
	}
	if run.Steps[3].Kind != runstore.StepObservation || run.Steps[3].Error == "" {
		t.Error("expected a denial reason to be recorded on the closing observation")
	}
}

func TestRun_InterruptedContextPausesRun(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"kind":"final_answer","answer":"42","reason":"done"}`,
	}}
	reg := &stubRegistry{byName: map[string]*tools.Tool{}}
	loop := newTestLoop(t, provider, reg, approval.ModeAuto)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := loop.Run(ctx, "anything")
	if err != ErrInterrupted {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if run.Status != runstore.StatusPaused {
		t.Errorf("expected StatusPaused, got %s", run.Status)
	}
	if len(run.Steps) != 1 || run.Steps[0].Kind != runstore.StepInterruption {
		t.Fatalf("expected a single interruption step, got %+v", run.Steps)
	}
}

func TestResume_ReplaysHistoryAndContinues(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"kind":"final_answer","answer":"42","reason":"done"}`,
	}}
	reg := &stubRegistry{byName: map[string]*tools.Tool{"echo": echoTool()}}
	loop := newTestLoop(t, provider, reg, approval.ModeAuto)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := loop.Run(ctx, "produce output then answer")
	if err != ErrInterrupted {
		t.Fatalf("expected the first Run to be interrupted, got %v", err)
	}

	resumed, err := loop.Resume(context.Background(), run.ID, "")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != runstore.StatusDone {
		t.Fatalf("expected the resumed run to complete, got %s", resumed.Status)
	}
}

func TestDrive_ExceedingMaxStepsPausesTheRun(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"kind":"use_tool","tool":"echo","args":{"text":"a"},"reason":"loop"}`,
		`{"kind":"use_tool","tool":"echo","args":{"text":"b"},"reason":"loop"}`,
		`{"kind":"use_tool","tool":"echo","args":{"text":"c"},"reason":"loop"}`,
	}}
	reg := &stubRegistry{byName: map[string]*tools.Tool{"echo": echoTool()}}
	inferencer := planner.NewInferencer(provider)
	p := planner.New(reg, provider, inferencer, 0)
	wrapper := reliability.New()
	policy := approval.New(approval.ModeAuto, nil, nil)
	store := runstore.New(t.TempDir())
	loop := New(reg, p, inferencer, wrapper, policy, store, zap.NewNop(), 2)

	// Repeat the same tool call responses so the planner never reaches a
	// final answer within a 2-step budget.
	provider.responses = append(provider.responses, provider.responses...)

	run, err := loop.Run(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("expected exceeding MaxSteps to pause rather than error, got %v", err)
	}
	if run.Status != runstore.StatusPaused {
		t.Errorf("expected StatusPaused, got %s", run.Status)
	}
	// 2 turns, 5 steps each: thought, approval-request, approval-response,
	// tool, observation.
	if len(run.Steps) != 10 {
		t.Errorf("expected exactly 10 steps within the 2-turn budget, got %d", len(run.Steps))
	}
}
