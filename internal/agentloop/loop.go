// Package agentloop implements the Agent Controller: the
// thought -> approval -> execute -> observe state machine that drives a
// run to completion. Interruption is cooperative, checked between steps
// via ctx.Done, grounded on the teacher's internal/llm/agent.go Agent.Run
// loop.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kilnrun/kiln/internal/approval"
	"github.com/kilnrun/kiln/internal/planner"
	"github.com/kilnrun/kiln/internal/reliability"
	"github.com/kilnrun/kiln/internal/runstore"
	"github.com/kilnrun/kiln/internal/tools"
)

// ErrInterrupted is returned when ctx is cancelled between steps.
var ErrInterrupted = errors.New("run interrupted")

// DefaultMaxSteps bounds how many planner iterations a single run may
// take before the loop stops and pauses the run, guarding against a
// planner stuck repeating the same unproductive action. Used when a Loop
// is constructed with maxSteps <= 0.
const DefaultMaxSteps = 20

// Registry is the slice of the Tool Registry the loop needs beyond what
// the Planner already uses: resolving a chosen tool name into a runnable
// implementation and recording that it was used.
type Registry interface {
	GetOrLoad(ctx context.Context, name string) (*tools.Tool, error)
	RecordUsage(name string)
	PreloadSimilar(ctx context.Context, query string, k int)
}

// Loop is the Agent Controller for a single run.
type Loop struct {
	registry   Registry
	planner    *planner.Planner
	inferencer *planner.Inferencer
	wrapper    *reliability.Wrapper
	policy     *approval.Policy
	store      *runstore.Store
	logger     *zap.Logger
	maxSteps   int
}

// New builds a Loop. maxSteps <= 0 falls back to DefaultMaxSteps.
func New(registry Registry, p *planner.Planner, inferencer *planner.Inferencer, wrapper *reliability.Wrapper, policy *approval.Policy, store *runstore.Store, logger *zap.Logger, maxSteps int) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Loop{registry: registry, planner: p, inferencer: inferencer, wrapper: wrapper, policy: policy, store: store, logger: logger, maxSteps: maxSteps}
}

// Run drives a brand new run to completion (or failure, or interruption).
func (l *Loop) Run(ctx context.Context, task string) (*runstore.Run, error) {
	run, err := l.store.Create(task)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return l.drive(ctx, run)
}

// Resume continues a previously created run from its persisted step
// history, replaying that history into the planner's context so it
// picks up exactly where it left off. answer, if non-empty, is folded in
// as the human's reply to a pending ask_human step before the drive loop
// resumes - the paused-on-a-question case spec.md's history model calls
// "Human: ...".
func (l *Loop) Resume(ctx context.Context, runID string, answer string) (*runstore.Run, error) {
	run, err := l.store.Load(runID)
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}
	switch run.Status {
	case runstore.StatusRunning, runstore.StatusPaused:
	default:
		return run, fmt.Errorf("run %s is already %s", runID, run.Status)
	}

	if answer != "" {
		if err := l.answerPendingQuestion(run, answer); err != nil {
			return run, err
		}
	}

	run.Status = runstore.StatusRunning
	return l.drive(ctx, run)
}

// answerPendingQuestion appends the human's reply to the most recent
// unanswered ask_human thought as its own observation step, so
// replayHistory can surface it as "Human: ..." in the planner's next
// prompt.
func (l *Loop) answerPendingQuestion(run *runstore.Run, answer string) error {
	for i := len(run.Steps) - 1; i >= 0; i-- {
		step := run.Steps[i]
		if step.Kind != runstore.StepThought || step.ActionType != string(planner.KindAskHuman) {
			continue
		}
		if step.Answer != "" {
			return nil // already answered; nothing pending
		}
		run.Steps[i].Answer = answer
		return l.store.AppendStep(run, runstore.Step{
			Kind:       runstore.StepObservation,
			Answer:     answer,
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		})
	}
	return nil
}

func (l *Loop) drive(ctx context.Context, run *runstore.Run) (*runstore.Run, error) {
	history := replayHistory(run.Steps)

	for turns := 0; turns < l.maxSteps; turns++ {
		select {
		case <-ctx.Done():
			if err := l.store.AppendStep(run, runstore.Step{
				Kind:       runstore.StepInterruption,
				StartedAt:  time.Now(),
				FinishedAt: time.Now(),
			}); err != nil {
				return run, l.failRun(run, err)
			}
			if err := l.store.Pause(run); err != nil {
				return run, l.failRun(run, err)
			}
			return run, ErrInterrupted
		default:
		}

		action, err := l.planner.Plan(ctx, run.Task, history)
		if err != nil {
			return run, l.failRun(run, fmt.Errorf("planning step: %w", err))
		}

		thought := runstore.Step{
			Kind:       runstore.StepThought,
			ActionType: string(action.Kind),
			ToolName:   action.ToolName,
			Question:   action.Question,
			Rationale:  action.Rationale,
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		}
		if err := l.store.AppendStep(run, thought); err != nil {
			return run, l.failRun(run, err)
		}

		switch action.Kind {
		case planner.KindFinalAnswer:
			if err := l.store.AppendStep(run, runstore.Step{
				Kind:       runstore.StepFinal,
				Answer:     action.Answer,
				Rationale:  action.Rationale,
				StartedAt:  time.Now(),
				FinishedAt: time.Now(),
			}); err != nil {
				return run, l.failRun(run, err)
			}
			if err := l.store.Complete(run, action.Answer); err != nil {
				return run, fmt.Errorf("completing run: %w", err)
			}
			return run, nil

		case planner.KindAskHuman:
			// Asking the human pauses the run; the caller surfaces the
			// question and, on a future Resume call with the human's
			// answer, answerPendingQuestion records it as an observation
			// and drive() picks back up from here.
			if err := l.store.Pause(run); err != nil {
				return run, l.failRun(run, err)
			}
			return run, nil

		case planner.KindUseTool:
			obs, denied, err := l.runToolStep(ctx, run, action, history)
			if err != nil {
				return run, l.failRun(run, err)
			}
			if denied {
				// A denied tool call is not a failure, but the run can't
				// safely keep going without a human's attention - pause it
				// the same way an exhausted step budget does.
				if err := l.store.Pause(run); err != nil {
					return run, l.failRun(run, err)
				}
				return run, nil
			}
			history = append(history, obs)

		default:
			return run, l.failRun(run, fmt.Errorf("unknown action kind: %s", action.Kind))
		}
	}

	if err := l.store.Pause(run); err != nil {
		return run, l.failRun(run, fmt.Errorf("pausing run after exceeding max steps: %w", err))
	}
	l.logger.Info("run paused: exceeded max steps", zap.String("run_id", run.ID), zap.Int("max_steps", l.maxSteps))
	return run, nil
}

// runToolStep resolves, approves, infers arguments for, and executes one
// tool call, appending the full approval-request/approval-response/tool/
// observation step sequence spec.md's data model calls for - a failed
// tool call is a normal, recorded part of the run, not a run-ending
// error. The returned bool reports whether the human denied approval, in
// which case the caller pauses the run rather than looping again with
// the denial as just another observation.
func (l *Loop) runToolStep(ctx context.Context, run *runstore.Run, action planner.Action, history []planner.Observation) (planner.Observation, bool, error) {
	obs := planner.Observation{ToolName: action.ToolName, Args: action.Args}

	tool, err := l.registry.GetOrLoad(ctx, action.ToolName)
	if err != nil {
		obs.Err = err.Error()
		return obs, false, l.appendObservation(run, "", err.Error())
	}

	args, inferErr := l.inferencer.Infer(ctx, tool, run.Task, history, action.Args)
	if inferErr == nil {
		obs.Args = args
	} else {
		args = action.Args
		obs.Args = args
	}

	summary := fmt.Sprintf("%s(%s)", tool.Name, truncate(fmt.Sprint(args), 50))
	if err := l.store.AppendStep(run, runstore.Step{
		Kind:       runstore.StepApprovalRequest,
		ToolName:   tool.Name,
		Summary:    summary,
		Sensitive:  tool.Sensitive,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}); err != nil {
		return obs, false, err
	}

	explanation := explainFor(tool, args)
	approved, alternate := l.policy.Approve(ctx, tool.Name, explanation, tool.Sensitive)
	b := approved
	if err := l.store.AppendStep(run, runstore.Step{
		Kind:       runstore.StepApprovalResponse,
		ToolName:   tool.Name,
		Approved:   &b,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}); err != nil {
		return obs, false, err
	}
	if !approved {
		msg := "denied by human"
		if alternate != "" {
			msg = "denied by human, alternate instruction: " + alternate
		}
		obs.Err = msg
		return obs, true, l.appendObservation(run, "", msg)
	}

	if inferErr != nil {
		msg := fmt.Sprintf("schema_validation: %v", inferErr)
		obs.Err = msg
		return obs, false, l.appendObservation(run, "", msg)
	}

	if err := l.store.AppendStep(run, runstore.Step{
		Kind:      runstore.StepTool,
		ToolName:  tool.Name,
		Args:      args,
		StartedAt: time.Now(),
	}); err != nil {
		return obs, false, err
	}

	result, err := l.wrapper.Execute(ctx, tool, args)
	if err != nil {
		obs.Err = err.Error()
		return obs, false, l.appendObservation(run, "", err.Error())
	}

	obs.Result = result
	l.registry.RecordUsage(tool.Name)
	l.registry.PreloadSimilar(ctx, run.Task, 3)
	return obs, false, l.appendObservation(run, result, "")
}

// appendObservation records the outcome of the tool step just appended.
func (l *Loop) appendObservation(run *runstore.Run, result, errMsg string) error {
	return l.store.AppendStep(run, runstore.Step{
		Kind:       runstore.StepObservation,
		Result:     result,
		Error:      errMsg,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	})
}

// truncate shortens s to at most n runes, matching spec.md's approval
// summary shape of "name(truncatedArgs[..50])".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func explainFor(t *tools.Tool, args map[string]any) string {
	if t.Explain == nil {
		return fmt.Sprintf("Run %s with %v", t.Name, args)
	}
	result := t.Explain(args)
	if result.Context != "" {
		return fmt.Sprintf("%s\n%s", result.Title, result.Context)
	}
	return result.Title
}

func (l *Loop) failRun(run *runstore.Run, cause error) error {
	l.logger.Error("run failed", zap.String("run_id", run.ID), zap.Error(cause))
	if err := l.store.Fail(run); err != nil {
		return fmt.Errorf("%w (also failed to persist failure: %v)", cause, err)
	}
	return cause
}

// replayHistory rebuilds the Planner's Observation slice from a run's
// persisted steps, so Resume gives the planner the same view of the past
// it would have had if the process had never stopped, per spec.md's
// history reconstruction rule: each tool step paired with its following
// observation renders as "Used T with A" / "Observed: ...", a human's
// reply as "Human: ...", and a final step as "Final: ...". Thought,
// approval-request/response, and interruption steps contribute nothing
// directly - they're bookkeeping around the tool/observation pair, not
// part of the narrative the planner reasons over.
func replayHistory(steps []runstore.Step) []planner.Observation {
	history := make([]planner.Observation, 0, len(steps))
	var pending *runstore.Step
	for i := range steps {
		s := steps[i]
		switch s.Kind {
		case runstore.StepTool:
			pending = &steps[i]

		case runstore.StepObservation:
			switch {
			case pending != nil:
				history = append(history, planner.Observation{
					ToolName: pending.ToolName,
					Args:     pending.Args,
					Result:   s.Result,
					Err:      s.Error,
				})
				pending = nil
			case s.Answer != "":
				history = append(history, planner.Observation{Note: "Human: " + s.Answer})
			case s.Error != "":
				history = append(history, planner.Observation{Note: "error: " + s.Error})
			}

		case runstore.StepFinal:
			history = append(history, planner.Observation{Note: "Final: " + s.Answer})
		}
	}
	return history
}
