package goalrunner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/goalrunner/internal/eventbus"
)

// runComponents are the collaborators the transitions need.
type runComponents struct {
	planner  Planner
	executor Executor
	store    Store
	bus      eventbus.Bus
	logger   *slog.Logger
}

// createRunStateMachine builds the state machine for one run.
func createRunStateMachine(c runComponents) *StateMachine {
	sm := NewStateMachine(c.logger)
	sm.RegisterTransition(StateInit, createInitTransition(c))
	sm.RegisterTransition(StatePlanning, createPlanningTransition(c))
	sm.RegisterTransition(StateExecution, createExecutionTransition(c))
	sm.RegisterTransition(StateFinalize, createFinalizeTransition(c))
	return sm
}

func createInitTransition(c runComponents) StateTransition {
	return func(ctx context.Context, p *RunProcess) (RunState, error) {
		ec := p.Execution
		c.emit(ctx, eventbus.EventRunStarted, ec.Goal, ec, nil)

		intent := c.planner.ClassifyIntent(ec.Goal, ec.UserContext)
		ec.SetIntent(intent)
		c.logger.Info("run started", "execution_id", ec.ExecutionID, "intent", intent)
		c.emit(ctx, eventbus.EventIntentClassified, intent, ec, nil)

		if c.store != nil {
			if err := c.store.Save(ctx, ec); err != nil {
				c.logger.Warn("failed to save execution record", "execution_id", ec.ExecutionID, "error", err)
			}
		}
		return StatePlanning, nil
	}
}

func createPlanningTransition(c runComponents) StateTransition {
	return func(ctx context.Context, p *RunProcess) (RunState, error) {
		ec := p.Execution
		c.emit(ctx, eventbus.EventPlanGenerationStarted, ec.Goal, ec, nil)

		steps, err := c.planner.Plan(ctx, ec.Goal, ec.UserContext)
		if err != nil {
			c.logger.Error("planning failed", "execution_id", ec.ExecutionID, "error", err)
			c.emit(ctx, eventbus.EventPlanGenerationFailure, err.Error(), ec, map[string]any{"error": err.Error()})
			return StateFinalize, err
		}

		p.Steps = steps
		c.logger.Info("plan generated", "execution_id", ec.ExecutionID, "step_count", len(steps))
		c.emit(ctx, eventbus.EventPlanGenerationSuccess, steps, ec, map[string]any{"step_count": len(steps)})

		if len(steps) == 0 {
			return StateFinalize, nil
		}
		return StateExecution, nil
	}
}

func createExecutionTransition(c runComponents) StateTransition {
	return func(ctx context.Context, p *RunProcess) (RunState, error) {
		ec := p.Execution
		result, err := c.executor.Execute(ctx, p.Steps, ec)
		if err != nil {
			return StateFinalize, err
		}
		p.NaiveResult = result
		c.logger.Debug("executor result", "execution_id", ec.ExecutionID, "result", result)
		return StateFinalize, nil
	}
}

// createFinalizeTransition resolves the final result, sets the terminal
// status, and persists the record. The record always leaves running, even if
// resolution panics.
func createFinalizeTransition(c runComponents) StateTransition {
	return func(ctx context.Context, p *RunProcess) (next RunState, err error) {
		ec := p.Execution
		// Cancellation must not stop persistence.
		ctx = context.WithoutCancel(ctx)

		defer func() {
			if r := recover(); r != nil {
				msg := fmt.Sprintf("finalization panicked: %v", r)
				ec.Fail(msg,
					FinalResult{Content: failurePrefix + msg, Source: SourceToolFailure, Confidence: ConfidenceLow},
					BuildSummary(ec.Steps(), ec.CreatedAt, time.Now()))
				c.save(ctx, ec)
				next, err = StateDone, NewInternalError(StageFinalization, msg, nil)
			}
		}()

		steps := ec.Steps()
		summary := BuildSummary(steps, ec.CreatedAt, time.Now())
		runErr := ""
		if p.Err != nil {
			runErr = ErrorMessage(p.Err)
		}
		result := ResolveFinalResult(ec.Goal, steps, runErr)

		if runErr == "" && summary.FailedSteps > 0 {
			runErr = steps[len(steps)-1].Error
			if runErr == "" {
				runErr = noErrorDetails
			}
		}

		if runErr != "" {
			ec.Fail(runErr, result, summary)
			c.logger.Error("run failed",
				"execution_id", ec.ExecutionID, "stage", p.ErrorStage, "error", runErr,
				"duration_ms", p.TotalDuration().Milliseconds(), "state_ms", stateTimings(p))
			c.emit(ctx, eventbus.EventRunFailed, result, ec, map[string]any{"error": runErr, "stage": string(p.ErrorStage)})
		} else {
			ec.Complete(result, summary)
			c.logger.Info("run completed",
				"execution_id", ec.ExecutionID, "source", result.Source, "confidence", result.Confidence,
				"duration_ms", p.TotalDuration().Milliseconds(), "state_ms", stateTimings(p))
			c.emit(ctx, eventbus.EventRunCompleted, result, ec, nil)
		}
		c.save(ctx, ec)
		return StateDone, nil
	}
}

// stateTimings renders the per-state durations in milliseconds for logging.
func stateTimings(p *RunProcess) map[string]int64 {
	durations := p.StateDurations()
	out := make(map[string]int64, len(durations))
	for state, d := range durations {
		out[string(state)] = d.Milliseconds()
	}
	return out
}

func (c runComponents) save(ctx context.Context, ec *ExecutionContext) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, ec); err != nil {
		c.logger.Error("failed to save execution record", "execution_id", ec.ExecutionID, "error", err)
	}
}

func (c runComponents) emit(ctx context.Context, eventType eventbus.EventType, payload any, ec *ExecutionContext, extra map[string]any) {
	event := eventbus.Event{
		Type:        eventType,
		ExecutionID: ec.ExecutionID,
		Source:      "runner",
		Payload:     payload,
		Metadata:    extra,
	}
	if err := eventbus.Emit(ctx, c.bus, event); err != nil {
		c.logger.Debug("failed to publish event", "event_type", eventType, "error", err)
	}
}
