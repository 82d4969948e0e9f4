package goalrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RunState is a phase of a run.
type RunState string

const (
	// StateInit creates the record and classifies intent.
	StateInit RunState = "init"
	// StatePlanning asks the planner for steps.
	StatePlanning RunState = "planning"
	// StateExecution runs the steps.
	StateExecution RunState = "execution"
	// StateFinalize resolves the final result and persists the record.
	StateFinalize RunState = "finalize"
	// StateDone is terminal.
	StateDone RunState = "done"
)

// RunProcess is the state carried between transitions of one run.
type RunProcess struct {
	Execution   *ExecutionContext
	Steps       []Step
	NaiveResult any

	// Err is the fatal error that sent the run to finalization, if any.
	Err        error
	ErrorStage RunState

	CurrentState RunState
	History      []RunState

	StartTime       time.Time
	stateStartTimes map[RunState]time.Time
	stateDurations  map[RunState]time.Duration
}

// NewRunProcess creates the process state for ec.
func NewRunProcess(ec *ExecutionContext) *RunProcess {
	now := time.Now()
	return &RunProcess{
		Execution:       ec,
		CurrentState:    StateInit,
		StartTime:       now,
		stateStartTimes: map[RunState]time.Time{StateInit: now},
		stateDurations:  make(map[RunState]time.Duration),
	}
}

// moveTo records the time spent in the current state and enters next.
func (p *RunProcess) moveTo(next RunState) {
	now := time.Now()
	if started, ok := p.stateStartTimes[p.CurrentState]; ok {
		p.stateDurations[p.CurrentState] += now.Sub(started)
	}
	p.History = append(p.History, p.CurrentState)
	p.CurrentState = next
	p.stateStartTimes[next] = now
}

// SetError records a fatal error raised in stage. Only the first error is kept.
func (p *RunProcess) SetError(err error, stage RunState) {
	if p.Err != nil {
		return
	}
	p.Err = err
	p.ErrorStage = stage
}

// IsTerminal reports whether the run is done.
func (p *RunProcess) IsTerminal() bool {
	return p.CurrentState == StateDone
}

// StateDurations returns the time spent in each visited state, including the
// current one so far.
func (p *RunProcess) StateDurations() map[RunState]time.Duration {
	out := make(map[RunState]time.Duration, len(p.stateDurations)+1)
	for state, d := range p.stateDurations {
		out[state] = d
	}
	if started, ok := p.stateStartTimes[p.CurrentState]; ok {
		out[p.CurrentState] += time.Since(started)
	}
	return out
}

// TotalDuration returns the run's duration so far.
func (p *RunProcess) TotalDuration() time.Duration {
	return time.Since(p.StartTime)
}

// StateTransition runs one state and returns the next.
type StateTransition func(ctx context.Context, p *RunProcess) (RunState, error)

// StateMachine drives a RunProcess through its transitions. Any error or
// panic outside finalization sends the run to StateFinalize, which runs
// exactly once.
type StateMachine struct {
	transitions map[RunState]StateTransition
	logger      *slog.Logger
}

// NewStateMachine creates a state machine with no transitions.
func NewStateMachine(logger *slog.Logger) *StateMachine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateMachine{
		transitions: make(map[RunState]StateTransition),
		logger:      logger,
	}
}

// RegisterTransition registers the transition for state.
func (sm *StateMachine) RegisterTransition(state RunState, transition StateTransition) {
	sm.transitions[state] = transition
}

// Execute runs p until StateDone and returns the fatal error, if any.
func (sm *StateMachine) Execute(ctx context.Context, p *RunProcess) error {
	for !p.IsTerminal() {
		current := p.CurrentState

		if current != StateFinalize {
			if err := ctx.Err(); err != nil {
				p.SetError(NewCancelledError(string(current), err), current)
				p.moveTo(StateFinalize)
				continue
			}
		}

		transition, exists := sm.transitions[current]
		if !exists {
			if current == StateFinalize {
				p.moveTo(StateDone)
				continue
			}
			p.SetError(NewInternalError(string(current), fmt.Sprintf("no transition defined for state: %s", current), nil), current)
			p.moveTo(StateFinalize)
			continue
		}

		next, err := sm.run(ctx, p, transition)
		switch {
		case current == StateFinalize:
			if err != nil {
				sm.logger.Error("finalization failed", "execution_id", p.Execution.ExecutionID, "error", err)
			}
			p.moveTo(StateDone)
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if !IsCode(err, ErrCodeCancelled) {
					err = NewCancelledError(string(current), err)
				}
			}
			p.SetError(err, current)
			p.moveTo(StateFinalize)
		default:
			p.moveTo(next)
		}
	}
	return p.Err
}

// run invokes transition, converting a panic into an INTERNAL_ERROR.
func (sm *StateMachine) run(ctx context.Context, p *RunProcess, transition StateTransition) (next RunState, err error) {
	defer func() {
		if r := recover(); r != nil {
			sm.logger.Error("transition panicked", "execution_id", p.Execution.ExecutionID, "state", p.CurrentState, "panic", r)
			next = StateFinalize
			err = NewInternalError(string(p.CurrentState), fmt.Sprintf("panic in %s transition: %v", p.CurrentState, r), nil)
		}
	}()
	return transition(ctx, p)
}
