// Package goalrunner turns a free-text goal into a validated sequence of
// tool calls, executes them with bounded retries, and resolves a single
// user-facing result for every run.
package goalrunner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/goalrunner/internal/eventbus"
)

// Config holds run-level settings.
type Config struct {
	// ExecutionTimeout bounds a whole run. Zero means no limit.
	ExecutionTimeout time.Duration
}

// DefaultConfig returns the default run settings.
func DefaultConfig() Config {
	return Config{}
}

// Runner owns the lifecycle of every run: create, plan, execute, finalize.
type Runner struct {
	planner  Planner
	executor Executor
	store    Store
	eventBus eventbus.Bus
	logger   *slog.Logger
	config   Config
	newID    func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfig sets the run settings.
func WithConfig(config Config) Option {
	return func(r *Runner) {
		r.config = config
	}
}

// WithPlanner sets the planner component.
func WithPlanner(planner Planner) Option {
	return func(r *Runner) {
		r.planner = planner
	}
}

// WithExecutor sets the executor component.
func WithExecutor(executor Executor) Option {
	return func(r *Runner) {
		r.executor = executor
	}
}

// WithStore sets where run records are kept. Without a store records are
// only returned to the caller.
func WithStore(store Store) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithEventBus sets the bus that receives run lifecycle events.
func WithEventBus(bus eventbus.Bus) Option {
	return func(r *Runner) {
		r.eventBus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIDGenerator overrides how execution ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New creates a Runner. A planner and an executor are required.
func New(options ...Option) (*Runner, error) {
	r := &Runner{
		config: DefaultConfig(),
		logger: slog.Default(),
		newID:  func() string { return uuid.New().String() },
	}
	for _, option := range options {
		option(r)
	}

	if r.planner == nil {
		return nil, NewConfigurationError("planner is required", nil)
	}
	if r.executor == nil {
		return nil, NewConfigurationError("executor is required", nil)
	}
	if r.config.ExecutionTimeout < 0 {
		return nil, NewConfigurationError("execution timeout must not be negative", nil)
	}
	return r, nil
}

// Run executes goal end to end and returns the finalized record. Run-level
// failures are described by the record's status, error and final result;
// the returned error is only set for an empty goal.
func (r *Runner) Run(ctx context.Context, goal string, userContext map[string]any) (*ExecutionContext, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, NewValidationError(StageInitialization, "goal must not be empty", nil)
	}
	if r.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ExecutionTimeout)
		defer cancel()
	}

	ec := NewExecutionContext(r.newID(), goal, userContext)
	p := NewRunProcess(ec)
	sm := createRunStateMachine(runComponents{
		planner:  r.planner,
		executor: r.executor,
		store:    r.store,
		bus:      r.eventBus,
		logger:   r.logger,
	})
	_ = sm.Execute(ctx, p)
	return ec, nil
}
