package goalrunner

import "context"

// Tool is a named capability the Executor can invoke.
type Tool interface {
	// Describe returns the tool's name, description, required fields and
	// structural input schema.
	Describe() ToolDescriptor

	// Validate checks input against the tool's structural schema.
	// Returns nil if valid, a *schema.ValidationError otherwise.
	Validate(input map[string]any) error

	// Execute performs the tool's action. Expected failures are reported
	// through ToolOutput.Success; a non-nil error is an unexpected fault.
	Execute(ctx context.Context, input map[string]any) (ToolOutput, error)
}

// Planner turns a goal into an ordered step list.
type Planner interface {
	Plan(ctx context.Context, goal string, userContext map[string]any) ([]Step, error)
	ClassifyIntent(goal string, userContext map[string]any) Intent
}

// Executor runs a step list against an execution context. It returns the
// naive result of the last step on success.
type Executor interface {
	Execute(ctx context.Context, steps []Step, ec *ExecutionContext) (any, error)
}

// Store keeps run records by execution id.
type Store interface {
	Save(ctx context.Context, ec *ExecutionContext) error
	Get(ctx context.Context, executionID string) (*ExecutionContext, error)
	List(ctx context.Context, limit int) ([]*ExecutionContext, error)
}
