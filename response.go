package goalrunner

import "time"

// StepResult is the outward view of an executed step.
type StepResult struct {
	StepNumber  int            `json:"step_number"`
	Description string         `json:"description,omitempty"`
	ToolName    string         `json:"tool_name"`
	Success     bool           `json:"success"`
	Input       map[string]any `json:"input,omitempty"`
	Output      any            `json:"output"`
	Error       string         `json:"error,omitempty"`
}

// RunResponse is the outward view of a run record.
type RunResponse struct {
	ExecutionID      string            `json:"execution_id"`
	Goal             string            `json:"goal"`
	Status           RunStatus         `json:"status"`
	Intent           Intent            `json:"intent,omitempty"`
	StepsCompleted   []StepResult      `json:"steps_completed"`
	FinalResult      *FinalResult      `json:"final_result"`
	ExecutionSummary *ExecutionSummary `json:"execution_summary"`
	Error            string            `json:"error,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// NewRunResponse builds the response for ec. The timestamp is the
// completion time, or the creation time while the run is still going.
func NewRunResponse(ec *ExecutionContext) RunResponse {
	snap := ec.Clone()
	resp := RunResponse{
		ExecutionID:      snap.ExecutionID,
		Goal:             snap.Goal,
		Status:           snap.Status,
		Intent:           snap.Intent,
		StepsCompleted:   make([]StepResult, 0, len(snap.ExecutedSteps)),
		FinalResult:      snap.FinalResult,
		ExecutionSummary: snap.Summary,
		Error:            snap.Error,
		Timestamp:        snap.CreatedAt,
	}
	if snap.CompletedAt != nil {
		resp.Timestamp = *snap.CompletedAt
	}
	for _, step := range snap.ExecutedSteps {
		resp.StepsCompleted = append(resp.StepsCompleted, StepResult{
			StepNumber:  step.StepNumber,
			Description: step.Description,
			ToolName:    step.ToolName,
			Success:     step.Success,
			Input:       step.InputData,
			Output:      step.Output,
			Error:       step.Error,
		})
	}
	return resp
}
