package main

import (
	"context"
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/ZanzyTHEbar/goalrunner"
)

type runGoalInput struct {
	Goal    string         `json:"goal"`
	Context map[string]any `json:"context,omitempty"`
}

// registerFlows exposes the runner as the runGoal genkit flow and mounts it
// at POST /flows/runGoal.
func registerFlows(a *app, mux *http.ServeMux) {
	runGoal := genkit.DefineFlow(a.genkit, "runGoal",
		func(ctx context.Context, input runGoalInput) (goalrunner.RunResponse, error) {
			ec, err := a.runner.Run(ctx, input.Goal, input.Context)
			if err != nil {
				return goalrunner.RunResponse{}, err
			}
			return goalrunner.NewRunResponse(ec), nil
		},
	)
	mux.HandleFunc("POST /flows/runGoal", genkit.Handler(runGoal))
	a.logger.Info("genkit flow registered", "flow", "runGoal")
}
