package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/goalrunner"
)

var (
	runContext []string
	runPlan    string
	runJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Run a single goal and print its result",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runContext, "context", nil, "context entry as key=value (repeatable)")
	runCmd.Flags().StringVar(&runPlan, "plan", "", "YAML plan file to execute instead of asking the model")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full run response as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	userContext, err := parseContext(runContext)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), wireOptions{planPath: runPlan, logOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.Close()

	ec, err := a.runner.Run(cmd.Context(), args[0], userContext)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(goalrunner.NewRunResponse(ec)); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, ec.FinalResult.Content)
		fmt.Fprintf(out, "\n[%s] source=%s confidence=%s steps=%d id=%s\n",
			ec.Status, ec.FinalResult.Source, ec.FinalResult.Confidence, len(ec.Steps()), ec.ExecutionID)
	}

	if ec.Status == goalrunner.RunStatusFailed {
		return fmt.Errorf("run %s failed: %s", ec.ExecutionID, ec.Error)
	}
	return nil
}

// parseContext turns key=value pairs into a context map. Values that parse as
// JSON keep their JSON type; anything else is a string.
func parseContext(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --context %q: expected key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			out[key] = decoded
		} else {
			out[key] = value
		}
	}
	return out, nil
}
