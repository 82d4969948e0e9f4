// Package planfile loads predefined step lists from YAML documents so a run
// can skip model planning.
package planfile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/planner"
)

// PlanFile is a named, ordered step list.
type PlanFile struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Steps       []goalrunner.Step `yaml:"steps"`
}

// Loader loads a PlanFile from a source (a path, for file loaders).
type Loader interface {
	Load(source string) (*PlanFile, error)
	Format() string // e.g., "yaml"
}

// loaderRegistry holds registered loaders by format name.
var loaderRegistry = make(map[string]Loader)

// RegisterLoader registers a loader for its format.
func RegisterLoader(loader Loader) {
	loaderRegistry[loader.Format()] = loader
}

// GetLoader retrieves a loader by format name.
func GetLoader(format string) (Loader, bool) {
	loader, ok := loaderRegistry[format]
	return loader, ok
}

// YAMLLoader loads plan files written in YAML.
type YAMLLoader struct{}

func (YAMLLoader) Load(path string) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	return Parse(data)
}

func (YAMLLoader) Format() string { return "yaml" }

func init() {
	RegisterLoader(YAMLLoader{})
}

// Parse decodes a YAML plan document. Steps without a step_number are
// numbered by position.
func Parse(data []byte) (*PlanFile, error) {
	var pf PlanFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("failed to parse plan YAML: %w", err)
	}
	for i := range pf.Steps {
		if pf.Steps[i].StepNumber == 0 {
			pf.Steps[i].StepNumber = i + 1
		}
		pf.Steps[i].ToolName = strings.ToLower(strings.TrimSpace(pf.Steps[i].ToolName))
		if pf.Steps[i].InputData == nil {
			pf.Steps[i].InputData = map[string]any{}
		}
	}
	return &pf, nil
}

var stepReference = regexp.MustCompile(`^\$step_(\d+)(?:\.|$)`)

// Validate checks that the plan has steps, that every step names a tool,
// that step numbers are unique, and that $step_N references point at an
// earlier step.
func (pf *PlanFile) Validate() error {
	if len(pf.Steps) == 0 {
		return fmt.Errorf("plan file has no steps")
	}
	seen := make(map[int]struct{}, len(pf.Steps))
	for _, step := range pf.Steps {
		if step.ToolName == "" {
			return fmt.Errorf("step %d does not name a tool", step.StepNumber)
		}
		if _, exists := seen[step.StepNumber]; exists {
			return fmt.Errorf("duplicate step number found: %d", step.StepNumber)
		}
		for _, ref := range references(step.InputData) {
			if _, earlier := seen[ref]; !earlier {
				return fmt.Errorf("step %d references step %d, which does not run before it", step.StepNumber, ref)
			}
		}
		seen[step.StepNumber] = struct{}{}
	}
	return nil
}

// references collects the step numbers named by $step_N values in input.
func references(v any) []int {
	var out []int
	switch val := v.(type) {
	case string:
		if m := stepReference.FindStringSubmatch(val); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				out = append(out, n)
			}
		}
	case map[string]any:
		for _, item := range val {
			out = append(out, references(item)...)
		}
	case []any:
		for _, item := range val {
			out = append(out, references(item)...)
		}
	}
	return out
}

// Load loads and validates a plan file, picking the loader from the file
// extension.
func Load(path string) (*PlanFile, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "yml" || format == "" {
		format = "yaml"
	}
	loader, ok := GetLoader(format)
	if !ok {
		return nil, fmt.Errorf("no plan loader registered for format %q", format)
	}
	pf, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	if err := pf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan file %s: %w", path, err)
	}
	return pf, nil
}

// StaticPlanner returns a fixed step list for every goal.
type StaticPlanner struct {
	steps []goalrunner.Step
}

// NewStaticPlanner creates a planner that always returns pf's steps.
func NewStaticPlanner(pf *PlanFile) *StaticPlanner {
	return &StaticPlanner{steps: pf.Steps}
}

// Plan implements goalrunner.Planner.
func (p *StaticPlanner) Plan(ctx context.Context, goal string, userContext map[string]any) ([]goalrunner.Step, error) {
	if err := ctx.Err(); err != nil {
		return nil, goalrunner.NewCancelledError(goalrunner.StagePlanning, err)
	}
	out := make([]goalrunner.Step, len(p.steps))
	for i, step := range p.steps {
		input := make(map[string]any, len(step.InputData))
		for k, v := range step.InputData {
			input[k] = v
		}
		step.InputData = input
		out[i] = step
	}
	return out, nil
}

// ClassifyIntent implements goalrunner.Planner.
func (p *StaticPlanner) ClassifyIntent(goal string, userContext map[string]any) goalrunner.Intent {
	return planner.ClassifyIntent(goal, userContext)
}

var _ goalrunner.Planner = (*StaticPlanner)(nil)
