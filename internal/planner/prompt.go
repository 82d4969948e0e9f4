package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/goalrunner"
)

const systemPrompt = "You are an AI planning agent. Break complex goals into concrete, ordered steps."

const planFormat = `Analyze the goal and create a plan. Return your response as a JSON array with this structure:
[
  {
    "step_number": 1,
    "description": "Short, human-readable step name (e.g., Fetch Exchange Rate)",
    "tool_name": "lowercase name of a tool from the list above",
    "input_data": {"field": "value"},
    "reasoning": "Why this step is necessary"
  }
]

Input data must use the exact field names and types listed for each tool:
- reasoning: {"question": "Explain the concept of an API"}
- memory: {"action": "store", "key": "my_key", "value": "my_value"} or {"action": "retrieve", "key": "my_key"}
- http: {"method": "GET", "url": "https://example.com"}
  or {"method": "POST", "url": "https://example.com", "body": {"key": "value"}}
  Never use an empty string for body. Timeout is a number of seconds, never a string.
- calculate: {"expression": "(2 + 3) * 4"}
- A later step can use an earlier result by setting a field to "$step_1" or "$step_1.body.field".

Rules:
1. Use only lowercase tool names from the list above.
2. Each step must be specific and actionable, ordered logically, with its reasoning.
3. Never fabricate external data. If the goal needs live data, use 'http' even if it may fail.
4. Use 'reasoning' only when no external data or actions are needed, and state "Reasoning-only; no external tools used" in its reasoning.
5. Use 'calculate' for arithmetic instead of reasoning about numbers.
6. Never include empty strings for optional fields. Omit them.
7. Return ONLY the JSON array, no other text.

Generate the plan now:`

func buildPlanningPrompt(descriptors []goalrunner.ToolDescriptor, goal string, userContext map[string]any) string {
	var b strings.Builder
	b.WriteString("Break the user goal below into concrete, executable steps.\n\n")
	b.WriteString("Available tools and their input schemas:\n")
	b.WriteString(describeTools(descriptors))
	fmt.Fprintf(&b, "\nGoal: %s\n", goal)

	if len(userContext) > 0 {
		b.WriteString("\nAdditional context:\n")
		keys := make([]string, 0, len(userContext))
		for k := range userContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, userContext[k])
		}
	}

	b.WriteString("\n")
	b.WriteString(planFormat)
	return b.String()
}

func describeTools(descriptors []goalrunner.ToolDescriptor) string {
	var b strings.Builder
	for _, d := range descriptors {
		fmt.Fprintf(&b, "\n%s: %s\n", d.Name, d.Description)
		if len(d.RequiredFields) > 0 {
			fmt.Fprintf(&b, "  Required fields: %s\n", strings.Join(d.RequiredFields, ", "))
		}
		if d.InputSchema == nil {
			continue
		}
		b.WriteString("  Input fields:\n")
		for _, f := range d.InputSchema.Fields() {
			label := "optional"
			if f.Required {
				label = "required"
			}
			fmt.Fprintf(&b, "    - %s (%s, %s): %s\n", f.Name, f.Type, label, f.Description)
		}
	}
	return b.String()
}
