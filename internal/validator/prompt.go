package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/goalrunner"
)

const repairSystemPrompt = `You fix invalid tool inputs for an automation agent.
Respond with exactly one JSON object containing the corrected input for the tool.
Do not add commentary, markdown, or fields the tool does not declare.
Never invent live data such as prices, dates, or API responses.
Omit optional fields you have no value for instead of sending empty strings.`

func buildRepairPrompt(desc goalrunner.ToolDescriptor, goal string, userContext, input map[string]any, errs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool: %s\n", desc.Name)
	fmt.Fprintf(&b, "Description: %s\n", desc.Description)
	fmt.Fprintf(&b, "Required fields: %s\n", strings.Join(desc.RequiredFields, ", "))
	if desc.InputSchema != nil {
		b.WriteString("Fields:\n")
		for _, f := range desc.InputSchema.Fields() {
			req := "optional"
			if f.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "  - %s (%s, %s): %s\n", f.Name, f.Type, req, f.Description)
		}
	}
	fmt.Fprintf(&b, "\nGoal: %s\n", goal)
	fmt.Fprintf(&b, "Context: %s\n", toJSON(userContext))
	fmt.Fprintf(&b, "Current input: %s\n", toJSON(input))
	b.WriteString("Errors:\n")
	for _, e := range errs {
		fmt.Fprintf(&b, "  - %s\n", e)
	}
	b.WriteString("\nReturn the corrected input as a JSON object.")
	return b.String()
}

func toJSON(v any) string {
	if v == nil {
		return "{}"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
