package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
	"github.com/ZanzyTHEbar/goalrunner/internal/store"
)

// MemoryInput is the input of the memory tool.
type MemoryInput struct {
	Action string `json:"action" jsonschema:"required" jsonschema_description:"Action: 'store' or 'retrieve'"`
	Key    string `json:"key" jsonschema:"required" jsonschema_description:"Key to store or retrieve"`
	Value  any    `json:"value,omitempty" jsonschema_description:"Value to store (for 'store' action)"`
}

var memorySchema = schema.MustFromStruct(MemoryInput{})

type memoryTool struct {
	kv     *store.KeyValue
	logger *slog.Logger
}

// NewMemoryTool creates the memory tool over kv. Values are stored and
// returned unchanged.
func NewMemoryTool(kv *store.KeyValue, logger *slog.Logger) *FuncTool {
	if kv == nil {
		kv = store.NewKeyValue()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &memoryTool{kv: kv, logger: logger}
	return NewFuncTool(goalrunner.ToolMemory, memorySchema, m.execute,
		WithDescription("Store and retrieve intermediate execution state"),
		WithCategory("State"),
	)
}

func (m *memoryTool) execute(ctx context.Context, input map[string]any) (goalrunner.ToolOutput, error) {
	action, _ := input["action"].(string)
	action = strings.ToLower(strings.TrimSpace(action))
	key, _ := input["key"].(string)

	switch action {
	case "store":
		if err := m.kv.Set(ctx, key, input["value"]); err != nil {
			return memoryFailure(err), nil
		}
		m.logger.Debug("memory stored", "key", key)
		return goalrunner.ToolOutput{
			Success: true,
			Result:  map[string]any{"message": fmt.Sprintf("Stored value at key '%s'", key)},
		}, nil
	case "retrieve":
		value, err := m.kv.Get(ctx, key)
		if goalrunner.IsCode(err, goalrunner.ErrCodeNotFound) {
			msg := fmt.Sprintf("Key '%s' not found in memory", key)
			m.logger.Warn(msg)
			return goalrunner.ToolOutput{Success: false, Error: msg}, nil
		}
		if err != nil {
			return memoryFailure(err), nil
		}
		m.logger.Debug("memory retrieved", "key", key)
		return goalrunner.ToolOutput{
			Success: true,
			Result:  map[string]any{"key": key, "value": value},
		}, nil
	default:
		msg := fmt.Sprintf("Unknown action: %s. Use 'store' or 'retrieve'.", action)
		m.logger.Warn(msg)
		return goalrunner.ToolOutput{Success: false, Error: msg}, nil
	}
}

func memoryFailure(err error) goalrunner.ToolOutput {
	return goalrunner.ToolOutput{Success: false, Error: "Memory operation failed: " + err.Error()}
}
