package goalrunner

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for specific failure types
const (
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodePlanParse       = "PLAN_PARSE_ERROR"
	ErrCodeToolNotFound    = "TOOL_NOT_FOUND"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeToolExecution   = "TOOL_EXECUTION_ERROR"
	ErrCodeRepairExhausted = "REPAIR_EXHAUSTED"
	ErrCodeDuplicateTool   = "DUPLICATE_TOOL"
	ErrCodeLLM             = "LLM_ERROR"
	ErrCodeCancelled       = "EXECUTION_CANCELLED"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
)

// Stages a coded error can originate from.
const (
	StageInitialization = "initialization"
	StageRegistry       = "registry"
	StagePlanning       = "planning"
	StageValidation     = "validation"
	StageExecution      = "execution"
	StageFinalization   = "finalization"
	StageStore          = "store"
)

// Error is the coded error type returned by goalrunner components.
type Error struct {
	Code    string // A machine-readable error code (e.g., ErrCodeToolNotFound)
	Message string // A human-readable message
	Stage   string // The stage where the error occurred (e.g., "planning", "execution")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new coded error.
func NewError(code, stage, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// RepairError is returned when a step input still violates its tool's schema
// after every repair attempt.
type RepairError struct {
	Err    *Error
	Tool   string
	Errors []string
}

func (e *RepairError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the coded error so errors.As can reach it.
func (e *RepairError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first coded error in err's chain, or "".
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Specific error constructors

func NewConfigurationError(message string, cause error) *Error {
	return NewError(ErrCodeConfiguration, StageInitialization, message, cause)
}

func NewPlanParseError(cause error) *Error {
	return NewError(ErrCodePlanParse, StagePlanning, "could not parse plan from model response", cause)
}

func NewToolNotFoundError(stage, toolName string) *Error {
	return NewError(ErrCodeToolNotFound, stage, fmt.Sprintf("tool '%s' not found", toolName), nil)
}

func NewValidationError(stage, message string, cause error) *Error {
	return NewError(ErrCodeValidation, stage, message, cause)
}

func NewToolExecutionError(stepNumber, attempts int, lastErr string) *Error {
	return NewError(ErrCodeToolExecution, StageExecution,
		fmt.Sprintf("Step %d failed after %d attempts: %s", stepNumber, attempts, lastErr), nil)
}

func NewRepairExhaustedError(toolName string, violations []string) *RepairError {
	msg := fmt.Sprintf("input for tool '%s' is still invalid after repair: %s", toolName, strings.Join(violations, "; "))
	return &RepairError{
		Err:    NewError(ErrCodeRepairExhausted, StageValidation, msg, nil),
		Tool:   toolName,
		Errors: append([]string(nil), violations...),
	}
}

func NewDuplicateToolError(toolName string) *Error {
	return NewError(ErrCodeDuplicateTool, StageRegistry, fmt.Sprintf("tool with name '%s' already exists", toolName), nil)
}

func NewLLMError(stage string, cause error) *Error {
	return NewError(ErrCodeLLM, stage, "language model call failed", cause)
}

func NewCancelledError(stage string, cause error) *Error {
	msg := "execution cancelled"
	if cause != nil && cause.Error() != "" && cause.Error() != "context canceled" {
		msg = fmt.Sprintf("execution cancelled: %v", cause)
	}
	return NewError(ErrCodeCancelled, stage, msg, cause)
}

func NewNotFoundError(stage, message string, cause error) *Error {
	return NewError(ErrCodeNotFound, stage, message, cause)
}

func NewInternalError(stage, message string, cause error) *Error {
	return NewError(ErrCodeInternal, stage, message, cause)
}

// ErrorMessage returns the human-readable part of err without the stage and
// code prefix used by Error.Error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var repair *RepairError
	if errors.As(err, &repair) {
		return repair.Err.Message
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Cause != nil {
			return fmt.Sprintf("%s: %v", coded.Message, coded.Cause)
		}
		return coded.Message
	}
	return err.Error()
}
