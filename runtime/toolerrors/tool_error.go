// Package toolerrors provides structured error types for tool invocation
// failures. ToolError preserves error chains and supports errors.Is/As while
// staying serializable for wire results.
package toolerrors

import (
	"errors"
	"fmt"

	"goa.design/dashpanels/runtime/tools"
)

// Code classifies a tool failure for callers that branch on the outcome.
type Code string

const (
	// CodeInvalidParams reports a payload that failed schema validation.
	CodeInvalidParams Code = "invalid_params"
	// CodeNoContext reports that the tool had no target to operate on.
	CodeNoContext Code = "no_context"
	// CodeExecutionFailed reports any other failure while running the tool.
	CodeExecutionFailed Code = "execution_failed"
	// CodeUnknownTool reports a call to a tool that is not registered.
	CodeUnknownTool Code = "unknown_tool"
	// CodeRateLimited reports a call rejected by the per-tool rate limit.
	CodeRateLimited Code = "rate_limited"
)

// ToolError represents a structured tool failure. Tool errors may be nested
// via Cause to retain diagnostics across hops.
type ToolError struct {
	// Code classifies the failure.
	Code Code
	// Message is the human-readable summary of the failure.
	Message string
	// Issues lists payload validation issues when Code is CodeInvalidParams.
	Issues []tools.FieldIssue
	// Cause links to the underlying error.
	Cause error
}

// New constructs a ToolError with the provided code and message.
func New(code Code, message string) *ToolError {
	if message == "" {
		message = "tool error"
	}
	return &ToolError{Code: code, Message: message}
}

// NewWithCause constructs a ToolError that wraps cause. When message is empty
// the cause message is used.
func NewWithCause(code Code, message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ToolError{Code: code, Message: message, Cause: cause}
}

// Errorf formats according to a format specifier and returns the string as a
// ToolError.
func Errorf(code Code, format string, args ...any) *ToolError {
	return New(code, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first ToolError in err's chain or
// CodeExecutionFailed when err carries none.
func CodeOf(err error) Code {
	var te *ToolError
	if errors.As(err, &te) && te.Code != "" {
		return te.Code
	}
	return CodeExecutionFailed
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying error to support errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
