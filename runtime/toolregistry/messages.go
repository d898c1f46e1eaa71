package toolregistry

import (
	"encoding/json"

	"goa.design/dashpanels/runtime/tools"
)

type (
	// ToolCallMeta is execution metadata propagated alongside tool calls.
	ToolCallMeta struct {
		SessionID string `json:"session_id,omitempty"`
		CallerID  string `json:"caller_id,omitempty"`
	}

	// ToolCallMessage describes one tool invocation.
	ToolCallMessage struct {
		ToolUseID string          `json:"tool_use_id"`
		Tool      tools.Ident     `json:"tool"`
		Payload   json.RawMessage `json:"payload,omitempty"`
		Meta      *ToolCallMeta   `json:"meta,omitempty"`
	}

	// ToolResultMessage carries the outcome of one tool invocation. Exactly one
	// of Result and Error is set.
	ToolResultMessage struct {
		ToolUseID string          `json:"tool_use_id"`
		Result    json.RawMessage `json:"result_json,omitempty"`
		Error     *ToolError      `json:"error,omitempty"`
	}

	// ToolError is the wire form of a failed invocation.
	ToolError struct {
		Code    string             `json:"code"`
		Message string             `json:"message"`
		Issues  []tools.FieldIssue `json:"issues,omitempty"`
	}
)

// NewToolCallMessage constructs a tool invocation message.
func NewToolCallMessage(toolUseID string, tool tools.Ident, payload json.RawMessage, meta *ToolCallMeta) ToolCallMessage {
	return ToolCallMessage{
		ToolUseID: toolUseID,
		Tool:      tool,
		Payload:   payload,
		Meta:      meta,
	}
}

// NewToolResultMessage constructs a successful tool result message.
func NewToolResultMessage(toolUseID string, result json.RawMessage) ToolResultMessage {
	return ToolResultMessage{
		ToolUseID: toolUseID,
		Result:    result,
	}
}

// NewToolResultErrorMessage constructs an error tool result message.
func NewToolResultErrorMessage(toolUseID, code, message string, issues []tools.FieldIssue) ToolResultMessage {
	return ToolResultMessage{
		ToolUseID: toolUseID,
		Error: &ToolError{
			Code:    code,
			Message: message,
			Issues:  issues,
		},
	}
}
