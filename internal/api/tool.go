// ABOUTME: Tool configuration wire types for the /tools API surface
// ABOUTME: Covers tool definitions, parameters, execution requests and results

package api

import "time"

// Parameter types accepted by a tool definition.
const (
	ParamString  = "string"
	ParamNumber  = "number"
	ParamInteger = "integer"
	ParamBoolean = "boolean"
	ParamArray   = "array"
	ParamObject  = "object"
)

// ToolParameter describes one input a tool accepts.
// Default, when set, must match the declared type.
type ToolParameter struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolConfig is a tool definition. ID is zero until the server persists it.
// InheritFrom, when set, names an existing active tool.
type ToolConfig struct {
	ID          int64           `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	IsActive    bool            `json:"is_active"`
	Parameters  []ToolParameter `json:"parameters"`
	InheritFrom string          `json:"inherit_from,omitempty"`
	Code        string          `json:"code"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// ToolList is the payload of GET /tools.
type ToolList struct {
	Tools []ToolConfig `json:"tools"`
	Total int          `json:"total"`
}

// ExecuteRequest is the body for POST /tools/execute.
type ExecuteRequest struct {
	Params map[string]any `json:"params"`
}

// ExecuteResult is the inner payload of a tool execution. Success reflects
// the execution itself, independent of the transport-level envelope.
type ExecuteResult struct {
	Success       bool   `json:"success"`
	Result        any    `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`
	ExecutionTime string `json:"execution_time,omitempty"`
}

// ImportRequest is the body for POST /tools/import.
type ImportRequest struct {
	Tools []ToolConfig `json:"tools"`
}

// ToggleRequest is the body for PUT /tools/active.
type ToggleRequest struct {
	IsActive bool `json:"is_active"`
}

// OperationResult is the client-facing outcome of a mutating tool call.
// Tool is set by create and update, Tools by import; both are nil for delete.
type OperationResult struct {
	Success bool
	Message string
	Tool    *ToolConfig
	Tools   []ToolConfig
}
