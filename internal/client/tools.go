// ABOUTME: Tool-configuration CRUD client over the /tools API
// ABOUTME: REST mapping plus local JSON import/export helpers and streaming execution

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/calderhq/toolbench/internal/api"
)

// Default operation messages, used when the backend omits one.
const (
	msgCreated  = "创建成功"
	msgUpdated  = "更新成功"
	msgDeleted  = "删除成功"
	msgEnabled  = "已启用"
	msgDisabled = "已停用"
)

// Tools maps tool-configuration operations onto the shared client. Mutating
// calls return an OperationResult; callers are expected to reload the full
// collection after a successful mutation rather than patch locally, so the
// view always reflects server-assigned IDs and timestamps.
type Tools struct {
	client *Client
}

// NewTools creates a tools client bound to c.
func NewTools(c *Client) *Tools {
	return &Tools{client: c}
}

// List fetches all tool configurations. The result is never nil, even when
// the envelope carries no payload.
func (t *Tools) List(ctx context.Context) ([]api.ToolConfig, error) {
	env, err := t.client.Get(ctx, "/tools")
	if err != nil {
		return nil, err
	}
	var list api.ToolList
	if err := env.DecodeData(&list); err != nil {
		return nil, err
	}
	if list.Tools == nil {
		return []api.ToolConfig{}, nil
	}
	return list.Tools, nil
}

// Get fetches a single tool by ID. A missing tool resolves to (nil, nil):
// the 404 has already been surfaced as a notification, and callers branch on
// the nil tool rather than on an error.
func (t *Tools) Get(ctx context.Context, id int64) (*api.ToolConfig, error) {
	env, err := t.client.Get(ctx, fmt.Sprintf("/tools?id=%d", id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var tool api.ToolConfig
	if err := env.DecodeData(&tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// Create persists a new tool. The server assigns ID and timestamps.
func (t *Tools) Create(ctx context.Context, tool api.ToolConfig) (api.OperationResult, error) {
	env, err := t.client.Post(ctx, "/tools", tool)
	if err != nil {
		return api.OperationResult{}, err
	}
	return singleToolResult(env, msgCreated)
}

// Update replaces the tool with the given ID.
func (t *Tools) Update(ctx context.Context, id int64, tool api.ToolConfig) (api.OperationResult, error) {
	env, err := t.client.Put(ctx, fmt.Sprintf("/tools?id=%d", id), tool)
	if err != nil {
		return api.OperationResult{}, err
	}
	return singleToolResult(env, msgUpdated)
}

// Delete removes the tool with the given ID.
func (t *Tools) Delete(ctx context.Context, id int64) (api.OperationResult, error) {
	env, err := t.client.Delete(ctx, fmt.Sprintf("/tools?id=%d", id))
	if err != nil {
		return api.OperationResult{}, err
	}
	return api.OperationResult{
		Success: env.Success,
		Message: defaultMessage(env, msgDeleted),
	}, nil
}

// ToggleActive enables or disables a tool. The default message depends on
// the target state.
func (t *Tools) ToggleActive(ctx context.Context, id int64, active bool) (api.OperationResult, error) {
	env, err := t.client.Put(ctx, fmt.Sprintf("/tools/active?id=%d", id), api.ToggleRequest{IsActive: active})
	if err != nil {
		return api.OperationResult{}, err
	}
	fallback := msgDisabled
	if active {
		fallback = msgEnabled
	}
	return singleToolResult(env, fallback)
}

// Import posts a whole list of tools; the server assigns identifiers and
// returns the created list.
func (t *Tools) Import(ctx context.Context, tools []api.ToolConfig) (api.OperationResult, error) {
	env, err := t.client.Post(ctx, "/tools/import", api.ImportRequest{Tools: tools})
	if err != nil {
		return api.OperationResult{}, err
	}
	var created []api.ToolConfig
	if err := env.DecodeData(&created); err != nil {
		return api.OperationResult{}, err
	}
	return api.OperationResult{
		Success: env.Success,
		Message: defaultMessage(env, fmt.Sprintf("导入成功 %d 个工具", len(created))),
		Tools:   created,
	}, nil
}

// Export fetches the full collection as a raw JSON document, ready to write
// to a file.
func (t *Tools) Export(ctx context.Context) ([]byte, error) {
	return t.client.GetRaw(ctx, "/tools/export")
}

// Inheritable fetches the tools eligible as inheritance targets. The server
// filters to active tools only.
func (t *Tools) Inheritable(ctx context.Context) ([]api.ToolConfig, error) {
	env, err := t.client.Get(ctx, "/tools/inheritable")
	if err != nil {
		return nil, err
	}
	tools := []api.ToolConfig{}
	if err := env.DecodeData(&tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// Execute runs a tool and returns the inner execution payload directly, not
// the outer envelope. Callers must inspect the result's own Success field;
// an execution-level failure does not produce an error here.
func (t *Tools) Execute(ctx context.Context, id int64, params map[string]any) (*api.ExecuteResult, error) {
	env, err := t.client.Post(ctx, fmt.Sprintf("/tools/execute?id=%d", id), api.ExecuteRequest{Params: params})
	if err != nil {
		return nil, err
	}
	var result api.ExecuteResult
	if err := env.DecodeData(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExecuteStream runs a tool over a server-sent event stream, forwarding each
// decoded event to handler. The returned Stream's Close cancels delivery.
func (t *Tools) ExecuteStream(ctx context.Context, id int64, params map[string]any, handler EventHandler) (*Stream, error) {
	return t.client.openStream(ctx, fmt.Sprintf("/tools/execute/stream?id=%d", id), api.ExecuteRequest{Params: params}, handler)
}

// singleToolResult builds an OperationResult whose payload is one tool.
func singleToolResult(env *api.Envelope, fallback string) (api.OperationResult, error) {
	res := api.OperationResult{
		Success: env.Success,
		Message: defaultMessage(env, fallback),
	}
	if len(env.Data) > 0 {
		var tool api.ToolConfig
		if err := env.DecodeData(&tool); err != nil {
			return api.OperationResult{}, err
		}
		res.Tool = &tool
	}
	return res, nil
}

// defaultMessage picks the backend message, falling back when omitted.
func defaultMessage(env *api.Envelope, fallback string) string {
	if env.Message != "" {
		return env.Message
	}
	return fallback
}

// ParseTools decodes a JSON document that must be an ordered list of tools.
// Any other top-level value is rejected before touching the network.
func ParseTools(data []byte) ([]api.ToolConfig, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("invalid format: expected a JSON array of tools")
	}
	var tools []api.ToolConfig
	if err := json.Unmarshal(trimmed, &tools); err != nil {
		return nil, fmt.Errorf("parsing tools JSON: %w", err)
	}
	return tools, nil
}

// ParseToolsFile reads and parses a local tools JSON file.
func ParseToolsFile(path string) ([]api.ToolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tools file: %w", err)
	}
	return ParseTools(data)
}

// WriteToolsFile serializes the list with stable two-space indentation.
// The output round-trips through ParseToolsFile.
func WriteToolsFile(tools []api.ToolConfig, path string) error {
	data, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing tools: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing tools file: %w", err)
	}
	return nil
}
