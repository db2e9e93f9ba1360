// ABOUTME: Tool CRUD, import/export and execution handlers for the mock backend
// ABOUTME: Includes the SSE streaming form of tool execution

package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/calderhq/toolbench/internal/api"
	"github.com/calderhq/toolbench/internal/store"
)

// handleTools covers the /tools route: list and single-get on GET (selected
// by the id parameter), create on POST, update on PUT, delete on DELETE.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if id, ok := idParam(r); ok {
			s.getTool(w, r, id)
			return
		}
		s.listTools(w, r)
	case http.MethodPost:
		s.createTool(w, r)
	case http.MethodPut:
		s.updateTool(w, r)
	case http.MethodDelete:
		s.deleteTool(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.store.ListTools(r.Context())
	if err != nil {
		s.logger.Error("listing tools", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeData(w, api.ToolList{Tools: tools, Total: len(tools)})
}

func (s *Server) getTool(w http.ResponseWriter, r *http.Request, id int64) {
	tool, err := s.store.GetTool(r.Context(), id)
	if err == store.ErrNotFound {
		s.writeError(w, http.StatusNotFound, "Tool not found")
		return
	}
	if err != nil {
		s.logger.Error("fetching tool", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeData(w, tool)
}

func (s *Server) createTool(w http.ResponseWriter, r *http.Request) {
	var tool api.ToolConfig
	if err := decodeBody(r, &tool); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if tool.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name required")
		return
	}

	tool.ID = 0
	if err := s.store.CreateTool(r.Context(), &tool); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("tool created", "name", tool.Name, "by", currentUser(r).Username)
	s.writeDataMessage(w, tool, "Tool created")
}

func (s *Server) updateTool(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "id required")
		return
	}
	var tool api.ToolConfig
	if err := decodeBody(r, &tool); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	updated, err := s.store.UpdateTool(r.Context(), id, &tool)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("tool updated", "id", id, "by", currentUser(r).Username)
	s.writeDataMessage(w, updated, "Tool updated")
}

func (s *Server) deleteTool(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "id required")
		return
	}
	if err := s.store.DeleteTool(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("tool deleted", "id", id, "by", currentUser(r).Username)
	s.writeDataMessage(w, nil, "Tool deleted")
}

// handleToggle handles PUT /tools/active?id= with a single boolean body.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := idParam(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "id required")
		return
	}
	var req api.ToggleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	tool, err := s.store.SetToolActive(r.Context(), id, req.IsActive)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	message := "已停用"
	if req.IsActive {
		message = "已启用"
	}
	s.writeDataMessage(w, tool, message)
}

// handleImport handles POST /tools/import, inserting the whole batch in one
// transaction. The server assigns fresh identifiers; a failure anywhere in
// the batch imports nothing.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ImportRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	for i := range req.Tools {
		req.Tools[i].ID = 0
	}
	created, err := s.store.CreateTools(r.Context(), req.Tools)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("tools imported", "count", len(created), "by", currentUser(r).Username)
	s.writeDataMessage(w, created, fmt.Sprintf("%d tools imported", len(created)))
}

// handleExport handles GET /tools/export, serving the collection as a JSON
// attachment rather than an envelope.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tools, err := s.store.ListTools(r.Context())
	if err != nil {
		s.logger.Error("listing tools for export", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	data, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "encoding export")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="tools_export.json"`)
	w.Write(data)
}

// handleInheritable handles GET /tools/inheritable: active tools only.
func (s *Server) handleInheritable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tools, err := s.store.ListActiveTools(r.Context())
	if err != nil {
		s.logger.Error("listing inheritable tools", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeData(w, tools)
}

// handleExecute handles POST /tools/execute?id=, the request/response form.
// Execution-level failures still answer 200; the inner result carries them.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tool, params, ok := s.executeTarget(w, r)
	if !ok {
		return
	}

	started := time.Now()
	result := s.runTool(tool, params)
	result.ExecutionTime = fmt.Sprintf("%.3fs", time.Since(started).Seconds())
	s.writeData(w, result)
}

// executeTarget resolves the target tool and decodes the execute body.
func (s *Server) executeTarget(w http.ResponseWriter, r *http.Request) (*api.ToolConfig, map[string]any, bool) {
	id, ok := idParam(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "id required")
		return nil, nil, false
	}
	var req api.ExecuteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return nil, nil, false
	}

	tool, err := s.store.GetTool(r.Context(), id)
	if err == store.ErrNotFound {
		s.writeError(w, http.StatusNotFound, "Tool not found")
		return nil, nil, false
	}
	if err != nil {
		s.logger.Error("fetching tool", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return nil, nil, false
	}
	return tool, req.Params, true
}

// runTool simulates an execution: validates required parameters against the
// tool definition and returns a canned result.
func (s *Server) runTool(tool *api.ToolConfig, params map[string]any) api.ExecuteResult {
	if !tool.IsActive {
		return api.ExecuteResult{Success: false, Error: "工具已停用"}
	}
	for _, p := range tool.Parameters {
		if !p.Required || p.Default != nil {
			continue
		}
		if _, ok := params[p.Name]; !ok {
			return api.ExecuteResult{
				Success: false,
				Error:   fmt.Sprintf("missing required parameter: %s", p.Name),
			}
		}
	}
	return api.ExecuteResult{
		Success: true,
		Result:  fmt.Sprintf("Mock execution result for %s", tool.Name),
	}
}

// handleExecuteStream handles POST /tools/execute/stream?id=, replaying the
// execution as a short SSE sequence: progress, result, complete.
func (s *Server) handleExecuteStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tool, params, ok := s.executeTarget(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	execID := uuid.New().String()
	started := time.Now()

	stages := []string{"准备执行环境", "执行工具代码"}
	for _, stage := range stages {
		s.writeSSEEvent(w, "progress", map[string]string{"execution_id": execID, "stage": stage})
		flusher.Flush()
		if !s.pace(r, s.execDelay) {
			return
		}
	}

	result := s.runTool(tool, params)
	result.ExecutionTime = fmt.Sprintf("%.3fs", time.Since(started).Seconds())
	s.writeSSEEvent(w, "result", result)
	flusher.Flush()

	s.writeSSEEvent(w, "complete", map[string]string{"execution_id": execID})
	flusher.Flush()
}

// pace sleeps between stream events, aborting early when the client is gone.
func (s *Server) pace(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-r.Context().Done():
		return false
	case <-time.After(d):
		return true
	}
}

// writeSSEEvent writes one event: and data: frame pair.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("marshaling SSE data", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch err {
	case store.ErrNotFound:
		s.writeError(w, http.StatusNotFound, "Tool not found")
	case store.ErrDuplicateName:
		s.writeError(w, http.StatusBadRequest, "工具名称已存在")
	case store.ErrBadInherit:
		s.writeError(w, http.StatusBadRequest, "inherit_from 必须引用已存在且启用的工具")
	default:
		s.logger.Error("store operation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
