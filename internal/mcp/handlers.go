package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/ops"
	"github.com/hpungsan/objective/internal/settings"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	engine *ops.Engine
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(engine *ops.Engine) *Handlers {
	return &Handlers{engine: engine}
}

// Request types for each tool

// PageRequest carries a captured page.
type PageRequest struct {
	Page activity.PageContent `json:"page"`
}

// DebateStartRequest represents the arguments for debate_start.
type DebateStartRequest struct {
	Explanation string               `json:"explanation"`
	Page        activity.PageContent `json:"page"`
}

// DebateReplyRequest represents the arguments for debate_reply.
type DebateReplyRequest struct {
	DebateID string `json:"debate_id"`
	Message  string `json:"message"`
}

// DebateCloseRequest represents the arguments for debate_close.
type DebateCloseRequest struct {
	DebateID string `json:"debate_id"`
}

// DebateArgueRequest represents the arguments for debate_argue.
type DebateArgueRequest struct {
	Message string                   `json:"message"`
	Page    activity.PageContent     `json:"page"`
	History []activity.DebateMessage `json:"history,omitempty"`
}

// LimitRequest represents the arguments for logs_list and logs_tasks.
type LimitRequest struct {
	Limit int `json:"limit,omitempty"`
}

// LogsClearRequest represents the arguments for logs_clear.
type LogsClearRequest struct {
	IncludeTasks bool `json:"include_tasks,omitempty"`
}

// LogsExportRequest represents the arguments for logs_export.
type LogsExportRequest struct {
	Path string `json:"path,omitempty"`
}

// LogsImportRequest represents the arguments for logs_import.
type LogsImportRequest struct {
	Path    string `json:"path"`
	Replace bool   `json:"replace,omitempty"`
}

// TaskRequest represents the arguments for logs_scoped, task_set and task_cases.
type TaskRequest struct {
	Task *string `json:"task,omitempty"`
}

// PauseRequest represents the arguments for pause_set.
type PauseRequest struct {
	Minutes float64 `json:"minutes,omitempty"`
}

// Handler implementations

// HandleJudge handles the judge_page tool call.
func (h *Handlers) HandleJudge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.JudgeManual(ctx, ops.JudgeInput{Page: input.Page})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDebateStart handles the debate_start tool call.
func (h *Handlers) HandleDebateStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DebateStartRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.StartDebate(ctx, ops.StartDebateInput{
		Explanation: input.Explanation,
		Page:        input.Page,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDebateReply handles the debate_reply tool call.
func (h *Handlers) HandleDebateReply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DebateReplyRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.ReplyDebate(ctx, ops.ReplyDebateInput{
		DebateID: input.DebateID,
		Message:  input.Message,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDebateClose handles the debate_close tool call.
func (h *Handlers) HandleDebateClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DebateCloseRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.CloseDebate(ctx, ops.CloseDebateInput{DebateID: input.DebateID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDebateArgue handles the debate_argue tool call.
func (h *Handlers) HandleDebateArgue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DebateArgueRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.Argue(ctx, ops.ArgueInput{
		Message: input.Message,
		Page:    input.Page,
		History: input.History,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLogsList handles the logs_list tool call.
func (h *Handlers) HandleLogsList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LimitRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.ListLogs(ctx, ops.ListLogsInput{Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLogsClear handles the logs_clear tool call.
func (h *Handlers) HandleLogsClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LogsClearRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.ClearLogs(ctx, ops.ClearLogsInput{IncludeTasks: input.IncludeTasks})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLogsExport handles the logs_export tool call.
func (h *Handlers) HandleLogsExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LogsExportRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.ExportLogs(ctx, ops.ExportLogsInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLogsImport handles the logs_import tool call.
func (h *Handlers) HandleLogsImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LogsImportRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.ImportLogs(ctx, ops.ImportLogsInput{
		Path:    input.Path,
		Replace: input.Replace,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLogsTasks handles the logs_tasks tool call.
func (h *Handlers) HandleLogsTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LimitRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.ListTaskLogs(ctx, ops.ListTaskLogsInput{Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLogsScoped handles the logs_scoped tool call.
func (h *Handlers) HandleLogsScoped(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.TaskScopedLogs(ctx, ops.TaskScopedLogsInput{Task: input.Task})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLogsStats handles the logs_stats tool call.
func (h *Handlers) HandleLogsStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.engine.Stats(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTaskSet handles the task_set tool call.
func (h *Handlers) HandleTaskSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	task := ""
	if input.Task != nil {
		task = *input.Task
	}
	result, err := h.engine.SetTask(ctx, ops.SetTaskInput{Task: task})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTaskCases handles the task_cases tool call.
func (h *Handlers) HandleTaskCases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.Cases(ctx, ops.CasesInput{Task: input.Task})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePauseSet handles the pause_set tool call.
func (h *Handlers) HandlePauseSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PauseRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if input.Minutes < 0 {
		return errorResult(errors.NewValidation("minutes must not be negative")), nil
	}

	result, err := h.engine.Pause(ctx, ops.PauseInput{
		Duration: time.Duration(input.Minutes * float64(time.Minute)),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePauseClear handles the pause_clear tool call.
func (h *Handlers) HandlePauseClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.engine.Resume(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSettingsGet handles the settings_get tool call.
func (h *Handlers) HandleSettingsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.engine.GetSettings(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSettingsUpdate handles the settings_update tool call.
func (h *Handlers) HandleSettingsUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patch, err := decode[settings.Patch](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.engine.UpdateSettings(ctx, patch)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var e *errors.Error
	if errors.As(err, &e) {
		errorObj := map[string]any{
			"code":      e.Code,
			"message":   e.Message,
			"status":    e.Status,
			"retryable": e.Retryable,
		}
		if e.Code != errors.ErrInternal && e.Code != errors.ErrStorage && e.Details != nil {
			errorObj["details"] = e.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
