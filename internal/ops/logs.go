package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

// ListLogsInput contains parameters for the ListLogs operation.
type ListLogsInput struct {
	Limit int `json:"limit,omitempty"` // default: 100, max: store capacity
}

// ListLogsOutput contains the result of the ListLogs operation.
type ListLogsOutput struct {
	Items      []activity.AICallLog `json:"items"`
	Totals     activity.LogTotals   `json:"totals"`
	Pagination Pagination           `json:"pagination"`
}

// ListLogs returns the most recent model calls, newest first.
func (e *Engine) ListLogs(ctx context.Context, input ListLogsInput) (*ListLogsOutput, error) {
	limit := clampLimit(input.Limit, e.calls.Capacity())

	items, err := e.calls.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	total, err := e.calls.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ListLogsOutput{
		Items:  items,
		Totals: activity.Totals(items),
		Pagination: Pagination{
			Limit:   limit,
			HasMore: len(items) < total,
			Total:   total,
		},
	}, nil
}

// ListTaskLogsInput contains parameters for the ListTaskLogs operation.
type ListTaskLogsInput struct {
	Limit int `json:"limit,omitempty"`
}

// ListTaskLogsOutput contains the result of the ListTaskLogs operation.
type ListTaskLogsOutput struct {
	Items      []activity.TaskLog `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

// ListTaskLogs returns the most recent task changes, newest first.
func (e *Engine) ListTaskLogs(ctx context.Context, input ListTaskLogsInput) (*ListTaskLogsOutput, error) {
	limit := clampLimit(input.Limit, e.tasks.Capacity())

	items, err := e.tasks.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	total, err := e.tasks.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ListTaskLogsOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			HasMore: len(items) < total,
			Total:   total,
		},
	}, nil
}

// ClearLogsInput contains parameters for the ClearLogs operation.
type ClearLogsInput struct {
	// IncludeTasks also clears the task history, which resets every
	// task window and with it the mined cases.
	IncludeTasks bool `json:"include_tasks,omitempty"`
}

// ClearLogsOutput contains the result of the ClearLogs operation.
type ClearLogsOutput struct {
	ClearedCalls int `json:"cleared_calls"`
	ClearedTasks int `json:"cleared_tasks"`
}

// ClearLogs deletes the model call log.
func (e *Engine) ClearLogs(ctx context.Context, input ClearLogsInput) (*ClearLogsOutput, error) {
	out := &ClearLogsOutput{}

	n, err := e.calls.Count(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.calls.Clear(ctx); err != nil {
		return nil, err
	}
	out.ClearedCalls = n

	if input.IncludeTasks {
		n, err := e.tasks.Count(ctx)
		if err != nil {
			return nil, err
		}
		if err := e.tasks.Clear(ctx); err != nil {
			return nil, err
		}
		out.ClearedTasks = n
	}

	return out, nil
}

// TaskScopedLogsInput contains parameters for the TaskScopedLogs operation.
type TaskScopedLogsInput struct {
	Task *string `json:"task,omitempty"` // nil: the current task
}

// TaskScopedLogsOutput contains the result of the TaskScopedLogs operation.
type TaskScopedLogsOutput struct {
	Task   string               `json:"task"`
	Items  []activity.AICallLog `json:"items"`
	Totals activity.LogTotals   `json:"totals"`
}

// TaskScopedLogs returns the model calls made while task was active.
func (e *Engine) TaskScopedLogs(ctx context.Context, input TaskScopedLogsInput) (*TaskScopedLogsOutput, error) {
	task := e.taskOrCurrent(input.Task)

	items, err := e.resolver.Resolve(ctx, task)
	if err != nil {
		return nil, errors.Wrap(err, "task scoped logs", map[string]any{"task": task})
	}

	return &TaskScopedLogsOutput{
		Task:   task,
		Items:  items,
		Totals: activity.Totals(items),
	}, nil
}

// StatsOutput contains the result of the Stats operation.
type StatsOutput struct {
	All         activity.LogTotals `json:"all"`
	CurrentTask string             `json:"current_task"`
	Task        activity.LogTotals `json:"task"`
	TaskChanges int                `json:"task_changes"`
	OpenDebates int                `json:"open_debates"`
}

// Stats summarizes token usage overall and for the current task.
func (e *Engine) Stats(ctx context.Context) (*StatsOutput, error) {
	all, err := e.calls.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	task := e.settings.Get().CurrentTask
	scoped, err := e.resolver.Resolve(ctx, task)
	if err != nil {
		return nil, errors.Wrap(err, "stats", map[string]any{"task": task})
	}

	changes, err := e.tasks.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &StatsOutput{
		All:         activity.Totals(all),
		CurrentTask: task,
		Task:        activity.Totals(scoped),
		TaskChanges: changes,
		OpenDebates: e.OpenDebates(),
	}, nil
}

// taskOrCurrent resolves an optional task argument against settings.
func (e *Engine) taskOrCurrent(task *string) string {
	if task != nil {
		return strings.TrimSpace(*task)
	}
	return e.settings.Get().CurrentTask
}
