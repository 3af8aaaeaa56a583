package web

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/ops"
	"github.com/hpungsan/objective/internal/settings"
)

type PageInput struct {
	Body activity.PageContent
}

type JudgeOutput struct {
	Body *ops.JudgeOutput
}

type ReportPageOutput struct {
	Body struct {
		URL       string `json:"url"`
		Scheduled bool   `json:"scheduled" doc:"A page-load judgement was scheduled"`
	}
}

type DebateStartInput struct {
	Body ops.StartDebateInput
}

type DebateOutput struct {
	Body *ops.DebateOutput
}

type DebateReplyInput struct {
	DebateID string `path:"debateID" doc:"Debate ID"`
	Body     struct {
		Message string `json:"message" minLength:"1"`
	}
}

type DebateReplyOutput struct {
	Body *ops.ReplyDebateOutput
}

type DebateIDInput struct {
	DebateID string `path:"debateID" doc:"Debate ID"`
}

type DebateCloseOutput struct {
	Body *ops.CloseDebateOutput
}

type ArgueInput struct {
	Body ops.ArgueInput
}

type ArgueOutput struct {
	Body *ops.ArgueOutput
}

type LimitInput struct {
	Limit int `query:"limit" minimum:"0" doc:"Max entries (default 100)"`
}

type ListLogsOutput struct {
	Body *ops.ListLogsOutput
}

type ClearLogsInput struct {
	IncludeTasks bool `query:"include_tasks" doc:"Also clear task changes"`
}

type ClearLogsOutput struct {
	Body *ops.ClearLogsOutput
}

type ListTaskLogsOutput struct {
	Body *ops.ListTaskLogsOutput
}

// TaskQueryInput selects a task; an empty query means the current task.
type TaskQueryInput struct {
	Task string `query:"task" doc:"Task text (default: the current task)"`
}

func (in *TaskQueryInput) task() *string {
	if in.Task == "" {
		return nil
	}
	return &in.Task
}

type TaskScopedLogsOutput struct {
	Body *ops.TaskScopedLogsOutput
}

type CasesOutput struct {
	Body *ops.CasesOutput
}

type StatsOutput struct {
	Body *ops.StatsOutput
}

type SetTaskInput struct {
	Body ops.SetTaskInput
}

type SetTaskOutput struct {
	Body *ops.SetTaskOutput
}

type PauseInput struct {
	Body struct {
		Minutes float64 `json:"minutes,omitempty" minimum:"0" doc:"Pause length; omitted pauses for a year"`
	}
}

type PauseOutput struct {
	Body *ops.PauseOutput
}

// SettingsPatchInput omits pauseState; pauses go through /pause.
type SettingsPatchInput struct {
	Body struct {
		Principles          *string `json:"principles,omitempty"`
		CurrentTask         *string `json:"currentTask,omitempty"`
		Provider            *string `json:"provider,omitempty" enum:"cloud,local"`
		LocalModel          *string `json:"localModel,omitempty"`
		JudgementPolicy     *string `json:"judgementPolicy,omitempty" enum:"pageLoad,interval,manual"`
		JudgementIntervalMs *int    `json:"judgementIntervalMs,omitempty"`
		DebateBehaviour     *string `json:"debateBehaviour,omitempty" enum:"oneRound,multiRound"`
		DisableOnLoad       *bool   `json:"disableOnLoad,omitempty"`
	}
}

func (in *SettingsPatchInput) patch() settings.Patch {
	b := in.Body
	return settings.Patch{
		Principles:          b.Principles,
		CurrentTask:         b.CurrentTask,
		Provider:            b.Provider,
		LocalModel:          b.LocalModel,
		JudgementPolicy:     b.JudgementPolicy,
		JudgementIntervalMs: b.JudgementIntervalMs,
		DebateBehaviour:     b.DebateBehaviour,
		DisableOnLoad:       b.DisableOnLoad,
	}
}

type SettingsOutput struct {
	Body *ops.GetSettingsOutput
}

// Register adds every engine operation to api.
func Register(api huma.API, engine *ops.Engine, trig Trigger) {
	huma.Register(api, huma.Operation{
		OperationID: "judge-page",
		Method:      http.MethodPost,
		Path:        "/judge",
		Summary:     "Judge a page against the principles and current task",
		Tags:        []string{"Judgement"},
	}, func(ctx context.Context, input *PageInput) (*JudgeOutput, error) {
		out, err := engine.JudgeManual(ctx, ops.JudgeInput{Page: input.Body})
		if err != nil {
			return nil, apiError(err)
		}
		return &JudgeOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "judge-current",
		Method:        http.MethodPost,
		Path:          "/judge/current",
		Summary:       "Judge the last reported page now",
		Tags:          []string{"Judgement"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if err := trig.Manual(ctx); err != nil {
			return nil, apiError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-page",
		Method:      http.MethodPost,
		Path:        "/pages",
		Summary:     "Report a page load",
		Description: "Stores the page as the current page and schedules a judgement when the page-load policy is active.",
		Tags:        []string{"Judgement"},
	}, func(ctx context.Context, input *PageInput) (*ReportPageOutput, error) {
		rep, err := engine.ReportPage(ctx, ops.ReportPageInput{Page: input.Body})
		if err != nil {
			return nil, apiError(err)
		}
		out := &ReportPageOutput{}
		out.Body.URL = rep.URL
		out.Body.Scheduled = trig.PageLoaded()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-debate",
		Method:        http.MethodPost,
		Path:          "/debates",
		Summary:       "Open a debate from an off-task explanation",
		Tags:          []string{"Debates"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *DebateStartInput) (*DebateOutput, error) {
		out, err := engine.StartDebate(ctx, input.Body)
		if err != nil {
			return nil, apiError(err)
		}
		return &DebateOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reply-debate",
		Method:      http.MethodPost,
		Path:        "/debates/{debateID}/replies",
		Summary:     "Submit the user's justification",
		Tags:        []string{"Debates"},
	}, func(ctx context.Context, input *DebateReplyInput) (*DebateReplyOutput, error) {
		out, err := engine.ReplyDebate(ctx, ops.ReplyDebateInput{
			DebateID: input.DebateID,
			Message:  input.Body.Message,
		})
		if err != nil {
			return nil, apiError(err)
		}
		return &DebateReplyOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-debate",
		Method:      http.MethodDelete,
		Path:        "/debates/{debateID}",
		Summary:     "Close a debate the user declined",
		Tags:        []string{"Debates"},
	}, func(ctx context.Context, input *DebateIDInput) (*DebateCloseOutput, error) {
		out, err := engine.CloseDebate(ctx, ops.CloseDebateInput{DebateID: input.DebateID})
		if err != nil {
			return nil, apiError(err)
		}
		return &DebateCloseOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "argue",
		Method:      http.MethodPost,
		Path:        "/argue",
		Summary:     "Evaluate a justification without a server-side session",
		Tags:        []string{"Debates"},
	}, func(ctx context.Context, input *ArgueInput) (*ArgueOutput, error) {
		out, err := engine.Argue(ctx, input.Body)
		if err != nil {
			return nil, apiError(err)
		}
		return &ArgueOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/logs",
		Summary:     "List recent model calls",
		Tags:        []string{"Logs"},
	}, func(ctx context.Context, input *LimitInput) (*ListLogsOutput, error) {
		out, err := engine.ListLogs(ctx, ops.ListLogsInput{Limit: input.Limit})
		if err != nil {
			return nil, apiError(err)
		}
		return &ListLogsOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-logs",
		Method:      http.MethodDelete,
		Path:        "/logs",
		Summary:     "Clear the model call log",
		Tags:        []string{"Logs"},
	}, func(ctx context.Context, input *ClearLogsInput) (*ClearLogsOutput, error) {
		out, err := engine.ClearLogs(ctx, ops.ClearLogsInput{IncludeTasks: input.IncludeTasks})
		if err != nil {
			return nil, apiError(err)
		}
		return &ClearLogsOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "scoped-logs",
		Method:      http.MethodGet,
		Path:        "/logs/scoped",
		Summary:     "List model calls made while a task was active",
		Tags:        []string{"Logs"},
	}, func(ctx context.Context, input *TaskQueryInput) (*TaskScopedLogsOutput, error) {
		out, err := engine.TaskScopedLogs(ctx, ops.TaskScopedLogsInput{Task: input.task()})
		if err != nil {
			return nil, apiError(err)
		}
		return &TaskScopedLogsOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Token usage overall and for the current task",
		Tags:        []string{"Logs"},
	}, func(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
		out, err := engine.Stats(ctx)
		if err != nil {
			return nil, apiError(err)
		}
		return &StatsOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List recent task changes",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *LimitInput) (*ListTaskLogsOutput, error) {
		out, err := engine.ListTaskLogs(ctx, ops.ListTaskLogsInput{Limit: input.Limit})
		if err != nil {
			return nil, apiError(err)
		}
		return &ListTaskLogsOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task",
		Method:      http.MethodPut,
		Path:        "/task",
		Summary:     "Set the active task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *SetTaskInput) (*SetTaskOutput, error) {
		out, err := engine.SetTask(ctx, input.Body)
		if err != nil {
			return nil, apiError(err)
		}
		return &SetTaskOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/cases",
		Summary:     "Accepted debates cited as precedent for a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TaskQueryInput) (*CasesOutput, error) {
		out, err := engine.Cases(ctx, ops.CasesInput{Task: input.task()})
		if err != nil {
			return nil, apiError(err)
		}
		return &CasesOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pause",
		Method:      http.MethodPut,
		Path:        "/pause",
		Summary:     "Pause judgements",
		Tags:        []string{"Settings"},
	}, func(ctx context.Context, input *PauseInput) (*PauseOutput, error) {
		out, err := engine.Pause(ctx, ops.PauseInput{
			Duration: time.Duration(input.Body.Minutes * float64(time.Minute)),
		})
		if err != nil {
			return nil, apiError(err)
		}
		return &PauseOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resume",
		Method:      http.MethodDelete,
		Path:        "/pause",
		Summary:     "Resume judgements",
		Tags:        []string{"Settings"},
	}, func(ctx context.Context, _ *struct{}) (*PauseOutput, error) {
		out, err := engine.Resume(ctx)
		if err != nil {
			return nil, apiError(err)
		}
		return &PauseOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/settings",
		Summary:     "Show the preferences record",
		Tags:        []string{"Settings"},
	}, func(ctx context.Context, _ *struct{}) (*SettingsOutput, error) {
		out, err := engine.GetSettings(ctx)
		if err != nil {
			return nil, apiError(err)
		}
		return &SettingsOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-settings",
		Method:      http.MethodPatch,
		Path:        "/settings",
		Summary:     "Update preferences; omitted fields are unchanged",
		Tags:        []string{"Settings"},
	}, func(ctx context.Context, input *SettingsPatchInput) (*SettingsOutput, error) {
		out, err := engine.UpdateSettings(ctx, input.patch())
		if err != nil {
			return nil, apiError(err)
		}
		return &SettingsOutput{Body: out}, nil
	})
}

// apiError maps an engine error onto an HTTP problem response. The error
// code travels as the first detail so clients can branch on it. Internal
// and storage messages are not exposed.
func apiError(err error) error {
	var e *errors.Error
	if !errors.As(err, &e) {
		return huma.Error500InternalServerError("an internal error occurred")
	}

	message := e.Message
	if e.Code == errors.ErrInternal || e.Code == errors.ErrStorage {
		message = "an internal error occurred"
	}
	return huma.NewError(e.Status, message, &huma.ErrorDetail{
		Location: "code",
		Value:    string(e.Code),
	})
}
