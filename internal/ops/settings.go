package ops

import (
	"context"
	"strings"
	"time"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/settings"
)

// GetSettingsOutput contains the result of the GetSettings operation.
type GetSettingsOutput struct {
	Settings settings.Settings `json:"settings"`
	Paused   bool              `json:"paused"`
}

// GetSettings returns the current preferences record.
func (e *Engine) GetSettings(ctx context.Context) (*GetSettingsOutput, error) {
	paused := e.settings.IsPaused(ctx)
	return &GetSettingsOutput{Settings: e.settings.Get(), Paused: paused}, nil
}

// UpdateSettings applies a partial update. Invalid enumerations or an
// interval below the minimum fail with VALIDATION and change nothing.
func (e *Engine) UpdateSettings(ctx context.Context, patch settings.Patch) (*GetSettingsOutput, error) {
	if patch.CurrentTask != nil {
		task := strings.TrimSpace(*patch.CurrentTask)
		patch.CurrentTask = &task
	}
	s, err := e.settings.Update(ctx, patch)
	if err != nil {
		return nil, err
	}
	return &GetSettingsOutput{Settings: s, Paused: s.PauseState.Active(e.now())}, nil
}

// SetTaskInput contains parameters for the SetTask operation.
type SetTaskInput struct {
	Task string `json:"task"` // empty clears the objective
}

// SetTaskOutput contains the result of the SetTask operation.
type SetTaskOutput struct {
	Task    string `json:"task"`
	Changed bool   `json:"changed"`
}

// SetTask sets the active task. The task log only grows when the value
// actually changes.
func (e *Engine) SetTask(ctx context.Context, input SetTaskInput) (*SetTaskOutput, error) {
	task := strings.TrimSpace(input.Task)
	changed, err := e.settings.SetTask(ctx, task)
	if err != nil {
		return nil, err
	}
	return &SetTaskOutput{Task: task, Changed: changed}, nil
}

// PauseInput contains parameters for the Pause operation.
type PauseInput struct {
	// Duration of the pause. Zero or negative pauses for IndefinitePause.
	Duration time.Duration `json:"duration"`
}

// PauseOutput contains the result of the Pause and Resume operations.
type PauseOutput struct {
	Paused bool   `json:"paused"`
	Until  string `json:"until,omitempty"`
}

// Pause suspends automatic and manual judgements until now+Duration.
func (e *Engine) Pause(ctx context.Context, input PauseInput) (*PauseOutput, error) {
	d := input.Duration
	if d <= 0 {
		d = IndefinitePause
	}
	until := e.now().Add(d)
	if err := e.settings.SetPause(ctx, settings.PausedUntil(until)); err != nil {
		return nil, err
	}
	return &PauseOutput{Paused: true, Until: activity.FormatTime(until)}, nil
}

// Resume clears any pause.
func (e *Engine) Resume(ctx context.Context) (*PauseOutput, error) {
	if err := e.settings.SetPause(ctx, settings.PauseState{}); err != nil {
		return nil, err
	}
	return &PauseOutput{Paused: false}, nil
}

// CasesInput contains parameters for the Cases operation.
type CasesInput struct {
	Task *string `json:"task,omitempty"` // nil: the current task
}

// CasesOutput contains the result of the Cases operation.
type CasesOutput struct {
	Task  string   `json:"task"`
	Cases []string `json:"cases"`
}

// Cases returns the accepted debates that would be cited as precedent for
// task.
func (e *Engine) Cases(ctx context.Context, input CasesInput) (*CasesOutput, error) {
	task := e.taskOrCurrent(input.Task)
	cases, err := e.miner.Mine(ctx, task)
	if err != nil {
		return nil, err
	}
	return &CasesOutput{Task: task, Cases: cases}, nil
}
