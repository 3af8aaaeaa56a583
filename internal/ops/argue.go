package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/debate"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/prompt"
)

// ArgueInput contains parameters for the Argue operation.
type ArgueInput struct {
	Message string               `json:"message"`
	Page    activity.PageContent `json:"page"`

	// History holds the earlier turns, oldest first. Without it the
	// message is evaluated as an opening explanation.
	History []activity.DebateMessage `json:"history,omitempty"`
}

// ArgueOutput contains the result of the Argue operation.
type ArgueOutput struct {
	Accepted bool   `json:"accepted"`
	Analysis string `json:"analysis"`
	Response string `json:"response"`
}

// Argue evaluates one justification without a server-side session, for
// clients that keep the transcript themselves. Unlike a session turn, a
// model failure is returned to the caller.
func (e *Engine) Argue(ctx context.Context, input ArgueInput) (*ArgueOutput, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, errors.NewValidation("message is required")
	}
	page, err := validatePage(input.Page)
	if err != nil {
		return nil, err
	}
	for i, m := range input.History {
		if m.Role != activity.RoleAI && m.Role != activity.RoleUser {
			return nil, errors.NewValidation(fmt.Sprintf("history[%d].role must be %q or %q", i, activity.RoleAI, activity.RoleUser))
		}
	}

	pc := e.promptContext()
	formatted := prompt.FormatPage(page)
	var p string
	if len(input.History) == 0 {
		p = prompt.FirstDebate(pc, message, formatted)
	} else {
		history := append(append([]activity.DebateMessage(nil), input.History...),
			activity.DebateMessage{Role: activity.RoleUser, Content: message})
		p = prompt.ContinueDebate(pc, history, formatted)
	}

	response, err := e.gateway.Call(ctx, p, activity.CallDebate)
	if err != nil {
		return nil, errors.Wrap(err, "debate", map[string]any{"url": page.URL})
	}

	accepted, analysis := debate.ParseVerdict(response)
	return &ArgueOutput{Accepted: accepted, Analysis: analysis, Response: response}, nil
}
