package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

// StartDebateInput contains parameters for the StartDebate operation.
type StartDebateInput struct {
	Explanation string               `json:"explanation"`
	Page        activity.PageContent `json:"page"`
}

// DebateOutput identifies a debate and carries its display transcript.
type DebateOutput struct {
	DebateID   string                 `json:"debate_id"`
	Transcript []activity.ChatMessage `json:"transcript"`
}

// StartDebate opens a debate from a judgement the caller already holds.
func (e *Engine) StartDebate(ctx context.Context, input StartDebateInput) (*DebateOutput, error) {
	explanation := strings.TrimSpace(input.Explanation)
	if explanation == "" {
		return nil, errors.NewValidation("explanation is required")
	}
	page, err := validatePage(input.Page)
	if err != nil {
		return nil, err
	}

	id, transcript := e.openDebate(explanation, page)
	return &DebateOutput{DebateID: id, Transcript: transcript}, nil
}

// ReplyDebateInput contains parameters for the ReplyDebate operation.
type ReplyDebateInput struct {
	DebateID string `json:"debate_id"`
	Message  string `json:"message"`
}

// ReplyDebateOutput contains the result of the ReplyDebate operation.
type ReplyDebateOutput struct {
	DebateID    string                 `json:"debate_id"`
	ShouldClose bool                   `json:"should_close"`
	Accepted    bool                   `json:"accepted"`
	Transcript  []activity.ChatMessage `json:"transcript"`
}

// ReplyDebate submits the user's argument. A resolved debate (accepted, or
// closed under the one-round behaviour) is forgotten after this call.
func (e *Engine) ReplyDebate(ctx context.Context, input ReplyDebateInput) (*ReplyDebateOutput, error) {
	entry, err := e.lookup(input.DebateID)
	if err != nil {
		return nil, err
	}

	res, err := entry.session.Submit(ctx, input.Message)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(input.DebateID)
	if res.Accepted || res.ShouldClose {
		e.drop(id)
	}

	return &ReplyDebateOutput{
		DebateID:    id,
		ShouldClose: res.ShouldClose,
		Accepted:    res.Accepted,
		Transcript:  entry.snapshot(),
	}, nil
}

// CloseDebateInput contains parameters for the CloseDebate operation.
type CloseDebateInput struct {
	DebateID string `json:"debate_id"`
}

// CloseDebateOutput contains the result of the CloseDebate operation.
type CloseDebateOutput struct {
	DebateID string `json:"debate_id"`
	Closed   bool   `json:"closed"`
}

// CloseDebate ends a debate the user walked away from.
func (e *Engine) CloseDebate(ctx context.Context, input CloseDebateInput) (*CloseDebateOutput, error) {
	entry, err := e.lookup(input.DebateID)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(input.DebateID)
	entry.session.Decline()
	e.drop(id)

	return &CloseDebateOutput{DebateID: id, Closed: true}, nil
}
