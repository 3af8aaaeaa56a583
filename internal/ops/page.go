package ops

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

// ReportPageInput contains parameters for the ReportPage operation.
type ReportPageInput struct {
	Page activity.PageContent `json:"page"`
}

// ReportPageOutput contains the result of the ReportPage operation.
type ReportPageOutput struct {
	URL string `json:"url"`
}

// ReportPage records the page the user is looking at. Scheduled judgements
// (page-load and interval triggers) judge the last reported page.
func (e *Engine) ReportPage(ctx context.Context, input ReportPageInput) (*ReportPageOutput, error) {
	page, err := validatePage(input.Page)
	if err != nil {
		return nil, err
	}
	e.setPage(page)
	return &ReportPageOutput{URL: page.URL}, nil
}

// JudgeCurrent judges the last reported page. It is the trigger's judge
// function.
func (e *Engine) JudgeCurrent(ctx context.Context) error {
	e.mu.Lock()
	page, ok := e.page, e.hasPage
	e.mu.Unlock()
	if !ok {
		return errors.NewValidation("no page has been reported")
	}
	_, err := e.Judge(ctx, JudgeInput{Page: page})
	return err
}

// JudgeManual is an on-demand judgement: it works under every policy but
// fails with PAUSED while judgements are paused.
func (e *Engine) JudgeManual(ctx context.Context, input JudgeInput) (*JudgeOutput, error) {
	if e.settings.IsPaused(ctx) {
		return nil, errors.NewPaused(e.settings.Get().PauseState.String())
	}
	page, err := validatePage(input.Page)
	if err != nil {
		return nil, err
	}
	e.setPage(page)
	return e.Judge(ctx, JudgeInput{Page: page})
}

// setPage records p as the current page. Navigating to another URL closes
// every session opened for a different page.
func (e *Engine) setPage(p activity.PageContent) {
	e.mu.Lock()
	var stale []*debateEntry
	if !e.hasPage || e.page.URL != p.URL {
		stale = e.removeLocked(func(d *debateEntry) bool { return d.url != p.URL })
	}
	e.page, e.hasPage = p, true
	e.mu.Unlock()

	release(stale)
	if len(stale) > 0 {
		log.Debug().Str("component", "ops").Str("url", p.URL).Int("closed", len(stale)).Msg("navigation closed debates")
	}
}
