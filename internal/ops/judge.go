package ops

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/prompt"
)

// JudgeInput contains parameters for the Judge operation.
type JudgeInput struct {
	Page activity.PageContent `json:"page"`
}

// Verdict is the parsed answer to a judgement prompt.
type Verdict struct {
	Aligned     bool   `json:"aligned"`
	Explanation string `json:"explanation"`
	Raw         string `json:"raw"`
}

// JudgeOutput contains the result of the Judge operation.
// DebateID and Transcript are set only when the page was judged off task.
type JudgeOutput struct {
	Verdict    Verdict                `json:"verdict"`
	DebateID   string                 `json:"debate_id,omitempty"`
	Transcript []activity.ChatMessage `json:"transcript,omitempty"`
}

var (
	noPrefix   = regexp.MustCompile(`(?i)^no`)
	answerWord = regexp.MustCompile(`(?i)^(yes|no)\b[.,:;!]?\s*`)
)

// ParseVerdict reads a judgement response. A response starting with "no"
// in any case marks the page as off task, so "Nope" and "Not relevant" do
// too; anything else, including an unexpected format, lets the user continue.
func ParseVerdict(response string) Verdict {
	trimmed := strings.TrimSpace(response)
	return Verdict{
		Aligned:     !noPrefix.MatchString(trimmed),
		Explanation: strings.TrimSpace(answerWord.ReplaceAllString(trimmed, "")),
		Raw:         response,
	}
}

// Judge asks the model whether page fits the user's principles and task.
// Past accepted debates for the current task are included as precedent.
// An off-task verdict opens a debate and alerts the extension.
func (e *Engine) Judge(ctx context.Context, input JudgeInput) (*JudgeOutput, error) {
	page, err := validatePage(input.Page)
	if err != nil {
		return nil, err
	}

	pc := e.promptContext()
	cases, err := e.miner.Mine(ctx, pc.Task)
	if err != nil {
		return nil, errors.Wrap(err, "judge page", map[string]any{"url": page.URL})
	}

	p := prompt.Judgement(pc, cases, prompt.FormatPage(page))
	response, err := e.gateway.Call(ctx, p, activity.CallJudgement)
	if err != nil {
		log.Error().Err(err).Str("component", "ops").Str("url", page.URL).Msg("judgement failed")
		return nil, errors.Wrap(err, "judge page", map[string]any{"url": page.URL})
	}

	verdict := ParseVerdict(response)
	out := &JudgeOutput{Verdict: verdict}
	if verdict.Aligned {
		return out, nil
	}

	out.DebateID, out.Transcript = e.openDebate(verdict.Explanation, page)
	e.notifier.Alert(verdict.Explanation)
	log.Info().Str("component", "ops").Str("debate_id", out.DebateID).Str("url", page.URL).Int("cases", len(cases)).Msg("page judged off task")
	return out, nil
}
