// Package prompt builds the judgement and debate prompts sent to the model.
// Every function is pure; callers read principles and task from settings.
package prompt

import (
	"strings"

	"github.com/hpungsan/objective/internal/activity"
)

// Context is the user state a prompt is grounded in.
type Context struct {
	Principles string
	Task       string
}

const (
	casesBegin = "<BEGIN PAST CASES>"
	casesEnd   = "<END PAST CASES>"

	verdictInstructions = `Respond with either:
"ACCEPTED: [brief explanation]" if you find their reasoning valid
"REJECTED: [brief explanation]" if you find their reasoning inadequate. Your explanation should be concise, address the user directly, and mention specifically the self-set rules that the user is violating.`
)

// Judgement builds the prompt asking whether the formatted page aligns with
// the user's principles and task. Mined cases are included as precedent.
func Judgement(c Context, cases []string, formatted string) string {
	var b strings.Builder
	b.WriteString("Your goal is to figure out whether a website the user is looking at is in-line with the principles they've laid out for themselves and their current objective.")

	if c.Principles != "" {
		b.WriteString("\n\nHere are the fixed principles for web browsing that the user has set:\n")
		b.WriteString(c.Principles)
	} else {
		b.WriteString("\n\nThe user has not set any fixed principles. Please see below for what their current task is.")
	}

	if c.Task != "" {
		b.WriteString("\n\nHere is the current task the user is working on:\n")
		b.WriteString(c.Task)
	} else {
		b.WriteString("\n\nThe user has not set any specific task or objective, so only the general principles above apply.")
	}

	if len(cases) > 0 {
		b.WriteString("\n\nIn the past the user has successfully justified browsing like this while working on the same task. Treat these transcripts as precedent:\n")
		b.WriteString(casesBegin)
		b.WriteString("\n")
		b.WriteString(strings.Join(cases, "\n\n"))
		b.WriteString("\n")
		b.WriteString(casesEnd)
	}

	b.WriteString("\n\nHere is information about what they are currently looking at:\n")
	b.WriteString(formatted)
	b.WriteString("\n\nIf the web content is in-line with the principles and objective, respond with just the one word 'Yes', followed by one sentence about why the page seems relevant. If it's not, respond with the word 'No', followed by a short reminder to the user of how it doesn't align with their principles and objective.")

	return strings.TrimSpace(b.String())
}

// FirstDebate builds the prompt for the user's first justification.
func FirstDebate(c Context, explanation, formatted string) string {
	return strings.TrimSpace(debateBase(c, formatted) +
		"\n\nThe user has provided this explanation for their current activity:\n" + explanation +
		"\n\nEvaluate whether this explanation is reasonable and aligns with their principles.\n" +
		verdictInstructions)
}

// ContinueDebate builds the prompt for any later round, replaying the full
// message history.
func ContinueDebate(c Context, history []activity.DebateMessage, formatted string) string {
	return strings.TrimSpace(debateBase(c, formatted) +
		"\n\nPrevious conversation:\n" + FormatHistory(history) +
		"\n\nEvaluate the user's latest response and continue the debate about whether their browsing aligns with their principles.\n" +
		verdictInstructions)
}

// FormatHistory renders messages as "AI: ..." and "User: ..." blocks.
func FormatHistory(history []activity.DebateMessage) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "User"
		if m.Role == activity.RoleAI {
			speaker = "AI"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n\n")
}

func debateBase(c Context, formatted string) string {
	objective := c.Task
	if objective == "" {
		objective = "They have not set themselves a specific current objective"
	}
	return "You are evaluating whether a user's explanation for their web browsing aligns with their principles and current objective." +
		"\n\nTheir principles are:\n" + c.Principles +
		"\n\nTheir current objective is:\n" + objective +
		"\n\nHere is information about what they are currently looking at:\n" + formatted
}
