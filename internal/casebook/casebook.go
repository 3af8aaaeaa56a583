// Package casebook mines accepted debates out of the call log so that past
// justifications can be shown to the model as precedent.
package casebook

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

// Markers written by the prompt builder and by the model's verdict format.
const (
	acceptedMarker     = "ACCEPTED"
	rationaleMarker    = "ACCEPTED:"
	conversationMarker = "Previous conversation:"
	evaluateMarker     = "Evaluate the user"
	urlMarker          = "# URL:\n"
)

// Case is one accepted debate reconstructed from a call log.
type Case struct {
	URL          string
	Conversation string
	Rationale    string
}

// Parse extracts a Case from a debate call log. It reports false when the
// response was not an acceptance or when any prompt marker is missing.
// First-round debate prompts carry no conversation history and never parse.
func Parse(l activity.AICallLog) (Case, bool) {
	_, rationale, ok := strings.Cut(l.Response, rationaleMarker)
	if !ok {
		return Case{}, false
	}

	_, rest, ok := strings.Cut(l.Prompt, conversationMarker)
	if !ok {
		return Case{}, false
	}
	conversation, _, ok := strings.Cut(rest, evaluateMarker)
	if !ok {
		return Case{}, false
	}

	_, rest, ok = strings.Cut(l.Prompt, urlMarker)
	if !ok {
		return Case{}, false
	}
	url, _, ok := strings.Cut(rest, "\n")
	if !ok {
		return Case{}, false
	}

	return Case{
		URL:          strings.TrimSpace(url),
		Conversation: strings.TrimSpace(conversation),
		Rationale:    strings.TrimSpace(rationale),
	}, true
}

// Format renders c as the n-th past case for task.
func Format(n int, task string, c Case) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript %d:\n", n)
	fmt.Fprintf(&b, "URL: %s\n", c.URL)
	fmt.Fprintf(&b, "Task: %s\n", task)
	b.WriteString("Conversation:\n")
	b.WriteString(c.Conversation)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Outcome: ACCEPTED: %s", c.Rationale)
	return b.String()
}

// Resolver returns the call logs made while a task was active.
type Resolver interface {
	Resolve(ctx context.Context, task string) ([]activity.AICallLog, error)
}

// Miner turns task-scoped call logs into numbered transcripts.
type Miner struct {
	resolver Resolver
}

// New creates a Miner over r.
func New(r Resolver) *Miner {
	return &Miner{resolver: r}
}

// Mine returns one formatted transcript per accepted debate recorded while
// task was active, numbered from 1 in log order. Entries that fail to parse
// are omitted.
func (m *Miner) Mine(ctx context.Context, task string) ([]string, error) {
	logs, err := m.resolver.Resolve(ctx, task)
	if err != nil {
		return nil, errors.Wrap(err, "mine transcripts", map[string]any{"task": task})
	}

	out := make([]string, 0)
	for _, l := range logs {
		if !strings.Contains(l.Response, acceptedMarker) {
			continue
		}
		c, ok := Parse(l)
		if !ok {
			log.Debug().Str("timestamp", l.Timestamp).Msg("accepted response without transcript markers")
			continue
		}
		out = append(out, Format(len(out)+1, task, c))
	}
	return out, nil
}
