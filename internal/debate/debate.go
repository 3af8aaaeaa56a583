// Package debate runs the negotiation that follows a negative judgement:
// the user justifies the page and the model accepts or rejects.
package debate

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/prompt"
	"github.com/hpungsan/objective/internal/settings"
)

// State of a session.
type State string

const (
	StateOpen     State = "open"
	StateAccepted State = "accepted"
	StateClosed   State = "closed"
)

// SeedPrefix starts the transcript, followed by the judgement's explanation.
const SeedPrefix = "You seem to be off task: "

// FailureMessage is appended when the model could not be reached.
const FailureMessage = "Failed to get response"

// Caller sends a prompt to the model.
type Caller interface {
	Call(ctx context.Context, prompt, callType string) (string, error)
}

// Deps are the collaborators of a session.
type Deps struct {
	Caller Caller

	// Context returns the principles and task at the time of each round
	Context func() prompt.Context

	// Page is the formatted page content the debate is about
	Page string
}

// Result is the outcome of one user turn.
type Result struct {
	ShouldClose bool `json:"shouldClose"`
	Accepted    bool `json:"accepted"`
}

// Observer receives the full display transcript.
type Observer func([]activity.ChatMessage)

// Session is one debate. Turns are single-flight: a Submit while another is
// pending fails with BUSY.
type Session struct {
	deps      Deps
	behaviour string

	mu        sync.Mutex
	state     State
	messages  []activity.DebateMessage
	pending   bool
	observers map[int]Observer
	nextObs   int
}

// New starts a session seeded with the judgement's explanation. behaviour
// is settings.DebateOneRound or settings.DebateMultiRound.
func New(explanation, behaviour string, deps Deps) *Session {
	if deps.Context == nil {
		deps.Context = func() prompt.Context { return prompt.Context{} }
	}
	return &Session{
		deps:      deps,
		behaviour: behaviour,
		state:     StateOpen,
		messages: []activity.DebateMessage{
			{Role: activity.RoleAI, Content: SeedPrefix + explanation},
		},
		observers: make(map[int]Observer),
	}
}

// Observe registers fn, calls it immediately with the current transcript,
// and again after every change. The returned function unregisters it.
func (s *Session) Observe(fn Observer) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	snapshot := activity.Chat(s.messages)
	s.mu.Unlock()

	fn(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Submit records the user's reply, asks the model for a verdict and applies
// it. A model failure is absorbed: the transcript gains FailureMessage and
// the session stays open.
func (s *Session) Submit(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, errors.NewValidation("message is required")
	}

	s.mu.Lock()
	if s.state != StateOpen {
		state := s.state
		s.mu.Unlock()
		return Result{}, errors.NewValidation("debate is " + string(state))
	}
	if s.pending {
		s.mu.Unlock()
		return Result{}, errors.NewBusy("a reply is already being evaluated")
	}
	s.pending = true
	s.messages = append(s.messages, activity.DebateMessage{Role: activity.RoleUser, Content: text})
	history := append([]activity.DebateMessage(nil), s.messages...)
	s.mu.Unlock()
	s.notify()

	// The transcript always holds the seed before the user's turn, so every
	// round replays the history. The miner depends on that prompt shape.
	p := prompt.ContinueDebate(s.deps.Context(), history, s.deps.Page)

	response, err := s.deps.Caller.Call(ctx, p, activity.CallDebate)

	s.mu.Lock()
	s.pending = false
	if err != nil {
		log.Error().Err(err).Str("component", "debate").Msg("failed to process user response")
		s.messages = append(s.messages, activity.DebateMessage{Role: activity.RoleAI, Content: FailureMessage})
		s.mu.Unlock()
		s.notify()
		return Result{}, nil
	}

	accepted, analysis := ParseVerdict(response)
	if analysis == "" {
		// Nothing to show; the user may try again
		s.mu.Unlock()
		log.Warn().Str("component", "debate").Msg("model returned an empty verdict")
		return Result{}, nil
	}
	s.messages = append(s.messages, activity.DebateMessage{Role: activity.RoleAI, Content: analysis})

	var res Result
	switch {
	case accepted:
		s.state = StateAccepted
		res = Result{Accepted: true}
	case s.behaviour == settings.DebateOneRound:
		s.state = StateClosed
		res = Result{ShouldClose: true}
	}
	s.mu.Unlock()
	s.notify()

	return res, nil
}

// Decline closes the session without a reply from the user.
func (s *Session) Decline() {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()
	s.notify()
}

// ParseVerdict reads the "ACCEPTED:" / "REJECTED:" convention. The analysis
// is everything after the first colon, trimmed.
func ParseVerdict(response string) (accepted bool, analysis string) {
	accepted = strings.HasPrefix(strings.ToLower(response), "accepted:")
	analysis = strings.TrimSpace(response[strings.Index(response, ":")+1:])
	return accepted, analysis
}

func (s *Session) notify() {
	s.mu.Lock()
	snapshot := activity.Chat(s.messages)
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}
