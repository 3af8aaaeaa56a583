package debate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/prompt"
	"github.com/hpungsan/objective/internal/settings"
)

// scriptedCaller returns canned responses in order and records prompts.
type scriptedCaller struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
	types     []string
	block     chan struct{}
}

func (c *scriptedCaller) Call(_ context.Context, p, callType string) (string, error) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, p)
	c.types = append(c.types, callType)
	if c.err != nil {
		return "", c.err
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r, nil
}

func newSession(behaviour string, c Caller) *Session {
	return New("this is a video site", behaviour, Deps{
		Caller:  c,
		Context: func() prompt.Context { return prompt.Context{Principles: "Focus", Task: "Write thesis"} },
		Page:    "# URL:\nhttps://video.example\n\n# Title:\nVideos",
	})
}

func transcript(s *Session) []activity.ChatMessage {
	var got []activity.ChatMessage
	s.Observe(func(m []activity.ChatMessage) { got = m })()
	return got
}

func TestNew_SeedsOneAIMessage(t *testing.T) {
	s := newSession(settings.DebateOneRound, &scriptedCaller{})

	got := transcript(s)
	require.Len(t, got, 1)
	assert.Equal(t, "assistant", got[0].Role)
	assert.Equal(t, "You seem to be off task: this is a video site", got[0].Content)
}

func TestSubmit_OneRoundRejected(t *testing.T) {
	c := &scriptedCaller{responses: []string{"REJECTED: You said you'd write your thesis."}}
	s := newSession(settings.DebateOneRound, c)

	res, err := s.Submit(context.Background(), "Just a short break")
	require.NoError(t, err)
	assert.Equal(t, Result{ShouldClose: true, Accepted: false}, res)

	got := transcript(s)
	require.Len(t, got, 3)
	assert.Equal(t, "user", got[1].Role)
	assert.Equal(t, "You said you'd write your thesis.", got[2].Content)

	// Closed sessions reject further turns
	_, err = s.Submit(context.Background(), "please")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestSubmit_Accepted(t *testing.T) {
	c := &scriptedCaller{responses: []string{"Accepted: the lecture is thesis research"}}
	s := newSession(settings.DebateOneRound, c)

	res, err := s.Submit(context.Background(), "It's a lecture for my thesis")
	require.NoError(t, err)
	assert.Equal(t, Result{ShouldClose: false, Accepted: true}, res)
	assert.Equal(t, "the lecture is thesis research", transcript(s)[2].Content)

	_, err = s.Submit(context.Background(), "thanks")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestSubmit_MultiRound(t *testing.T) {
	c := &scriptedCaller{responses: []string{
		"REJECTED: Which part of the thesis?",
		"ACCEPTED: Chapter 3 covers this topic",
	}}
	s := newSession(settings.DebateMultiRound, c)

	res, err := s.Submit(context.Background(), "It's research")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	res, err = s.Submit(context.Background(), "Chapter 3")
	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: true}, res)

	require.Len(t, c.prompts, 2)
	assert.Contains(t, c.prompts[0], "Previous conversation:\n"+
		"AI: You seem to be off task: this is a video site\n\n"+
		"User: It's research\n\n"+
		"Evaluate the user's latest response")

	assert.Contains(t, c.prompts[1], "Previous conversation:\n"+
		"AI: You seem to be off task: this is a video site\n\n"+
		"User: It's research\n\n"+
		"AI: Which part of the thesis?\n\n"+
		"User: Chapter 3\n\n"+
		"Evaluate the user's latest response")
	assert.Contains(t, c.prompts[1], "Their current objective is:\nWrite thesis")
	assert.Equal(t, []string{activity.CallDebate, activity.CallDebate}, c.types)
}

func TestSubmit_GatewayFailureIsAbsorbed(t *testing.T) {
	c := &scriptedCaller{err: errors.NewProvider("anthropic", fmt.Errorf("connection reset"))}
	s := newSession(settings.DebateOneRound, c)

	res, err := s.Submit(context.Background(), "It's research")
	require.NoError(t, err)
	assert.Equal(t, Result{ShouldClose: false, Accepted: false}, res)

	got := transcript(s)
	require.Len(t, got, 3)
	assert.Equal(t, "assistant", got[2].Role)
	assert.Equal(t, FailureMessage, got[2].Content)

	// Still open
	c.err = nil
	c.responses = []string{"ACCEPTED: fine"}
	res, err = s.Submit(context.Background(), "retry")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestSubmit_EmptyText(t *testing.T) {
	c := &scriptedCaller{}
	s := newSession(settings.DebateOneRound, c)

	_, err := s.Submit(context.Background(), "   ")
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Empty(t, c.prompts)
	assert.Len(t, transcript(s), 1)
}

func TestSubmit_ConcurrentIsBusy(t *testing.T) {
	c := &scriptedCaller{responses: []string{"REJECTED: no"}, block: make(chan struct{})}
	s := newSession(settings.DebateMultiRound, c)

	done := make(chan error, 1)
	started := make(chan struct{})
	s.Observe(func(m []activity.ChatMessage) {
		if len(m) == 2 {
			close(started)
		}
	})
	go func() {
		_, err := s.Submit(context.Background(), "first")
		done <- err
	}()

	<-started
	_, err := s.Submit(context.Background(), "second")
	assert.True(t, errors.Is(err, errors.ErrBusy), "got %v", err)

	close(c.block)
	require.NoError(t, <-done)
	assert.Len(t, transcript(s), 3)
}

func TestSubmit_EmptyVerdictLeavesSessionOpen(t *testing.T) {
	c := &scriptedCaller{responses: []string{"ACCEPTED:   "}}
	s := newSession(settings.DebateOneRound, c)

	res, err := s.Submit(context.Background(), "hmm")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Len(t, transcript(s), 2)
}

func TestDecline(t *testing.T) {
	s := newSession(settings.DebateMultiRound, &scriptedCaller{})

	calls := 0
	s.Observe(func([]activity.ChatMessage) { calls++ })
	s.Decline()
	s.Decline()

	assert.Equal(t, 2, calls, "initial call plus one for the close")
	_, err := s.Submit(context.Background(), "wait")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestObserve_Unsubscribe(t *testing.T) {
	c := &scriptedCaller{responses: []string{"REJECTED: no"}}
	s := newSession(settings.DebateMultiRound, c)

	var lens []int
	unsubscribe := s.Observe(func(m []activity.ChatMessage) { lens = append(lens, len(m)) })
	_, err := s.Submit(context.Background(), "one")
	require.NoError(t, err)
	unsubscribe()

	c.responses = []string{"REJECTED: still no"}
	_, err = s.Submit(context.Background(), "two")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, lens)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		response string
		accepted bool
		analysis string
	}{
		{"ACCEPTED: looks fine", true, "looks fine"},
		{"REJECTED: no", false, "no"},
		{"accepted:ok", true, "ok"},
		{"  ACCEPTED: leading space", false, "leading space"},
		{"No colon at all", false, "No colon at all"},
		{"REJECTED: see: rule 2", false, "see: rule 2"},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			accepted, analysis := ParseVerdict(tt.response)
			assert.Equal(t, tt.accepted, accepted)
			assert.Equal(t, tt.analysis, analysis)
		})
	}
}

func TestChatHTML(t *testing.T) {
	s := newSession(settings.DebateOneRound, &scriptedCaller{})
	got := transcript(s)
	assert.True(t, strings.HasPrefix(got[0].HTML, "<p>"))
}
