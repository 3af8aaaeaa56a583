package ops

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/settings"
)

// openOffTask judges a page off task and returns the debate id.
func openOffTask(t *testing.T, env *testEnv) string {
	t.Helper()
	env.gateway.script("No. This is a video site.")
	out, err := env.engine.Judge(context.Background(), JudgeInput{Page: testPage("https://video.example")})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	return out.DebateID
}

func TestReplyDebate_Accepted(t *testing.T) {
	env := setup(t)
	if _, err := env.engine.SetTask(context.Background(), SetTaskInput{Task: "learn Go"}); err != nil {
		t.Fatalf("SetTask() error = %v", err)
	}
	id := openOffTask(t, env)
	env.gateway.script("ACCEPTED: Lectures count as research.")

	out, err := env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: id, Message: "It's a lecture"})
	if err != nil {
		t.Fatalf("ReplyDebate() error = %v", err)
	}
	if !out.Accepted || out.ShouldClose {
		t.Errorf("result = %+v, want accepted", out)
	}
	if len(out.Transcript) != 3 {
		t.Fatalf("Transcript has %d messages, want 3", len(out.Transcript))
	}
	if out.Transcript[2].Content != "Lectures count as research." {
		t.Errorf("last message = %q", out.Transcript[2].Content)
	}
	if env.engine.OpenDebates() != 0 {
		t.Errorf("accepted debate was not dropped")
	}

	// The accepted exchange is now a mineable case
	cases, err := env.engine.Cases(context.Background(), CasesInput{})
	if err != nil {
		t.Fatalf("Cases() error = %v", err)
	}
	if cases.Task != "learn Go" || len(cases.Cases) != 1 {
		t.Fatalf("Cases() = %+v, want one case for the current task", cases)
	}
	for _, want := range []string{
		"URL: https://video.example",
		"User: It's a lecture",
		"Outcome: ACCEPTED: Lectures count as research.",
	} {
		if !strings.Contains(cases.Cases[0], want) {
			t.Errorf("case missing %q:\n%s", want, cases.Cases[0])
		}
	}

	other, err := env.engine.Cases(context.Background(), CasesInput{Task: strPtr("")})
	if err != nil {
		t.Fatalf("Cases() error = %v", err)
	}
	if len(other.Cases) != 0 {
		t.Errorf("Cases for the empty task = %d, want 0", len(other.Cases))
	}
}

func TestReplyDebate_OneRoundRejected(t *testing.T) {
	env := setup(t)
	id := openOffTask(t, env)
	env.gateway.script("REJECTED: Videos are not on your list.")

	out, err := env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: id, Message: "just one"})
	if err != nil {
		t.Fatalf("ReplyDebate() error = %v", err)
	}
	if out.Accepted || !out.ShouldClose {
		t.Errorf("result = %+v, want shouldClose", out)
	}

	_, err = env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: id, Message: "again"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("reply after close: err = %v, want NOT_FOUND", err)
	}
}

func TestReplyDebate_MultiRoundStaysOpen(t *testing.T) {
	env := setup(t)
	behaviour := settings.DebateMultiRound
	if _, err := env.engine.UpdateSettings(context.Background(), settings.Patch{DebateBehaviour: &behaviour}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	id := openOffTask(t, env)
	env.gateway.script("REJECTED: Which part?", "ACCEPTED: Fine.")

	out, err := env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: id, Message: "research"})
	if err != nil {
		t.Fatalf("ReplyDebate() error = %v", err)
	}
	if out.Accepted || out.ShouldClose {
		t.Errorf("first round = %+v, want open", out)
	}
	if env.engine.OpenDebates() != 1 {
		t.Fatalf("OpenDebates() = %d, want 1", env.engine.OpenDebates())
	}

	out, err = env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: id, Message: "chapter 3"})
	if err != nil {
		t.Fatalf("ReplyDebate() error = %v", err)
	}
	if !out.Accepted {
		t.Errorf("second round = %+v, want accepted", out)
	}
	if !strings.Contains(env.gateway.lastPrompt(), "AI: Which part?\n\nUser: chapter 3") {
		t.Errorf("second round prompt lacks the history:\n%s", env.gateway.lastPrompt())
	}
}

func TestReplyDebate_GatewayFailureKeepsSession(t *testing.T) {
	env := setup(t)
	id := openOffTask(t, env)
	env.gateway.err = errors.NewTimeout("anthropic", context.DeadlineExceeded)

	out, err := env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: id, Message: "please"})
	if err != nil {
		t.Fatalf("ReplyDebate() error = %v, want failure absorbed", err)
	}
	if out.Accepted || out.ShouldClose {
		t.Errorf("result = %+v, want open", out)
	}
	last := out.Transcript[len(out.Transcript)-1]
	if last.Content != "Failed to get response" {
		t.Errorf("last message = %q", last.Content)
	}
	if env.engine.OpenDebates() != 1 {
		t.Errorf("session dropped after a gateway failure")
	}
}

func TestReplyDebate_Validation(t *testing.T) {
	env := setup(t)
	id := openOffTask(t, env)

	if _, err := env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: id, Message: "   "}); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("empty message: err = %v, want VALIDATION", err)
	}
	if _, err := env.engine.ReplyDebate(context.Background(), ReplyDebateInput{Message: "hi"}); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("missing id: err = %v, want VALIDATION", err)
	}
	if _, err := env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: "01UNKNOWN", Message: "hi"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want NOT_FOUND", err)
	}
}

// blockingGateway holds the first call until release is closed.
type blockingGateway struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *blockingGateway) Call(ctx context.Context, p, callType string) (string, error) {
	if callType == activity.CallJudgement {
		return "No. off task", nil
	}
	g.once.Do(func() { close(g.started) })
	<-g.release
	return "REJECTED: no", nil
}

func TestReplyDebate_ConcurrentBusy(t *testing.T) {
	env := setup(t)
	gw := &blockingGateway{started: make(chan struct{}), release: make(chan struct{})}
	env.engine.gateway = gw

	out, err := env.engine.Judge(context.Background(), JudgeInput{Page: testPage("https://x.example")})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: out.DebateID, Message: "first"})
		done <- err
	}()
	<-gw.started

	_, err = env.engine.ReplyDebate(context.Background(), ReplyDebateInput{DebateID: out.DebateID, Message: "second"})
	if !errors.Is(err, errors.ErrBusy) {
		t.Errorf("concurrent reply: err = %v, want BUSY", err)
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("first reply error = %v", err)
	}
}

func TestCloseDebate(t *testing.T) {
	env := setup(t)
	id := openOffTask(t, env)

	out, err := env.engine.CloseDebate(context.Background(), CloseDebateInput{DebateID: id})
	if err != nil {
		t.Fatalf("CloseDebate() error = %v", err)
	}
	if !out.Closed {
		t.Error("Closed = false")
	}
	if env.engine.OpenDebates() != 0 {
		t.Error("closed debate still tracked")
	}
	if _, err := env.engine.CloseDebate(context.Background(), CloseDebateInput{DebateID: id}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second close: err = %v, want NOT_FOUND", err)
	}
}

func TestStartDebate(t *testing.T) {
	env := setup(t)

	if _, err := env.engine.StartDebate(context.Background(), StartDebateInput{Page: testPage("https://x.example")}); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("missing explanation: err = %v, want VALIDATION", err)
	}

	out, err := env.engine.StartDebate(context.Background(), StartDebateInput{
		Explanation: "Shopping is not on your list.",
		Page:        testPage("https://shop.example"),
	})
	if err != nil {
		t.Fatalf("StartDebate() error = %v", err)
	}
	if out.DebateID == "" || len(out.Transcript) != 1 {
		t.Fatalf("out = %+v", out)
	}
	if out.Transcript[0].Content != "You seem to be off task: Shopping is not on your list." {
		t.Errorf("seed = %q", out.Transcript[0].Content)
	}
}

func TestArgue(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	env.gateway.script("ACCEPTED: ok", "REJECTED: still no")

	out, err := env.engine.Argue(ctx, ArgueInput{Message: "I need it", Page: testPage("https://x.example")})
	if err != nil {
		t.Fatalf("Argue() error = %v", err)
	}
	if !out.Accepted || out.Analysis != "ok" {
		t.Errorf("out = %+v", out)
	}
	if !strings.Contains(env.gateway.lastPrompt(), "explanation for their current activity:\nI need it") {
		t.Errorf("opening argument should use the first-round prompt")
	}

	out, err = env.engine.Argue(ctx, ArgueInput{
		Message: "really",
		Page:    testPage("https://x.example"),
		History: []activity.DebateMessage{
			{Role: activity.RoleAI, Content: "You seem to be off task: x"},
			{Role: activity.RoleUser, Content: "I need it"},
			{Role: activity.RoleAI, Content: "why?"},
		},
	})
	if err != nil {
		t.Fatalf("Argue() error = %v", err)
	}
	if out.Accepted || out.Analysis != "still no" {
		t.Errorf("out = %+v", out)
	}
	if !strings.Contains(env.gateway.lastPrompt(), "AI: why?\n\nUser: really\n\nEvaluate the user") {
		t.Errorf("continuation prompt lacks the new message:\n%s", env.gateway.lastPrompt())
	}

	_, err = env.engine.Argue(ctx, ArgueInput{
		Message: "x",
		Page:    testPage("https://x.example"),
		History: []activity.DebateMessage{{Role: "system", Content: "x"}},
	})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("bad role: err = %v, want VALIDATION", err)
	}

	env.gateway.err = errors.NewProvider("anthropic", fmt.Errorf("boom"))
	if _, err := env.engine.Argue(ctx, ArgueInput{Message: "x", Page: testPage("https://x.example")}); !errors.Is(err, errors.ErrProvider) {
		t.Errorf("gateway failure: err = %v, want PROVIDER", err)
	}
}

func strPtr(s string) *string { return &s }
