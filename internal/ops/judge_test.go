package ops

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/notify"
	"github.com/hpungsan/objective/internal/prompt"
	"github.com/hpungsan/objective/internal/settings"
)

func TestJudge_Aligned(t *testing.T) {
	env := setup(t)
	env.gateway.script("Yes. This is the API reference you need.")

	out, err := env.engine.Judge(context.Background(), JudgeInput{Page: testPage("https://pkg.go.dev")})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if !out.Verdict.Aligned {
		t.Errorf("Aligned = false, want true")
	}
	if out.DebateID != "" {
		t.Errorf("DebateID = %q, want none for an aligned page", out.DebateID)
	}
	if env.engine.OpenDebates() != 0 {
		t.Errorf("OpenDebates() = %d, want 0", env.engine.OpenDebates())
	}
	if env.gateway.types[0] != activity.CallJudgement {
		t.Errorf("call type = %q, want %q", env.gateway.types[0], activity.CallJudgement)
	}
	if !strings.Contains(env.gateway.lastPrompt(), "# URL:\nhttps://pkg.go.dev") {
		t.Errorf("prompt does not contain the formatted page:\n%s", env.gateway.lastPrompt())
	}
}

func TestJudge_OffTaskOpensDebate(t *testing.T) {
	env := setup(t)
	events, cancel := env.hub.Subscribe(notify.DefaultBuffer)
	defer cancel()
	env.gateway.script("No. A video site does not help with your report.")

	out, err := env.engine.Judge(context.Background(), JudgeInput{Page: testPage("https://video.example")})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if out.Verdict.Aligned {
		t.Fatal("Aligned = true, want false")
	}
	if out.DebateID == "" {
		t.Fatal("DebateID is empty")
	}
	if len(out.Transcript) != 1 {
		t.Fatalf("Transcript has %d messages, want the seed only", len(out.Transcript))
	}
	seed := out.Transcript[0]
	if seed.Role != "assistant" || seed.Content != "You seem to be off task: A video site does not help with your report." {
		t.Errorf("seed = %+v", seed)
	}

	first, second := <-events, <-events
	if first.Kind != notify.KindTranscript || first.DebateID != out.DebateID {
		t.Errorf("first event = %+v, want transcript for %s", first, out.DebateID)
	}
	if second.Kind != notify.KindAlert || second.Message != out.Verdict.Explanation {
		t.Errorf("second event = %+v, want alert with explanation", second)
	}
}

func TestJudge_Validation(t *testing.T) {
	env := setup(t)

	_, err := env.engine.Judge(context.Background(), JudgeInput{Page: activity.PageContent{Title: "no url"}})
	if !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("err = %v, want VALIDATION", err)
	}
	if len(env.gateway.prompts) != 0 {
		t.Errorf("gateway called %d times, want 0", len(env.gateway.prompts))
	}
}

func TestJudge_GatewayError(t *testing.T) {
	env := setup(t)
	env.gateway.err = errors.NewProvider("ollama", fmt.Errorf("connection refused"))

	_, err := env.engine.Judge(context.Background(), JudgeInput{Page: testPage("https://x.example")})
	if !errors.Is(err, errors.ErrProvider) {
		t.Fatalf("err = %v, want PROVIDER", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("provider failure should stay retryable")
	}
	if env.engine.OpenDebates() != 0 {
		t.Errorf("OpenDebates() = %d, want 0", env.engine.OpenDebates())
	}
}

func TestJudge_CitesAcceptedDebates(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	if _, err := env.engine.SetTask(ctx, SetTaskInput{Task: "write report"}); err != nil {
		t.Fatalf("SetTask() error = %v", err)
	}

	// An accepted multi-turn debate recorded during this task
	history := []activity.DebateMessage{
		{Role: activity.RoleAI, Content: "You seem to be off task: forum"},
		{Role: activity.RoleUser, Content: "the thread has the data I cite"},
	}
	env.gateway.script("ACCEPTED: the thread is a source for the report")
	debatePrompt := prompt.ContinueDebate(prompt.Context{Task: "write report"}, history,
		prompt.FormatPage(testPage("https://forum.example/t/1")))
	if _, err := env.gateway.Call(ctx, debatePrompt, activity.CallDebate); err != nil {
		t.Fatalf("record debate: %v", err)
	}

	env.gateway.script("Yes. Same forum as before.")
	if _, err := env.engine.Judge(ctx, JudgeInput{Page: testPage("https://forum.example/t/2")}); err != nil {
		t.Fatalf("Judge() error = %v", err)
	}

	p := env.gateway.lastPrompt()
	for _, want := range []string{
		"<BEGIN PAST CASES>",
		"Transcript 1:",
		"URL: https://forum.example/t/1",
		"Outcome: ACCEPTED: the thread is a source for the report",
		"<END PAST CASES>",
		"Here is the current task the user is working on:\nwrite report",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("judgement prompt missing %q", want)
		}
	}
}

func TestJudge_NoCasesFromOtherTask(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	if _, err := env.engine.SetTask(ctx, SetTaskInput{Task: "task A"}); err != nil {
		t.Fatalf("SetTask() error = %v", err)
	}
	history := []activity.DebateMessage{
		{Role: activity.RoleAI, Content: "You seem to be off task: x"},
		{Role: activity.RoleUser, Content: "y"},
	}
	env.gateway.script("ACCEPTED: fine for A")
	if _, err := env.gateway.Call(ctx, prompt.ContinueDebate(prompt.Context{}, history, prompt.FormatPage(testPage("https://a.example"))), activity.CallDebate); err != nil {
		t.Fatalf("record debate: %v", err)
	}

	// Keep the task switch on a later millisecond than the recorded debate
	time.Sleep(5 * time.Millisecond)
	if _, err := env.engine.SetTask(ctx, SetTaskInput{Task: "task B"}); err != nil {
		t.Fatalf("SetTask() error = %v", err)
	}
	env.gateway.script("Yes. ok")
	if _, err := env.engine.Judge(ctx, JudgeInput{Page: testPage("https://a.example")}); err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if strings.Contains(env.gateway.lastPrompt(), "<BEGIN PAST CASES>") {
		t.Error("cases from another task leaked into the prompt")
	}
}

func TestJudgeManual_Paused(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	if _, err := env.engine.Pause(ctx, PauseInput{}); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	_, err := env.engine.JudgeManual(ctx, JudgeInput{Page: testPage("https://x.example")})
	if !errors.Is(err, errors.ErrPaused) {
		t.Fatalf("err = %v, want PAUSED", err)
	}
	if len(env.gateway.prompts) != 0 {
		t.Errorf("gateway called while paused")
	}

	if _, err := env.engine.Resume(ctx); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	env.gateway.script("Yes. fine")
	if _, err := env.engine.JudgeManual(ctx, JudgeInput{Page: testPage("https://x.example")}); err != nil {
		t.Fatalf("JudgeManual() after resume error = %v", err)
	}
}

func TestJudgeManual_AnyPolicy(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	policy := settings.PolicyManual
	if _, err := env.engine.UpdateSettings(ctx, settings.Patch{JudgementPolicy: &policy}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	env.gateway.script("Yes. fine")
	if _, err := env.engine.JudgeManual(ctx, JudgeInput{Page: testPage("https://x.example")}); err != nil {
		t.Fatalf("JudgeManual() error = %v", err)
	}
}

func TestJudgeCurrent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	if err := env.engine.JudgeCurrent(ctx); !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("JudgeCurrent() without a page: err = %v, want VALIDATION", err)
	}

	if _, err := env.engine.ReportPage(ctx, ReportPageInput{Page: testPage("https://news.example")}); err != nil {
		t.Fatalf("ReportPage() error = %v", err)
	}
	env.gateway.script("No. News is not your task.")
	if err := env.engine.JudgeCurrent(ctx); err != nil {
		t.Fatalf("JudgeCurrent() error = %v", err)
	}
	if !strings.Contains(env.gateway.lastPrompt(), "https://news.example") {
		t.Error("JudgeCurrent did not judge the reported page")
	}
	if env.engine.OpenDebates() != 1 {
		t.Errorf("OpenDebates() = %d, want 1", env.engine.OpenDebates())
	}
}

func TestReportPage_NavigationClosesDebates(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	for i, url := range []string{"https://a.example", "https://b.example", "https://c.example", "https://d.example", "https://e.example"} {
		if _, err := env.engine.ReportPage(ctx, ReportPageInput{Page: testPage(url)}); err != nil {
			t.Fatalf("ReportPage() error = %v", err)
		}
		env.gateway.script("No. Off task.")
		if err := env.engine.JudgeCurrent(ctx); err != nil {
			t.Fatalf("round %d: JudgeCurrent() error = %v", i, err)
		}
		if n := env.engine.OpenDebates(); n != 1 {
			t.Fatalf("round %d: OpenDebates() = %d, want 1", i, n)
		}
	}
}

func TestJudgeCurrent_RejudgeReplacesSession(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	if _, err := env.engine.ReportPage(ctx, ReportPageInput{Page: testPage("https://feed.example")}); err != nil {
		t.Fatalf("ReportPage() error = %v", err)
	}
	env.gateway.script("No. First.", "No. Second.")
	first, err := env.engine.Judge(ctx, JudgeInput{Page: testPage("https://feed.example")})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if err := env.engine.JudgeCurrent(ctx); err != nil {
		t.Fatalf("JudgeCurrent() error = %v", err)
	}

	if n := env.engine.OpenDebates(); n != 1 {
		t.Fatalf("OpenDebates() = %d, want 1", n)
	}
	_, err = env.engine.ReplyDebate(ctx, ReplyDebateInput{DebateID: first.DebateID, Message: "still here"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ReplyDebate() on replaced session: err = %v, want NOT_FOUND", err)
	}
}

func TestReportPage_SameURLKeepsDebate(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	env.gateway.script("No. Off task.")
	out, err := env.engine.JudgeManual(ctx, JudgeInput{Page: testPage("https://feed.example")})
	if err != nil {
		t.Fatalf("JudgeManual() error = %v", err)
	}
	if _, err := env.engine.ReportPage(ctx, ReportPageInput{Page: testPage("https://feed.example")}); err != nil {
		t.Fatalf("ReportPage() error = %v", err)
	}
	if _, err := env.engine.lookup(out.DebateID); err != nil {
		t.Errorf("debate dropped on same-page report: %v", err)
	}
}
