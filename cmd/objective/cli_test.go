package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hpungsan/objective/internal/config"
	"github.com/hpungsan/objective/internal/credential"
	"github.com/hpungsan/objective/internal/db"
	"github.com/hpungsan/objective/internal/logstore"
	"github.com/hpungsan/objective/internal/notify"
	"github.com/hpungsan/objective/internal/ops"
	"github.com/hpungsan/objective/internal/settings"
)

type stubGateway struct {
	mu        sync.Mutex
	responses []string
}

func (g *stubGateway) Call(_ context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.responses[0]
	g.responses = g.responses[1:]
	return r, nil
}

// setupTestApp wires an app over a temporary directory with a scripted
// model.
func setupTestApp(t *testing.T, responses ...string) *app {
	t.Helper()
	tmpDir := t.TempDir()

	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	calls := logstore.NewAPICalls(database, 0)
	tasks := logstore.NewTasks(database, 0)
	store, err := settings.Open(tmpDir, tasks)
	if err != nil {
		t.Fatalf("failed to open settings: %v", err)
	}

	hub := notify.NewHub()
	return &app{
		db:       database,
		cfg:      config.DefaultConfig(),
		settings: store,
		calls:    calls,
		tasks:    tasks,
		creds:    credential.New(),
		hub:      hub,
		engine: ops.New(ops.Deps{
			Settings:  store,
			Calls:     calls,
			Tasks:     tasks,
			Gateway:   &stubGateway{responses: responses},
			Notifier:  hub,
			ExportDir: filepath.Join(tmpDir, "exports"),
		}),
	}
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	cliApp := newCLIApp(a)
	var buf bytes.Buffer
	cliApp.Writer = &buf
	err := cliApp.Run(append([]string{"objective"}, args...))
	return buf.String(), err
}

func TestIsCLIMode(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"objective"}, false},
		{[]string{"objective", "judge"}, true},
		{[]string{"objective", "serve"}, true},
		{[]string{"objective", "--version"}, true},
		{[]string{"objective", "store"}, false},
	}
	for _, tt := range tests {
		os.Args = tt.args
		if got := isCLIMode(); got != tt.want {
			t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestCLIHelpWithoutApp(t *testing.T) {
	out, err := run(t, nil, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, cmd := range []string{"judge", "argue", "logs", "serve", "key"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing %q", cmd)
		}
	}
}

func TestCLITask(t *testing.T) {
	a := setupTestApp(t)

	out, err := run(t, a, "task", "write", "the", "report")
	if err != nil {
		t.Fatalf("task set failed: %v", err)
	}
	var set ops.SetTaskOutput
	if err := json.Unmarshal([]byte(out), &set); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if set.Task != "write the report" || !set.Changed {
		t.Errorf("unexpected output: %+v", set)
	}

	out, err = run(t, a, "task")
	if err != nil {
		t.Fatalf("task show failed: %v", err)
	}
	if strings.TrimSpace(out) != "write the report" {
		t.Errorf("task = %q", out)
	}

	out, err = run(t, a, "tasks")
	if err != nil {
		t.Fatalf("tasks failed: %v", err)
	}
	if !strings.Contains(out, "write the report") {
		t.Errorf("tasks table missing task:\n%s", out)
	}

	if _, err := run(t, a, "task", "--clear"); err != nil {
		t.Fatalf("task clear failed: %v", err)
	}
	out, _ = run(t, a, "tasks", "--format", "json")
	var list ops.ListTaskLogsOutput
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if len(list.Items) != 2 || list.Items[0].Task != "" {
		t.Errorf("expected cleared task first, got %+v", list.Items)
	}
}

func TestCLIJudge(t *testing.T) {
	a := setupTestApp(t, "Yes. The docs match your task.")

	out, err := run(t, a, "judge", "--url", "https://pkg.go.dev", "--title", "Go docs")
	if err != nil {
		t.Fatalf("judge failed: %v", err)
	}
	var res ops.JudgeOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if !res.Verdict.Aligned || res.DebateID != "" {
		t.Errorf("unexpected verdict: %+v", res)
	}
}

func TestCLIJudge_Paused(t *testing.T) {
	a := setupTestApp(t)

	if _, err := run(t, a, "pause", "--for", "30m"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	_, err := run(t, a, "judge", "--url", "https://pkg.go.dev", "--title", "Go docs")
	if err == nil || !strings.Contains(err.Error(), "[PAUSED]") {
		t.Fatalf("expected PAUSED error, got %v", err)
	}

	out, err := run(t, a, "resume")
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !strings.Contains(out, `"paused": false`) {
		t.Errorf("unexpected resume output: %s", out)
	}
}

func TestCLIArgue_RequiresMessage(t *testing.T) {
	a := setupTestApp(t)
	_, err := run(t, a, "argue", "--url", "https://x.example", "--title", "x")
	if err == nil || !strings.Contains(err.Error(), "[VALIDATION]") {
		t.Fatalf("expected VALIDATION error, got %v", err)
	}
}

func TestCLISettings(t *testing.T) {
	a := setupTestApp(t)

	_, err := run(t, a, "settings", "--interval", "10ms")
	if err == nil || !strings.Contains(err.Error(), "[VALIDATION]") {
		t.Fatalf("expected VALIDATION error, got %v", err)
	}

	out, err := run(t, a, "settings", "--policy", "interval", "--interval", "2m", "--disable-on-load")
	if err != nil {
		t.Fatalf("settings update failed: %v", err)
	}
	var res ops.GetSettingsOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if res.Settings.JudgementPolicy != settings.PolicyInterval {
		t.Errorf("policy = %q", res.Settings.JudgementPolicy)
	}
	if res.Settings.JudgementIntervalMs != 120000 {
		t.Errorf("interval = %d", res.Settings.JudgementIntervalMs)
	}
	if !res.Settings.DisableOnLoad {
		t.Error("expected disableOnLoad")
	}
}

func TestCLILogsAndStats(t *testing.T) {
	a := setupTestApp(t)

	out, err := run(t, a, "logs")
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	if !strings.Contains(out, "(no calls)") {
		t.Errorf("expected empty table, got:\n%s", out)
	}

	if _, err := run(t, a, "logs", "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}

	out, err = run(t, a, "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out, "(no task)") {
		t.Errorf("expected no-task row, got:\n%s", out)
	}

	out, err = run(t, a, "logs", "clear", "--include-tasks")
	if err != nil {
		t.Fatalf("logs clear failed: %v", err)
	}
	if !strings.Contains(out, `"cleared_calls": 0`) {
		t.Errorf("unexpected clear output: %s", out)
	}
}

func TestCLIKeyStatus(t *testing.T) {
	t.Setenv(credential.EnvDisabled, "1")
	t.Setenv(credential.EnvAPIKey, "sk-test")
	a := setupTestApp(t)
	a.creds = credential.New()

	out, err := run(t, a, "key", "status")
	if err != nil {
		t.Fatalf("key status failed: %v", err)
	}
	if !strings.Contains(out, `"configured": true`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCLILogsExportImport(t *testing.T) {
	a := setupTestApp(t)

	if _, err := run(t, a, "task", "ship", "it"); err != nil {
		t.Fatalf("task set failed: %v", err)
	}

	out, err := run(t, a, "logs", "export", "backup.jsonl")
	if err != nil {
		t.Fatalf("logs export failed: %v", err)
	}
	var exported ops.ExportLogsOutput
	if err := json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if filepath.Base(exported.Path) != "backup.jsonl" || exported.Tasks != 1 {
		t.Errorf("unexpected export: %+v", exported)
	}

	out, err = run(t, a, "logs", "import", "--replace", "backup.jsonl")
	if err != nil {
		t.Fatalf("logs import failed: %v", err)
	}
	if !strings.Contains(out, `"tasks": 1`) {
		t.Errorf("unexpected import output: %s", out)
	}

	_, err = run(t, a, "logs", "import", "missing.jsonl")
	if err == nil || !strings.Contains(err.Error(), "[NOT_FOUND]") {
		t.Fatalf("expected NOT_FOUND error, got %v", err)
	}
}
