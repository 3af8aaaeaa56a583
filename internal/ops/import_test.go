package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

const testHeader = `{"_objective_export":true,"schema_version":"1.0","exported_at":"2024-05-01T12:00:00.000Z"}`

func writeImportFile(t *testing.T, env *testEnv, name string, lines ...string) string {
	t.Helper()
	if err := os.MkdirAll(env.exportDir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(env.exportDir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportLogs_RoundTrip(t *testing.T) {
	src := setup(t)
	seedLogs(t, src, 3)
	ctx := context.Background()

	exported, err := src.engine.ExportLogs(ctx, ExportLogsInput{})
	if err != nil {
		t.Fatalf("ExportLogs() error = %v", err)
	}
	data, err := os.ReadFile(exported.Path)
	if err != nil {
		t.Fatal(err)
	}

	dst := setup(t)
	path := writeImportFile(t, dst, "copy.jsonl", strings.TrimRight(string(data), "\n"))

	out, err := dst.engine.ImportLogs(ctx, ImportLogsInput{Path: path})
	if err != nil {
		t.Fatalf("ImportLogs() error = %v", err)
	}
	if out.Calls != 3 || out.Tasks != 1 || len(out.Errors) != 0 {
		t.Errorf("output = %+v", out)
	}

	want, _ := src.calls.List(ctx, 0)
	got, err := dst.calls.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d calls, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Timestamp != want[i].Timestamp || got[i].Prompt != want[i].Prompt {
			t.Errorf("call %d = %+v, want %+v", i, got[i], want[i])
		}
		if got[i].InputTokens == nil || *got[i].InputTokens != *want[i].InputTokens {
			t.Errorf("call %d tokens not preserved", i)
		}
	}

	tasks, _ := dst.tasks.List(ctx, 0)
	if len(tasks) != 1 || tasks[0].Task != "write the report" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestImportLogs_SortsByTimestamp(t *testing.T) {
	env := setup(t)
	path := writeImportFile(t, env, "unsorted.jsonl",
		testHeader,
		`{"kind":"call","call":{"timestamp":"2024-05-01T10:00:02.000Z","model":"m","type":"judgement","prompt":"second","response":"r"}}`,
		`{"kind":"call","call":{"timestamp":"2024-05-01T10:00:01.000Z","model":"m","type":"judgement","prompt":"first","response":"r"}}`,
	)

	if _, err := env.engine.ImportLogs(context.Background(), ImportLogsInput{Path: path}); err != nil {
		t.Fatalf("ImportLogs() error = %v", err)
	}

	calls, _ := env.calls.List(context.Background(), 0)
	if len(calls) != 2 || calls[0].Prompt != "second" || calls[1].Prompt != "first" {
		t.Errorf("calls (newest first) = %+v", calls)
	}
}

func TestImportLogs_AppendsByDefault(t *testing.T) {
	env := setup(t)
	seedLogs(t, env, 1)
	path := writeImportFile(t, env, "one.jsonl",
		testHeader,
		`{"kind":"task","task_log":{"timestamp":"2024-05-02T08:00:00.000Z","task":"plan the week"}}`,
	)

	if _, err := env.engine.ImportLogs(context.Background(), ImportLogsInput{Path: path}); err != nil {
		t.Fatalf("ImportLogs() error = %v", err)
	}
	if n, _ := env.calls.Count(context.Background()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
	if n, _ := env.tasks.Count(context.Background()); n != 2 {
		t.Errorf("tasks = %d, want 2", n)
	}
}

func TestImportLogs_Replace(t *testing.T) {
	env := setup(t)
	seedLogs(t, env, 2)
	path := writeImportFile(t, env, "one.jsonl",
		testHeader,
		`{"kind":"task","task_log":{"timestamp":"2024-05-02T08:00:00.000Z","task":""}}`,
	)

	out, err := env.engine.ImportLogs(context.Background(), ImportLogsInput{Path: path, Replace: true})
	if err != nil {
		t.Fatalf("ImportLogs() error = %v", err)
	}
	if out.Calls != 0 || out.Tasks != 1 {
		t.Errorf("output = %+v", out)
	}
	if n, _ := env.calls.Count(context.Background()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
	tasks, _ := env.tasks.List(context.Background(), 0)
	if len(tasks) != 1 || tasks[0].Task != "" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestImportLogs_BadLinesWriteNothing(t *testing.T) {
	env := setup(t)
	path := writeImportFile(t, env, "bad.jsonl",
		testHeader,
		`{"kind":"task","task_log":{"timestamp":"2024-05-02T08:00:00.000Z","task":"ok"}}`,
		`{not json`,
		`{"kind":"mystery"}`,
		`{"kind":"call"}`,
		`{"kind":"task","task_log":{"timestamp":"yesterday","task":"x"}}`,
	)

	out, err := env.engine.ImportLogs(context.Background(), ImportLogsInput{Path: path})
	if err != nil {
		t.Fatalf("ImportLogs() error = %v", err)
	}
	if len(out.Errors) != 4 {
		t.Fatalf("errors = %+v, want 4", out.Errors)
	}
	wantLines := []int{3, 4, 5, 6}
	for i, e := range out.Errors {
		if e.Line != wantLines[i] {
			t.Errorf("error %d line = %d, want %d", i, e.Line, wantLines[i])
		}
	}
	if out.Errors[0].Code != "PARSE_ERROR" || out.Errors[1].Code != "INVALID_RECORD" {
		t.Errorf("codes = %s, %s", out.Errors[0].Code, out.Errors[1].Code)
	}
	if n, _ := env.tasks.Count(context.Background()); n != 0 {
		t.Errorf("tasks = %d, want nothing written", n)
	}
}

func TestImportLogs_RequiresHeader(t *testing.T) {
	env := setup(t)
	path := writeImportFile(t, env, "noheader.jsonl",
		`{"kind":"task","task_log":{"timestamp":"2024-05-02T08:00:00.000Z","task":"ok"}}`,
	)

	out, err := env.engine.ImportLogs(context.Background(), ImportLogsInput{Path: path})
	if err != nil {
		t.Fatalf("ImportLogs() error = %v", err)
	}
	if len(out.Errors) != 1 || out.Errors[0].Code != "INVALID_HEADER" {
		t.Errorf("errors = %+v", out.Errors)
	}
}

func TestImportLogs_FileNotFound(t *testing.T) {
	env := setup(t)

	_, err := env.engine.ImportLogs(context.Background(), ImportLogsInput{
		Path: filepath.Join(env.exportDir, "missing.jsonl"),
	})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestImportLogs_PathRequired(t *testing.T) {
	env := setup(t)

	_, err := env.engine.ImportLogs(context.Background(), ImportLogsInput{})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected VALIDATION, got %v", err)
	}
}

func TestImportLogs_RespectsCapacity(t *testing.T) {
	env := setup(t)
	lines := []string{testHeader}
	capacity := env.tasks.Capacity()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < capacity+5; i++ {
		ts := activity.FormatTime(base.Add(time.Duration(i) * time.Second))
		lines = append(lines, `{"kind":"task","task_log":{"timestamp":"`+ts+`","task":"t"}}`)
	}
	path := writeImportFile(t, env, "many.jsonl", lines...)

	if _, err := env.engine.ImportLogs(context.Background(), ImportLogsInput{Path: path}); err != nil {
		t.Fatalf("ImportLogs() error = %v", err)
	}
	if n, _ := env.tasks.Count(context.Background()); n != capacity {
		t.Errorf("tasks = %d, want capacity %d", n, capacity)
	}
}
