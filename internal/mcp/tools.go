package mcp

import "github.com/mark3labs/mcp-go/mcp"

// pageSchema describes activity.PageContent for tool arguments.
var pageSchema = map[string]any{
	"url":         map[string]any{"type": "string", "description": "Page URL"},
	"title":       map[string]any{"type": "string", "description": "Page title"},
	"headers":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Visible headings"},
	"navigation":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Navigation link texts"},
	"mainContent": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Main content paragraphs"},
	"timestamp":   map[string]any{"type": "string", "description": "Capture time (ISO-8601)"},
}

var judgeToolDef = mcp.NewTool("judge_page",
	mcp.WithDescription("Ask the model whether a page fits the user's principles and current task. "+
		"Past accepted debates for the task are cited as precedent. An off-task verdict opens a debate and returns its id. "+
		"Fails with PAUSED while judgements are paused."),
	mcp.WithObject("page", mcp.Required(), mcp.Properties(pageSchema), mcp.Description("Captured page content")),
)

var debateStartToolDef = mcp.NewTool("debate_start",
	mcp.WithDescription("Open a debate from an existing off-task explanation."),
	mcp.WithString("explanation", mcp.Required(), mcp.Description("Why the page was judged off task")),
	mcp.WithObject("page", mcp.Required(), mcp.Properties(pageSchema), mcp.Description("Captured page content")),
)

var debateReplyToolDef = mcp.NewTool("debate_reply",
	mcp.WithDescription("Submit the user's justification in an open debate. Returns accepted/should_close and the transcript. "+
		"A resolved debate is closed after this call."),
	mcp.WithString("debate_id", mcp.Required(), mcp.Description("Debate id returned by judge_page or debate_start")),
	mcp.WithString("message", mcp.Required(), mcp.Description("The user's argument")),
)

var debateCloseToolDef = mcp.NewTool("debate_close",
	mcp.WithDescription("Close a debate the user declined to answer."),
	mcp.WithString("debate_id", mcp.Required(), mcp.Description("Debate id")),
)

var debateArgueToolDef = mcp.NewTool("debate_argue",
	mcp.WithDescription("Evaluate one justification without a server-side session. "+
		"Pass the earlier turns in history to continue a debate kept by the caller."),
	mcp.WithString("message", mcp.Required(), mcp.Description("The user's argument")),
	mcp.WithObject("page", mcp.Required(), mcp.Properties(pageSchema), mcp.Description("Captured page content")),
	mcp.WithArray("history", mcp.Description("Earlier turns, oldest first"), mcp.Items(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"role":    map[string]any{"type": "string", "enum": []string{"AI", "user"}},
			"content": map[string]any{"type": "string"},
		},
		"required": []string{"role", "content"},
	})),
)

var logsListToolDef = mcp.NewTool("logs_list",
	mcp.WithDescription("List recent model calls, newest first, with token totals."),
	mcp.WithNumber("limit", mcp.Description("Max entries (default 100, max log capacity)")),
)

var logsClearToolDef = mcp.NewTool("logs_clear",
	mcp.WithDescription("Delete the model call log. With include_tasks, also delete the task history."),
	mcp.WithBoolean("include_tasks", mcp.Description("Also clear task changes (resets mined cases)")),
)

var logsExportToolDef = mcp.NewTool("logs_export",
	mcp.WithDescription("Write the call and task logs to a JSONL file in the export directory."),
	mcp.WithString("path", mcp.Description("Output .jsonl path directly inside the export directory (default: logs-<timestamp>.jsonl)")),
)

var logsImportToolDef = mcp.NewTool("logs_import",
	mcp.WithDescription("Load a JSONL log export. Nothing is written if any line is invalid; the bad lines are returned."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to a .jsonl export inside the export directory")),
	mcp.WithBoolean("replace", mcp.Description("Clear both logs before importing")),
)

var logsTasksToolDef = mcp.NewTool("logs_tasks",
	mcp.WithDescription("List recent task changes, newest first."),
	mcp.WithNumber("limit", mcp.Description("Max entries (default 100)")),
)

var logsScopedToolDef = mcp.NewTool("logs_scoped",
	mcp.WithDescription("List the model calls made while a task was active."),
	mcp.WithString("task", mcp.Description("Task text (default: the current task)")),
)

var logsStatsToolDef = mcp.NewTool("logs_stats",
	mcp.WithDescription("Token usage overall and for the current task."),
)

var taskSetToolDef = mcp.NewTool("task_set",
	mcp.WithDescription("Set the active task. An empty task clears it. Only real changes are logged."),
	mcp.WithString("task", mcp.Description("Task text")),
)

var taskCasesToolDef = mcp.NewTool("task_cases",
	mcp.WithDescription("Show the accepted debates that are cited as precedent for a task."),
	mcp.WithString("task", mcp.Description("Task text (default: the current task)")),
)

var pauseSetToolDef = mcp.NewTool("pause_set",
	mcp.WithDescription("Pause judgements. Without minutes the pause lasts a year."),
	mcp.WithNumber("minutes", mcp.Description("Pause length in minutes")),
)

var pauseClearToolDef = mcp.NewTool("pause_clear",
	mcp.WithDescription("Resume judgements."),
)

var settingsGetToolDef = mcp.NewTool("settings_get",
	mcp.WithDescription("Show the preferences record."),
)

var settingsUpdateToolDef = mcp.NewTool("settings_update",
	mcp.WithDescription("Update preferences. Omitted fields are unchanged."),
	mcp.WithString("principles", mcp.Description("Browsing principles")),
	mcp.WithString("currentTask", mcp.Description("Active task")),
	mcp.WithString("provider", mcp.Enum("cloud", "local"), mcp.Description("Model provider")),
	mcp.WithString("localModel", mcp.Description("Ollama model name")),
	mcp.WithString("judgementPolicy", mcp.Enum("pageLoad", "interval", "manual"), mcp.Description("When judgements run")),
	mcp.WithNumber("judgementIntervalMs", mcp.Description("Interval period in ms (min 1000)")),
	mcp.WithString("debateBehaviour", mcp.Enum("oneRound", "multiRound"), mcp.Description("Debate rounds")),
	mcp.WithBoolean("disableOnLoad", mcp.Description("Skip page-load judgements")),
)
