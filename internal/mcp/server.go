package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/objective/internal/config"
	"github.com/hpungsan/objective/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"judge_page": {
		def:     judgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJudge },
	},
	"debate_start": {
		def:     debateStartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDebateStart },
	},
	"debate_reply": {
		def:     debateReplyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDebateReply },
	},
	"debate_close": {
		def:     debateCloseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDebateClose },
	},
	"debate_argue": {
		def:     debateArgueToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDebateArgue },
	},
	"logs_list": {
		def:     logsListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLogsList },
	},
	"logs_clear": {
		def:     logsClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLogsClear },
	},
	"logs_export": {
		def:     logsExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLogsExport },
	},
	"logs_import": {
		def:     logsImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLogsImport },
	},
	"logs_tasks": {
		def:     logsTasksToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLogsTasks },
	},
	"logs_scoped": {
		def:     logsScopedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLogsScoped },
	},
	"logs_stats": {
		def:     logsStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLogsStats },
	},
	"task_set": {
		def:     taskSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskSet },
	},
	"task_cases": {
		def:     taskCasesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskCases },
	},
	"pause_set": {
		def:     pauseSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePauseSet },
	},
	"pause_clear": {
		def:     pauseClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePauseClear },
	},
	"settings_get": {
		def:     settingsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsGet },
	},
	"settings_update": {
		def:     settingsUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsUpdate },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server exposing the engine's operations.
// Tools listed in cfg.DisabledTools are not registered.
func NewServer(engine *ops.Engine, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"objective",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(engine)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves MCP over stdio until stdin closes.
func Run(engine *ops.Engine, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(engine, cfg, version))
}
