package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/config"
	"github.com/hpungsan/objective/internal/credential"
	"github.com/hpungsan/objective/internal/db"
	"github.com/hpungsan/objective/internal/gateway"
	"github.com/hpungsan/objective/internal/logstore"
	"github.com/hpungsan/objective/internal/mcp"
	"github.com/hpungsan/objective/internal/notify"
	"github.com/hpungsan/objective/internal/ops"
	"github.com/hpungsan/objective/internal/settings"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"judge": true, "argue": true, "logs": true, "tasks": true,
	"task": true, "pause": true, "resume": true, "cases": true,
	"stats": true, "settings": true, "key": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  _     _           _   _
  / _ \| |__ (_) ___  ___| |_(_)_   _____
 | | | | '_ \| |/ _ \/ __| __| \ \ / / _ \
 | |_| | |_) | |  __/ (__| |_| |\ V /  __/
  \___/|_.__// |\___|\___|\__|_| \_/ \___|
           |__/

  Keeps your browsing on task

  Usage: objective <command> [options]
         objective --help

  MCP server mode requires piped input.`)
}

// setupLogging configures the global logger from OBJECTIVE_LOG_LEVEL and
// OBJECTIVE_LOG_FORMAT. Logs go to stderr; stdout carries MCP frames and
// command output.
func setupLogging() {
	level, err := zerolog.ParseLevel(os.Getenv("OBJECTIVE_LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("OBJECTIVE_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// app holds the wired components shared by every entry mode.
type app struct {
	db       *sql.DB
	cfg      *config.Config
	settings *settings.Store
	calls    *logstore.APICalls
	tasks    *logstore.Tasks
	creds    *credential.Store
	hub      *notify.Hub
	engine   *ops.Engine
}

// openApp initializes storage under baseDir and wires the engine.
func openApp(baseDir string) (*app, error) {
	cfg, err := config.Load(baseDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	calls := logstore.NewAPICalls(database, cfg.LogCapacity)
	tasks := logstore.NewTasks(database, cfg.LogCapacity)

	store, err := settings.Open(baseDir, tasks)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("open settings: %w", err)
	}

	creds := credential.New()
	hub := notify.NewHub()

	gw := gateway.New(gateway.Options{
		Config:      cfg,
		Settings:    store,
		Credentials: creds,
		Logs:        calls,
		Notifier:    hub,
	})

	engine := ops.New(ops.Deps{
		Settings:  store,
		Calls:     calls,
		Tasks:     tasks,
		Gateway:   gw,
		Notifier:  hub,
		ExportDir: cfg.ExportPath(baseDir),
	})

	return &app{
		db:       database,
		cfg:      cfg,
		settings: store,
		calls:    calls,
		tasks:    tasks,
		creds:    creds,
		hub:      hub,
		engine:   engine,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func main() {
	setupLogging()

	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine data directory: %v\n", err)
		os.Exit(1)
	}

	a, err := openApp(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if unknown := mcp.ValidateDisabledTools(a.cfg.DisabledTools); len(unknown) > 0 {
		log.Warn().Strs("tools", unknown).Msg("config disables unknown tools")
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		if err := newCLIApp(a).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			a.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'objective --help' for usage.\n")
		a.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(a.engine, a.cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		a.Close()
		os.Exit(1)
	}
}
