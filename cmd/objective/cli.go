package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/ops"
	"github.com/hpungsan/objective/internal/settings"
)

// newCLIApp creates the CLI application with all commands. a may be nil
// when only help or version output is needed.
func newCLIApp(a *app) *cli.App {
	cliApp := &cli.App{
		Name:    "objective",
		Usage:   "Judge browsing against your principles and current task",
		Version: Version,
		Commands: []*cli.Command{
			judgeCmd(a),
			argueCmd(a),
			logsCmd(a),
			tasksCmd(a),
			taskCmd(a),
			pauseCmd(a),
			resumeCmd(a),
			casesCmd(a),
			statsCmd(a),
			settingsCmd(a),
			keyCmd(a),
			serveCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: formatTable, Usage: "Output format: table|json"}
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "url", Usage: "Page URL (page JSON is read from stdin when unset)"},
		&cli.StringFlag{Name: "title", Usage: "Page title"},
		&cli.StringSliceFlag{Name: "content", Usage: "Main content paragraph (repeatable)"},
	}
}

// judgeCmd creates the judge command.
func judgeCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "judge",
		Usage: "Judge a page (page JSON on stdin, or --url/--title)",
		Flags: pageFlags(),
		Action: func(c *cli.Context) error {
			page, err := readPage(c)
			if err != nil {
				return outputError(err)
			}

			output, err := a.engine.JudgeManual(c.Context, ops.JudgeInput{Page: page})
			if err != nil {
				return outputError(err)
			}
			return writeJSON(c.App.Writer, output)
		},
	}
}

// argueCmd creates the argue command.
func argueCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "argue",
		Usage:     "Argue for a page without a debate session",
		ArgsUsage: "<message>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "history", Usage: "JSON file with earlier turns ([{role, content}])"},
		}, pageFlags()...),
		Action: func(c *cli.Context) error {
			message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if message == "" {
				return outputError(errors.NewValidation("message is required"))
			}

			page, err := readPage(c)
			if err != nil {
				return outputError(err)
			}

			input := ops.ArgueInput{Message: message, Page: page}
			if path := c.String("history"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return outputError(errors.NewValidation(fmt.Sprintf("read history: %v", err)))
				}
				if err := json.Unmarshal(data, &input.History); err != nil {
					return outputError(errors.NewValidation(fmt.Sprintf("parse history: %v", err)))
				}
			}

			output, err := a.engine.Argue(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return writeJSON(c.App.Writer, output)
		},
	}
}

// logsCmd creates the logs command and its subcommands.
func logsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "List recent model calls",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultLogLimit, Usage: "Max entries"},
			formatFlag(),
		},
		Action: func(c *cli.Context) error {
			if err := checkFormat(c.String("format")); err != nil {
				return outputError(errors.NewValidation(err.Error()))
			}

			output, err := a.engine.ListLogs(c.Context, ops.ListLogsInput{Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}
			if isJSON(c.String("format")) {
				return writeJSON(c.App.Writer, output)
			}
			writeCallsTable(c.App.Writer, output.Items, output.Totals)
			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Delete the model call log",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "include-tasks", Usage: "Also delete the task history"},
				},
				Action: func(c *cli.Context) error {
					output, err := a.engine.ClearLogs(c.Context, ops.ClearLogsInput{IncludeTasks: c.Bool("include-tasks")})
					if err != nil {
						return outputError(err)
					}
					return writeJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "export",
				Usage:     "Write both logs to a JSONL file in the export directory",
				ArgsUsage: "[file.jsonl]",
				Action: func(c *cli.Context) error {
					output, err := a.engine.ExportLogs(c.Context, ops.ExportLogsInput{Path: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return writeJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "import",
				Usage:     "Load a JSONL log export",
				ArgsUsage: "<file.jsonl>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "replace", Usage: "Clear both logs before importing"},
				},
				Action: func(c *cli.Context) error {
					output, err := a.engine.ImportLogs(c.Context, ops.ImportLogsInput{
						Path:    c.Args().First(),
						Replace: c.Bool("replace"),
					})
					if err != nil {
						return outputError(err)
					}
					if err := writeJSON(c.App.Writer, output); err != nil {
						return err
					}
					if len(output.Errors) > 0 {
						return cli.Exit(fmt.Sprintf("import aborted: %d invalid lines", len(output.Errors)), 1)
					}
					return nil
				},
			},
			{
				Name:  "scoped",
				Usage: "List model calls made while a task was active",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "task", Aliases: []string{"t"}, Usage: "Task text (default: the current task)"},
					formatFlag(),
				},
				Action: func(c *cli.Context) error {
					if err := checkFormat(c.String("format")); err != nil {
						return outputError(errors.NewValidation(err.Error()))
					}

					output, err := a.engine.TaskScopedLogs(c.Context, ops.TaskScopedLogsInput{Task: optionalString(c, "task")})
					if err != nil {
						return outputError(err)
					}
					if isJSON(c.String("format")) {
						return writeJSON(c.App.Writer, output)
					}
					writeCallsTable(c.App.Writer, output.Items, output.Totals)
					return nil
				},
			},
		},
	}
}

// tasksCmd creates the tasks command.
func tasksCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "List recent task changes",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultLogLimit, Usage: "Max entries"},
			formatFlag(),
		},
		Action: func(c *cli.Context) error {
			if err := checkFormat(c.String("format")); err != nil {
				return outputError(errors.NewValidation(err.Error()))
			}

			output, err := a.engine.ListTaskLogs(c.Context, ops.ListTaskLogsInput{Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}
			if isJSON(c.String("format")) {
				return writeJSON(c.App.Writer, output)
			}
			writeTasksTable(c.App.Writer, output.Items)
			return nil
		},
	}
}

// taskCmd creates the task command.
func taskCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "task",
		Usage:     "Show or set the active task",
		ArgsUsage: "[task]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "Clear the active task"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 && !c.Bool("clear") {
				out, err := a.engine.GetSettings(c.Context)
				if err != nil {
					return outputError(err)
				}
				_, err = fmt.Fprintln(c.App.Writer, out.Settings.CurrentTask)
				return err
			}

			output, err := a.engine.SetTask(c.Context, ops.SetTaskInput{Task: strings.Join(c.Args().Slice(), " ")})
			if err != nil {
				return outputError(err)
			}
			return writeJSON(c.App.Writer, output)
		},
	}
}

// pauseCmd creates the pause command.
func pauseCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "pause",
		Usage: "Pause judgements",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "for", Usage: "Pause length, e.g. 30m (default: a year)"},
		},
		Action: func(c *cli.Context) error {
			d := c.Duration("for")
			if d < 0 {
				return outputError(errors.NewValidation("pause length must not be negative"))
			}

			output, err := a.engine.Pause(c.Context, ops.PauseInput{Duration: d})
			if err != nil {
				return outputError(err)
			}
			return writeJSON(c.App.Writer, output)
		},
	}
}

// resumeCmd creates the resume command.
func resumeCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Resume judgements",
		Action: func(c *cli.Context) error {
			output, err := a.engine.Resume(c.Context)
			if err != nil {
				return outputError(err)
			}
			return writeJSON(c.App.Writer, output)
		},
	}
}

// casesCmd creates the cases command.
func casesCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "cases",
		Usage: "Show accepted debates cited as precedent for a task",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "task", Aliases: []string{"t"}, Usage: "Task text (default: the current task)"},
		},
		Action: func(c *cli.Context) error {
			output, err := a.engine.Cases(c.Context, ops.CasesInput{Task: optionalString(c, "task")})
			if err != nil {
				return outputError(err)
			}
			return writeJSON(c.App.Writer, output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Token usage overall and for the current task",
		Flags: []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			if err := checkFormat(c.String("format")); err != nil {
				return outputError(errors.NewValidation(err.Error()))
			}

			output, err := a.engine.Stats(c.Context)
			if err != nil {
				return outputError(err)
			}
			if isJSON(c.String("format")) {
				return writeJSON(c.App.Writer, output)
			}
			writeStatsTable(c.App.Writer, output)
			return nil
		},
	}
}

// settingsCmd creates the settings command. Without flags it prints the
// record; each set flag becomes part of one update.
func settingsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or update preferences",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "principles", Usage: "Browsing principles"},
			&cli.StringFlag{Name: "provider", Usage: "Model provider: cloud|local"},
			&cli.StringFlag{Name: "local-model", Usage: "Ollama model name"},
			&cli.StringFlag{Name: "policy", Usage: "Judgement policy: pageLoad|interval|manual"},
			&cli.DurationFlag{Name: "interval", Usage: "Interval period, e.g. 4m"},
			&cli.StringFlag{Name: "debate", Usage: "Debate behaviour: oneRound|multiRound"},
			&cli.BoolFlag{Name: "disable-on-load", Usage: "Skip page-load judgements"},
		},
		Action: func(c *cli.Context) error {
			var patch settings.Patch
			patch.Principles = optionalString(c, "principles")
			patch.Provider = optionalString(c, "provider")
			patch.LocalModel = optionalString(c, "local-model")
			patch.JudgementPolicy = optionalString(c, "policy")
			patch.DebateBehaviour = optionalString(c, "debate")
			if c.IsSet("interval") {
				ms := int(c.Duration("interval") / time.Millisecond)
				patch.JudgementIntervalMs = &ms
			}
			if c.IsSet("disable-on-load") {
				v := c.Bool("disable-on-load")
				patch.DisableOnLoad = &v
			}

			var (
				output *ops.GetSettingsOutput
				err    error
			)
			if c.NumFlags() == 0 {
				output, err = a.engine.GetSettings(c.Context)
			} else {
				output, err = a.engine.UpdateSettings(c.Context, patch)
			}
			if err != nil {
				return outputError(err)
			}
			return writeJSON(c.App.Writer, output)
		},
	}
}

// keyCmd manages the Anthropic API key in the OS keychain.
func keyCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "Manage the Anthropic API key",
		Subcommands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Store the key (reads it from stdin)",
				Action: func(c *cli.Context) error {
					if !stdinHasData() {
						return outputError(errors.NewValidation("api key must be piped via stdin"))
					}
					key, err := readStdin()
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					if err := a.creds.SetAnthropicKey(key); err != nil {
						return outputError(err)
					}
					_, err = fmt.Fprintln(c.App.Writer, "api key stored")
					return err
				},
			},
			{
				Name:  "delete",
				Usage: "Remove the key from the keychain",
				Action: func(c *cli.Context) error {
					if err := a.creds.DeleteAnthropicKey(); err != nil {
						return outputError(err)
					}
					_, err := fmt.Fprintln(c.App.Writer, "api key deleted")
					return err
				},
			},
			{
				Name:  "status",
				Usage: "Report whether a key is available",
				Action: func(c *cli.Context) error {
					key, err := a.creds.AnthropicKey()
					if err != nil {
						return outputError(err)
					}
					return writeJSON(c.App.Writer, map[string]bool{"configured": key != ""})
				},
			},
		},
	}
}

// serveCmd runs the HTTP API, the settings watcher and the trigger.
func serveCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API for the browser extension",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if addr := c.String("addr"); addr != "" {
				a.cfg.HTTPAddr = addr
			}
			if err := serve(c.Context, a); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputError formats error for CLI.
func outputError(err error) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return cli.Exit(fmt.Sprintf("[%s] %s", e.Code, e.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// optionalString returns the flag value when it was set on the command line.
func optionalString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

// readPage reads a page from piped JSON, or builds one from flags.
func readPage(c *cli.Context) (activity.PageContent, error) {
	var page activity.PageContent
	if c.String("url") == "" && stdinHasData() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return page, errors.NewInternal(err)
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return page, errors.NewValidation(fmt.Sprintf("page JSON: %v", err))
		}
		return page, nil
	}

	page.URL = c.String("url")
	page.Title = c.String("title")
	page.MainContent = c.StringSlice("content")
	page.Timestamp = activity.FormatTime(time.Now())
	return page, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
