package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/ops"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
)

func checkFormat(f string) error {
	switch strings.ToLower(f) {
	case "", formatTable, formatJSON:
		return nil
	}
	return fmt.Errorf("unsupported format: %s", f)
}

func isJSON(f string) bool {
	return strings.ToLower(f) == formatJSON
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	return tw
}

// writeCallsTable renders model calls with a totals footer.
func writeCallsTable(w io.Writer, items []activity.AICallLog, totals activity.LogTotals) {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 7, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
	})
	tw.AppendHeader(table.Row{"Timestamp", "Type", "Model", "In", "Out", "Secs", "Response"})

	for _, l := range items {
		tw.AppendRow(table.Row{
			l.Timestamp,
			l.Type,
			l.Model,
			tokens(l.InputTokens),
			tokens(l.OutputTokens),
			fmt.Sprintf("%.2f", l.DurationSeconds),
			oneLine(l.Response),
		})
	}
	if len(items) == 0 {
		tw.AppendRow(table.Row{"-", "(no calls)", "-", "-", "-", "-", "-"})
	}

	tw.AppendFooter(table.Row{"Total", fmt.Sprintf("%d calls", totals.Calls), "", totals.InputTokens, totals.OutputTokens, "", ""})
	tw.Render()
}

// writeTasksTable renders task changes.
func writeTasksTable(w io.Writer, items []activity.TaskLog) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Timestamp", "Task"})
	for _, l := range items {
		task := l.Task
		if task == "" {
			task = "(cleared)"
		}
		tw.AppendRow(table.Row{l.Timestamp, task})
	}
	if len(items) == 0 {
		tw.AppendRow(table.Row{"-", "(no task changes)"})
	}
	tw.Render()
}

// writeStatsTable renders token usage overall and for the current task.
func writeStatsTable(w io.Writer, s *ops.StatsOutput) {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	tw.AppendHeader(table.Row{"Scope", "Calls", "Input tokens", "Output tokens"})
	tw.AppendRow(table.Row{"All", s.All.Calls, s.All.InputTokens, s.All.OutputTokens})

	current := s.CurrentTask
	if current == "" {
		current = "(no task)"
	}
	tw.AppendRow(table.Row{"Task: " + current, s.Task.Calls, s.Task.InputTokens, s.Task.OutputTokens})
	tw.AppendFooter(table.Row{"Task changes", s.TaskChanges, "Open debates", s.OpenDebates})
	tw.Render()
}

func tokens(n *int64) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *n)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
