package logstore

import (
	"database/sql"

	"github.com/hpungsan/objective/internal/activity"
)

// APICalls is the log of completed model calls.
type APICalls = Store[activity.AICallLog]

// Tasks is the log of active-task changes.
type Tasks = Store[activity.TaskLog]

// NewAPICalls returns the model call log backed by the api_call_logs table.
func NewAPICalls(db *sql.DB, capacity int) *APICalls {
	return newStore(db, apiCallTable, capacity)
}

// NewTasks returns the task change log backed by the task_logs table.
func NewTasks(db *sql.DB, capacity int) *Tasks {
	return newStore(db, taskTable, capacity)
}

var apiCallTable = table[activity.AICallLog]{
	name: "api_call_logs",
	columns: []string{
		"timestamp", "model", "call_type", "prompt", "response",
		"input_tokens", "output_tokens", "duration_seconds",
	},
	values: func(l activity.AICallLog) []any {
		return []any{
			l.Timestamp, l.Model, l.Type, l.Prompt, l.Response,
			toNullInt64(l.InputTokens), toNullInt64(l.OutputTokens), l.DurationSeconds,
		}
	},
	scan: func(row scanner) (activity.AICallLog, error) {
		var (
			l            activity.AICallLog
			inputTokens  sql.NullInt64
			outputTokens sql.NullInt64
		)
		err := row.Scan(
			&l.Timestamp, &l.Model, &l.Type, &l.Prompt, &l.Response,
			&inputTokens, &outputTokens, &l.DurationSeconds,
		)
		if err != nil {
			return l, err
		}
		l.InputTokens = fromNullInt64(inputTokens)
		l.OutputTokens = fromNullInt64(outputTokens)
		return l, nil
	},
}

var taskTable = table[activity.TaskLog]{
	name:    "task_logs",
	columns: []string{"timestamp", "task"},
	values: func(l activity.TaskLog) []any {
		return []any{l.Timestamp, l.Task}
	},
	scan: func(row scanner) (activity.TaskLog, error) {
		var l activity.TaskLog
		err := row.Scan(&l.Timestamp, &l.Task)
		return l, err
	},
}

// toNullInt64 converts a *int64 to sql.NullInt64.
func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// fromNullInt64 converts a sql.NullInt64 to *int64.
func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
