// Package taskwindow derives the intervals during which a task was active
// and selects the model calls made inside them.
package taskwindow

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

// Epoch is a closed interval [Start, End] during which a task was active.
type Epoch struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in the epoch, inclusive on both ends.
func (e Epoch) Contains(t time.Time) bool {
	return !t.Before(e.Start) && !t.After(e.End)
}

// LogSource lists stored logs, most recent first.
type LogSource[T any] interface {
	List(ctx context.Context, limit int) ([]T, error)
}

// Resolver filters model call logs down to those made while a task was active.
type Resolver struct {
	tasks LogSource[activity.TaskLog]
	calls LogSource[activity.AICallLog]
	now   func() time.Time
}

// New creates a Resolver over the given log sources.
func New(tasks LogSource[activity.TaskLog], calls LogSource[activity.AICallLog]) *Resolver {
	return &Resolver{tasks: tasks, calls: calls, now: time.Now}
}

// Resolve returns every call log whose timestamp falls inside an epoch of
// task, in storage order. An empty task has no active window and yields an
// empty result without touching storage.
func (r *Resolver) Resolve(ctx context.Context, task string) ([]activity.AICallLog, error) {
	out := make([]activity.AICallLog, 0)
	if task == "" {
		return out, nil
	}

	taskLogs, err := r.tasks.List(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "resolve task window", map[string]any{"task": task})
	}
	// Storage lists newest first; Epochs wants chronological order for ties
	chrono := slices.Clone(taskLogs)
	slices.Reverse(chrono)
	epochs := Epochs(chrono, task, r.now())
	if len(epochs) == 0 {
		return out, nil
	}

	calls, err := r.calls.List(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "resolve task window", map[string]any{"task": task})
	}

	for _, c := range calls {
		ts, err := activity.ParseTime(c.Timestamp)
		if err != nil {
			log.Debug().Str("timestamp", c.Timestamp).Msg("skipping call log with unparseable timestamp")
			continue
		}
		if inAny(epochs, ts) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Epochs derives the active intervals of task from task change logs.
// Logs are sorted chronologically first; logs sharing a timestamp keep their
// input position, so callers pass them oldest first. Every log is an epoch
// boundary but only logs naming task open an epoch, which runs to the next
// log's timestamp or to now for the latest one. Consecutive identical tasks
// are not coalesced.
func Epochs(logs []activity.TaskLog, task string, now time.Time) []Epoch {
	type change struct {
		at   time.Time
		task string
	}

	changes := make([]change, 0, len(logs))
	for _, l := range logs {
		ts, err := activity.ParseTime(l.Timestamp)
		if err != nil {
			log.Debug().Str("timestamp", l.Timestamp).Msg("skipping task log with unparseable timestamp")
			continue
		}
		changes = append(changes, change{at: ts, task: l.Task})
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].at.Before(changes[j].at)
	})

	var epochs []Epoch
	for i, c := range changes {
		if c.task != task {
			continue
		}
		end := now
		if i+1 < len(changes) {
			end = changes[i+1].at
		}
		epochs = append(epochs, Epoch{Start: c.at, End: end})
	}
	return epochs
}

func inAny(epochs []Epoch, t time.Time) bool {
	for _, e := range epochs {
		if e.Contains(t) {
			return true
		}
	}
	return false
}
