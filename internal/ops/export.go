package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

// ExportSchemaVersion is written to the header of every export file.
const ExportSchemaVersion = "1.0"

// Export record kinds.
const (
	RecordCall = "call"
	RecordTask = "task"
)

// ExportLogsInput contains parameters for the ExportLogs operation.
type ExportLogsInput struct {
	Path string `json:"path,omitempty"` // default: <exportDir>/logs-<timestamp>.jsonl
}

// ExportLogsOutput contains the result of the ExportLogs operation.
type ExportLogsOutput struct {
	Path       string `json:"path"`
	Calls      int    `json:"calls"`
	Tasks      int    `json:"tasks"`
	ExportedAt string `json:"exported_at"`
}

// ExportHeader represents the header line in a JSONL export file.
type ExportHeader struct {
	ObjectiveExport bool   `json:"_objective_export"`
	SchemaVersion   string `json:"schema_version"`
	ExportedAt      string `json:"exported_at"`
}

// ExportRecord is one log entry in an export file. Exactly one of Call and
// TaskLog is set, matching Kind.
type ExportRecord struct {
	Kind    string              `json:"kind"`
	Call    *activity.AICallLog `json:"call,omitempty"`
	TaskLog *activity.TaskLog   `json:"task_log,omitempty"`
}

func (r ExportRecord) timestamp() string {
	switch {
	case r.Call != nil:
		return r.Call.Timestamp
	case r.TaskLog != nil:
		return r.TaskLog.Timestamp
	}
	return ""
}

// ExportLogs writes every retained call and task log to a JSONL file,
// oldest first, with calls before tasks.
func (e *Engine) ExportLogs(ctx context.Context, input ExportLogsInput) (*ExportLogsOutput, error) {
	now := e.now()
	exportedAt := activity.FormatTime(now)

	exportPath := resolveExportPath(input.Path, e.exportDir)
	if exportPath == "" {
		if e.exportDir == "" {
			return nil, errors.NewConfig("no export directory is configured")
		}
		exportPath = filepath.Join(e.exportDir, "logs-"+now.UTC().Format("2006-01-02T150405")+".jsonl")
	}

	// MkdirAll first so a fresh exportDir passes the parent check
	if e.exportDir != "" {
		if err := os.MkdirAll(e.exportDir, 0700); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
		}
	}
	if err := ValidatePath(exportPath, PathCheckWrite, e.exportDir); err != nil {
		return nil, err
	}

	calls, err := e.calls.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	tasks, err := e.tasks.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	// Stores list newest first
	slices.Reverse(calls)
	slices.Reverse(tasks)

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(ExportHeader{
		ObjectiveExport: true,
		SchemaVersion:   ExportSchemaVersion,
		ExportedAt:      exportedAt,
	}); err != nil {
		return nil, errors.NewInternal(err)
	}

	for i := range calls {
		if err := enc.Encode(ExportRecord{Kind: RecordCall, Call: &calls[i]}); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	for i := range tasks {
		if err := enc.Encode(ExportRecord{Kind: RecordTask, TaskLog: &tasks[i]}); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewValidation("export path is a symlink")
	}

	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewValidation("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}
	success = true

	log.Info().
		Str("component", "ops").
		Str("path", exportPath).
		Int("calls", len(calls)).
		Int("tasks", len(tasks)).
		Msg("logs exported")

	return &ExportLogsOutput{
		Path:       exportPath,
		Calls:      len(calls),
		Tasks:      len(tasks),
		ExportedAt: exportedAt,
	}, nil
}

// sortRecords orders records oldest first. Records with unparseable
// timestamps keep their file order relative to each other.
func sortRecords(records []ExportRecord) {
	key := func(r ExportRecord) time.Time {
		t, err := activity.ParseTime(r.timestamp())
		if err != nil {
			return time.Time{}
		}
		return t
	}
	slices.SortStableFunc(records, func(a, b ExportRecord) int {
		return key(a).Compare(key(b))
	})
}
