package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

// maxImportLine bounds a single JSONL line. Call logs carry full prompts and
// responses, so this is well above bufio's default.
const maxImportLine = 16 * 1024 * 1024

// ImportLogsInput contains parameters for the ImportLogs operation.
type ImportLogsInput struct {
	Path    string `json:"path"`              // required
	Replace bool   `json:"replace,omitempty"` // clear both stores first
}

// ImportLogsOutput contains the result of the ImportLogs operation.
type ImportLogsOutput struct {
	Calls  int           `json:"calls"`
	Tasks  int           `json:"tasks"`
	Errors []ImportError `json:"errors"`
}

// ImportError describes a line of the import file that could not be used.
type ImportError struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportLogs loads an export file back into the log stores. The whole file
// is parsed before anything is written; any bad line aborts the import and
// is reported in Errors. Entries are appended in timestamp order, so the
// stores' capacity bounds still evict the oldest.
func (e *Engine) ImportLogs(ctx context.Context, input ImportLogsInput) (*ImportLogsOutput, error) {
	path := resolveExportPath(input.Path, e.exportDir)
	if err := ValidatePath(path, PathCheckRead, e.exportDir); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, parseErrors, err := parseExportFile(file)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(parseErrors) > 0 {
		return &ImportLogsOutput{Errors: parseErrors}, nil
	}

	sortRecords(records)
	var calls []activity.AICallLog
	var tasks []activity.TaskLog
	for _, r := range records {
		switch r.Kind {
		case RecordCall:
			calls = append(calls, *r.Call)
		case RecordTask:
			tasks = append(tasks, *r.TaskLog)
		}
	}

	if input.Replace {
		if err := e.calls.Clear(ctx); err != nil {
			return nil, err
		}
		if err := e.tasks.Clear(ctx); err != nil {
			return nil, err
		}
	}
	if err := e.calls.AppendBatch(ctx, calls); err != nil {
		return nil, err
	}
	if err := e.tasks.AppendBatch(ctx, tasks); err != nil {
		return nil, err
	}

	log.Info().
		Str("component", "ops").
		Str("path", path).
		Bool("replace", input.Replace).
		Int("calls", len(calls)).
		Int("tasks", len(tasks)).
		Msg("logs imported")

	return &ImportLogsOutput{
		Calls:  len(calls),
		Tasks:  len(tasks),
		Errors: []ImportError{},
	}, nil
}

// parseExportFile reads every record from r. Line errors are collected, not
// returned; the error return is for I/O failures only.
func parseExportFile(r io.Reader) ([]ExportRecord, []ImportError, error) {
	var records []ExportRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)

	lineNum := 0
	sawHeader := false
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if !sawHeader {
			var header ExportHeader
			if err := json.Unmarshal(line, &header); err != nil || !header.ObjectiveExport {
				parseErrors = append(parseErrors, ImportError{
					Line:    lineNum,
					Code:    "INVALID_HEADER",
					Message: "first line must be an export header",
				})
				return nil, parseErrors, nil
			}
			sawHeader = true
			continue
		}

		var record ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if msg := validateRecord(record); msg != "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: msg,
			})
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if !sawHeader {
		parseErrors = append(parseErrors, ImportError{
			Line:    0,
			Code:    "INVALID_HEADER",
			Message: "file is empty",
		})
	}
	return records, parseErrors, nil
}

func validateRecord(r ExportRecord) string {
	switch r.Kind {
	case RecordCall:
		if r.Call == nil {
			return "call record missing call field"
		}
	case RecordTask:
		if r.TaskLog == nil {
			return "task record missing task_log field"
		}
	default:
		return fmt.Sprintf("unknown record kind %q", r.Kind)
	}
	if _, err := activity.ParseTime(r.timestamp()); err != nil {
		return fmt.Sprintf("invalid timestamp %q", r.timestamp())
	}
	return ""
}
