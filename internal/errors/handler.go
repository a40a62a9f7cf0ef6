package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"slashc/internal/ui"
)

const (
	// LogFileName is the structured error log kept next to the per-command logs.
	LogFileName = "slashc.log"

	maxLogSizeBytes = 10 * 1024 * 1024
	maxLogFiles     = 5
)

type ErrorHandler struct {
	logger  *slog.Logger
	console *ui.Console
	closer  io.Closer
}

// NewErrorHandler creates a handler that appends JSON records to
// <logDir>/slashc.log. An empty logDir falls back to the current directory.
func NewErrorHandler(logDir string) (*ErrorHandler, error) {
	logFile, err := createLogFile(logDir)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &ErrorHandler{
		logger:  logger,
		console: ui.NewConsole(),
		closer:  logFile,
	}, nil
}

// NewErrorHandlerWithConsole is NewErrorHandler with a caller-supplied console.
func NewErrorHandlerWithConsole(logDir string, console *ui.Console) (*ErrorHandler, error) {
	h, err := NewErrorHandler(logDir)
	if err != nil {
		return nil, err
	}
	h.console = console
	return h, nil
}

func newConsoleOnlyHandler() *ErrorHandler {
	return &ErrorHandler{
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		console: ui.NewConsole(),
	}
}

// Close releases the log file.
func (h *ErrorHandler) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

func resolveLogDir(logDir string) (string, error) {
	if logDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot determine current directory for logging: %w", err)
		}
		return wd, nil
	}
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}
	return logDir, nil
}

// rotateLogFile shifts slashc.log -> .1 -> .2 ... dropping the oldest.
func rotateLogFile(logPath string) error {
	oldest := fmt.Sprintf("%s.%d", logPath, maxLogFiles)
	if _, err := os.Stat(oldest); err == nil {
		if err := os.Remove(oldest); err != nil {
			slog.Warn("Failed to remove old log file", "path", oldest, "error", err)
		}
	}

	for i := maxLogFiles - 1; i > 0; i-- {
		from := fmt.Sprintf("%s.%d", logPath, i)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		to := fmt.Sprintf("%s.%d", logPath, i+1)
		if err := os.Rename(from, to); err != nil {
			slog.Warn("Failed to rotate log file", "old", from, "new", to, "error", err)
		}
	}

	if _, err := os.Stat(logPath); err == nil {
		return os.Rename(logPath, logPath+".1")
	}
	return nil
}

func checkLogRotation(logPath string) error {
	info, err := os.Stat(logPath)
	if err != nil {
		return nil
	}
	if info.Size() >= maxLogSizeBytes {
		return rotateLogFile(logPath)
	}
	return nil
}

func createLogFile(logDir string) (*os.File, error) {
	dir, err := resolveLogDir(logDir)
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(dir, LogFileName)
	if err := checkLogRotation(logPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to rotate log file: %v\n", err)
	}

	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

func (h *ErrorHandler) Handle(err error) {
	if err == nil {
		return
	}

	var slashErr *SlashError
	var execErr *ContainerExecutionError
	var missingErr *OutputsMissingError

	switch {
	case errors.As(err, &execErr):
		h.handleContainerError(execErr)
	case errors.As(err, &missingErr):
		h.handleOutputsMissing(missingErr)
	case errors.As(err, &slashErr):
		h.handleSlashError(slashErr)
	default:
		h.handleGenericError(err)
	}
}

func (h *ErrorHandler) handleSlashError(err *SlashError) {
	h.logStructuredError(err)

	message := h.console.FormatErrorMessage(err.Context, err.Cause, err.Suggestion)
	if message == "" {
		message = err.Error()
	}
	h.console.PrintError(message)
}

func (h *ErrorHandler) handleContainerError(err *ContainerExecutionError) {
	h.logger.Error("Container execution failed",
		"type", getErrorTypeName(ErrContainerExecution),
		"command", err.Command,
		"exit_code", err.ExitCode,
		"log_path", err.LogPath,
	)

	h.console.PrintError(h.console.FormatErrorMessage(
		fmt.Sprintf("Container run failed for /%s", err.Command),
		fmt.Sprintf("Exit code: %d", err.ExitCode),
		fmt.Sprintf("Check logs at %s for details", err.LogPath),
	))
}

func (h *ErrorHandler) handleOutputsMissing(err *OutputsMissingError) {
	h.logger.Error("Declared outputs missing",
		"type", getErrorTypeName(ErrOutputsMissing),
		"command", err.Command,
		"paths", err.Paths,
	)

	h.console.PrintError(h.console.FormatErrorMessage(
		fmt.Sprintf("One or more declared outputs are missing for /%s", err.Command),
		"Missing: "+strings.Join(err.Paths, ", "),
		"Write outputs under the /out mount or adjust the outputs list",
	))
}

func (h *ErrorHandler) handleGenericError(err error) {
	h.logger.Error("Unhandled error occurred",
		"error", err.Error(),
		"type", "generic",
	)

	h.console.PrintError(err.Error())
}

func (h *ErrorHandler) logStructuredError(err *SlashError) {
	logAttrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.String("type", getErrorTypeName(err.Type)),
		slog.String("context", err.Context),
	}

	if err.Cause != "" {
		logAttrs = append(logAttrs, slog.String("cause", err.Cause))
	}

	if err.Suggestion != "" {
		logAttrs = append(logAttrs, slog.String("suggestion", err.Suggestion))
	}

	h.logger.LogAttrs(context.TODO(), slog.LevelError, "slashc error occurred", logAttrs...)
}

func getErrorTypeName(errType error) string {
	switch errType {
	case ErrMissingFrontMatter:
		return "missing_front_matter"
	case ErrYAMLParse:
		return "yaml_parse_error"
	case ErrStrayContent:
		return "stray_content"
	case ErrMissingBlockName:
		return "missing_block_name"
	case ErrDuplicateBlockName:
		return "duplicate_block_name"
	case ErrNoExecutableBlocks:
		return "no_executable_blocks"
	case ErrSchemaViolation:
		return "schema_violation"
	case ErrSchemaUnavailable:
		return "schema_unavailable"
	case ErrFileNotFound:
		return "file_not_found"
	case ErrRunnerUnavailable:
		return "runner_unavailable"
	case ErrContainerExecution:
		return "container_execution_error"
	case ErrOutputsMissing:
		return "outputs_missing"
	case ErrCompileFailed:
		return "compile_failed"
	case ErrConfigInvalid:
		return "config_invalid"
	case ErrFileSystemFailed:
		return "filesystem_failed"
	case ErrValidationFailed:
		return "validation_failed"
	default:
		return "unknown"
	}
}
