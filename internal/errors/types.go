package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingFrontMatter = errors.New("missing front-matter")
	ErrYAMLParse          = errors.New("front-matter is not valid YAML")
	ErrStrayContent       = errors.New("stray content outside front-matter and bash blocks")
	ErrMissingBlockName   = errors.New("bash block missing name attribute")
	ErrDuplicateBlockName = errors.New("duplicate bash block name")
	ErrNoExecutableBlocks = errors.New("no bash blocks found")
	ErrSchemaViolation    = errors.New("front-matter violates schema")
	ErrSchemaUnavailable  = errors.New("schema unavailable")
	ErrFileNotFound       = errors.New("file not found")
	ErrRunnerUnavailable  = errors.New("container runtime unavailable")
	ErrContainerExecution = errors.New("container execution failed")
	ErrOutputsMissing     = errors.New("declared outputs missing")
	ErrCompileFailed      = errors.New("script compilation failed")
	ErrConfigInvalid      = errors.New("configuration invalid")
	ErrFileSystemFailed   = errors.New("filesystem operation failed")
	ErrValidationFailed   = errors.New("validation failed")
)

// SlashError is a classified failure with enough context for a user-facing
// diagnostic. Type is one of the sentinels above and errors.Is matches it.
type SlashError struct {
	Type        error
	Context     string
	Cause       string
	Suggestion  string
	OriginalErr error
}

func (e *SlashError) Error() string {
	if e.OriginalErr != nil {
		return e.OriginalErr.Error()
	}
	if e.Cause != "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Cause)
	}
	return e.Type.Error()
}

func (e *SlashError) Unwrap() error {
	return e.OriginalErr
}

func (e *SlashError) Is(target error) bool {
	return e.Type == target
}

func NewSlashError(errorType error, context, cause, suggestion string, originalErr error) *SlashError {
	return &SlashError{
		Type:        errorType,
		Context:     context,
		Cause:       cause,
		Suggestion:  suggestion,
		OriginalErr: originalErr,
	}
}

func NewParseError(errorType error, context, cause, suggestion string) *SlashError {
	return NewSlashError(errorType, context, cause, suggestion, nil)
}

func NewSchemaError(context, cause, suggestion string, originalErr error) *SlashError {
	return NewSlashError(ErrSchemaViolation, context, cause, suggestion, originalErr)
}

func NewFileNotFoundError(path string) *SlashError {
	return NewSlashError(ErrFileNotFound,
		fmt.Sprintf("Failed to open %s", path),
		"The file does not exist",
		"Check the path, it is resolved relative to the current directory",
		nil)
}

func NewRunnerUnavailableError(context, cause, suggestion string, originalErr error) *SlashError {
	return NewSlashError(ErrRunnerUnavailable, context, cause, suggestion, originalErr)
}

func NewCompileError(context, cause string, originalErr error) *SlashError {
	return NewSlashError(ErrCompileFailed, context, cause, "", originalErr)
}

func NewConfigError(context, cause, suggestion string, originalErr error) *SlashError {
	return NewSlashError(ErrConfigInvalid, context, cause, suggestion, originalErr)
}

func NewFileSystemError(context, cause, suggestion string, originalErr error) *SlashError {
	return NewSlashError(ErrFileSystemFailed, context, cause, suggestion, originalErr)
}

// ContainerExecutionError reports a non-zero exit from the container runtime.
type ContainerExecutionError struct {
	Command  string
	ExitCode int
	LogPath  string
}

func (e *ContainerExecutionError) Error() string {
	return fmt.Sprintf("/%s exited with code %d (log: %s)", e.Command, e.ExitCode, e.LogPath)
}

func (e *ContainerExecutionError) Is(target error) bool {
	return target == ErrContainerExecution
}

// OutputsMissingError lists every declared output that was absent after a
// successful container run.
type OutputsMissingError struct {
	Command string
	Paths   []string
}

func (e *OutputsMissingError) Error() string {
	return fmt.Sprintf("/%s did not produce declared outputs: %s", e.Command, strings.Join(e.Paths, ", "))
}

func (e *OutputsMissingError) Is(target error) bool {
	return target == ErrOutputsMissing
}

// ExitCode maps an error to a process exit status. Container failures
// propagate the child's own code so callers can tell a rejected document
// from a failing script.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var execErr *ContainerExecutionError
	if errors.As(err, &execErr) && execErr.ExitCode > 0 {
		return execErr.ExitCode
	}
	return 1
}
