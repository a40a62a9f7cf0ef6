// Package runner executes a compiled command script inside a container and
// verifies the outputs it declared.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	slasherrors "slashc/internal/errors"
	"slashc/internal/workspace"
	"slashc/pkg/runtime"
)

// Layout is the host and container directory layout of a run. Host paths
// must be absolute.
type Layout struct {
	// WorkDir is the host working directory outputs are first resolved against.
	WorkDir    string
	SourceRoot string
	OutputDir  string
	LogDir     string

	SourceMount string
	OutputMount string
	ScriptMount string
	Shell       string
}

// Job is one compiled command ready to run.
type Job struct {
	Name       string
	Image      string
	ScriptPath string
	Outputs    []string
	// ContainerName is optional.
	ContainerName string
}

// Result describes a successful run.
type Result struct {
	LogPath  string
	Verified []string
}

// Runner executes jobs with a container runtime.
type Runner struct {
	containerRuntime runtime.ContainerRuntime
	layout           Layout
}

// New creates a Runner.
func New(containerRuntime runtime.ContainerRuntime, layout Layout) *Runner {
	return &Runner{
		containerRuntime: containerRuntime,
		layout:           layout,
	}
}

// LogPath is where the combined output of the named command is written.
func (r *Runner) LogPath(name string) string {
	return filepath.Join(r.layout.LogDir, name+".log")
}

// ScriptTarget maps a host script path to the path the container sees.
func (r *Runner) ScriptTarget(scriptPath string) string {
	if rel, ok := workspace.Within(r.layout.SourceRoot, scriptPath); ok {
		return path.Join(r.layout.SourceMount, filepath.ToSlash(rel))
	}
	if rel, ok := workspace.Within(r.layout.OutputDir, scriptPath); ok {
		return path.Join(r.layout.OutputMount, filepath.ToSlash(rel))
	}
	return path.Join(r.layout.ScriptMount, filepath.Base(scriptPath))
}

// Options builds the container invocation for job.
func (r *Runner) Options(job Job) runtime.RunOptions {
	return runtime.RunOptions{
		Name:       job.ContainerName,
		Image:      job.Image,
		Entrypoint: []string{r.layout.Shell},
		Command:    []string{r.ScriptTarget(job.ScriptPath)},
		Mounts: []runtime.Mount{
			{Source: r.layout.SourceRoot, Target: r.layout.SourceMount, ReadOnly: true},
			{Source: r.layout.OutputDir, Target: r.layout.OutputMount},
		},
		WorkingDirectory: r.layout.SourceMount,
	}
}

// Run executes job and, once the container exits cleanly, checks every
// declared output.
func (r *Runner) Run(ctx context.Context, job Job) (*Result, error) {
	logPath, err := r.Execute(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := r.Verify(job); err != nil {
		return nil, err
	}

	slog.Info("Container run completed", "command", job.Name, "outputs", len(job.Outputs))
	return &Result{LogPath: logPath, Verified: job.Outputs}, nil
}

// Execute runs the container for job, writing its combined output to
// LogPath. A non-zero exit is returned as a ContainerExecutionError.
func (r *Runner) Execute(ctx context.Context, job Job) (string, error) {
	for _, dir := range []string{r.layout.OutputDir, r.layout.LogDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", slasherrors.NewFileSystemError(
				fmt.Sprintf("Failed to create directory %s", dir), err.Error(),
				"Check permissions on the output and log directories", err)
		}
	}

	logPath := r.LogPath(job.Name)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return "", slasherrors.NewFileSystemError(
			fmt.Sprintf("Failed to open log file %s", logPath), err.Error(), "", err)
	}
	defer logFile.Close()

	opts := r.Options(job)
	opts.Output = logFile

	slog.Info("Starting container run", "command", job.Name, "image", job.Image, "script", opts.Command[0], "log", logPath)

	code, err := r.containerRuntime.Run(ctx, opts)
	if err != nil {
		return "", err
	}
	if code != 0 {
		slog.Info("Container exited with failure", "command", job.Name, "exitCode", code)
		return "", &slasherrors.ContainerExecutionError{
			Command:  job.Name,
			ExitCode: code,
			LogPath:  logPath,
		}
	}
	return logPath, nil
}

// OutputCheck is the verification result for one declared output.
type OutputCheck struct {
	Output string
	// Path is the host path that satisfied the check, empty when missing.
	Path string
}

// Found reports whether the output exists.
func (c OutputCheck) Found() bool {
	return c.Path != ""
}

// Check looks up every declared output of job, in order. An output is
// present when it exists relative to the working directory or relative to
// the output directory.
func (r *Runner) Check(job Job) []OutputCheck {
	checks := make([]OutputCheck, 0, len(job.Outputs))
	for _, output := range job.Outputs {
		checks = append(checks, OutputCheck{Output: output, Path: r.locate(output)})
	}
	return checks
}

// Verify returns an OutputsMissingError naming every missing output.
func (r *Runner) Verify(job Job) error {
	var missing []string
	for _, check := range r.Check(job) {
		if !check.Found() {
			missing = append(missing, check.Output)
		}
	}
	if len(missing) > 0 {
		return &slasherrors.OutputsMissingError{Command: job.Name, Paths: missing}
	}
	return nil
}

func (r *Runner) locate(output string) string {
	for _, base := range []string{r.layout.WorkDir, r.layout.OutputDir} {
		candidate := workspace.Resolve(base, output)
		if _, err := os.Stat(candidate); err == nil {
			slog.Debug("Output verified", "output", output, "path", candidate)
			return candidate
		}
	}
	return ""
}
