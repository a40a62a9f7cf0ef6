package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	slasherrors "slashc/internal/errors"
	"slashc/pkg/runtime"
)

// CLIRuntime runs containers through a docker-compatible command line client.
type CLIRuntime struct {
	binary   string
	lookPath func(string) (string, error)
}

// NewCLIRuntime creates a runtime that shells out to binary (docker, podman).
func NewCLIRuntime(binary string) *CLIRuntime {
	return &CLIRuntime{
		binary:   binary,
		lookPath: exec.LookPath,
	}
}

// Binary is the configured client executable.
func (r *CLIRuntime) Binary() string {
	return r.binary
}

// Available checks that the client is on PATH.
func (r *CLIRuntime) Available(_ context.Context) error {
	_, err := r.resolve()
	return err
}

func (r *CLIRuntime) resolve() (string, error) {
	path, err := r.lookPath(r.binary)
	if err != nil {
		return "", slasherrors.NewRunnerUnavailableError(
			fmt.Sprintf("'%s' command not found", r.binary),
			err.Error(),
			fmt.Sprintf("Is %s installed and in your PATH? Set runtime.binary or runtime.engine to use another runtime", r.binary),
			err)
	}
	return path, nil
}

// Args builds the client arguments for opts, without the binary itself.
func Args(opts runtime.RunOptions) []string {
	args := []string{"run", "--rm"}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	for _, m := range opts.Mounts {
		volume := m.Source + ":" + m.Target
		if m.ReadOnly {
			volume += ":ro"
		}
		args = append(args, "-v", volume)
	}
	if opts.WorkingDirectory != "" {
		args = append(args, "-w", opts.WorkingDirectory)
	}
	if len(opts.Entrypoint) > 0 {
		// --entrypoint takes a single executable; any further entrypoint
		// words are passed ahead of the command.
		args = append(args, "--entrypoint", opts.Entrypoint[0])
	}
	args = append(args, opts.Image)
	if len(opts.Entrypoint) > 1 {
		args = append(args, opts.Entrypoint[1:]...)
	}
	return append(args, opts.Command...)
}

// Run executes `<binary> run --rm ...` and waits for it to exit.
func (r *CLIRuntime) Run(ctx context.Context, opts runtime.RunOptions) (int, error) {
	path, err := r.resolve()
	if err != nil {
		return 0, err
	}

	args := Args(opts)
	slog.Info("Running container", "binary", r.binary, "image", opts.Image, "args", args)

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = opts.Output
	cmd.Stderr = opts.Output

	err = cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() > 0:
		return exitErr.ExitCode(), nil
	case errors.Is(err, exec.ErrNotFound):
		return 0, slasherrors.NewRunnerUnavailableError(
			fmt.Sprintf("'%s' command not found", r.binary), err.Error(), "", err)
	default:
		return 0, fmt.Errorf("failed to run %s: %w", r.binary, err)
	}
}
