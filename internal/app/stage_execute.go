package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"slashc/internal/runner"
	"slashc/internal/runtime"
	"slashc/internal/ui"
)

// ExecuteStage runs the compiled script in a container.
type ExecuteStage struct {
	runtimes RuntimeProvider
	engine   string
	binary   string
	layout   runner.Layout
	console  *ui.Console
}

// NewExecuteStage creates the execute stage. The runtime is only resolved
// when the stage actually runs a container.
func NewExecuteStage(runtimes RuntimeProvider, engine, binary string, layout runner.Layout, console *ui.Console) *ExecuteStage {
	return &ExecuteStage{
		runtimes: runtimes,
		engine:   engine,
		binary:   binary,
		layout:   layout,
		console:  console,
	}
}

// Name returns the name of the stage
func (s *ExecuteStage) Name() RunStage {
	return StageExecute
}

// Execute runs the container, or in dry-run mode prints the script and the
// invocation that would run it.
func (s *ExecuteStage) Execute(ctx context.Context, state *RunState) error {
	if state.DryRun {
		return s.dryRun(state)
	}

	containerRuntime, err := s.runtimes.GetRuntime(s.engine)
	if err != nil {
		return err
	}
	if err := containerRuntime.Available(ctx); err != nil {
		return err
	}

	s.console.PrintStep(fmt.Sprintf("Running /%s in Docker", state.Slash()))
	logPath, err := runner.New(containerRuntime, s.layout).Execute(ctx, state.Job())
	if err != nil {
		return err
	}
	state.LogPath = logPath

	s.console.PrintSuccess(fmt.Sprintf("Docker run successful. Logs written to %s", logPath))
	slog.Info("Execute stage completed", "runId", state.RunID, "engine", s.engine, "log", logPath)
	return nil
}

func (s *ExecuteStage) dryRun(state *RunState) error {
	script, err := os.ReadFile(state.ScriptPath)
	if err != nil {
		return fmt.Errorf("failed to read compiled script: %w", err)
	}

	opts := runner.New(nil, s.layout).Options(state.Job())
	invocation := append([]string{s.binary}, runtime.Args(opts)...)

	s.console.PrintStep(fmt.Sprintf("Compiled script for /%s", state.Slash()))
	fmt.Fprint(s.console.Out(), string(script))
	s.console.PrintStep("Container invocation")
	fmt.Fprintln(s.console.Out(), strings.Join(invocation, " "))
	s.console.PrintInfo(fmt.Sprintf("DRY RUN: Would write logs to %s", runner.New(nil, s.layout).LogPath(state.Slash())))
	return nil
}
