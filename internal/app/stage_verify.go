package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"slashc/internal/runner"
	"slashc/internal/ui"
)

// VerifyStage checks that every declared output exists after the run.
type VerifyStage struct {
	layout  runner.Layout
	console *ui.Console
}

// NewVerifyStage creates the verify stage.
func NewVerifyStage(layout runner.Layout, console *ui.Console) *VerifyStage {
	return &VerifyStage{layout: layout, console: console}
}

// Name returns the name of the stage
func (s *VerifyStage) Name() RunStage {
	return StageVerify
}

// Execute reports each output and fails with every missing one.
func (s *VerifyStage) Execute(_ context.Context, state *RunState) error {
	job := state.Job()
	if state.DryRun {
		if len(job.Outputs) > 0 {
			s.console.PrintInfo(fmt.Sprintf("DRY RUN: Would verify outputs: %s", strings.Join(job.Outputs, ", ")))
		}
		return nil
	}

	r := runner.New(nil, s.layout)
	s.console.PrintStep("Verifying Outputs")
	for _, check := range r.Check(job) {
		if check.Found() {
			s.console.PrintSuccess(fmt.Sprintf("Output Verified: '%s' exists.", check.Output))
		} else {
			s.console.PrintWarning(fmt.Sprintf("Output Verification Failed: Declared output '%s' does not exist.", check.Output))
		}
	}

	if err := r.Verify(job); err != nil {
		return err
	}
	slog.Info("Verify stage completed", "runId", state.RunID, "outputs", len(job.Outputs))
	return nil
}
