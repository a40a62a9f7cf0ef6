package app

import (
	"context"
	"log/slog"

	"slashc/internal/compiler"
)

// CompileStage writes the strict-mode script for the loaded document.
type CompileStage struct {
	scratchDir string
}

// NewCompileStage creates a compile stage writing into scratchDir.
func NewCompileStage(scratchDir string) *CompileStage {
	return &CompileStage{scratchDir: scratchDir}
}

// Name returns the name of the stage
func (s *CompileStage) Name() RunStage {
	return StageCompile
}

// Execute compiles the document's bash blocks into state.ScriptPath.
func (s *CompileStage) Execute(_ context.Context, state *RunState) error {
	path, err := compiler.Compile(s.scratchDir, state.Slash(), state.Document.Bodies())
	if err != nil {
		return err
	}
	state.ScriptPath = path
	slog.Info("Compile stage completed", "runId", state.RunID, "script", path)
	return nil
}
