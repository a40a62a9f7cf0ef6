package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	slasherrors "slashc/internal/errors"
	"slashc/internal/parser"
	"slashc/internal/schema"
	"slashc/internal/workspace"
	"slashc/pkg/command"
)

// LoadStage parses the command document and validates its front-matter.
type LoadStage struct {
	schema  *schema.Schema
	workDir string
}

// NewLoadStage creates a load stage validating against s.
func NewLoadStage(s *schema.Schema, workDir string) *LoadStage {
	return &LoadStage{schema: s, workDir: workDir}
}

// Name returns the name of the stage
func (s *LoadStage) Name() RunStage {
	return StageLoad
}

// Execute loads state.CommandPath into state.Document.
func (s *LoadStage) Execute(_ context.Context, state *RunState) error {
	doc, err := loadDocument(s.schema, s.workDir, state.CommandPath)
	if err != nil {
		return err
	}
	state.Document = doc
	slog.Info("Command document loaded", "runId", state.RunID, "slash", doc.FrontMatter.Slash, "blocks", len(doc.Blocks))
	return nil
}

// loadDocument is the whole of `validate` for one file.
func loadDocument(s *schema.Schema, workDir, path string) (*command.Document, error) {
	resolved := workspace.Resolve(workDir, path)
	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return nil, slasherrors.NewFileNotFoundError(path)
	}
	if err != nil {
		return nil, slasherrors.NewFileSystemError(
			fmt.Sprintf("Failed to inspect %s", path), err.Error(), "", err)
	}
	if info.IsDir() {
		return nil, slasherrors.NewSlashError(slasherrors.ErrFileNotFound,
			fmt.Sprintf("Failed to open %s", path),
			"the path is a directory",
			"Pass a command document (.md) file", nil)
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, slasherrors.NewFileSystemError(
			fmt.Sprintf("Failed to read %s", path), err.Error(), "", err)
	}

	doc, err := parser.Parse(path, content)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
