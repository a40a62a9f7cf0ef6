// Package app orchestrates the slashc commands on top of the parser,
// compiler and runner packages.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"slashc/internal/config"
	slasherrors "slashc/internal/errors"
	"slashc/internal/runner"
	"slashc/internal/scaffolder"
	"slashc/internal/schema"
	"slashc/internal/ui"
	"slashc/internal/workspace"
)

// Reporter receives errors that are reported without aborting, such as the
// per-file failures of a report-all validate.
type Reporter interface {
	Handle(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(error)

// Handle calls f(err).
func (f ReporterFunc) Handle(err error) {
	f(err)
}

// App is the facade the CLI commands call into.
type App struct {
	cfg      *config.Config
	console  *ui.Console
	reporter Reporter
	runtimes RuntimeProvider
	workDir  string

	schema *schema.Schema
}

// Option configures an App.
type Option func(*App)

// WithReporter replaces the default error reporter.
func WithReporter(r Reporter) Option {
	return func(a *App) { a.reporter = r }
}

// WithRuntimeProvider replaces the configuration-driven runtime factory.
func WithRuntimeProvider(p RuntimeProvider) Option {
	return func(a *App) { a.runtimes = p }
}

// WithWorkDir sets the directory relative paths are resolved against. It
// defaults to the process working directory.
func WithWorkDir(dir string) Option {
	return func(a *App) { a.workDir = dir }
}

// New creates an App.
func New(cfg *config.Config, console *ui.Console, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		console:  console,
		reporter: ReporterFunc(slasherrors.HandleError),
		runtimes: NewRuntimeFactory(cfg.Runtime.Binary),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, slasherrors.NewFileSystemError(
				"Failed to determine the working directory", err.Error(), "", err)
		}
		a.workDir = wd
	}
	return a, nil
}

func (a *App) path(p string) string {
	return workspace.Resolve(a.workDir, p)
}

func (a *App) loadSchema() (*schema.Schema, error) {
	if a.schema != nil {
		return a.schema, nil
	}
	s, err := schema.Load(a.path(a.cfg.SchemaPath))
	if err != nil {
		return nil, err
	}
	a.schema = s
	return s, nil
}

func (a *App) layout() (runner.Layout, error) {
	sourceRoot := a.cfg.SourceRoot
	if sourceRoot == "" {
		root, err := workspace.Root(a.workDir)
		if err != nil {
			return runner.Layout{}, slasherrors.NewFileSystemError(
				"Failed to resolve the source root", err.Error(),
				"Set source_root explicitly", err)
		}
		sourceRoot = root
	} else {
		sourceRoot = a.path(sourceRoot)
	}

	return runner.Layout{
		WorkDir:     a.workDir,
		SourceRoot:  sourceRoot,
		OutputDir:   a.path(a.cfg.OutputDir),
		LogDir:      a.path(a.cfg.LogDir),
		SourceMount: a.cfg.Container.SourceMount,
		OutputMount: a.cfg.Container.OutputMount,
		ScriptMount: a.cfg.Container.ScriptMount,
		Shell:       a.cfg.Container.Shell,
	}, nil
}

// Validate parses and validates every file. By default all files are checked
// and each failure is reported; the returned error summarises them. With
// failFast the first failure is returned as is and later files are skipped.
func (a *App) Validate(files []string, failFast bool) error {
	s, err := a.loadSchema()
	if err != nil {
		return err
	}

	failed := 0
	for _, file := range files {
		a.console.PrintInfo(fmt.Sprintf("Processing file: %s (Mode: validate)", file))
		if _, err := loadDocument(s, a.workDir, file); err != nil {
			if failFast {
				return err
			}
			failed++
			a.reporter.Handle(err)
			continue
		}
		a.console.PrintSuccess(fmt.Sprintf("Validation successful for %s.", file))
	}

	slog.Info("Validation finished", "files", len(files), "failed", failed)
	if failed > 0 {
		return slasherrors.NewSlashError(slasherrors.ErrValidationFailed,
			"Validation failed",
			fmt.Sprintf("%d of %d files failed validation", failed, len(files)),
			"Fix the errors reported above and re-run validate",
			nil)
	}
	return nil
}

// Run validates, compiles, executes and verifies one command document. The
// compiled script is removed on every exit path.
func (a *App) Run(ctx context.Context, file string, dryRun bool) error {
	state := newRunState(file, dryRun)
	slog.Info("Starting slashc run", "runId", state.RunID, "file", file, "dryRun", dryRun)
	a.console.PrintInfo(fmt.Sprintf("Processing file: %s (Mode: run)", file))

	s, err := a.loadSchema()
	if err != nil {
		return err
	}
	layout, err := a.layout()
	if err != nil {
		return err
	}

	stages := []Stage{
		NewLoadStage(s, a.workDir),
		NewCompileStage(a.path(a.cfg.ScratchDir)),
		NewExecuteStage(a.runtimes, a.cfg.Runtime.Engine, a.cfg.Runtime.Binary, layout, a.console),
		NewVerifyStage(layout, a.console),
	}

	defer removeScript(state)

	for _, stage := range stages {
		if err := stage.Execute(ctx, state); err != nil {
			slog.Info("Stage failed", "runId", state.RunID, "stage", stage.Name(), "lastSuccessfulStage", state.LastSuccessfulStage)
			return err
		}
		state.complete(stage.Name())
	}
	state.complete(StageCompleted)

	if dryRun {
		a.console.PrintSuccess(fmt.Sprintf("DRY RUN of /%s completed. No container was started.", state.Slash()))
	} else {
		a.console.PrintSuccess(fmt.Sprintf("Execution of /%s completed successfully.", state.Slash()))
	}
	slog.Info("slashc run completed", "runId", state.RunID, "slash", state.Slash(), "dryRun", dryRun)
	return nil
}

func removeScript(state *RunState) {
	if state.ScriptPath == "" {
		return
	}
	if err := os.Remove(state.ScriptPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove compiled script", "path", state.ScriptPath, "error", err)
		return
	}
	slog.Debug("Removed compiled script", "path", state.ScriptPath)
}

// Init installs the bundled schema and creates the scratch, log and output
// directories.
func (a *App) Init(force, dryRun bool) error {
	return scaffolder.Init(scaffolder.InitOptions{
		SchemaPath: a.path(a.cfg.SchemaPath),
		Dirs: []string{
			a.path(a.cfg.OutputDir),
			a.path(a.cfg.ScratchDir),
			a.path(a.cfg.LogDir),
		},
		Force:  force,
		DryRun: dryRun,
	}, a.console.Out())
}

// NewCommand scaffolds a command document.
func (a *App) NewCommand(opts scaffolder.NewOptions) (string, error) {
	if opts.Dir == "" {
		opts.Dir = a.workDir
	} else {
		opts.Dir = a.path(opts.Dir)
	}
	return scaffolder.NewCommand(opts, a.console.Out())
}
