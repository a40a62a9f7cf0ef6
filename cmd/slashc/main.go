package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"slashc/internal/app"
	"slashc/internal/config"
	slasherrors "slashc/internal/errors"
	"slashc/internal/scaffolder"
	"slashc/internal/ui"
)

// version is set at build time via ldflags
var version = "dev"

// cli holds the state shared by every subcommand of one invocation.
type cli struct {
	console    *ui.Console
	configFile string
	verbose    bool

	cfg     *config.Config
	handler *slasherrors.ErrorHandler
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "slashc",
		Short:   "slashc - compile and run slash command documents in containers",
		Version: version,
		Long: `slashc compiles slash command documents (Markdown with YAML front-matter
and named bash blocks) into a strict-mode shell script, runs it inside a
container with the source tree mounted read-only and an output directory
mounted writable, and verifies that every declared output was produced.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	rootCmd.SetOut(c.console.Out())
	rootCmd.SetErr(c.console.Err())

	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "Path to a config file (default .slashc.yaml in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newValidateCmd(c), newRunCmd(c), newInitCmd(c), newNewCmd(c))
	return rootCmd
}

func newValidateCmd(c *cli) *cobra.Command {
	var failFast bool
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Parse and validate command documents",
		Long: `Validate checks that each document has YAML front-matter satisfying the
schema followed only by uniquely named bash blocks. Every file is checked and
each failure reported unless --fail-fast is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app()
			if err != nil {
				return err
			}
			return a.Validate(args, failFast)
		},
	}
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first invalid file")
	return cmd
}

func newRunCmd(c *cli) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Validate, compile and run a command document in a container",
		Long: `Run validates the document, compiles its bash blocks into one script, runs
the script in the document's image and verifies the declared outputs. The
compiled script is always removed afterwards. A failing script makes slashc
exit with the script's exit code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app()
			if err != nil {
				return err
			}
			return a.Run(cmd.Context(), args[0], dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the compiled script and container invocation without running it")
	return cmd
}

func newInitCmd(c *cli) *cobra.Command {
	var force, dryRun bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Install the default front-matter schema and output directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app()
			if err != nil {
				return err
			}
			return a.Init(force, dryRun)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing schema file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be created without writing anything")
	return cmd
}

func newNewCmd(c *cli) *cobra.Command {
	var opts scaffolder.NewOptions
	cmd := &cobra.Command{
		Use:   "new <slash>",
		Short: "Scaffold a new command document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app()
			if err != nil {
				return err
			}
			opts.Slash = args[0]
			_, err = a.NewCommand(opts)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Image, "image", scaffolder.DefaultImage, "Container image for the new command")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Directory to create the document in (default the working directory)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite an existing document")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the document instead of writing it")
	return cmd
}

// setup loads configuration and installs logging and the error handler.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return slasherrors.NewConfigError(
			"Failed to load configuration", err.Error(),
			"Check .slashc.yaml, --config and SLASHC_* environment variables", err)
	}
	c.cfg = cfg

	configureLogging(cmd.ErrOrStderr(), cfg.LogLevel, c.verbose)

	handler, err := slasherrors.NewErrorHandlerWithConsole(cfg.LogDir, c.console)
	if err != nil {
		slog.Warn("Structured error log unavailable", "logDir", cfg.LogDir, "error", err)
		return nil
	}
	c.handler = handler
	return nil
}

func (c *cli) app() (*app.App, error) {
	return app.New(c.cfg, c.console, app.WithReporter(c.reporter()))
}

func (c *cli) reporter() app.Reporter {
	if c.handler != nil {
		return c.handler
	}
	return app.ReporterFunc(slasherrors.HandleError)
}

func (c *cli) close() {
	if c.handler != nil {
		if err := c.handler.Close(); err != nil {
			slog.Warn("Failed to close error log", "error", err)
		}
	}
}

func configureLogging(w io.Writer, level string, verbose bool) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// execute runs the command line and returns the process exit code. Errors
// are reported here; nothing below main exits the process.
func execute(ctx context.Context, args []string, console *ui.Console) int {
	c := &cli{console: console}
	defer c.close()

	rootCmd := newRootCmd(c)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	// Errors raised before setup finished still get a structured log record.
	if c.handler == nil {
		if handler, herr := slasherrors.NewErrorHandlerWithConsole(config.Default().LogDir, console); herr == nil {
			c.handler = handler
		}
	}
	c.reporter().Handle(err)
	return slasherrors.ExitCode(err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], ui.NewConsole())
	stop()
	os.Exit(code)
}
