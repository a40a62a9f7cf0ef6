// Package scaffolder creates the files a project needs to use slashc: the
// front-matter schema, the .out directories and new command documents.
package scaffolder

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	slasherrors "slashc/internal/errors"
	"slashc/internal/parser"
	"slashc/internal/schema"
)

// DefaultImage is used by NewCommand when no image is given.
const DefaultImage = "alpine:3"

// InitOptions controls Init.
type InitOptions struct {
	SchemaPath string
	// Dirs are created if missing.
	Dirs   []string
	Force  bool
	DryRun bool
}

// Init writes the bundled schema to opts.SchemaPath and creates opts.Dirs.
// An existing schema is only replaced with Force.
func Init(opts InitOptions, out io.Writer) error {
	if opts.SchemaPath == "" {
		return fmt.Errorf("schema path cannot be empty")
	}

	exists, err := fileExists(opts.SchemaPath)
	if err != nil {
		return err
	}
	if exists && !opts.Force {
		return slasherrors.NewFileSystemError(
			fmt.Sprintf("Schema already exists at %s", opts.SchemaPath),
			"refusing to overwrite an existing file",
			"Pass --force to replace it with the bundled schema",
			nil)
	}

	if opts.DryRun {
		return performInitDryRun(opts, out)
	}

	for _, dir := range opts.Dirs {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return slasherrors.NewFileSystemError(
				fmt.Sprintf("Failed to create directory %s", dir), err.Error(), "", err)
		}
		slog.Info("Created directory", "path", dir)
	}

	if err := writeFile(opts.SchemaPath, schema.Default(), 0644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote schema: %s\n", opts.SchemaPath)
	return nil
}

func performInitDryRun(opts InitOptions, out io.Writer) error {
	for _, dir := range opts.Dirs {
		fmt.Fprintf(out, "DRY RUN: Would create directory: %s\n", dir)
	}
	fmt.Fprintf(out, "DRY RUN: Would create file: %s\n", opts.SchemaPath)
	return nil
}

// NewOptions controls NewCommand.
type NewOptions struct {
	Slash  string
	Image  string
	Dir    string
	Force  bool
	DryRun bool
}

// templateFrontMatter fixes the key order of generated documents.
type templateFrontMatter struct {
	Slash       string   `yaml:"slash"`
	Image       string   `yaml:"image"`
	Description string   `yaml:"description"`
	Outputs     []string `yaml:"outputs"`
}

// Render produces a command document for opts that passes validation: one
// block writing a single declared output under the output mount.
func Render(opts NewOptions) ([]byte, error) {
	image := opts.Image
	if image == "" {
		image = DefaultImage
	}
	output := opts.Slash + ".txt"

	frontMatter, err := yaml.Marshal(templateFrontMatter{
		Slash:       opts.Slash,
		Image:       image,
		Description: fmt.Sprintf("Describe what /%s does.", opts.Slash),
		Outputs:     []string{output},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render front-matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(frontMatter)
	if !bytes.HasSuffix(frontMatter, []byte("\n")) {
		buf.WriteString("\n")
	}
	buf.WriteString("---\n\n")
	buf.WriteString("```bash name=main\n")
	fmt.Fprintf(&buf, "echo \"hello from /%s\" > /out/%s\n", opts.Slash, output)
	buf.WriteString("```\n")
	return buf.Bytes(), nil
}

// NewCommand writes a new command document to <Dir>/<Slash>.md and returns
// its path. The rendered document is parsed and validated against the
// bundled schema before anything is written.
func NewCommand(opts NewOptions, out io.Writer) (string, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, opts.Slash+".md")

	content, err := Render(opts)
	if err != nil {
		return "", err
	}
	if err := check(path, content); err != nil {
		return "", err
	}

	exists, err := fileExists(path)
	if err != nil {
		return "", err
	}
	if exists && !opts.Force {
		return "", slasherrors.NewFileSystemError(
			fmt.Sprintf("Command document already exists at %s", path),
			"refusing to overwrite an existing file",
			"Choose another name or pass --force",
			nil)
	}

	if opts.DryRun {
		fmt.Fprintf(out, "DRY RUN: Would create file: %s\n", path)
		fmt.Fprint(out, string(content))
		return path, nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", slasherrors.NewFileSystemError(
			fmt.Sprintf("Failed to create directory %s", dir), err.Error(), "", err)
	}
	if err := writeFile(path, content, 0644); err != nil {
		return "", err
	}
	fmt.Fprintf(out, "Created command: %s\n", path)
	return path, nil
}

func check(path string, content []byte) error {
	s, err := schema.Compile("command.schema.json", schema.Default())
	if err != nil {
		return err
	}
	doc, err := parser.Parse(path, content)
	if err != nil {
		return err
	}
	return s.Validate(doc)
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, slasherrors.NewFileSystemError(
			fmt.Sprintf("Failed to inspect %s", path), err.Error(), "", err)
	}
}

func writeFile(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return slasherrors.NewFileSystemError(
			fmt.Sprintf("Failed to create directory for %s", path), err.Error(), "", err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return slasherrors.NewFileSystemError(
			fmt.Sprintf("Failed to write %s", path), err.Error(), "", err)
	}
	slog.Info("Wrote file", "path", path)
	return nil
}
