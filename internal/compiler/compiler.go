// Package compiler turns the bash blocks of a command document into one
// strict-mode shell script.
package compiler

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slasherrors "slashc/internal/errors"
)

// Preamble opens every compiled script.
var Preamble = []string{
	"#!/bin/bash",
	"set -euxo pipefail",
}

// ScriptMode is applied to compiled scripts.
const ScriptMode os.FileMode = 0755

// Render joins the preamble and blocks, each separated by a blank line, with a
// trailing newline.
func Render(blocks []string) string {
	lines := make([]string, 0, len(Preamble)+2*len(blocks)+1)
	lines = append(lines, Preamble...)
	lines = append(lines, "")
	for _, b := range blocks {
		lines = append(lines, b, "")
	}
	return strings.Join(lines, "\n")
}

// ScriptPath is where Compile writes the script for name.
func ScriptPath(dir, name string) string {
	return filepath.Join(dir, name+".sh")
}

// Compile writes the rendered script for name into dir and makes it
// executable. It returns the script path.
func Compile(dir, name string, blocks []string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", slasherrors.NewCompileError(
			"Failed to compile script",
			fmt.Sprintf("command name %q cannot be used as a file name", name),
			nil)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", slasherrors.NewCompileError(
			fmt.Sprintf("Failed to create scratch directory %s", dir), err.Error(), err)
	}

	path := ScriptPath(dir, name)
	if err := os.WriteFile(path, []byte(Render(blocks)), ScriptMode); err != nil {
		return "", slasherrors.NewCompileError(
			fmt.Sprintf("Failed to write compiled script %s", path), err.Error(), err)
	}
	// WriteFile only applies the mode to new files and is subject to umask.
	if err := os.Chmod(path, ScriptMode); err != nil {
		return "", slasherrors.NewCompileError(
			fmt.Sprintf("Failed to make %s executable", path), err.Error(), err)
	}

	slog.Info("Compiled script", "path", path, "blocks", len(blocks))
	return path, nil
}
