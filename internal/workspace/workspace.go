// Package workspace resolves the host directories a run binds into the container.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
)

// Root returns the top of the git work tree that contains dir. Outside a
// repository dir itself is returned. The result is always absolute.
func Root(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		slog.Debug("No git repository found, using working directory as source root", "dir", abs)
		return abs, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to open git repository at %s: %w", abs, err)
	}

	wt, err := repo.Worktree()
	if errors.Is(err, git.ErrIsBareRepository) {
		return abs, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to open git work tree: %w", err)
	}

	root := wt.Filesystem.Root()
	slog.Debug("Resolved source root from git work tree", "root", root)
	return root, nil
}

// Resolve makes path absolute against base unless it already is.
func Resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// Within reports whether path lies inside dir and returns it relative to dir.
func Within(dir, path string) (string, bool) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", false
	}
	if rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", false
	}
	return rel, true
}
