package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slasherrors "slashc/internal/errors"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		blocks []string
		want   string
	}{
		{
			name:   "two blocks",
			blocks: []string{"echo a", "echo b"},
			want:   "#!/bin/bash\nset -euxo pipefail\n\necho a\n\necho b\n",
		},
		{
			name:   "single multi-line block",
			blocks: []string{"cd /src\nmake"},
			want:   "#!/bin/bash\nset -euxo pipefail\n\ncd /src\nmake\n",
		},
		{
			name:   "no blocks",
			blocks: nil,
			want:   "#!/bin/bash\nset -euxo pipefail\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.blocks))
		})
	}
}

func TestRender_Deterministic(t *testing.T) {
	blocks := []string{"echo a", "echo b"}
	assert.Equal(t, Render(blocks), Render(blocks))
}

func TestCompile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".out", "tmp")

	path, err := Compile(dir, "foo", []string{"echo a", "echo b"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "foo.sh"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\nset -euxo pipefail\n\necho a\n\necho b\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, ScriptMode, info.Mode().Perm())
}

func TestCompile_OverwritesStaleScript(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "foo.sh")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0600))

	path, err := Compile(dir, "foo", []string{"echo new"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echo new")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, ScriptMode, info.Mode().Perm())
}

func TestCompile_RejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := Compile(t.TempDir(), name, []string{"true"})
		assert.ErrorIs(t, err, slasherrors.ErrCompileFailed, name)
	}
}
