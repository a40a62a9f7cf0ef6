package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	slasherrors "slashc/internal/errors"
	"slashc/pkg/runtime"
)

// MockContainerRuntime is a mock implementation of the ContainerRuntime interface
type MockContainerRuntime struct {
	mock.Mock
}

func (m *MockContainerRuntime) Available(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockContainerRuntime) Run(ctx context.Context, opts runtime.RunOptions) (int, error) {
	args := m.Called(ctx, opts)
	return args.Int(0), args.Error(1)
}

func newLayout(t *testing.T) Layout {
	t.Helper()
	root := t.TempDir()
	return Layout{
		WorkDir:     root,
		SourceRoot:  root,
		OutputDir:   filepath.Join(root, ".out"),
		LogDir:      filepath.Join(root, ".out", "logs"),
		SourceMount: "/src",
		OutputMount: "/out",
		ScriptMount: "/tmp",
		Shell:       "/bin/sh",
	}
}

func TestRunner_ScriptTarget(t *testing.T) {
	layout := newLayout(t)
	r := New(&MockContainerRuntime{}, layout)

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"inside output dir resolves through source mount first", filepath.Join(layout.OutputDir, "tmp", "hello.sh"), "/src/.out/tmp/hello.sh"},
		{"inside source root", filepath.Join(layout.SourceRoot, "scripts", "hello.sh"), "/src/scripts/hello.sh"},
		{"outside both mounts", "/var/tmp/elsewhere/hello.sh", "/tmp/hello.sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ScriptTarget(tt.script))
		})
	}

	t.Run("output dir outside source root", func(t *testing.T) {
		layout := newLayout(t)
		layout.OutputDir = t.TempDir()
		r := New(&MockContainerRuntime{}, layout)
		assert.Equal(t, "/out/tmp/hello.sh", r.ScriptTarget(filepath.Join(layout.OutputDir, "tmp", "hello.sh")))
	})
}

func TestRunner_Options(t *testing.T) {
	layout := newLayout(t)
	r := New(&MockContainerRuntime{}, layout)

	opts := r.Options(Job{
		Name:          "hello",
		Image:         "alpine:3",
		ScriptPath:    filepath.Join(layout.OutputDir, "tmp", "hello.sh"),
		ContainerName: "slashc-hello-1",
	})

	assert.Equal(t, "slashc-hello-1", opts.Name)
	assert.Equal(t, "alpine:3", opts.Image)
	assert.Equal(t, []string{"/bin/sh"}, opts.Entrypoint)
	assert.Equal(t, []string{"/src/.out/tmp/hello.sh"}, opts.Command)
	assert.Equal(t, "/src", opts.WorkingDirectory)
	assert.Equal(t, []runtime.Mount{
		{Source: layout.SourceRoot, Target: "/src", ReadOnly: true},
		{Source: layout.OutputDir, Target: "/out"},
	}, opts.Mounts)
}

func TestRunner_Run(t *testing.T) {
	tests := []struct {
		name        string
		outputs     []string
		exitCode    int
		runErr      error
		produce     []string
		wantErr     error
		wantMissing []string
	}{
		{
			name:    "outputs produced in output dir",
			outputs: []string{"hello.txt"},
			produce: []string{".out/hello.txt"},
		},
		{
			name:    "outputs produced relative to working directory",
			outputs: []string{".out/hello.txt"},
			produce: []string{".out/hello.txt"},
		},
		{
			name:     "non-zero exit skips verification",
			outputs:  []string{"hello.txt"},
			exitCode: 3,
			wantErr:  slasherrors.ErrContainerExecution,
		},
		{
			name:        "every missing output is reported",
			outputs:     []string{"a.txt", "b.txt", "c.txt"},
			produce:     []string{".out/b.txt"},
			wantErr:     slasherrors.ErrOutputsMissing,
			wantMissing: []string{"a.txt", "c.txt"},
		},
		{
			name:    "runtime unavailable",
			outputs: []string{"hello.txt"},
			runErr:  slasherrors.NewRunnerUnavailableError("docker not found", "", "", nil),
			wantErr: slasherrors.ErrRunnerUnavailable,
		},
		{
			name:    "empty outputs",
			outputs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := newLayout(t)
			mockRuntime := &MockContainerRuntime{}
			mockRuntime.On("Run", mock.Anything, mock.MatchedBy(func(opts runtime.RunOptions) bool {
				return opts.Image == "alpine:3" && opts.Output != nil
			})).Run(func(args mock.Arguments) {
				opts := args.Get(1).(runtime.RunOptions)
				fmt.Fprintln(opts.Output, "+ echo hello")
				for _, p := range tt.produce {
					full := filepath.Join(layout.WorkDir, p)
					require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
					require.NoError(t, os.WriteFile(full, []byte("hello\n"), 0644))
				}
			}).Return(tt.exitCode, tt.runErr)

			r := New(mockRuntime, layout)
			result, err := r.Run(context.Background(), Job{
				Name:       "hello",
				Image:      "alpine:3",
				ScriptPath: filepath.Join(layout.OutputDir, "tmp", "hello.sh"),
				Outputs:    tt.outputs,
			})

			mockRuntime.AssertExpectations(t)
			assert.DirExists(t, layout.OutputDir)
			assert.DirExists(t, layout.LogDir)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)

				var execErr *slasherrors.ContainerExecutionError
				if errors.As(err, &execErr) {
					assert.Equal(t, tt.exitCode, execErr.ExitCode)
					assert.Equal(t, r.LogPath("hello"), execErr.LogPath)
				}
				var missingErr *slasherrors.OutputsMissingError
				if errors.As(err, &missingErr) {
					assert.Equal(t, tt.wantMissing, missingErr.Paths)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, r.LogPath("hello"), result.LogPath)
			assert.Equal(t, tt.outputs, result.Verified)

			log, err := os.ReadFile(result.LogPath)
			require.NoError(t, err)
			assert.Equal(t, "+ echo hello\n", string(log))
		})
	}
}

func TestRunner_LogIsTruncated(t *testing.T) {
	layout := newLayout(t)
	require.NoError(t, os.MkdirAll(layout.LogDir, 0755))
	r := New(&MockContainerRuntime{}, layout)
	require.NoError(t, os.WriteFile(r.LogPath("hello"), []byte("previous run output\n"), 0644))

	mockRuntime := &MockContainerRuntime{}
	mockRuntime.On("Run", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		fmt.Fprintln(args.Get(1).(runtime.RunOptions).Output, "new")
	}).Return(0, nil)

	r = New(mockRuntime, layout)
	_, err := r.Run(context.Background(), Job{Name: "hello", Image: "alpine:3", ScriptPath: "/tmp/hello.sh"})
	require.NoError(t, err)

	log, err := os.ReadFile(r.LogPath("hello"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(log))
}

func TestRunner_Check(t *testing.T) {
	layout := newLayout(t)
	require.NoError(t, os.MkdirAll(layout.OutputDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(layout.OutputDir, "in-out.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(layout.WorkDir, "in-cwd.txt"), nil, 0644))

	r := New(&MockContainerRuntime{}, layout)
	checks := r.Check(Job{Name: "hello", Outputs: []string{"in-cwd.txt", "missing.txt", "in-out.txt"}})

	require.Len(t, checks, 3)
	assert.True(t, checks[0].Found())
	assert.Equal(t, filepath.Join(layout.WorkDir, "in-cwd.txt"), checks[0].Path)
	assert.False(t, checks[1].Found())
	assert.Equal(t, "missing.txt", checks[1].Output)
	assert.True(t, checks[2].Found())
	assert.Equal(t, filepath.Join(layout.OutputDir, "in-out.txt"), checks[2].Path)
}
