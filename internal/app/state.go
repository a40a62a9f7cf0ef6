package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"slashc/internal/runner"
	"slashc/pkg/command"
)

// RunStage names a step of the run pipeline.
type RunStage string

const (
	StageLoad      RunStage = "load"
	StageCompile   RunStage = "compile"
	StageExecute   RunStage = "execute"
	StageVerify    RunStage = "verify"
	StageCompleted RunStage = "completed"
)

// RunState carries one `slashc run` invocation through its stages. It lives
// only for the duration of the run.
type RunState struct {
	RunID               string
	CommandPath         string
	DryRun              bool
	StartedAt           time.Time
	LastSuccessfulStage RunStage

	Document   *command.Document
	ScriptPath string
	LogPath    string
}

func newRunState(commandPath string, dryRun bool) *RunState {
	return &RunState{
		RunID:       uuid.New().String(),
		CommandPath: commandPath,
		DryRun:      dryRun,
		StartedAt:   time.Now(),
	}
}

// complete records stage as the last one that succeeded.
func (s *RunState) complete(stage RunStage) {
	s.LastSuccessfulStage = stage
}

// Slash is the command name, empty until the document is loaded.
func (s *RunState) Slash() string {
	if s.Document == nil {
		return ""
	}
	return s.Document.FrontMatter.Slash
}

// ContainerName is unique per run so concurrent invocations of the same
// command do not collide.
func (s *RunState) ContainerName() string {
	id := s.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("slashc-%s-%s", s.Slash(), id)
}

// Job describes the compiled command for the runner.
func (s *RunState) Job() runner.Job {
	job := runner.Job{
		Name:          s.Slash(),
		ScriptPath:    s.ScriptPath,
		ContainerName: s.ContainerName(),
	}
	if s.Document != nil {
		job.Image = s.Document.FrontMatter.Image
		job.Outputs = s.Document.FrontMatter.Outputs
	}
	return job
}
