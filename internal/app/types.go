package app

import (
	"context"
)

// Stage represents a single step of the run pipeline. Stages share a
// RunState and run in order until one fails.
type Stage interface {
	Name() RunStage
	Execute(ctx context.Context, state *RunState) error
}
