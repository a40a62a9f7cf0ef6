package app

import (
	"fmt"

	"slashc/internal/config"
	"slashc/internal/runtime"
	pkgruntime "slashc/pkg/runtime"
)

// RuntimeProvider resolves the container runtime named by runtime.engine.
type RuntimeProvider interface {
	GetRuntime(engine string) (pkgruntime.ContainerRuntime, error)
}

// RuntimeFactory creates container runtimes from configuration. It decouples
// the orchestrator from the concrete runtime implementations.
type RuntimeFactory struct {
	binary string
}

// NewRuntimeFactory creates a factory; binary is used by the cli engine.
func NewRuntimeFactory(binary string) *RuntimeFactory {
	return &RuntimeFactory{binary: binary}
}

// GetRuntime returns the runtime implementation for engine.
func (f *RuntimeFactory) GetRuntime(engine string) (pkgruntime.ContainerRuntime, error) {
	switch engine {
	case config.EngineCLI, "":
		return runtime.NewCLIRuntime(f.binary), nil
	case config.EngineDockerAPI:
		dockerRuntime, err := runtime.NewDockerRuntime()
		if err != nil {
			return nil, fmt.Errorf("failed to create Docker runtime: %w", err)
		}
		return dockerRuntime, nil
	default:
		return nil, fmt.Errorf("unsupported runtime engine: %s", engine)
	}
}
