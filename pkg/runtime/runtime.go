// Located in pkg/runtime/runtime.go
package runtime

import (
	"context"
	"io"
)

// Mount binds a host directory into the container.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// RunOptions defines the parameters for running a container.
type RunOptions struct {
	Name             string
	Image            string
	Entrypoint       []string
	Command          []string
	Mounts           []Mount
	WorkingDirectory string
	// Output receives the container's combined stdout and stderr.
	Output io.Writer
}

// ContainerRuntime defines the contract for container operations.
type ContainerRuntime interface {
	// Available reports whether the runtime can be used at all.
	Available(ctx context.Context) error
	// Run executes the container to completion and returns its exit code. A
	// non-nil error means the runtime itself failed, not the workload.
	Run(ctx context.Context, opts RunOptions) (int, error)
}
