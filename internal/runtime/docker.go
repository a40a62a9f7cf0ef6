package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	slasherrors "slashc/internal/errors"
	"slashc/pkg/runtime"
)

// DockerRuntime implements the ContainerRuntime interface using the Docker
// Engine API.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime creates a new DockerRuntime instance using client.FromEnv.
func NewDockerRuntime() (*DockerRuntime, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, slasherrors.NewRunnerUnavailableError(
			"Failed to create Docker client", err.Error(),
			"Check DOCKER_HOST and related environment variables", err)
	}

	return &DockerRuntime{
		client: dockerClient,
	}, nil
}

// Available pings the daemon.
func (d *DockerRuntime) Available(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		return slasherrors.NewRunnerUnavailableError(
			"Failed to connect to Docker daemon", err.Error(),
			"Start the Docker daemon or use runtime.engine=cli", err)
	}
	return nil
}

// pullImage pulls an image, discarding the progress stream.
func (d *DockerRuntime) pullImage(ctx context.Context, imageName string) error {
	slog.Info("Pulling Docker image", "image", imageName)

	reader, err := d.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to stream image pull output: %w", err)
	}

	slog.Info("Successfully pulled Docker image", "image", imageName)
	return nil
}

func containerConfig(opts runtime.RunOptions) (*container.Config, *container.HostConfig) {
	mounts := make([]mount.Mount, 0, len(opts.Mounts))
	for _, m := range opts.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	cfg := &container.Config{
		Image:      opts.Image,
		Entrypoint: opts.Entrypoint,
		Cmd:        opts.Command,
		WorkingDir: opts.WorkingDirectory,
	}
	hostCfg := &container.HostConfig{
		Mounts: mounts,
	}
	return cfg, hostCfg
}

func (d *DockerRuntime) create(ctx context.Context, opts runtime.RunOptions) (string, error) {
	cfg, hostCfg := containerConfig(opts)

	resp, err := d.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if errdefs.IsNotFound(err) {
		if pullErr := d.pullImage(ctx, opts.Image); pullErr != nil {
			return "", pullErr
		}
		resp, err = d.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	}
	if err != nil {
		if client.IsErrConnectionFailed(err) {
			return "", slasherrors.NewRunnerUnavailableError(
				"Failed to connect to Docker daemon", err.Error(), "", err)
		}
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	return resp.ID, nil
}

// Run creates, starts and waits for a container, copying its demultiplexed
// output to opts.Output. The container is always removed.
func (d *DockerRuntime) Run(ctx context.Context, opts runtime.RunOptions) (int, error) {
	slog.Info("Running container", "image", opts.Image, "entrypoint", opts.Entrypoint, "command", opts.Command)

	containerID, err := d.create(ctx, opts)
	if err != nil {
		return 0, err
	}
	defer d.remove(containerID)

	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return 0, fmt.Errorf("failed to start container: %w", err)
	}

	logs, err := d.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get container logs: %w", err)
	}
	defer logs.Close()

	output := opts.Output
	if output == nil {
		output = io.Discard
	}
	if _, err := stdcopy.StdCopy(output, output, logs); err != nil {
		return 0, fmt.Errorf("failed to stream container output: %w", err)
	}

	statusCh, errCh := d.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, fmt.Errorf("failed to wait for container: %w", err)
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return 0, fmt.Errorf("container wait reported: %s", status.Error.Message)
		}
		return int(status.StatusCode), nil
	}
}

// remove force-removes the container. It uses a fresh context so cleanup
// still happens after the run context is cancelled.
func (d *DockerRuntime) remove(containerID string) {
	if err := d.client.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true}); err != nil {
		slog.Error("Failed to remove container", "containerID", containerID, "error", err)
	}
}
