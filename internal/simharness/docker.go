package simharness

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"ConvergeCast/internal/logger"
)

// DockerHarness spins up a fleet of meshnode containers on one bridge
// network, the containerized analogue of the teacher's DockerBootstrap:
// that type discovered already-running containers by name suffix via
// `docker ps`/`docker inspect`; this one also creates and tears them down,
// using the client API instead of shelling out to the docker CLI.
type DockerHarness struct {
	cli     *client.Client
	cfg     Config
	lgr     logger.Logger
	netID   string
	started []string // container IDs, in start order
}

// NewDockerHarness builds a harness against the local Docker daemon
// (DOCKER_HOST / the default socket, per client.FromEnv).
func NewDockerHarness(cfg Config, lgr logger.Logger) (*DockerHarness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("simharness: docker client: %w", err)
	}
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	return &DockerHarness{cli: cli, cfg: cfg, lgr: lgr}, nil
}

// CreateNetwork creates cfg.Network as a bridge network if it does not
// already exist, and records its ID for later cleanup.
func (h *DockerHarness) CreateNetwork(ctx context.Context) error {
	existing, err := h.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return fmt.Errorf("simharness: list networks: %w", err)
	}
	for _, n := range existing {
		if n.Name == h.cfg.Network {
			h.netID = n.ID
			return nil
		}
	}
	resp, err := h.cli.NetworkCreate(ctx, h.cfg.Network, network.CreateOptions{Driver: "bridge"})
	if err != nil {
		return fmt.Errorf("simharness: create network %q: %w", h.cfg.Network, err)
	}
	h.netID = resp.ID
	return nil
}

// StartNode launches container index i: node i=0 is the sink, every other
// node bootstraps statically off the sink's container name (resolved by
// Docker's embedded DNS on the shared network).
func (h *DockerHarness) StartNode(ctx context.Context, i int) error {
	name := h.cfg.containerName(i)
	isSink := i == 0
	env := []string{
		fmt.Sprintf("NODE_ID=%d", i+1),
		fmt.Sprintf("NODE_IS_SINK=%t", isSink),
		"LINK_TRANSPORT=udp",
	}
	if !isSink {
		env = append(env, "BOOTSTRAP_MODE=static",
			fmt.Sprintf("BOOTSTRAP_PEERS=%s:%d", h.cfg.containerName(0), h.cfg.DebugPort))
	}

	resp, err := h.cli.ContainerCreate(ctx,
		&container.Config{
			Image: h.cfg.Image,
			Env:   env,
		},
		&container.HostConfig{
			NetworkMode: container.NetworkMode(h.cfg.Network),
		},
		nil, nil, name,
	)
	if err != nil {
		return fmt.Errorf("simharness: create container %q: %w", name, err)
	}
	if err := h.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("simharness: start container %q: %w", name, err)
	}
	h.started = append(h.started, resp.ID)
	h.lgr.Info("simharness: node started", logger.F("name", name), logger.F("sink", isSink))
	return nil
}

// StartAll launches cfg.NodeCount containers, sink first.
func (h *DockerHarness) StartAll(ctx context.Context) error {
	for i := 0; i < h.cfg.NodeCount; i++ {
		if err := h.StartNode(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// Discover lists the running simulation containers and returns their
// debug-endpoint addresses, generalizing the teacher's name-suffix +
// network-membership filter from `docker_bootstrap.go` to the client API:
// list by name prefix, inspect each for network membership, format the
// endpoint as container-name:debugPort (Docker's embedded DNS resolves
// the name within the shared network, same as the teacher's comment
// "use name (DNS) instead of IP").
func (h *DockerHarness) Discover(ctx context.Context) ([]string, error) {
	containers, err := h.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("simharness: list containers: %w", err)
	}

	var endpoints []string
	for _, c := range containers {
		var name string
		for _, n := range c.Names {
			trimmed := strings.TrimPrefix(n, "/")
			if strings.HasPrefix(trimmed, h.cfg.ContainerPrefix) {
				name = trimmed
				break
			}
		}
		if name == "" {
			continue
		}
		if _, ok := c.NetworkSettings.Networks[h.cfg.Network]; !ok {
			continue
		}
		endpoints = append(endpoints, fmt.Sprintf("%s:%d", name, h.cfg.DebugPort))
	}
	return endpoints, nil
}

// Close stops and removes every started container and the network, best
// effort: it collects and returns the first error but always attempts
// every teardown step.
func (h *DockerHarness) Close(ctx context.Context) error {
	var firstErr error
	for _, id := range h.started {
		if err := h.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("simharness: stop %s: %w", id, err)
		}
		if err := h.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("simharness: remove %s: %w", id, err)
		}
	}
	if h.netID != "" {
		if err := h.cli.NetworkRemove(ctx, h.netID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("simharness: remove network: %w", err)
		}
	}
	return firstErr
}
