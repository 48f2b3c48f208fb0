package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/portwatch/portwatch/pkg/model"
)

// apiClient is the part of *client.Client the SDK provider uses.
type apiClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	Close() error
}

// SDKProvider talks to the engine API over DOCKER_HOST or the default socket.
type SDKProvider struct {
	api apiClient
}

func NewSDK(host string) (*SDKProvider, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &SDKProvider{api: cli}, nil
}

func (p *SDKProvider) Name() string { return "sdk" }

func (p *SDKProvider) Probe(ctx context.Context) error {
	if _, err := p.api.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	return nil
}

func (p *SDKProvider) Mappings(ctx context.Context) ([]model.DockerMapping, error) {
	containers, err := p.api.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}

	var mappings []model.DockerMapping
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/") // names come with a "/" prefix
		}
		for _, port := range c.Ports {
			// unpublished ports have no host side
			if port.PublicPort == 0 {
				continue
			}
			proto, ok := model.ParseProtocol(port.Type)
			if !ok {
				continue
			}
			mappings = append(mappings, model.DockerMapping{
				Protocol:      proto,
				HostIP:        port.IP,
				HostPort:      int(port.PublicPort),
				ContainerID:   shortID(c.ID),
				ContainerName: name,
				Image:         c.Image,
				ContainerPort: int(port.PrivatePort),
			})
		}
	}
	return mappings, nil
}

func (p *SDKProvider) Stop(ctx context.Context, id string) error {
	return p.api.ContainerStop(ctx, id, container.StopOptions{})
}

func (p *SDKProvider) Restart(ctx context.Context, id string) error {
	return p.api.ContainerRestart(ctx, id, container.StopOptions{})
}

func (p *SDKProvider) Close() error {
	return p.api.Close()
}
