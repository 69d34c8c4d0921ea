// Package dockercli is the concrete runtimeclient.Client the agent binary
// wires in production, backed by the Docker Engine API client.
package dockercli

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/aleozlx/sprinkler/internal/runtimeclient"
)

// killSignal is the signal Kill asks the daemon to deliver. SIGKILL, not
// SIGTERM: by the time remediation fires the container is already OOM
// crash-looping and gets no grace period.
const killSignal = "SIGKILL"

// Client implements runtimeclient.Client over the Docker Engine API.
type Client struct {
	api client.APIClient
}

// New connects to the local daemon using the standard environment
// (DOCKER_HOST and friends), negotiating the API version so the agent
// runs against whatever daemon release the host carries.
func New() (*Client, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("dockercli: connect: %w", err)
	}
	return &Client{api: api}, nil
}

// NewWithAPI wraps an existing Engine API client.
func NewWithAPI(api client.APIClient) *Client {
	return &Client{api: api}
}

// Events streams container events from the daemon, normalised into
// runtimeclient.Event values. The returned channel is closed when the
// daemon stream errors or ctx is cancelled; stream termination is fatal
// for the agent, which exits for an external supervisor to restart.
func (c *Client) Events(ctx context.Context) (<-chan runtimeclient.Event, error) {
	msgs, errs := c.api.Events(ctx, events.ListOptions{
		Filters: filters.NewArgs(filters.Arg("type", "container")),
	})

	out := make(chan runtimeclient.Event, 64)
	go func() {
		defer close(out)
		for {
			select {
			case m := <-msgs:
				select {
				case out <- normalize(m):
				case <-ctx.Done():
					return
				}
			case <-errs:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// normalize maps the daemon's event message onto the narrow Event type
// the classifier consumes. The daemon's own type/action strings pass
// through untouched ("container"/"oom" are what classify.Route matches;
// everything else lands in the other-panic bucket).
func normalize(m events.Message) runtimeclient.Event {
	return runtimeclient.Event{
		Type:   string(m.Type),
		Action: string(m.Action),
		Actor: runtimeclient.Actor{
			ID:         m.Actor.ID,
			Attributes: m.Actor.Attributes,
		},
	}
}

// Kill delivers SIGKILL to the container.
func (c *Client) Kill(ctx context.Context, id string) error {
	if err := c.api.ContainerKill(ctx, id, killSignal); err != nil {
		return fmt.Errorf("dockercli: kill %s: %w", id, err)
	}
	return nil
}

// Remove force-removes the container.
func (c *Client) Remove(ctx context.Context, id string) error {
	if err := c.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("dockercli: remove %s: %w", id, err)
	}
	return nil
}
