// Package fake provides an in-memory runtimeclient.Client test double,
// favoring a hand-written fake over a mocking framework.
package fake

import (
	"context"
	"sync"

	"github.com/aleozlx/sprinkler/internal/runtimeclient"
)

// Client is a channel-driven runtimeclient.Client. Tests push events onto
// Push and assert against Kills/Removes.
type Client struct {
	mu      sync.Mutex
	events  chan runtimeclient.Event
	kills   []string
	removes []string

	// KillErr and RemoveErr, if set, are returned by Kill/Remove instead
	// of succeeding — used to exercise the runtime-action-failure path
	// (logged, not propagated; the FSM stays in Fixing(n)).
	KillErr   error
	RemoveErr error
}

// New creates a Client with the given event channel buffer size.
func New(buffer int) *Client {
	return &Client{events: make(chan runtimeclient.Event, buffer)}
}

// Push enqueues one event for the next Events() reader to observe.
func (c *Client) Push(e runtimeclient.Event) {
	c.events <- e
}

// Close closes the event stream, simulating runtime termination.
func (c *Client) Close() {
	close(c.events)
}

// Events implements runtimeclient.Client.
func (c *Client) Events(ctx context.Context) (<-chan runtimeclient.Event, error) {
	return c.events, nil
}

// Kill implements runtimeclient.Client.
func (c *Client) Kill(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kills = append(c.kills, id)
	return c.KillErr
}

// Remove implements runtimeclient.Client.
func (c *Client) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removes = append(c.removes, id)
	return c.RemoveErr
}

// Kills returns a snapshot of the ids passed to Kill, in call order.
func (c *Client) Kills() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.kills))
	copy(out, c.kills)
	return out
}

// Removes returns a snapshot of the ids passed to Remove, in call order.
func (c *Client) Removes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.removes))
	copy(out, c.removes)
	return out
}
