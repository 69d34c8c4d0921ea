package dockercli

import (
	"context"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/client"

	"github.com/aleozlx/sprinkler/internal/runtimeclient"
)

// fakeAPI stubs the three Engine API calls Client uses; the embedded
// interface panics on anything else, which is exactly what a test wants.
type fakeAPI struct {
	client.APIClient

	msgs chan events.Message
	errs chan error

	killed  []string
	signals []string
	removed []string
	forced  []bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		msgs: make(chan events.Message, 8),
		errs: make(chan error, 1),
	}
}

func (f *fakeAPI) Events(ctx context.Context, _ events.ListOptions) (<-chan events.Message, <-chan error) {
	return f.msgs, f.errs
}

func (f *fakeAPI) ContainerKill(ctx context.Context, id, signal string) error {
	f.killed = append(f.killed, id)
	f.signals = append(f.signals, signal)
	return nil
}

func (f *fakeAPI) ContainerRemove(ctx context.Context, id string, opts container.RemoveOptions) error {
	f.removed = append(f.removed, id)
	f.forced = append(f.forced, opts.Force)
	return nil
}

func TestEventsNormalizesDaemonMessages(t *testing.T) {
	api := newFakeAPI()
	c := NewWithAPI(api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := c.Events(ctx)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	api.msgs <- events.Message{
		Type:   events.ContainerEventType,
		Action: "oom",
		Actor: events.Actor{
			ID: "c1",
			Attributes: map[string]string{
				runtimeclient.PodNameAttribute: "worker-1",
			},
		},
	}

	e := <-out
	if e.Type != "container" || e.Action != "oom" {
		t.Errorf("normalised event = %+v, want container/oom", e)
	}
	if e.Actor.ID != "c1" {
		t.Errorf("Actor.ID = %q, want c1", e.Actor.ID)
	}
	if pod, ok := e.PodName(); !ok || pod != "worker-1" {
		t.Errorf("PodName = %q/%v, want worker-1/true", pod, ok)
	}
}

func TestEventsClosesOnDaemonError(t *testing.T) {
	api := newFakeAPI()
	c := NewWithAPI(api)

	out, err := c.Events(context.Background())
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	api.errs <- context.DeadlineExceeded
	if _, ok := <-out; ok {
		t.Fatal("event channel should close when the daemon stream errors")
	}
}

func TestKillAndRemove(t *testing.T) {
	api := newFakeAPI()
	c := NewWithAPI(api)
	ctx := context.Background()

	if err := c.Kill(ctx, "c9"); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if err := c.Remove(ctx, "c9"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if len(api.killed) != 1 || api.killed[0] != "c9" || api.signals[0] != "SIGKILL" {
		t.Errorf("kill calls = %v with signals %v, want [c9] with [SIGKILL]", api.killed, api.signals)
	}
	if len(api.removed) != 1 || api.removed[0] != "c9" || !api.forced[0] {
		t.Errorf("remove calls = %v forced %v, want [c9] forced", api.removed, api.forced)
	}
}
