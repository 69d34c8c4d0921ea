// Package runtimeclient defines the container-runtime contract Sprinkler
// consumes. The runtime itself — the event source, and the kill/remove
// API — is an external collaborator deliberately out of scope; this
// package only pins the interface boundary the rest of the agent is
// built against.
package runtimeclient

import "context"

// EventType names the kind of runtime event observed.
type EventType string

const (
	// EventContainerOOM is a container killed by the OOM killer.
	EventContainerOOM EventType = "oom"
	// EventOther covers every non-OOM container/runtime event.
	EventOther EventType = "other"
)

// Actor identifies the container or process an Event concerns.
type Actor struct {
	ID         string
	Attributes map[string]string
}

// PodNameAttribute is the well-known attribute key carrying a pod name,
// used by the classifier's routing table.
const PodNameAttribute = "io.kubernetes.pod.name"

// PodNamespaceAttribute and PodUIDAttribute round out the pod identity
// triple required on anticipated-OOM notifications.
const (
	PodNamespaceAttribute = "io.kubernetes.pod.namespace"
	PodUIDAttribute       = "io.kubernetes.pod.uid"
)

// Event is a normalised runtime event, as consumed by the classifier.
type Event struct {
	Type   string // "container", or anything else for non-container events.
	Action string // "oom", or any other runtime action string.
	Actor  Actor
}

// PodName returns the pod-name attribute, if present.
func (e Event) PodName() (string, bool) {
	name, ok := e.Actor.Attributes[PodNameAttribute]
	return name, ok
}

// Client is the runtime contract consumed by the agent: a stream of
// events, plus kill/remove actions against a container id. Errors are
// opaque and always recoverable — callers log, never propagate.
type Client interface {
	// Events returns a channel of runtime events. The channel is closed
	// when the stream terminates; that termination is fatal for the
	// agent process (an external supervisor restarts it).
	Events(ctx context.Context) (<-chan Event, error)

	// Kill sends the default (SIGKILL-equivalent) signal to the container.
	Kill(ctx context.Context, id string) error

	// Remove force-removes the container.
	Remove(ctx context.Context, id string) error
}
