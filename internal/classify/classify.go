// Package classify — classify.go
//
// EventClassifier. It owns no state; it only dispatches a normalised
// runtimeclient.Event to one of three handlers before handing off to
// remediation.
package classify

import "github.com/aleozlx/sprinkler/internal/runtimeclient"

// Handler names which RemediationDispatcher algorithm an event routes to.
type Handler uint8

const (
	// AnticipatedOOM is a container OOM with a known pod-name attribute.
	AnticipatedOOM Handler = iota
	// OtherOOM is a container OOM with no pod-name attribute.
	OtherOOM
	// OtherPanic is any non-OOM event.
	OtherPanic
)

func (h Handler) String() string {
	switch h {
	case AnticipatedOOM:
		return "anticipated-OOM"
	case OtherOOM:
		return "other-OOM"
	case OtherPanic:
		return "other-panic"
	default:
		return "unknown"
	}
}

// Route classifies e against the routing table, returning the handler
// and the registry key the RemediationDispatcher should use.
func Route(e runtimeclient.Event) (handler Handler, key string) {
	if e.Type != "container" || e.Action != string(runtimeclient.EventContainerOOM) {
		return OtherPanic, "."
	}
	if pod, ok := e.PodName(); ok && pod != "" {
		return AnticipatedOOM, pod
	}
	return OtherOOM, "."
}
