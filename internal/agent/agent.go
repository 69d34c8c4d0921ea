// Package agent — agent.go
//
// AgentRuntime: the agent-side event ingestion loop. A select over the
// event channel and a heartbeat ticker, dispatching each event directly rather
// than through a queue-plus-workers split — the remediation pipeline is
// cheap enough per event that the split adds no value here.
package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/observability"
	"github.com/aleozlx/sprinkler/internal/remediate"
	"github.com/aleozlx/sprinkler/internal/runtimeclient"
	"github.com/aleozlx/sprinkler/internal/sprinkler"
)

// HeartbeatLogEvery is the period of the ingestion loop's heartbeat debug
// log, which fires whether or not events are flowing, matching the original Rust agent's
// trace!("sprinkler[{}] heartbeat") cadence.
const HeartbeatLogEvery = 30 * time.Second

// Runtime is the agent-side sprinkler.Role: it consumes runtime events via
// runtimeclient.Client and dispatches them through a remediate.Dispatcher.
type Runtime struct {
	client     runtimeclient.Client
	dispatcher *remediate.Dispatcher
	metrics    *observability.Metrics
	log        *zap.Logger
}

// NewRuntime creates a Runtime.
func NewRuntime(client runtimeclient.Client, dispatcher *remediate.Dispatcher, metrics *observability.Metrics, log *zap.Logger) *Runtime {
	return &Runtime{client: client, dispatcher: dispatcher, metrics: metrics, log: log}
}

// RunAgent implements sprinkler.Role. It ingests events until the stream
// closes or s is deactivated, polling the deactivation flag at every
// suspension point: each received event and each heartbeat tick.
func (r *Runtime) RunAgent(s *sprinkler.Sprinkler) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := r.client.Events(ctx)
	if err != nil {
		r.log.Error("failed to open runtime event stream", zap.Error(err))
		return
	}

	ticker := time.NewTicker(HeartbeatLogEvery)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				r.log.Error("runtime event stream closed")
				return
			}
			if s.Deactivated() {
				return
			}
			if r.metrics != nil {
				r.metrics.EventsProcessed.Inc()
			}
			r.dispatchSafely(ctx, e)
		case <-ticker.C:
			if s.Deactivated() {
				return
			}
			r.log.Debug("sprinkler heartbeat", zap.Uint64("sprinkler_id", s.ID()), zap.String("hostname", s.Hostname()))
		}
	}
}

// dispatchSafely runs one dispatch under recover, so a panic while handling
// a single malformed event cannot take the whole ingestion loop down with
// it — the loop's next iteration proceeds normally, standing in for the
// "isolated task, re-spawned on panic" behavior a registry-lock-poisoning
// panic would need in a cooperative runtime.
func (r *Runtime) dispatchSafely(ctx context.Context, e runtimeclient.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("recovered from panic while dispatching event",
				zap.Any("panic", rec),
				zap.String("actor_id", e.Actor.ID))
		}
	}()
	r.dispatcher.Dispatch(ctx, e)
}

// RunMaster implements sprinkler.Role for completeness: the anticipated-
// OOM/other-OOM/other-panic watchdog has no master-side behavior of its
// own beyond what master.Receiver already runs fleet-wide, so this is a
// no-op heartbeat loop mirroring the original Rust DockerOOM's
// unimplemented activate_master stub.
func (r *Runtime) RunMaster(s *sprinkler.Sprinkler) {
	ticker := time.NewTicker(HeartbeatLogEvery)
	defer ticker.Stop()
	for range ticker.C {
		if s.Deactivated() {
			return
		}
	}
}
