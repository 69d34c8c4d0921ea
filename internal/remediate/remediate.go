// Package remediate — remediate.go
//
// RemediationDispatcher converts classified runtime events into
// registry-entry transitions, container kill/remove actions, and upstream
// notifications. The shape is "meter, then escalate/diminish, then act":
// each classified event ticks a per-key rate meter and frequency divider,
// then applies the matching anomaly-FSM transition under the registry
// entry's lock (see DESIGN.md for the meter+divider+fsm grounding).
package remediate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/anomaly"
	"github.com/aleozlx/sprinkler/internal/classify"
	"github.com/aleozlx/sprinkler/internal/meter"
	"github.com/aleozlx/sprinkler/internal/notify"
	"github.com/aleozlx/sprinkler/internal/observability"
	"github.com/aleozlx/sprinkler/internal/registry"
	"github.com/aleozlx/sprinkler/internal/runtimeclient"
)

// Default thresholds and constants.
const (
	RateThreshold      = 10.0 // Hz; above this an anticipated/other-OOM escalates.
	PanicThreshold     = 70.0 // Hz; above this an other-panic flood reports.
	PodDividerInterval = 5    // per-pod divider interval.
	CatchAllInterval   = 15   // catch-all ("." bucket) divider interval.
	MaxRetry           = 20   // retry ceiling before OutOfControl.
)

// Sender is the subset of *notify.Notifier the dispatcher depends on,
// narrowed to an interface so tests can substitute a recording double
// instead of dialing real TLS connections.
type Sender interface {
	Send(ctx context.Context, n notify.Notification)
}

// Dispatcher implements the anticipated-OOM / other-OOM / other-panic
// remediation algorithms.
type Dispatcher struct {
	registry   *registry.Registry
	runtime    runtimeclient.Client
	notifier   Sender
	masterAddr string
	sprinkler  uint64
	log        *zap.Logger
	metrics    *observability.Metrics

	rateThreshold  float64
	panicThreshold float64
	podInterval    uint
	maxRetry       uint
}

// New creates a Dispatcher with the package's default thresholds.
func New(reg *registry.Registry, rc runtimeclient.Client, nf Sender, masterAddr string, sprinklerID uint64, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry:       reg,
		runtime:        rc,
		notifier:       nf,
		masterAddr:     masterAddr,
		sprinkler:      sprinklerID,
		log:            log,
		rateThreshold:  RateThreshold,
		panicThreshold: PanicThreshold,
		podInterval:    PodDividerInterval,
		maxRetry:       MaxRetry,
	}
}

// WithMetrics attaches a metrics sink, returning d for chaining. Optional:
// a Dispatcher built without it simply skips instrumentation.
func (d *Dispatcher) WithMetrics(m *observability.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Tuning carries the operator-tunable dispatcher constants. Zero fields
// keep the package defaults.
type Tuning struct {
	RateThresholdHz    float64
	PanicThresholdHz   float64
	PodDividerInterval uint
	MaxRetry           uint
}

// WithTuning applies the non-zero fields of t, returning d for chaining.
func (d *Dispatcher) WithTuning(t Tuning) *Dispatcher {
	if t.RateThresholdHz > 0 {
		d.rateThreshold = t.RateThresholdHz
	}
	if t.PanicThresholdHz > 0 {
		d.panicThreshold = t.PanicThresholdHz
	}
	if t.PodDividerInterval > 0 {
		d.podInterval = t.PodDividerInterval
	}
	if t.MaxRetry > 0 {
		d.maxRetry = t.MaxRetry
	}
	return d
}

// Dispatch classifies e and runs the matching algorithm.
func (d *Dispatcher) Dispatch(ctx context.Context, e runtimeclient.Event) {
	handler, key := classify.Route(e)
	switch handler {
	case classify.AnticipatedOOM:
		d.anticipatedOOM(ctx, key, e.Actor)
	case classify.OtherOOM:
		d.otherOOM(ctx, e.Actor)
	case classify.OtherPanic:
		d.otherPanic(ctx)
	}
	if d.metrics != nil {
		d.metrics.TrackedSubjects.Set(float64(d.registry.Len()))
	}
}

// anticipatedOOM implements anticipated-OOM(pod, actor).
func (d *Dispatcher) anticipatedOOM(ctx context.Context, pod string, actor runtimeclient.Actor) {
	entry, ok := d.registry.Get(pod)
	if !ok {
		// Warm start: the first OOM of a previously-unseen pod is already
		// in active remediation, skipping Positive, with the triggering
		// event counted. No action is taken yet — the next admitted
		// escalate cycle decides whether to fix.
		fresh := d.registry.Insert(pod, registry.Seed{
			DividerInterval: d.podInterval,
			Initial:         anomaly.Fixing(1),
		})
		fresh.With(func(m *meter.EventRateMeter, _ *meter.FrequencyDivider, _ *anomaly.Anomaly) {
			m.Tick()
		})
		return
	}

	entry.With(func(m *meter.EventRateMeter, div *meter.FrequencyDivider, fsm *anomaly.Anomaly) {
		m.Tick()
		if m.Read() > d.rateThreshold {
			d.escalateLocked(ctx, div, fsm, actor.ID, d.notificationFields(actor))
			return
		}
		d.diminishLocked(ctx, fsm, d.notificationFields(actor))
	})
}

// otherOOM implements other-OOM(actor): identical to the escalate/diminish
// steps of anticipatedOOM but against the catch-all bucket, with a
// (name, msg) notification shape.
func (d *Dispatcher) otherOOM(ctx context.Context, actor runtimeclient.Actor) {
	entry := d.registry.GetOrInsert(registry.CatchAllKey, registry.Seed{
		DividerInterval: CatchAllInterval,
		Initial:         anomaly.Negative(),
	})
	fields := map[string]string{"name": actor.ID}
	entry.With(func(m *meter.EventRateMeter, div *meter.FrequencyDivider, fsm *anomaly.Anomaly) {
		m.Tick()
		if m.Read() > d.rateThreshold {
			d.escalateLocked(ctx, div, fsm, actor.ID, fields)
			return
		}
		d.diminishLocked(ctx, fsm, fields)
	})
}

// otherPanic implements other-panic(): a flood detector
// against the catch-all bucket. Above panicThreshold, if the FSM
// currently permits the edge to Positive, force Positive and report —
// there is no specific actor to fix here, only to report.
func (d *Dispatcher) otherPanic(ctx context.Context) {
	entry := d.registry.GetOrInsert(registry.CatchAllKey, registry.Seed{
		DividerInterval: CatchAllInterval,
		Initial:         anomaly.Negative(),
	})
	entry.With(func(m *meter.EventRateMeter, div *meter.FrequencyDivider, fsm *anomaly.Anomaly) {
		m.Tick()
		if m.Read() > d.panicThreshold {
			if edge, ok := anomaly.EdgeFor(*fsm, anomaly.Positive()); ok && edge == anomaly.Occurred {
				d.notify(ctx, fmt.Sprintf("DockerOOM %s", edge), nil)
				*fsm = anomaly.Apply(*fsm, edge)
			}
			return
		}
		d.diminishLocked(ctx, fsm, nil)
	})
}

// escalateLocked runs the shared escalate/divider/act sequence used by
// anticipatedOOM and otherOOM, called with the entry's lock held (via
// Entry.With).
func (d *Dispatcher) escalateLocked(ctx context.Context, div *meter.FrequencyDivider, fsm *anomaly.Anomaly, actorID string, fields map[string]string) {
	t := anomaly.Escalate(*fsm, d.maxRetry)
	div.Tick()
	if !div.Read() {
		// Divider does not admit this cycle: no external action, and the
		// transition is not applied — the next admitted cycle re-evaluates
		// from the same state.
		return
	}
	if t == anomaly.FixingTransition {
		d.fix(ctx, actorID, fields)
	}
	if t == anomaly.FixingTransition || t.Important() {
		d.notify(ctx, fmt.Sprintf("DockerOOM %s", t), fields)
	}
	*fsm = anomaly.Apply(*fsm, t)
}

// diminishLocked runs diminish() and always applies the result, reporting
// Disappeared/Fixed transitions upstream.
func (d *Dispatcher) diminishLocked(ctx context.Context, fsm *anomaly.Anomaly, fields map[string]string) {
	t := anomaly.Diminish(*fsm)
	if t == anomaly.Disappeared || t == anomaly.Fixed {
		d.notify(ctx, fmt.Sprintf("DockerOOM %s", t), fields)
	}
	*fsm = anomaly.Apply(*fsm, t)
}

// fix kills then force-removes actorID in its own goroutine, so the
// registry-entry lock holder never blocks on a slow runtime call.
// "Killed & Removed" is reported only once both steps succeed; errors are
// logged and swallowed — the FSM stays in Fixing(n), and the next admitted
// cycle re-attempts until a later diminish or the retry ceiling triggers
// GaveUp.
func (d *Dispatcher) fix(ctx context.Context, actorID string, fields map[string]string) {
	if d.metrics != nil {
		d.metrics.KillsIssued.Inc()
	}
	go func() {
		if err := d.runtime.Kill(ctx, actorID); err != nil {
			d.log.Error("kill failed, will retry next cycle", zap.String("actor_id", actorID), zap.Error(err))
			return
		}
		if err := d.runtime.Remove(ctx, actorID); err != nil {
			d.log.Error("remove failed, will retry next cycle", zap.String("actor_id", actorID), zap.Error(err))
			return
		}
		d.notify(ctx, fmt.Sprintf("Killed & Removed %s", actorID), fields)
	}()
}

// notify constructs and asynchronously dispatches a Notification carrying
// msg plus fields, running the send in its own goroutine so the caller
// (the registry-entry lock holder) never blocks on network I/O.
func (d *Dispatcher) notify(ctx context.Context, msg string, fields map[string]string) {
	n := notify.New(d.sprinkler, d.masterAddr, msg)
	for k, v := range fields {
		n = n.With(k, v)
	}
	go d.notifier.Send(ctx, n)
}

// notificationFields builds the pod namespace/name/uid triple an
// anticipated-OOM notification carries, keyed by the same well-known
// attribute names the runtime stamps on the event.
func (d *Dispatcher) notificationFields(actor runtimeclient.Actor) map[string]string {
	return map[string]string{
		runtimeclient.PodNamespaceAttribute: actor.Attributes[runtimeclient.PodNamespaceAttribute],
		runtimeclient.PodNameAttribute:      actor.Attributes[runtimeclient.PodNameAttribute],
		runtimeclient.PodUIDAttribute:       actor.Attributes[runtimeclient.PodUIDAttribute],
	}
}
