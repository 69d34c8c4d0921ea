// Package observability — metrics.go
//
// Prometheus metrics for Sprinkler: a private prometheus.Registry
// carrying one struct field per instrument, registered in NewMetrics and
// served via promhttp on a dedicated mux. Metric names follow the
// sprinkler_<subsystem>_<name>_<unit> convention.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for Sprinkler.
type Metrics struct {
	registry *prometheus.Registry

	// EventsProcessed counts runtime events classified and dispatched.
	EventsProcessed prometheus.Counter

	// KillsIssued counts kill-and-remove actions invoked.
	KillsIssued prometheus.Counter

	// NotificationsSent counts notifications successfully delivered.
	NotificationsSent prometheus.Counter

	// NotificationsRetried counts notification delivery attempts that
	// failed and were rescheduled.
	NotificationsRetried prometheus.Counter

	// TrackedSubjects is the current number of registry entries (pods
	// plus the catch-all and reserved buckets).
	TrackedSubjects prometheus.Gauge
}

// NewMetrics creates and registers all Sprinkler Prometheus metrics on a
// dedicated registry, not the global default, so the process can be
// embedded without colliding with another instrumented library.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	start := time.Now()

	m := &Metrics{
		registry: reg,

		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sprinkler",
			Subsystem: "events",
			Name:      "processed_total",
			Help:      "Total runtime events classified and dispatched.",
		}),

		KillsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sprinkler",
			Subsystem: "remediation",
			Name:      "kills_total",
			Help:      "Total kill-and-remove actions invoked against containers.",
		}),

		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sprinkler",
			Subsystem: "notify",
			Name:      "delivered_total",
			Help:      "Total notifications successfully delivered to the master.",
		}),

		NotificationsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sprinkler",
			Subsystem: "notify",
			Name:      "retried_total",
			Help:      "Total notification delivery attempts that failed and were rescheduled.",
		}),

		TrackedSubjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sprinkler",
			Subsystem: "registry",
			Name:      "tracked_subjects",
			Help:      "Current number of subjects tracked in the anomaly registry.",
		}),
	}

	// Uptime is computed at scrape time rather than kept fresh by a
	// background ticker; a gauge nobody scrapes costs nothing.
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sprinkler",
		Subsystem: "process",
		Name:      "uptime_seconds",
		Help:      "Seconds since this process started, computed at scrape time.",
	}, func() float64 { return time.Since(start).Seconds() })

	reg.MustRegister(
		m.EventsProcessed,
		m.KillsIssued,
		m.NotificationsSent,
		m.NotificationsRetried,
		m.TrackedSubjects,
		uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics exposes /metrics, plus a trivial /healthz probe, on addr
// until ctx is cancelled. The server only ever answers small GETs from a
// scraper, so a header read timeout is the one limit that matters; there
// are no long-lived request bodies or streaming responses to bound.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
}
