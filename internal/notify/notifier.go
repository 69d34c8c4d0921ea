// Package notify — notifier.go
//
// Notifier is the asynchronous, retrying, TLS-framed emitter. Each call
// to Send runs as an independent goroutine and yields at every I/O call
// and at its retry wait, which here is a cancellable time.Timer rather
// than a blocking sleep, so one unreachable master cannot starve other
// notifiers.
package notify

import (
	"context"
	"crypto/x509"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/observability"
	"github.com/aleozlx/sprinkler/internal/transport"
)

// RetryDelay is the wait between a failed delivery attempt and the next.
// Exposed as a var, not a const, so tests can shrink it.
var RetryDelay = 20 * time.Second

// Dialer opens a transport connection to addr. Exposed as an interface so
// tests can substitute an in-memory or plaintext listener instead of a
// real TLS dial.
type Dialer interface {
	Dial(addr string) (net.Conn, error)
}

// tlsDialer is the production Dialer, pinning pinnedCert as the sole
// trust anchor.
type tlsDialer struct {
	pinnedCert *x509.CertPool
}

// NewTLSDialer returns a Dialer that dials addr over TLS trusting only
// pinnedCert.
func NewTLSDialer(pinnedCert *x509.CertPool) Dialer {
	return tlsDialer{pinnedCert: pinnedCert}
}

func (d tlsDialer) Dial(addr string) (net.Conn, error) {
	return transport.DialTLS(addr, d.pinnedCert)
}

// Notifier delivers Notifications to a single master address, retrying
// indefinitely on transport failure.
type Notifier struct {
	dialer  Dialer
	log     *zap.Logger
	metrics *observability.Metrics

	delivered atomic.Uint64
	retried   atomic.Uint64
}

// NewNotifier creates a Notifier using dialer to reach the master.
func NewNotifier(dialer Dialer, log *zap.Logger) *Notifier {
	return &Notifier{dialer: dialer, log: log}
}

// WithMetrics attaches a metrics sink, returning nf for chaining.
// Optional: a Notifier built without it only keeps its own counters.
func (nf *Notifier) WithMetrics(m *observability.Metrics) *Notifier {
	nf.metrics = m
	return nf
}

// Send delivers n, retrying every RetryDelay until ctx is cancelled or
// delivery succeeds. It is meant to be run in its own goroutine; it
// returns only on success or ctx cancellation, polling cancellation at
// every suspension point — here, at dial and at the retry wait.
func (nf *Notifier) Send(ctx context.Context, n Notification) {
	body := encodeNotification(n)

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		if err := nf.attempt(n, body); err != nil {
			nf.log.Warn("notification delivery failed, will retry",
				zap.Uint64("sprinkler_id", n.SprinklerID),
				zap.String("address", n.Address),
				zap.Error(err))
			nf.retried.Add(1)
			if nf.metrics != nil {
				nf.metrics.NotificationsRetried.Inc()
			}

			timer := time.NewTimer(RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		nf.delivered.Add(1)
		if nf.metrics != nil {
			nf.metrics.NotificationsSent.Inc()
		}
		return
	}
}

// attempt makes one delivery attempt: dial, write the framed envelope,
// close. Any failure at any step is reported to the caller for retry.
func (nf *Notifier) attempt(n Notification, body []byte) error {
	conn, err := nf.dialer.Dial(n.Address)
	if err != nil {
		return err
	}
	defer conn.Close()

	return transport.WriteEnvelope(conn, n.SprinklerID, body)
}

// Delivered returns the count of notifications successfully delivered.
func (nf *Notifier) Delivered() uint64 { return nf.delivered.Load() }

// Retried returns the count of delivery attempts that failed and were
// rescheduled.
func (nf *Notifier) Retried() uint64 { return nf.retried.Load() }

func encodeNotification(n Notification) []byte {
	return transport.EncodeFields(n.Fields)
}
