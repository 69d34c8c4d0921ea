package notify_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/notify"
	"github.com/aleozlx/sprinkler/internal/transport"
)

// countingDialer fails the first N dials, then succeeds by writing to an
// in-memory pipe whose far end is read by the test.
type countingDialer struct {
	failUntil int32
	attempts  atomic.Int32
	received  chan transport.Envelope
}

func (d *countingDialer) Dial(addr string) (net.Conn, error) {
	n := d.attempts.Add(1)
	if n <= d.failUntil {
		return nil, errors.New("master unreachable")
	}

	client, server := net.Pipe()
	go func() {
		env, err := transport.ReadEnvelope(server)
		server.Close()
		if err == nil {
			d.received <- env
		}
	}()
	return client, nil
}

func TestNotifierDeliversOnFirstAttempt(t *testing.T) {
	d := &countingDialer{received: make(chan transport.Envelope, 1)}
	nf := notify.NewNotifier(d, zap.NewNop())

	n := notify.New(1, "master:3777", "DockerOOM Fixing")
	nf.Send(context.Background(), n)

	select {
	case env := <-d.received:
		if env.SprinklerID != 1 {
			t.Errorf("SprinklerID = %d, want 1", env.SprinklerID)
		}
	case <-time.After(time.Second):
		t.Fatal("notification never delivered")
	}

	if nf.Delivered() != 1 {
		t.Errorf("Delivered() = %d, want 1", nf.Delivered())
	}
	if nf.Retried() != 0 {
		t.Errorf("Retried() = %d, want 0", nf.Retried())
	}
}

// TestNotifierRetriesThenDelivers exercises scenario S6: the master is
// unreachable for the first two attempts, then recovers; exactly one
// message is delivered.
func TestNotifierRetriesThenDelivers(t *testing.T) {
	orig := notify.RetryDelay
	notify.RetryDelay = time.Millisecond
	defer func() { notify.RetryDelay = orig }()

	d := &countingDialer{failUntil: 2, received: make(chan transport.Envelope, 1)}
	nf := notify.NewNotifier(d, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		nf.Send(context.Background(), notify.New(2, "master:3777", "DockerOOM OutOfControl"))
	}()

	select {
	case env := <-d.received:
		if env.SprinklerID != 2 {
			t.Errorf("SprinklerID = %d, want 2", env.SprinklerID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never delivered after retries")
	}
	wg.Wait()

	if nf.Delivered() != 1 {
		t.Errorf("Delivered() = %d, want 1", nf.Delivered())
	}
	if nf.Retried() != 2 {
		t.Errorf("Retried() = %d, want 2", nf.Retried())
	}
}

func TestNotifierStopsOnContextCancel(t *testing.T) {
	orig := notify.RetryDelay
	notify.RetryDelay = time.Hour
	defer func() { notify.RetryDelay = orig }()

	d := &countingDialer{failUntil: 1000, received: make(chan transport.Envelope, 1)}
	nf := notify.NewNotifier(d, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		nf.Send(ctx, notify.New(3, "master:3777", "DockerOOM Fixing"))
		close(done)
	}()

	// Let the first failed attempt happen, then cancel during the retry wait.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send did not return after context cancellation")
	}

	if nf.Delivered() != 0 {
		t.Errorf("Delivered() = %d, want 0", nf.Delivered())
	}
}
