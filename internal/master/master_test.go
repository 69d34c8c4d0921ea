package master_test

import (
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/master"
	"github.com/aleozlx/sprinkler/internal/transport"
)

func TestInboxRegistryDeliversRegisteredSprinkler(t *testing.T) {
	ir := master.NewInboxRegistry()
	ch := ir.Register(1)

	if !ir.Deliver(1, []byte("msg = ok")) {
		t.Fatal("Deliver returned false for a registered sprinkler")
	}

	select {
	case m := <-ch:
		if string(m.Body) != "msg = ok" {
			t.Errorf("Body = %q, want %q", m.Body, "msg = ok")
		}
	case <-time.After(time.Second):
		t.Fatal("message never arrived on inbox channel")
	}
}

func TestInboxRegistryRejectsUnknownSprinkler(t *testing.T) {
	ir := master.NewInboxRegistry()
	if ir.Deliver(99, []byte("x")) {
		t.Fatal("Deliver returned true for an unregistered sprinkler")
	}
}

func TestInboxRegistryDropsNewestWhenFull(t *testing.T) {
	ir := master.NewInboxRegistry()
	ir.Register(1)

	for i := 0; i < master.InboxCapacity; i++ {
		if !ir.Deliver(1, []byte("fill")) {
			t.Fatalf("Deliver failed before reaching capacity at i=%d", i)
		}
	}
	if ir.Deliver(1, []byte("overflow")) {
		t.Fatal("Deliver should drop-newest once the inbox is full")
	}
}

func TestReceiverDecodesAndRoutesEnvelopes(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	ir := master.NewInboxRegistry()
	ch := ir.Register(5)

	lis := &singleConnListener{conn: server, done: make(chan struct{})}
	defer lis.Close()
	r := master.NewReceiver(lis, ir, zap.NewNop())
	go r.Serve()

	body := []byte("msg = hello\n")
	if err := transport.WriteEnvelope(client, 5, body); err != nil {
		t.Fatalf("WriteEnvelope: %v", err)
	}

	select {
	case m := <-ch:
		if string(m.Body) != string(body) {
			t.Errorf("Body = %q, want %q", m.Body, body)
		}
	case <-time.After(time.Second):
		t.Fatal("envelope never routed to inbox")
	}
}

// singleConnListener is a net.Listener test double that yields exactly
// one pre-established connection, then blocks until closed.
type singleConnListener struct {
	conn   net.Conn
	served bool
	done   chan struct{}
	once   sync.Once
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	if !l.served {
		l.served = true
		return l.conn, nil
	}
	<-l.done
	return nil, net.ErrClosed
}

func (l *singleConnListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *singleConnListener) Addr() net.Addr { return l.conn.LocalAddr() }
