// Package master — receiver.go
//
// MasterReceiver: accepts TLS connections, decodes framed envelopes, and
// routes each into the addressed sprinkler's inbox — a TLS listener plus
// a per-connection goroutine, against an opaque framed message rather
// than a .proto service (see DESIGN.md for why no gRPC).
package master

import (
	"net"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/transport"
)

// InboxCapacity is the per-sprinkler inbound channel capacity.
const InboxCapacity = 512

// Inbox routes a decoded message body to the sprinkler identified by id.
// Overflow policy is drop-newest with a warning log; senders retry.
type Inbox interface {
	// Deliver attempts to push body into the inbox for sprinklerID. It
	// returns false if the inbox is full or unknown.
	Deliver(sprinklerID uint64, body []byte) bool
}

// Receiver accepts TLS connections on a listener and decodes framed
// envelopes, forwarding each to routes.
type Receiver struct {
	listener net.Listener
	routes   Inbox
	log      *zap.Logger
}

// NewReceiver creates a Receiver over an already-bound TLS listener
// (see transport.Listen).
func NewReceiver(listener net.Listener, routes Inbox, log *zap.Logger) *Receiver {
	return &Receiver{listener: listener, routes: routes, log: log}
}

// Serve accepts connections until the listener is closed. Each connection
// is handled in its own goroutine so one slow or hostile sender cannot
// stall delivery for others.
func (r *Receiver) Serve() error {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return err
		}
		go r.handle(conn)
	}
}

// handle decodes a stream of framed envelopes from conn until EOF or a
// decode failure, either of which drops the connection.
func (r *Receiver) handle(conn net.Conn) {
	defer conn.Close()

	for {
		env, err := transport.ReadEnvelope(conn)
		if err != nil {
			return
		}
		if !r.routes.Deliver(env.SprinklerID, env.Body) {
			r.log.Warn("inbox full or unknown sprinkler, dropping message",
				zap.Uint64("sprinkler_id", env.SprinklerID))
		}
	}
}
