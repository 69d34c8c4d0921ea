// Package integration exercises the full agent -> TLS transport -> master
// path together, where the package-level unit tests (internal/remediate,
// internal/notify, internal/master) each cover one stage in isolation with
// a recording double or an in-memory net.Pipe. Here every stage is the real
// component, wired end to end rather than mocked.
package integration

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/agent"
	"github.com/aleozlx/sprinkler/internal/master"
	"github.com/aleozlx/sprinkler/internal/notify"
	"github.com/aleozlx/sprinkler/internal/registry"
	"github.com/aleozlx/sprinkler/internal/remediate"
	"github.com/aleozlx/sprinkler/internal/runtimeclient"
	"github.com/aleozlx/sprinkler/internal/runtimeclient/fake"
	"github.com/aleozlx/sprinkler/internal/sprinkler"
	"github.com/aleozlx/sprinkler/internal/transport"
)

// selfSignedCert returns a self-signed certificate/key pair for "localhost"
// and 127.0.0.1 plus an x509.CertPool trusting it, so the test can exercise the real
// crypto/tls dial/listen path instead of an in-memory net.Pipe.
func selfSignedCert(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "sprinkler-master-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("X509KeyPair: %v", err)
	}

	pool := x509.NewCertPool()
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	pool.AddCert(parsed)

	return cert, pool
}

// TestAgentToMasterOverRealTLS drives an anticipated-OOM flood through a
// real agent.Runtime and RemediationDispatcher, over a genuine TLS
// connection, into a MasterReceiver, and asserts that a notification (an
// admitted cycle sends "DockerOOM Fixing" and "Killed & Removed <id>")
// arrives on the master's inbox for the sprinkler id that sent it — exercising the dispatcher, notifier, and receiver wiring
// together rather than any one component in isolation.
func TestAgentToMasterOverRealTLS(t *testing.T) {
	cert, pool := selfSignedCert(t)

	listener, err := transport.Listen("127.0.0.1:0", cert)
	if err != nil {
		t.Fatalf("transport.Listen: %v", err)
	}
	defer listener.Close()

	inbox := master.NewInboxRegistry()
	const sprinklerID = uint64(7)
	ch := inbox.Register(sprinklerID)

	receiver := master.NewReceiver(listener, inbox, zap.NewNop())
	go receiver.Serve()

	dialer := notify.NewTLSDialer(pool)
	notifier := notify.NewNotifier(dialer, zap.NewNop())

	reg := registry.New(remediate.CatchAllInterval)
	runtimeClient := fake.New(256)
	masterAddr := listener.Addr().String()

	dispatcher := remediate.New(reg, runtimeClient, notifier, masterAddr, sprinklerID, zap.NewNop())
	runtime := agent.NewRuntime(runtimeClient, dispatcher, nil, zap.NewNop())

	// The sprinkler's own assigned id need not equal the dispatcher's
	// sprinklerID (7): only the envelope's stamped id, set at dispatcher
	// construction, determines which inbox the notification routes to.
	builder := sprinkler.NewBuilder(time.Minute)
	watchdog := builder.Build("host-a", masterAddr, runtime)

	go watchdog.ActivateAgent()
	defer watchdog.Deactivate()

	pod := "P1"
	attrs := map[string]string{
		runtimeclient.PodNameAttribute:      pod,
		runtimeclient.PodNamespaceAttribute: "default",
		runtimeclient.PodUIDAttribute:       "uid-" + pod,
	}
	event := runtimeclient.Event{
		Type:   "container",
		Action: "oom",
		Actor:  runtimeclient.Actor{ID: "container-" + pod, Attributes: attrs},
	}

	// Warm start, then enough repeats to cross the rate threshold and let
	// the divider admit at least one cycle.
	for i := 0; i < 30; i++ {
		runtimeClient.Push(event)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case m := <-ch:
			fields := transport.DecodeFields(m.Body)
			if fields[notify.MsgField] != "" {
				return // received some notification for sprinkler 7; success.
			}
		case <-ctx.Done():
			t.Fatal("no notification reached the master inbox within the deadline")
		}
	}
}
