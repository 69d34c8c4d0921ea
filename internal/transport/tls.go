// Package transport — tls.go
//
// TLS dial/listen helpers. Sprinkler pins a single master certificate as
// the sole trust anchor rather than verifying against a CA pool, since
// there is exactly one master per agent fleet.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
)

// LoadPinnedCert reads a PEM certificate file and returns an x509 pool
// containing only that certificate, for use as the client's RootCAs.
func LoadPinnedCert(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transport: read pinned cert %q: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("transport: no certificates parsed from %q", path)
	}
	return pool, nil
}

// DialTLS opens a TCP+TLS connection to addr, trusting only pinnedCert.
func DialTLS(addr string, pinnedCert *x509.CertPool) (net.Conn, error) {
	cfg := &tls.Config{
		RootCAs:    pinnedCert,
		MinVersion: tls.VersionTLS12,
	}
	conn, err := tls.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return conn, nil
}

// Listen starts a TLS listener on addr using the master's own certificate
// and key. The agent side never presents a client certificate: mutual
// authentication is expressed here as cert pinning on the agent (it only
// trusts the one master cert) plus a private listen address on the
// master, rather than full mTLS client-cert verification.
func Listen(addr string, cert tls.Certificate) (net.Listener, error) {
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	lis, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return lis, nil
}

// LoadServerCert loads a certificate/key pair for the master listener.
func LoadServerCert(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("transport: load cert/key: %w", err)
	}
	return cert, nil
}
