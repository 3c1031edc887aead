// Package transport provides the pluggable byte-stream endpoint the
// session speaks the wire protocol over: plain TCP or TLS, each wrapped in
// buffered reader/writer pairs sized for whole-message writes.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	// writerBufSize comfortably holds a multi-part Execute request without
	// forcing bufio to grow or flush mid-message.
	writerBufSize = 64 * 1024
	readerBufSize = 16 * 1024
)

// Endpoint is a connected byte stream plus its buffered wrappers.
type Endpoint struct {
	conn net.Conn
	Rd   *bufio.Reader
	Wr   *bufio.Writer
}

// NewEndpoint wraps an already-connected stream (e.g. one end of a
// net.Pipe) the same way Dial wraps a dialed TCP/TLS connection. Used by
// fake-responder test harnesses that stand in for a live HANA server.
func NewEndpoint(conn net.Conn) *Endpoint {
	return &Endpoint{
		conn: conn,
		Rd:   bufio.NewReaderSize(conn, readerBufSize),
		Wr:   bufio.NewWriterSize(conn, writerBufSize),
	}
}

// Close closes the underlying connection.
func (e *Endpoint) Close() error { return e.conn.Close() }

// SetDeadline propagates to the underlying connection; the session uses it
// to bound a single round-trip.
func (e *Endpoint) SetDeadline(t time.Time) error { return e.conn.SetDeadline(t) }

// TrustStore configures how a TLS connection verifies the server
// certificate. At least one of Dir/File/EnvVar/UseSystemRoots must be set
// explicitly: there is no implicit default, so a caller who wants the OS
// root pool has to say so with UseSystemRoots rather than leaving the
// struct zero. When several are set, the first of Dir, File, EnvVar is
// used and the others are ignored; UseSystemRoots applies only when none
// of those three is set.
type TrustStore struct {
	// Dir points at a directory of PEM files, each added to the pool.
	Dir string
	// File points at a single PEM file (possibly containing a bundle).
	File string
	// EnvVar names an environment variable holding a PEM-encoded bundle.
	EnvVar string
	// UseSystemRoots uses the OS root CA pool.
	UseSystemRoots bool
	// ServerName overrides the SNI/verification hostname (defaults to the
	// connection host).
	ServerName string
	// InsecureSkipVerify disables verification entirely; only meant for
	// local development against a self-signed test server.
	InsecureSkipVerify bool
}

// HasTrustSource reports whether t names at least one explicit trust
// anchor: a directory, a file, an environment variable, or an explicit
// opt-in to the OS root pool. A zero-value TrustStore has none.
func (t *TrustStore) HasTrustSource() bool {
	return t != nil && (t.Dir != "" || t.File != "" || t.EnvVar != "" || t.UseSystemRoots)
}

func (t *TrustStore) pool() (*x509.CertPool, error) {
	switch {
	case t.Dir != "":
		pool := x509.NewCertPool()
		entries, err := os.ReadDir(t.Dir)
		if err != nil {
			return nil, fmt.Errorf("transport: reading trust anchor dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			pem, err := os.ReadFile(filepath.Join(t.Dir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("transport: reading trust anchor %s: %w", e.Name(), err)
			}
			pool.AppendCertsFromPEM(pem)
		}
		return pool, nil
	case t.File != "":
		pem, err := os.ReadFile(t.File)
		if err != nil {
			return nil, fmt.Errorf("transport: reading trust anchor file: %w", err)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(pem)
		return pool, nil
	case t.EnvVar != "":
		pem := os.Getenv(t.EnvVar)
		if pem == "" {
			return nil, fmt.Errorf("transport: trust anchor env var %s is empty or unset", t.EnvVar)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM([]byte(pem))
		return pool, nil
	default:
		return nil, nil // nil pool + UseSystemRoots means crypto/tls falls back to system roots
	}
}

// Config describes how to reach the server.
type Config struct {
	Host string
	Port int
	// TLS is nil for a plain TCP connection; non-nil requests a TLS
	// handshake using the given trust anchor configuration.
	TLS            *TrustStore
	ConnectTimeout time.Duration
}

// Dial opens the endpoint described by cfg.
func Dial(cfg Config) (*Endpoint, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	if cfg.TLS != nil {
		pool, err := cfg.TLS.pool()
		if err != nil {
			conn.Close()
			return nil, err
		}
		serverName := cfg.TLS.ServerName
		if serverName == "" {
			serverName = cfg.Host
		}
		tlsConn := tls.Client(conn, &tls.Config{
			RootCAs:            pool,
			ServerName:         serverName,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		})
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: TLS handshake: %w", err)
		}
		conn = tlsConn
	}

	return &Endpoint{
		conn: conn,
		Rd:   bufio.NewReaderSize(conn, readerBufSize),
		Wr:   bufio.NewWriterSize(conn, writerBufSize),
	}, nil
}
