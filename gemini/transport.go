package gemini

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"time"

	"golang.org/x/net/idna"
)

const (
	// DefaultConnectTimeout bounds TCP connection setup and the TLS handshake.
	DefaultConnectTimeout = 5 * time.Second
	// DefaultReadTimeout bounds every single read from the server.
	DefaultReadTimeout = 5 * time.Second
)

func (client *Client) dial(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error) {
	if client.Dial != nil {
		return client.Dial(ctx, addr, cfg)
	}
	var tlsDialer = &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: client.connectTimeout()},
		Config:    cfg,
	}
	return tlsDialer.DialContext(ctx, "tcp", addr)
}

// connTLSConfig derives a per-connection config from the shared one.
// The server name is always set, so SNI is sent for every domain host.
func (client *Client) connTLSConfig(host string) *tls.Config {
	var cfg = client.tlsConfig.Clone()
	cfg.ServerName = serverName(host)
	var trust = client.trust()
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		if err := trust.Verify(host, cs); err != nil {
			return &untrustedError{err: err}
		}
		return nil
	}
	return cfg
}

func serverName(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	var ascii, errIDNA = idna.Lookup.ToASCII(host)
	if errIDNA != nil {
		// not a registrable name, e.g. it contains underscores: send it as is
		return host
	}
	return ascii
}

type untrustedError struct {
	err error
}

func (err *untrustedError) Error() string {
	return "certificate rejected by trust policy: " + err.err.Error()
}

func (err *untrustedError) Unwrap() error {
	return err.err
}

// deadlineConn applies the read timeout before every read.
// A context deadline, if it comes earlier, takes precedence.
type deadlineConn struct {
	net.Conn
	readTimeout time.Duration
	deadline    time.Time
}

func (client *Client) withDeadlines(ctx context.Context, conn net.Conn) net.Conn {
	var deadline, _ = ctx.Deadline()
	if !deadline.IsZero() {
		_ = conn.SetDeadline(deadline)
	}
	return &deadlineConn{
		Conn:        conn,
		readTimeout: client.readTimeout(),
		deadline:    deadline,
	}
}

func (conn *deadlineConn) Read(p []byte) (int, error) {
	if conn.readTimeout > 0 {
		var deadline = time.Now().Add(conn.readTimeout)
		if !conn.deadline.IsZero() && conn.deadline.Before(deadline) {
			deadline = conn.deadline
		}
		_ = conn.Conn.SetReadDeadline(deadline)
	}
	return conn.Conn.Read(p)
}

// classifyNetError turns a connection level failure into a client error.
// The original error stays reachable with errors.Is and errors.As.
func classifyNetError(url string, err error) *Error {
	var dnsErr *net.DNSError
	var netErr net.Error
	var untrusted *untrustedError
	var kind Kind
	switch {
	case errors.As(err, &untrusted):
		kind = KindUntrusted
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		kind = KindHostUnresolvable
	case errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	default:
		kind = KindTransport
	}
	return newError(kind, url, err)
}
