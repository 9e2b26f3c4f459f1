// Package tester provides fake connections for client tests.
package tester

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Dialer opens fake connections which answer with scripted responses.
// The response is chosen by the request line once the client sends it.
// Requests without a script are answered with an immediate end of stream.
type Dialer struct {
	// Responses maps request lines, without CRLF, to raw responses.
	Responses map[string]string
	// Streams maps request lines to response sources, for bodies which never end.
	Streams map[string]func() io.Reader
	// Err, if set, is returned by every Dial call.
	Err error

	mu          sync.Mutex
	requests    []string
	addrs       []string
	serverNames []string
	conns       []*Conn
	open        int
	maxOpen     int
}

// Dial has the signature of the gemini.Client.Dial field.
func (dialer *Dialer) Dial(_ context.Context, addr string, cfg *tls.Config) (net.Conn, error) {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	dialer.addrs = append(dialer.addrs, addr)
	if cfg != nil {
		dialer.serverNames = append(dialer.serverNames, cfg.ServerName)
	}
	if dialer.Err != nil {
		return nil, dialer.Err
	}
	dialer.open++
	dialer.maxOpen = max(dialer.maxOpen, dialer.open)
	var conn = &Conn{dialer: dialer}
	dialer.conns = append(dialer.conns, conn)
	return conn, nil
}

// Requests returns request lines in order of arrival.
func (dialer *Dialer) Requests() []string {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	return append([]string(nil), dialer.requests...)
}

// Addrs returns dialed addresses.
func (dialer *Dialer) Addrs() []string {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	return append([]string(nil), dialer.addrs...)
}

// ServerNames returns the SNI values of dialed connections.
func (dialer *Dialer) ServerNames() []string {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	return append([]string(nil), dialer.serverNames...)
}

// Conns returns all connections opened so far.
func (dialer *Dialer) Conns() []*Conn {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	return append([]*Conn(nil), dialer.conns...)
}

// Open returns the number of connections which are not closed yet.
func (dialer *Dialer) Open() int {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	return dialer.open
}

// MaxOpen returns the largest number of simultaneously open connections.
func (dialer *Dialer) MaxOpen() int {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	return dialer.maxOpen
}

func (dialer *Dialer) respond(request string) io.Reader {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	dialer.requests = append(dialer.requests, request)
	if response, ok := dialer.Responses[request]; ok {
		return strings.NewReader(response)
	}
	if stream, ok := dialer.Streams[request]; ok {
		return stream()
	}
	return strings.NewReader("")
}

func (dialer *Dialer) closed() {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	dialer.open--
}

// Conn is a fake connection.
type Conn struct {
	dialer *Dialer

	mu        sync.Mutex
	request   strings.Builder
	response  io.Reader
	closes    int
	bytesRead int
}

var _ net.Conn = (*Conn)(nil)

// Write collects the request. The response is selected after the first CRLF.
func (conn *Conn) Write(p []byte) (int, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closes > 0 {
		return 0, net.ErrClosed
	}
	_, _ = conn.request.Write(p)
	if conn.response == nil {
		if line, _, ok := strings.Cut(conn.request.String(), "\r\n"); ok {
			conn.response = conn.dialer.respond(line)
		}
	}
	return len(p), nil
}

// Read streams the response. Reading before the request is complete returns io.ErrNoProgress.
func (conn *Conn) Read(p []byte) (int, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	switch {
	case conn.closes > 0:
		return 0, net.ErrClosed
	case conn.response == nil:
		return 0, io.ErrNoProgress
	}
	var n, err = conn.response.Read(p)
	conn.bytesRead += n
	return n, err
}

// Close counts calls. Only the first one succeeds.
func (conn *Conn) Close() error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.closes++
	if conn.closes > 1 {
		return net.ErrClosed
	}
	conn.dialer.closed()
	return nil
}

// Closes returns the number of Close calls.
func (conn *Conn) Closes() int {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.closes
}

// BytesRead returns the number of response bytes consumed by the client.
func (conn *Conn) BytesRead() int {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.bytesRead
}

func (*Conn) LocalAddr() net.Addr { return fakeAddr("client") }
func (*Conn) RemoteAddr() net.Addr { return fakeAddr("server") }

func (*Conn) SetDeadline(time.Time) error { return nil }
func (*Conn) SetReadDeadline(time.Time) error { return nil }
func (*Conn) SetWriteDeadline(time.Time) error { return nil }

type fakeAddr string

func (fakeAddr) Network() string { return "tester" }
func (addr fakeAddr) String() string { return string(addr) }
