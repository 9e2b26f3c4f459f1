// Package geminitest provides a TLS gemini server for client tests.
package geminitest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/net/netutil"

	"github.com/ninedraft/gemcore/gemini/status"
	"github.com/ninedraft/gemcore/internal/bufreader"
)

// DefaultMaxConnections is the default number of simultaneous connections.
const DefaultMaxConnections = 64

// maxRequestSize is the URI limit plus the CR.
const maxRequestSize = 1024 + 1

// Handler serves a single request.
type Handler func(ctx context.Context, rw ResponseWriter, req *Request)

// Request is an incoming gemini request.
type Request struct {
	// RawURL is the request line without CRLF.
	RawURL string
	URL    *url.URL
	// ServerName is the SNI value sent by the client.
	ServerName string
	RemoteAddr string
	// Params are filled by Router from ":name" pattern parts.
	Params map[string]string
}

// Param returns a path parameter captured by Router.
func (req *Request) Param(name string) (string, bool) {
	var value, ok = req.Params[name]
	return value, ok
}

// Server is a TLS gemini server.
type Server struct {
	Addr    string
	Handler Handler
	Logger  log.Logger
	// Cert is the certificate presented by servers created with Start.
	Cert tls.Certificate

	// Maximum number of simultaneous connections.
	//	0 - DefaultMaxConnections
	//	<0 - no limitation
	MaxConnections int

	mu        sync.Mutex
	conns     map[net.Conn]struct{}
	listeners map[net.Listener]struct{}

	once sync.Once
}

func (server *Server) init() {
	server.once.Do(func() {
		server.conns = map[net.Conn]struct{}{}
		server.listeners = map[net.Listener]struct{}{}
	})
}

// ServeTLS performs TLS handshakes on connections accepted from listener and serves them.
// It returns nil after ctx is canceled or Stop is called, once all running handlers are done.
func (server *Server) ServeTLS(ctx context.Context, listener net.Listener, tlsCfg *tls.Config) error {
	server.init()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if n := server.maxConnections(); n > 0 {
		listener = netutil.LimitListener(listener, n)
	}
	var tlsListener = tls.NewListener(listener, tlsCfg)
	server.addListener(tlsListener)
	go func() {
		<-ctx.Done()
		_ = tlsListener.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		var conn, errAccept = tlsListener.Accept()
		switch {
		case errAccept == nil:
		case ctx.Err() != nil, errors.Is(errAccept, net.ErrClosed):
			return nil
		default:
			return fmt.Errorf("accepting connection: %w", errAccept)
		}
		server.addConn(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer server.removeConn(conn)
			server.handle(ctx, conn.(*tls.Conn))
		}()
	}
}

// Stop closes all listeners and connections.
func (server *Server) Stop() {
	server.init()
	server.mu.Lock()
	defer server.mu.Unlock()
	for conn := range server.conns {
		_ = conn.Close()
	}
	for listener := range server.listeners {
		_ = listener.Close()
	}
}

func (server *Server) handle(ctx context.Context, conn *tls.Conn) {
	defer func() { _ = conn.Close() }()
	var logger = log.With(server.logger(), "remote_addr", conn.RemoteAddr().String())
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		level.Debug(logger).Log("msg", "handshake failed", "err", err)
		return
	}

	var rw = newResponseWriter(conn)
	defer func() { _ = rw.Close() }()

	var req, errRequest = readRequest(conn)
	if errRequest != nil {
		level.Warn(logger).Log("msg", "bad request", "err", errRequest)
		rw.WriteStatus(status.BadRequest, status.Text(status.BadRequest))
		return
	}
	req.ServerName = conn.ConnectionState().ServerName
	req.RemoteAddr = conn.RemoteAddr().String()
	level.Debug(logger).Log("msg", "serving request", "url", req.RawURL, "server_name", req.ServerName)

	server.Handler(ctx, rw, req)
}

var (
	errEmptyRequest = errors.New("empty request")
	errNotGemini    = errors.New("not a gemini URL")
)

func readRequest(conn net.Conn) (*Request, error) {
	var re = bufreader.New(conn, 0)
	var line, errLine = re.ReadLine(maxRequestSize)
	if errLine != nil {
		return nil, fmt.Errorf("reading request: %w", errLine)
	}
	var raw = strings.TrimSuffix(string(line), "\r")
	if raw == "" {
		return nil, errEmptyRequest
	}
	var u, errParse = url.Parse(raw)
	if errParse != nil {
		return nil, fmt.Errorf("parsing request URL: %w", errParse)
	}
	if u.Scheme != "gemini" {
		return nil, fmt.Errorf("%w: %q", errNotGemini, raw)
	}
	return &Request{
		RawURL: raw,
		URL:    u,
	}, nil
}

func (server *Server) maxConnections() int {
	switch {
	case server.MaxConnections > 0:
		return server.MaxConnections
	case server.MaxConnections == 0:
		return DefaultMaxConnections
	default:
		return -1
	}
}

func (server *Server) logger() log.Logger {
	if server.Logger != nil {
		return server.Logger
	}
	return log.NewNopLogger()
}

func (server *Server) addConn(conn net.Conn) {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.conns[conn] = struct{}{}
}

func (server *Server) removeConn(conn net.Conn) {
	server.mu.Lock()
	defer server.mu.Unlock()
	delete(server.conns, conn)
}

func (server *Server) addListener(listener net.Listener) {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.listeners[listener] = struct{}{}
}
