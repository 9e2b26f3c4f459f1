// Package gemini implements a client for the gemini protocol.
//
// A request is a single URI line sent over TLS; the response is a status line
// followed, for successful requests only, by a body. Client.Fetch follows redirects,
// reads gemtext documents completely and hands other bodies to the caller as streams.
// Every other outcome is reported as an *Error of a distinct Kind.
package gemini

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	urlpkg "net/url"
	"runtime"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/ninedraft/gemcore/internal/bufreader"
)

// DefaultMaxRedirects is the number of redirects a single Fetch follows.
const DefaultMaxRedirects = 5

// Client is used to fetch gemini resources.
// Empty client value can be considered as initialized.
// A Client is safe for concurrent use; every Fetch uses its own connections.
type Client struct {
	// ConnectTimeout bounds connection setup including the TLS handshake.
	// Zero means DefaultConnectTimeout, negative means no timeout.
	ConnectTimeout time.Duration
	// ReadTimeout bounds every read from the server.
	// Zero means DefaultReadTimeout, negative means no timeout.
	ReadTimeout time.Duration
	// MaxRedirects is the number of redirects to follow.
	// Zero means DefaultMaxRedirects, negative disables redirects.
	MaxRedirects int
	// MaxTextSize bounds gemtext bodies. Zero means DefaultMaxTextSize.
	MaxTextSize int
	// Trust decides on server certificates. Nil means AcceptAll.
	Trust TrustPolicy
	// Dial opens a TLS connection to addr. The default dialer uses tls.Dialer.
	// Custom dialers must use cfg to keep SNI and the trust policy in place.
	Dial func(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error)
	// Logger receives debug events. Nil means no logging.
	Logger log.Logger

	once      sync.Once
	tlsConfig *tls.Config
}

// DefaultClient is used by the package level Fetch.
var DefaultClient = &Client{}

// Fetch requests uri with the DefaultClient.
func Fetch(ctx context.Context, uri string) (Response, error) {
	return DefaultClient.Fetch(ctx, uri)
}

const readerBufSize = 16 << 10

// Fetch requests a gemini resource.
//
// Redirects are followed one connection at a time: a connection is closed before the next one
// is opened, and every redirect target is resolved against the current URI and validated again.
// A gemtext body is returned as *TextResponse with the connection already closed.
// Any other body is returned as *BinaryResponse, which the caller must close.
// All failures are *Error values; connections are closed before Fetch returns an error.
func (client *Client) Fetch(ctx context.Context, uri string) (Response, error) {
	client.init()
	var logger = log.With(client.logger(), "req_id", uuid.NewString())

	var u, errValidate = ValidateURI(uri)
	if errValidate != nil {
		return nil, errValidate
	}

	for depth := 0; ; {
		var result = client.fetch(ctx, logger, uri, u)
		if result.redirect == "" {
			return result.resp, result.err
		}

		var target = Resolve(uri, result.redirect)
		depth++
		if depth > client.maxRedirects() {
			return nil, &Error{
				Kind: KindTooManyRedirects,
				URL:  target,
				Err:  fmt.Errorf("stopped after %d redirects", depth-1),
			}
		}
		var next, errTarget = ValidateURI(target)
		if errTarget != nil {
			return nil, errTarget
		}
		level.Debug(logger).Log("msg", "following redirect", "from", uri, "to", target, "depth", depth)
		uri, u = target, next
	}
}

// fetch performs a single exchange on a fresh connection.
// The connection is closed before returning unless it's handed over with a BinaryResponse.
func (client *Client) fetch(ctx context.Context, logger log.Logger, uri string, u *urlpkg.URL) outcome {
	var addr = hostPort(u)
	var cfg = client.connTLSConfig(u.Hostname())
	level.Debug(logger).Log("msg", "connecting", "addr", addr, "server_name", cfg.ServerName)

	var conn, errConn = client.dial(ctx, addr, cfg)
	if errConn != nil {
		return outcome{err: classifyNetError(uri, fmt.Errorf("connecting to the server %q: %w", addr, errConn))}
	}

	var re = bufreader.New(client.withDeadlines(ctx, conn), readerBufSize)
	var handedOver = false
	defer func() {
		if handedOver {
			return
		}
		if errClose := re.Close(); errClose != nil {
			level.Warn(logger).Log("msg", "closing connection", "addr", addr, "err", errClose)
		}
	}()

	if _, errWrite := io.WriteString(conn, requestLine(uri)); errWrite != nil {
		return outcome{err: classifyNetError(uri, fmt.Errorf("sending request: %w", errWrite))}
	}

	var code, meta, errHeader = ParseResponseHeader(re.Bufio())
	if errHeader != nil {
		if gerr, ok := errHeader.(*Error); ok {
			gerr.URL = uri
		}
		return outcome{err: errHeader}
	}
	level.Debug(logger).Log("msg", "response header", "url", uri, "status", code.Int(), "meta", meta)

	var result = client.dispatch(uri, code, meta, re)
	if binary, ok := result.resp.(*BinaryResponse); ok {
		handedOver = true
		runtime.SetFinalizer(binary, func(resp *BinaryResponse) {
			_ = resp.Close()
		})
	}
	return result
}

func (client *Client) init() {
	client.once.Do(func() {
		client.tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			//nolint:gosec // chain verification is replaced by the trust policy: gemini servers usually don't use CAs
			InsecureSkipVerify: true,
		}
	})
}

func (client *Client) logger() log.Logger {
	if client.Logger != nil {
		return client.Logger
	}
	return log.NewNopLogger()
}

func (client *Client) trust() TrustPolicy {
	if client.Trust != nil {
		return client.Trust
	}
	return AcceptAll
}

func (client *Client) connectTimeout() time.Duration {
	return durationOrDefault(client.ConnectTimeout, DefaultConnectTimeout)
}

func (client *Client) readTimeout() time.Duration {
	return durationOrDefault(client.ReadTimeout, DefaultReadTimeout)
}

func (client *Client) maxRedirects() int {
	switch {
	case client.MaxRedirects > 0:
		return client.MaxRedirects
	case client.MaxRedirects == 0:
		return DefaultMaxRedirects
	default:
		return 0
	}
}

func (client *Client) maxTextSize() int {
	if client.MaxTextSize > 0 {
		return client.MaxTextSize
	}
	return DefaultMaxTextSize
}

func durationOrDefault(d, def time.Duration) time.Duration {
	switch {
	case d > 0:
		return d
	case d == 0:
		return def
	default:
		return 0
	}
}
