package gemini_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ninedraft/gemcore/gemini"
	"github.com/ninedraft/gemcore/gemini/internal/tester"
	"github.com/ninedraft/gemcore/gemini/status"
	"github.com/ninedraft/gemcore/internal/geminitest"
	"github.com/ninedraft/gemcore/internal/testaddr"
)

func newTLSDialer(test *testing.T, hosts ...string) *tester.TLSDialer {
	test.Helper()
	var cert, err = geminitest.Certificate(hosts...)
	require.NoError(test, err)
	var dialer = &tester.TLSDialer{
		Certificate: cert,
		Response:    "20 text/gemini\r\nhello\n",
	}
	test.Cleanup(dialer.Wait)
	return dialer
}

func TestTrustAcceptAll(test *testing.T) {
	var dialer = newTLSDialer(test, "other.org")
	var client = &gemini.Client{Dial: dialer.Dial}

	var resp, err = client.Fetch(context.Background(), "gemini://example.com/")
	require.NoError(test, err)
	require.Equal(test, []string{"hello"}, resp.(*gemini.TextResponse).Lines)
	require.Equal(test, []string{"example.com"}, dialer.ServerNames())
}

func TestTrustVerifyHostname(test *testing.T) {
	test.Run("matching", func(test *testing.T) {
		var dialer = newTLSDialer(test, "example.com")
		var client = &gemini.Client{Dial: dialer.Dial, Trust: gemini.VerifyHostname}
		var _, err = client.Fetch(context.Background(), "gemini://example.com/")
		require.NoError(test, err)
	})

	test.Run("mismatch", func(test *testing.T) {
		var dialer = newTLSDialer(test, "other.org")
		var client = &gemini.Client{Dial: dialer.Dial, Trust: gemini.VerifyHostname}
		var _, err = client.Fetch(context.Background(), "gemini://example.com/")
		require.ErrorIs(test, err, gemini.ErrUntrusted)
		require.ErrorIs(test, err, gemini.ErrInvalidServerName)
	})
}

func TestTrustPolicyArguments(test *testing.T) {
	var dialer = newTLSDialer(test, "example.com")
	var hosts []string
	var fingerprints [][]byte
	var policy = gemini.TrustFunc(func(host string, state tls.ConnectionState) error {
		hosts = append(hosts, host)
		fingerprints = append(fingerprints, state.PeerCertificates[0].Raw)
		return nil
	})
	var client = &gemini.Client{Dial: dialer.Dial, Trust: policy}

	var _, err = client.Fetch(context.Background(), "gemini://example.com:1966/")
	require.NoError(test, err)
	require.Equal(test, []string{"example.com"}, hosts)
	require.Equal(test, [][]byte{dialer.Certificate.Certificate[0]}, fingerprints)
}

func TestTrustChain(test *testing.T) {
	var errRejected = errors.New("rejected")
	var calls = 0
	var counter = gemini.TrustFunc(func(string, tls.ConnectionState) error {
		calls++
		return nil
	})
	var reject = gemini.TrustFunc(func(string, tls.ConnectionState) error {
		return errRejected
	})

	var dialer = newTLSDialer(test, "example.com")
	var client = &gemini.Client{
		Dial:  dialer.Dial,
		Trust: gemini.TrustChain(counter, gemini.VerifyHostname, reject, counter),
	}
	var _, err = client.Fetch(context.Background(), "gemini://example.com/")
	require.ErrorIs(test, err, gemini.ErrUntrusted)
	require.ErrorIs(test, err, errRejected)
	require.Equal(test, 1, calls, "policies after the rejecting one must not run")
}

// loopbackDial dials a local test server for any requested host.
// The TLS config is kept, so the server still sees the requested host name.
func loopbackDial(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error) {
	var local, err = testaddr.Loopback(addr)
	if err != nil {
		return nil, err
	}
	var dialer = &tls.Dialer{Config: cfg}
	return dialer.DialContext(ctx, "tcp", local)
}

func portOf(test *testing.T, addr string) string {
	test.Helper()
	var _, port, err = net.SplitHostPort(addr)
	require.NoError(test, err)
	return port
}

func TestServerNameIndication(test *testing.T) {
	var server = geminitest.Start(test, func(_ context.Context, rw geminitest.ResponseWriter, req *geminitest.Request) {
		_, _ = io.WriteString(rw, req.ServerName+"\n")
	}, "example.com")

	var client = &gemini.Client{Dial: loopbackDial, Logger: geminitest.Logger(test)}
	var uri = "gemini://example.com:" + portOf(test, server.Addr) + "/"
	var resp, err = client.Fetch(context.Background(), uri)
	require.NoError(test, err)
	require.Equal(test, []string{"example.com"}, resp.(*gemini.TextResponse).Lines)
}

func TestFetchFromServer(test *testing.T) {
	var router = geminitest.NewRouter()
	router.Handle("/hop/:n", func(_ context.Context, rw geminitest.ResponseWriter, req *geminitest.Request) {
		var raw, _ = req.Param("n")
		var n, err = strconv.Atoi(raw)
		switch {
		case err != nil:
			rw.WriteStatus(status.BadRequest, "hop must be a number")
		case n > 0:
			rw.WriteStatus(status.Redirect, "/hop/"+strconv.Itoa(n-1))
		default:
			_, _ = io.WriteString(rw, "arrived\n")
		}
	})
	router.Handle("/blob", func(_ context.Context, rw geminitest.ResponseWriter, _ *geminitest.Request) {
		rw.WriteStatus(status.Success, "application/octet-stream")
		_, _ = io.WriteString(rw, strings.Repeat("0123456789abcdef", 4096))
	})
	router.Handle("/broken", func(_ context.Context, rw geminitest.ResponseWriter, _ *geminitest.Request) {
		rw.WriteRaw("twenty text/gemini\r\n")
	})
	router.Handle("/stall", func(ctx context.Context, _ geminitest.ResponseWriter, _ *geminitest.Request) {
		<-ctx.Done()
	})
	var server = geminitest.Start(test, router.Serve, "127.0.0.1")
	var base = "gemini://" + server.Addr

	var client = &gemini.Client{
		Trust:       gemini.VerifyHostname,
		ReadTimeout: 200 * time.Millisecond,
		Logger:      geminitest.Logger(test),
	}

	test.Run("redirect chain", func(test *testing.T) {
		var resp, err = client.Fetch(context.Background(), base+"/hop/5")
		require.NoError(test, err)
		require.Equal(test, []string{"arrived"}, resp.(*gemini.TextResponse).Lines)
		require.Equal(test, base+"/hop/0", resp.ResponseHeader().URL)
	})

	test.Run("too many redirects", func(test *testing.T) {
		var _, err = client.Fetch(context.Background(), base+"/hop/6")
		require.ErrorIs(test, err, gemini.ErrTooManyRedirects)
	})

	test.Run("binary stream", func(test *testing.T) {
		var resp, err = client.Fetch(context.Background(), base+"/blob")
		require.NoError(test, err)
		defer func() { require.NoError(test, resp.Close()) }()
		var data, errRead = io.ReadAll(resp.(*gemini.BinaryResponse))
		require.NoError(test, errRead)
		require.Equal(test, strings.Repeat("0123456789abcdef", 4096), string(data))
	})

	test.Run("not found", func(test *testing.T) {
		var _, err = client.Fetch(context.Background(), base+"/missing")
		require.ErrorIs(test, err, gemini.ErrNotFound)
	})

	test.Run("malformed header", func(test *testing.T) {
		var _, err = client.Fetch(context.Background(), base+"/broken")
		require.ErrorIs(test, err, gemini.ErrInvalidResponse)
	})

	test.Run("read timeout", func(test *testing.T) {
		var start = time.Now()
		var _, err = client.Fetch(context.Background(), base+"/stall")
		require.ErrorIs(test, err, gemini.ErrTimeout)
		require.Less(test, time.Since(start), 5*time.Second)
	})

	test.Run("context deadline", func(test *testing.T) {
		var ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		var slow = &gemini.Client{ReadTimeout: -1}
		var _, err = slow.Fetch(ctx, base+"/stall")
		require.ErrorIs(test, err, gemini.ErrTimeout)
	})

	test.Run("connection refused", func(test *testing.T) {
		var _, err = client.Fetch(context.Background(), "gemini://"+testaddr.Addr()+"/")
		require.ErrorIs(test, err, gemini.ErrTransport)
	})
}
