package geminitest

import (
	"context"
	"net"
	"testing"

	"github.com/go-kit/log"

	"github.com/ninedraft/gemcore/internal/testaddr"
)

// Start runs a server with handler on a free loopback port until the test ends.
// The server presents a fresh self-signed certificate for hosts, "localhost" by default.
func Start(test testing.TB, handler Handler, hosts ...string) *Server {
	test.Helper()
	var cert, errCert = Certificate(hosts...)
	if errCert != nil {
		test.Fatalf("generating test certificate: %v", errCert)
	}
	var server = &Server{
		Addr:    testaddr.Addr(),
		Handler: handler,
		Logger:  Logger(test),
		Cert:    cert,
	}
	var listener, errListen = net.Listen("tcp", server.Addr)
	if errListen != nil {
		test.Fatalf("listening on %s: %v", server.Addr, errListen)
	}

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan struct{})
	go func() {
		defer close(done)
		if err := server.ServeTLS(ctx, listener, TLSConfig(cert)); err != nil {
			test.Logf("test server: %v", err)
		}
	}()
	test.Cleanup(func() {
		cancel()
		server.Stop()
		<-done
	})
	return server
}

// Logger writes logfmt records to the test log.
func Logger(test testing.TB) log.Logger {
	return log.NewLogfmtLogger(log.NewSyncWriter(testWriter{test}))
}

type testWriter struct {
	test testing.TB
}

func (wr testWriter) Write(p []byte) (int, error) {
	wr.test.Log(string(p))
	return len(p), nil
}
