package tester

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"

	"tailscale.com/net/memnet"
)

// TLSDialer connects the client to an in-memory TLS server.
// The server presents Certificate, records the SNI value,
// reads the request line and answers with Response.
type TLSDialer struct {
	Certificate tls.Certificate
	Response    string

	mu          sync.Mutex
	serverNames []string
	wg          sync.WaitGroup
}

const pipeBufferSize = 1 << 20

// Dial has the signature of the gemini.Client.Dial field.
// The handshake is complete when Dial returns.
func (dialer *TLSDialer) Dial(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error) {
	var clientSide, serverSide = memnet.NewConn(addr, pipeBufferSize)
	dialer.wg.Add(1)
	go func() {
		defer dialer.wg.Done()
		dialer.serve(serverSide)
	}()

	var conn = tls.Client(clientSide, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (dialer *TLSDialer) serve(conn net.Conn) {
	var server = tls.Server(conn, &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			dialer.mu.Lock()
			defer dialer.mu.Unlock()
			dialer.serverNames = append(dialer.serverNames, hello.ServerName)
			var cert = dialer.Certificate
			return &cert, nil
		},
	})
	defer func() { _ = server.Close() }()

	var _, errRequest = bufio.NewReader(server).ReadString('\n')
	if errRequest != nil {
		return
	}
	_, _ = io.WriteString(server, dialer.Response)
}

// SetCertificate replaces the certificate for the next connections.
func (dialer *TLSDialer) SetCertificate(cert tls.Certificate) {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	dialer.Certificate = cert
}

// ServerNames returns SNI values sent by clients.
func (dialer *TLSDialer) ServerNames() []string {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	return append([]string(nil), dialer.serverNames...)
}

// Wait awaits all server goroutines.
func (dialer *TLSDialer) Wait() {
	dialer.wg.Wait()
}
