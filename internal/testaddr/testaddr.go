// Package testaddr provides loopback addresses for test servers.
package testaddr

import (
	"fmt"
	"net"
)

const loopback = "127.0.0.1"

// Addr returns a free address in form of "127.0.0.1:$FREE_PORT",
// which can be used for test servers.
func Addr() string {
	return net.JoinHostPort(loopback, Port())
}

// Port finds a free loopback port. The port is released before returning.
func Port() string {
	var listener, errListener = net.Listen("tcp", net.JoinHostPort(loopback, "0"))
	if errListener != nil {
		panic(fmt.Sprintf("listening on a free port: %v", errListener))
	}
	var addr = listener.Addr().String()
	_ = listener.Close()
	var _, port, errSplit = net.SplitHostPort(addr)
	if errSplit != nil {
		panic(fmt.Sprintf("parsing address %q: %v", addr, errSplit))
	}
	return port
}

// Loopback replaces the host of addr with the loopback address and keeps the port.
// Test dialers use it to reach a local server under any host name.
func Loopback(addr string) (string, error) {
	var _, port, errSplit = net.SplitHostPort(addr)
	if errSplit != nil {
		return "", fmt.Errorf("parsing address %q: %w", addr, errSplit)
	}
	return net.JoinHostPort(loopback, port), nil
}
