// Package transport selects and manages the local rendezvous point the
// daemon binds and clients dial.
//
// Two concrete endpoints exist: a unix domain socket and a loopback TCP
// port for platforms where filesystem sockets are unreliable. The choice
// is made exactly once at startup; protocol code never branches on
// platform.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"pinktranscriber/internal/config"
)

// Endpoint is a bindable, dialable local address.
type Endpoint interface {
	// Network is the net package network name ("unix" or "tcp").
	Network() string
	// Address is the socket path or host:port.
	Address() string
	// Listen binds the endpoint. The caller owns the listener.
	Listen() (net.Listener, error)
	// Dial connects to a daemon already bound to the endpoint.
	Dial(timeout time.Duration) (net.Conn, error)
	// Cleanup removes any filesystem artifact left by Listen. Safe to
	// call more than once and without a prior Listen.
	Cleanup() error
	// String renders the endpoint for logs and error messages.
	String() string
}

// Select resolves the configured transport to a concrete endpoint. Kind
// "auto" picks a unix socket everywhere except Windows.
func Select(cfg config.Transport) (Endpoint, error) {
	kind := cfg.Kind
	if kind == "" || kind == "auto" {
		if runtime.GOOS == "windows" {
			kind = "tcp"
		} else {
			kind = "unix"
		}
	}
	switch kind {
	case "unix":
		if cfg.SocketPath == "" {
			return nil, errors.New("transport: unix endpoint requires a socket path")
		}
		return &unixEndpoint{path: cfg.SocketPath}, nil
	case "tcp":
		if cfg.TCPAddress == "" {
			return nil, errors.New("transport: tcp endpoint requires an address")
		}
		return &tcpEndpoint{address: cfg.TCPAddress}, nil
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", cfg.Kind)
	}
}

type unixEndpoint struct {
	path string
}

func (e *unixEndpoint) Network() string { return "unix" }
func (e *unixEndpoint) Address() string { return e.path }
func (e *unixEndpoint) String() string  { return "unix://" + e.path }

// Listen removes a stale socket file before binding. The process guard
// has already cleared any live competitor, so whatever is at the path is
// a leftover from an unclean exit.
func (e *unixEndpoint) Listen() (net.Listener, error) {
	if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", e.path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", e, err)
	}
	return listener, nil
}

func (e *unixEndpoint) Dial(timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", e.path, timeout)
}

func (e *unixEndpoint) Cleanup() error {
	if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type tcpEndpoint struct {
	address string
}

func (e *tcpEndpoint) Network() string { return "tcp" }
func (e *tcpEndpoint) Address() string { return e.address }
func (e *tcpEndpoint) String() string  { return "tcp://" + e.address }

func (e *tcpEndpoint) Listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", e.address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", e, err)
	}
	return listener, nil
}

func (e *tcpEndpoint) Dial(timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", e.address, timeout)
}

// Cleanup is a no-op; a TCP port leaves no filesystem artifact.
func (e *tcpEndpoint) Cleanup() error { return nil }
