//go:build linux
// +build linux

// File: transport/listener_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listening TCP socket with a bounded accept.

package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/rcom/api"
)

const listenBacklog = 10

// Listener is a bound, listening TCP socket.
type Listener struct {
	mu   sync.Mutex
	fd   int
	addr api.Address
}

var _ api.Listener = (*Listener)(nil)

// Listen binds addr and starts listening. A zero port picks an ephemeral one;
// the chosen port is reported by Address.
func Listen(addr api.Address) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(addr.Port), Addr: addr.IP}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	bound := sockName(fd)
	if bound.IP == ([4]byte{}) {
		// Bound to the wildcard address: report the requested IP.
		bound.IP = addr.IP
	}
	return &Listener{fd: fd, addr: bound}, nil
}

// Accept waits up to timeout for a pending connection. Zero polls once.
// It returns (nil, nil) when nothing arrived in time.
func (l *Listener) Accept(timeout time.Duration) (api.Socket, error) {
	l.mu.Lock()
	fd := l.fd
	l.mu.Unlock()
	if fd == invalidFD {
		return nil, api.ErrTransportClosed
	}
	switch pollReadable(fd, timeout) {
	case api.WaitTimeout:
		return nil, nil
	case api.WaitError:
		return nil, fmt.Errorf("accept wait: %w", api.ErrTransportClosed)
	}
	for {
		nfd, _, err := unix.Accept4(fd, unix.SOCK_CLOEXEC)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ECONNABORTED) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("accept: %w", err)
		}
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		return NewSocket(nfd), nil
	}
}

// Address returns the bound address with the actual port.
func (l *Listener) Address() api.Address {
	return l.addr
}

// Close stops listening.
func (l *Listener) Close() error {
	l.mu.Lock()
	fd := l.fd
	l.fd = invalidFD
	l.mu.Unlock()
	if fd == invalidFD {
		return nil
	}
	return unix.Close(fd)
}
