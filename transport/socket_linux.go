//go:build linux
// +build linux

// File: transport/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw-descriptor TCP socket with poll-based wait.

package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/rcom/api"
)

const (
	invalidFD = -1

	// drainStep bounds each readiness check while draining on close.
	drainStep = 10 * time.Millisecond
	// drainLimit caps the total time spent draining on close.
	drainLimit = time.Second
)

// Socket is a connected TCP stream over a raw descriptor.
type Socket struct {
	mu sync.Mutex
	fd int
}

var _ api.Socket = (*Socket)(nil)

// NewSocket takes ownership of an already connected stream descriptor.
func NewSocket(fd int) *Socket {
	return &Socket{fd: fd}
}

// Dial opens a TCP connection to addr with TCP_NODELAY set.
func Dial(addr api.Address) (*Socket, error) {
	if !addr.IsSet() {
		return nil, fmt.Errorf("dial: %w: %s", api.ErrInvalidAddress, addr)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	sa := &unix.SockaddrInet4{Port: int(addr.Port), Addr: addr.IP}
	if err := connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return NewSocket(fd), nil
}

// connect handles an interrupted connect by waiting for the pending
// connection to complete and reading its final status.
func connect(fd int, sa unix.Sockaddr) error {
	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINTR) && !errors.Is(err, unix.EINPROGRESS) {
		return err
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err = unix.Poll(fds, -1)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

func (s *Socket) descriptor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fd
}

// Read fills p completely. End of stream before p is full is io-failure.
func (s *Socket) Read(p []byte) error {
	fd := s.descriptor()
	if fd == invalidFD {
		return api.ErrTransportClosed
	}
	for received := 0; received < len(p); {
		n, err := unix.Read(fd, p[received:])
		switch {
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
			continue
		case err != nil:
			return fmt.Errorf("read: %w", err)
		case n == 0:
			return api.ErrTransportClosed
		}
		received += n
	}
	return nil
}

// Write sends all of p. MSG_NOSIGNAL keeps a vanished peer from raising SIGPIPE.
func (s *Socket) Write(p []byte) error {
	fd := s.descriptor()
	if fd == invalidFD {
		return api.ErrTransportClosed
	}
	for sent := 0; sent < len(p); {
		n, err := unix.SendmsgN(fd, p[sent:], nil, nil, unix.MSG_NOSIGNAL)
		switch {
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
			continue
		case err != nil:
			return fmt.Errorf("send: %w", err)
		case n == 0:
			return fmt.Errorf("send: %w", api.ErrTransportClosed)
		}
		sent += n
	}
	return nil
}

// Wait blocks until input is pending or the timeout elapses.
// Hang-up and error conditions count as readable so the next read reports them.
func (s *Socket) Wait(timeout time.Duration) api.WaitStatus {
	fd := s.descriptor()
	if fd == invalidFD || timeout < 0 {
		return api.WaitError
	}
	return pollReadable(fd, timeout)
}

func pollReadable(fd int, timeout time.Duration) api.WaitStatus {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	deadline := time.Now().Add(timeout)
	for {
		ms := int(time.Until(deadline) / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return api.WaitError
		}
		if n == 0 {
			return api.WaitTimeout
		}
		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			return api.WaitOK
		}
		return api.WaitError
	}
}

// Close shuts down the write side, drains what the peer already sent,
// then releases the descriptor. Calling Close twice is harmless.
func (s *Socket) Close() error {
	s.mu.Lock()
	fd := s.fd
	s.fd = invalidFD
	s.mu.Unlock()
	if fd == invalidFD {
		return nil
	}

	_ = unix.Shutdown(fd, unix.SHUT_WR)
	var buf [512]byte
	deadline := time.Now().Add(drainLimit)
	for time.Now().Before(deadline) {
		if pollReadable(fd, drainStep) != api.WaitOK {
			break
		}
		n, err := unix.Read(fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || n <= 0 {
			break
		}
	}
	return unix.Close(fd)
}

// IsConnected reports whether the descriptor is still open.
func (s *Socket) IsConnected() bool {
	return s.descriptor() != invalidFD
}

// IsEndpointConnected peeks at the stream: a zero-length read means the peer closed.
func (s *Socket) IsEndpointConnected() bool {
	fd := s.descriptor()
	if fd == invalidFD {
		return false
	}
	var buf [32]byte
	n, _, err := unix.Recvfrom(fd, buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
	return !(err == nil && n == 0)
}

// LocalAddress returns the bound local address.
func (s *Socket) LocalAddress() api.Address {
	return sockName(s.descriptor())
}

func sockName(fd int) api.Address {
	if fd == invalidFD {
		return api.Address{}
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return api.Address{}
	}
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return api.Address{IP: in4.Addr, Port: uint16(in4.Port)}
	}
	return api.Address{}
}

// Pair returns two connected local sockets. It is meant for tests and
// in-process plumbing.
func Pair() (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	return NewSocket(fds[0]), NewSocket(fds[1]), nil
}
