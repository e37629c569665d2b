//go:build !linux
// +build !linux

// File: transport/socket_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stubs for platforms without the raw-descriptor socket.

package transport

import (
	"time"

	"github.com/momentics/rcom/api"
)

// Socket is unavailable on this platform.
type Socket struct{}

// Listener is unavailable on this platform.
type Listener struct{}

func Dial(api.Address) (*Socket, error) { return nil, api.ErrNotSupported }
func Listen(api.Address) (*Listener, error) { return nil, api.ErrNotSupported }
func Pair() (*Socket, *Socket, error) { return nil, nil, api.ErrNotSupported }

func (*Socket) Read([]byte) error { return api.ErrNotSupported }
func (*Socket) Write([]byte) error { return api.ErrNotSupported }
func (*Socket) Wait(time.Duration) api.WaitStatus { return api.WaitError }
func (*Socket) Close() error { return nil }
func (*Socket) IsConnected() bool { return false }
func (*Socket) IsEndpointConnected() bool { return false }
func (*Socket) LocalAddress() api.Address { return api.Address{} }

func (*Listener) Accept(time.Duration) (api.Socket, error) { return nil, api.ErrNotSupported }
func (*Listener) Address() api.Address { return api.Address{} }
func (*Listener) Close() error { return nil }
