// File: api/socket.go
// Author: momentics <momentics@gmail.com>
//
// Byte-stream socket abstraction consumed by the WebSocket engine.

package api

import "time"

// Socket is a connected, blocking byte stream with a poll-based wait.
// A Socket owns its descriptor exclusively.
type Socket interface {
	// Read fills p completely or fails.
	Read(p []byte) error

	// Write sends all of p or fails.
	Write(p []byte) error

	// Wait blocks until the socket is readable or the timeout elapses.
	// A zero timeout polls once; a negative timeout is an error.
	Wait(timeout time.Duration) WaitStatus

	// Close shuts down the write side, drains pending input and releases the descriptor.
	Close() error

	// IsConnected reports whether the local side still holds an open descriptor.
	IsConnected() bool

	// IsEndpointConnected probes the peer without consuming data.
	IsEndpointConnected() bool

	// LocalAddress returns the address the socket is bound to.
	LocalAddress() Address
}

// Listener accepts inbound stream connections.
type Listener interface {
	// Accept waits up to timeout for a pending connection.
	// It returns (nil, nil) when no connection arrived in time.
	Accept(timeout time.Duration) (Socket, error)

	// Address returns the bound address, including the chosen port.
	Address() Address

	Close() error
}
