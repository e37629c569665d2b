// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/protocol"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Name         string        // label used in logs and the active-links gauge
	PollInterval time.Duration // HandleEvents cadence used by Run
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:         "websocket",
		PollInterval: control.DefaultPollInterval,
	}
}

// Handler receives every complete inbound message. It runs on the goroutine
// that drives HandleEvents and may call back into the server.
type Handler interface {
	OnMessage(srv *Server, link *protocol.Conn, msg []byte, typ api.MessageType)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(srv *Server, link *protocol.Conn, msg []byte, typ api.MessageType)

// OnMessage calls f.
func (f HandlerFunc) OnMessage(srv *Server, link *protocol.Conn, msg []byte, typ api.MessageType) {
	f(srv, link, msg, typ)
}
