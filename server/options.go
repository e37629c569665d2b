// File: server/options.go
// Package server defines functional options for the WebSocket server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/protocol"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithConfig replaces the whole server configuration.
func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) {
		if cfg != nil {
			c := *cfg
			s.cfg = &c
		}
	}
}

// WithName labels the server in logs and metrics.
func WithName(name string) ServerOption {
	return func(s *Server) {
		s.cfg.Name = name
	}
}

// WithPollInterval sets the HandleEvents cadence used by Run.
func WithPollInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.cfg.PollInterval = d
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics records accepts, faults and link counts. The metrics are also
// handed to every accepted connection.
func WithMetrics(m *control.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithConnOptions passes options to every accepted connection.
func WithConnOptions(opts ...protocol.Option) ServerOption {
	return func(s *Server) {
		s.connOpts = append(s.connOpts, opts...)
	}
}
