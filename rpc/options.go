// File: rpc/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/hub"
)

// DefaultTimeout bounds a call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

type settings struct {
	log     *zerolog.Logger
	metrics *control.Metrics
	hubOpts []hub.Option
	timeout time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	if s.metrics != nil {
		s.hubOpts = append([]hub.Option{hub.WithMetrics(s.metrics)}, s.hubOpts...)
	}
	return s
}

// Option configures a Server or a Client.
type Option func(*settings)

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = &l }
}

// WithMetrics records calls and their latency.
func WithMetrics(m *control.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithHubOptions configures the underlying hub or link, for example its
// registry address.
func WithHubOptions(opts ...hub.Option) Option {
	return func(s *settings) { s.hubOpts = append(s.hubOpts, opts...) }
}

// WithTimeout bounds how long a client waits for each response.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}
