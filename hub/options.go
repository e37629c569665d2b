// File: hub/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hub

import (
	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/internal/logging"
	"github.com/momentics/rcom/protocol"
	"github.com/momentics/rcom/registry"
	"github.com/momentics/rcom/server"
	"github.com/momentics/rcom/transport"
)

type config struct {
	registry   api.Address
	bind       api.Address
	handler    server.Handler
	log        *zerolog.Logger
	metrics    *control.Metrics
	connOpts   []protocol.Option
	serverOpts []server.ServerOption
	proxyOpts  []registry.ProxyOption
}

func newConfig(opts []Option) config {
	cfg := config{
		registry: control.DefaultConfig().Registry.Address,
		bind:     transport.LocalIPv4().WithPort(0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a Hub or a Link.
type Option func(*config)

// WithRegistry sets the registry address used to publish or resolve topics.
func WithRegistry(addr api.Address) Option {
	return func(c *config) { c.registry = addr }
}

// WithBindAddress sets the address a Hub listens on and publishes.
// Port 0 picks an ephemeral port.
func WithBindAddress(addr api.Address) Option {
	return func(c *config) { c.bind = addr }
}

// WithHandler routes the messages a Hub receives to h instead of its inbox.
func WithHandler(h server.Handler) Option {
	return func(c *config) { c.handler = h }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.log = &l }
}

// WithMetrics records traffic on the hub or link connections.
func WithMetrics(m *control.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithConnOptions passes options to every WebSocket connection.
func WithConnOptions(opts ...protocol.Option) Option {
	return func(c *config) { c.connOpts = append(c.connOpts, opts...) }
}

// WithServerOptions passes options to the Hub's server.
func WithServerOptions(opts ...server.ServerOption) Option {
	return func(c *config) { c.serverOpts = append(c.serverOpts, opts...) }
}

// WithProxyOptions passes options to the registry proxy.
func WithProxyOptions(opts ...registry.ProxyOption) Option {
	return func(c *config) { c.proxyOpts = append(c.proxyOpts, opts...) }
}

func (c *config) logger(component string) zerolog.Logger {
	if c.log != nil {
		return *c.log
	}
	return logging.Component(component)
}

func (c *config) protocolOptions() []protocol.Option {
	opts := append([]protocol.Option(nil), c.connOpts...)
	if c.metrics != nil {
		opts = append([]protocol.Option{protocol.WithMetrics(c.metrics)}, opts...)
	}
	return opts
}
