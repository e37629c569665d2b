// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Functional options for the WebSocket engine.

package protocol

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/internal/logging"
)

type config struct {
	maxMessageLength   uint64
	maxPayloadLength   uint64
	shortMessageLength int
	handshakeTimeout   time.Duration
	closeTimeout       time.Duration
	logger             zerolog.Logger
	metrics            *control.Metrics
}

func defaultConfig() config {
	return config{
		maxMessageLength:   DefaultMaxMessageLength,
		maxPayloadLength:   DefaultMaxPayloadLength,
		shortMessageLength: DefaultShortMessageLength,
		handshakeTimeout:   DefaultHandshakeTimeout,
		closeTimeout:       DefaultCloseTimeout,
		logger:             logging.Component("websocket"),
	}
}

// Option configures a Conn.
type Option func(*config)

// WithMaxMessageLength bounds a reassembled message and an outgoing message.
func WithMaxMessageLength(n uint64) Option {
	return func(c *config) { c.maxMessageLength = n }
}

// WithMaxPayloadLength bounds the declared length of a single frame.
func WithMaxPayloadLength(n uint64) Option {
	return func(c *config) { c.maxPayloadLength = n }
}

// WithShortMessageLength sets the size under which a message is sent in one write.
func WithShortMessageLength(n int) Option {
	return func(c *config) { c.shortMessageLength = n }
}

// WithHandshakeTimeout bounds the wait for each byte of the opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *config) { c.handshakeTimeout = d }
}

// WithCloseTimeout bounds the wait for the peer's Close frame.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *config) { c.closeTimeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func WithMetrics(m *control.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithConfig applies the [websocket] section of a loaded configuration.
func WithConfig(ws control.WebSocketConfig) Option {
	return func(c *config) {
		if ws.MaxMessageLength > 0 {
			c.maxMessageLength = ws.MaxMessageLength
		}
		if ws.MaxPayloadLength > 0 {
			c.maxPayloadLength = ws.MaxPayloadLength
		}
		if ws.ShortMessageLength > 0 {
			c.shortMessageLength = ws.ShortMessageLength
		}
		if ws.HandshakeTimeout > 0 {
			c.handshakeTimeout = ws.HandshakeTimeout
		}
		if ws.CloseTimeout > 0 {
			c.closeTimeout = ws.CloseTimeout
		}
	}
}
