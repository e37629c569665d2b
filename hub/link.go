// File: hub/link.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hub

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/protocol"
	"github.com/momentics/rcom/registry"
)

// Link is the client end of a topic.
type Link struct {
	topic  string
	conn   *protocol.Conn
	log    zerolog.Logger
	status api.RecvStatus
}

// Dial resolves topic through the registry, waiting up to timeout for a
// hub to publish it, and connects to that hub.
func Dial(topic string, timeout time.Duration, opts ...Option) (*Link, error) {
	if err := checkTopic(topic); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	log := cfg.logger("link").With().Str("topic", topic).Logger()

	addr, err := resolve(cfg, topic, timeout)
	if err != nil {
		log.Warn().Err(err).Msg("no address for topic")
		return nil, fmt.Errorf("link %q: %w", topic, err)
	}
	conn, err := protocol.Connect(addr, cfg.protocolOptions()...)
	if err != nil {
		log.Error().Err(err).Str("addr", addr.String()).Msg("connect failed")
		return nil, fmt.Errorf("link %q: %w", topic, err)
	}
	log.Debug().Str("addr", addr.String()).Msg("link connected")
	return &Link{topic: topic, conn: conn, log: log, status: api.RecvText}, nil
}

func resolve(cfg config, topic string, timeout time.Duration) (api.Address, error) {
	popts := append([]registry.ProxyOption{
		registry.WithProxyConnOptions(cfg.protocolOptions()...),
	}, cfg.proxyOpts...)
	proxy, err := registry.Dial(cfg.registry, popts...)
	if err != nil {
		return api.Address{}, err
	}
	defer proxy.Close()
	return proxy.Get(topic, timeout)
}

// Topic returns the topic the link is connected to.
func (l *Link) Topic() string { return l.topic }

// Conn exposes the underlying WebSocket connection.
func (l *Link) Conn() *protocol.Conn { return l.conn }

// Recv waits up to timeout for a message. ok is false when no message
// arrived; RecvStatus tells why.
func (l *Link) Recv(timeout time.Duration) (msg []byte, ok bool) {
	msg, l.status = l.conn.Recv(timeout)
	return msg, l.status.IsMessage()
}

// RecvStatus returns the status of the last Recv.
func (l *Link) RecvStatus() api.RecvStatus { return l.status }

// Send writes one message to the hub.
func (l *Link) Send(msg []byte, typ api.MessageType) error {
	return l.conn.Send(msg, typ)
}

// IsConnected reports whether the connection to the hub is open.
func (l *Link) IsConnected() bool { return l.conn.IsConnected() }

// Close leaves the topic with a going-away close.
func (l *Link) Close() {
	l.conn.Close(protocol.CloseGoingAway)
}
