// File: hub/hub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/protocol"
	"github.com/momentics/rcom/registry"
	"github.com/momentics/rcom/server"
)

// Message is an inbound message waiting in a Hub's inbox.
type Message struct {
	From *protocol.Conn
	Data []byte
	Type api.MessageType
}

// Hub is the serving end of a topic.
type Hub struct {
	topic string
	srv   *server.Server
	cfg   config
	log   zerolog.Logger

	inboxMu sync.Mutex
	inbox   *queue.Queue

	closeOnce sync.Once
}

// New validates topic, starts listening and registers the hub's address in
// the registry. Nothing is left open when it fails.
func New(topic string, opts ...Option) (*Hub, error) {
	if err := checkTopic(topic); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	h := &Hub{
		topic: topic,
		cfg:   cfg,
		log:   cfg.logger("hub").With().Str("topic", topic).Logger(),
		inbox: queue.New(),
	}

	handler := cfg.handler
	if handler == nil {
		handler = server.HandlerFunc(h.enqueue)
	}
	sopts := append([]server.ServerOption{
		server.WithName(topic),
		server.WithLogger(h.log),
		server.WithMetrics(cfg.metrics),
		server.WithConnOptions(cfg.connOpts...),
	}, cfg.serverOpts...)
	srv, err := server.Listen(cfg.bind, handler, sopts...)
	if err != nil {
		return nil, fmt.Errorf("hub %q: %w", topic, err)
	}
	h.srv = srv

	if err := h.register(); err != nil {
		_ = srv.Close()
		h.log.Error().Err(err).Msg("registration failed")
		return nil, fmt.Errorf("hub %q: %w", topic, err)
	}
	h.log.Info().Str("addr", srv.Address().String()).Msg("hub registered")
	return h, nil
}

func (h *Hub) register() error {
	proxy, err := registry.Dial(h.cfg.registry, h.proxyOptions()...)
	if err != nil {
		return err
	}
	defer proxy.Close()
	return proxy.Set(h.topic, h.srv.Address())
}

func (h *Hub) unregister() error {
	proxy, err := registry.Dial(h.cfg.registry, h.proxyOptions()...)
	if err != nil {
		return err
	}
	defer proxy.Close()
	return proxy.Remove(h.topic)
}

func (h *Hub) proxyOptions() []registry.ProxyOption {
	return append([]registry.ProxyOption{
		registry.WithProxyConnOptions(h.cfg.protocolOptions()...),
	}, h.cfg.proxyOpts...)
}

func (h *Hub) enqueue(_ *server.Server, link *protocol.Conn, msg []byte, typ api.MessageType) {
	h.inboxMu.Lock()
	h.inbox.Add(Message{From: link, Data: msg, Type: typ})
	h.inboxMu.Unlock()
}

// Topic returns the topic the hub serves.
func (h *Hub) Topic() string { return h.topic }

// Address returns the published address.
func (h *Hub) Address() api.Address { return h.srv.Address() }

// Server exposes the underlying WebSocket server.
func (h *Hub) Server() *server.Server { return h.srv }

// HandleEvents runs one step of the hub's server.
func (h *Hub) HandleEvents() { h.srv.HandleEvents() }

// Run drives HandleEvents until ctx ends, then closes the hub.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.srv.PollInterval())
	defer ticker.Stop()
	defer h.Close()

	for {
		h.HandleEvents()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Broadcast sends msg to every link except exclude.
func (h *Hub) Broadcast(msg []byte, typ api.MessageType, exclude *protocol.Conn) int {
	return h.srv.Broadcast(msg, typ, exclude)
}

// CountLinks returns the number of connected links.
func (h *Hub) CountLinks() int { return h.srv.CountLinks() }

// Recv pops the oldest message from the inbox. The inbox is only fed when
// the hub was created without a handler.
func (h *Hub) Recv() (Message, bool) {
	h.inboxMu.Lock()
	defer h.inboxMu.Unlock()
	if h.inbox.Length() == 0 {
		return Message{}, false
	}
	return h.inbox.Remove().(Message), true
}

// Pending returns the number of messages waiting in the inbox.
func (h *Hub) Pending() int {
	h.inboxMu.Lock()
	defer h.inboxMu.Unlock()
	return h.inbox.Length()
}

// Close removes the topic from the registry and closes every link.
// It is safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		if err := h.unregister(); err != nil {
			h.log.Warn().Err(err).Msg("unregister failed")
		}
		_ = h.srv.Close()
	})
}
