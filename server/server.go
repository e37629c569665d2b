// File: server/server.go
// Package server implements the WebSocket server: an accept loop, the set
// of live links, message dispatch and broadcast.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The server is cooperative. Nothing happens between HandleEvents calls:
// each call accepts pending connections, polls every link once and prunes
// the links that went away. Handlers run on the calling goroutine.

package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/internal/logging"
	"github.com/momentics/rcom/protocol"
	"github.com/momentics/rcom/transport"
)

// ErrServerClosed is returned by operations on a closed server.
var ErrServerClosed = errors.New("server closed")

// Server accepts WebSocket links and dispatches their messages to a Handler.
type Server struct {
	cfg      *Config
	ln       api.Listener
	handler  Handler
	log      zerolog.Logger
	metrics  *control.Metrics
	connOpts []protocol.Option

	mu     sync.Mutex
	links  []*protocol.Conn
	closed bool
}

// Listen binds a listener on addr and returns a server dispatching to
// handler. Port 0 picks an ephemeral port; see Address.
func Listen(addr api.Address, handler Handler, opts ...ServerOption) (*Server, error) {
	ln, err := transport.Listen(addr)
	if err != nil {
		return nil, fmt.Errorf("server listen %s: %w", addr, err)
	}
	return NewServer(ln, handler, opts...), nil
}

// NewServer builds a server on an existing listener, which it then owns.
func NewServer(ln api.Listener, handler Handler, opts ...ServerOption) *Server {
	s := &Server{
		cfg:     DefaultConfig(),
		ln:      ln,
		handler: handler,
		log:     logging.Component("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("server", s.cfg.Name).Logger()
	if s.metrics != nil {
		s.connOpts = append([]protocol.Option{protocol.WithMetrics(s.metrics)}, s.connOpts...)
	}
	s.log.Info().Str("addr", ln.Address().String()).Msg("listening")
	return s
}

// Address returns the listening address.
func (s *Server) Address() api.Address {
	return s.ln.Address()
}

// PollInterval is the cadence Run drives HandleEvents at.
func (s *Server) PollInterval() time.Duration {
	return s.cfg.PollInterval
}

// CountLinks returns the number of links kept after the last prune.
func (s *Server) CountLinks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

// HandleEvents runs one cooperative step: accept, receive, prune.
func (s *Server) HandleEvents() {
	if s.isClosed() {
		return
	}
	s.acceptPending()
	s.receivePending()
	s.pruneClosed()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// acceptPending upgrades every connection waiting in the backlog. A failed
// handshake only drops that candidate.
func (s *Server) acceptPending() {
	for {
		sock, err := s.ln.Accept(0)
		if err != nil {
			s.log.Error().Err(err).Msg("accept failed")
			return
		}
		if sock == nil {
			return
		}
		conn, err := protocol.Accept(sock, s.connOpts...)
		if err != nil {
			s.log.Warn().Err(err).Int("class", int(api.CodeOf(err))).Msg("handshake failed, dropping connection")
			continue
		}
		s.metrics.ConnectionAccepted()
		s.mu.Lock()
		s.links = append(s.links, conn)
		s.mu.Unlock()
		s.log.Debug().Msg("link accepted")
	}
}

func (s *Server) snapshot() []*protocol.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.Conn(nil), s.links...)
}

// receivePending polls each connected link once without blocking.
func (s *Server) receivePending() {
	for _, link := range s.snapshot() {
		if !link.IsConnected() {
			continue
		}
		msg, status := link.Recv(0)
		switch status {
		case api.RecvText, api.RecvBinary:
			if s.handler != nil {
				s.handler.OnMessage(s, link, msg, status.MessageType())
			}
		case api.RecvError:
			s.log.Error().Msg("receive failed, closing link")
			link.Close(protocol.CloseInternalError)
		case api.RecvClosed:
			s.log.Debug().Msg("link closed by peer")
		}
	}
}

func (s *Server) pruneClosed() {
	s.mu.Lock()
	kept := s.links[:0]
	for _, link := range s.links {
		if link.IsConnected() {
			kept = append(kept, link)
		}
	}
	for i := len(kept); i < len(s.links); i++ {
		s.links[i] = nil
	}
	s.links = kept
	n := len(kept)
	s.mu.Unlock()
	s.metrics.SetActiveLinks(s.cfg.Name, n)
}

// Broadcast sends msg to every connected link except exclude, which may be
// nil. A link whose send fails is closed; the others still get the message.
// It returns the number of links the message reached.
func (s *Server) Broadcast(msg []byte, typ api.MessageType, exclude *protocol.Conn) int {
	sent := 0
	for _, link := range s.snapshot() {
		if link == exclude || !link.IsConnected() {
			continue
		}
		if err := link.Send(msg, typ); err != nil {
			s.log.Warn().Err(err).Msg("broadcast send failed, closing link")
			link.Close(protocol.CloseInternalError)
			continue
		}
		sent++
	}
	return sent
}

// Close stops listening and closes every link with a going-away code.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.closed = true
	links := s.links
	s.links = nil
	s.mu.Unlock()

	err := s.ln.Close()
	for _, link := range links {
		if link.IsConnected() {
			link.Close(protocol.CloseGoingAway)
		}
	}
	s.metrics.SetActiveLinks(s.cfg.Name, 0)
	s.log.Info().Msg("server closed")
	return err
}
