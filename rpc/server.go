// File: rpc/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/hub"
	"github.com/momentics/rcom/internal/logging"
	"github.com/momentics/rcom/protocol"
	"github.com/momentics/rcom/server"
)

// MessageHandler turns inbound messages into calls on a Handler and sends
// the answers back on the same link.
type MessageHandler struct {
	handler Handler
	log     zerolog.Logger
	metrics *control.Metrics
}

// NewMessageHandler wraps h. A nil logger selects the component logger.
func NewMessageHandler(h Handler, log *zerolog.Logger, metrics *control.Metrics) *MessageHandler {
	l := logging.Component("rpc-server")
	if log != nil {
		l = *log
	}
	return &MessageHandler{handler: h, log: l, metrics: metrics}
}

// OnMessage implements server.Handler.
func (m *MessageHandler) OnMessage(_ *server.Server, link *protocol.Conn, msg []byte, typ api.MessageType) {
	var (
		reply     []byte
		replyType = api.Text
	)
	if typ == api.Text {
		reply = m.HandleText(msg)
	} else {
		reply, replyType = m.HandleBinary(msg)
	}
	if err := link.Send(reply, replyType); err != nil {
		m.log.Error().Err(err).Msg("sending response failed")
	}
}

// HandleText answers a JSON request with a JSON response.
func (m *MessageHandler) HandleText(msg []byte) []byte {
	req, rerr := parseRequest(msg)
	if rerr != nil {
		m.metrics.RPCCall("server", "invalid")
		m.log.Warn().Int("code", rerr.Code).Str("reason", rerr.Message).Msg("bad request")
		return newResponse(req.ID, "", nil, rerr).encode()
	}

	start := time.Now()
	result, err := m.call(req)
	m.metrics.ObserveRPC(req.Method, time.Since(start))
	if err != nil {
		m.metrics.RPCCall("server", "error")
		return newResponse(req.ID, req.Method, nil, asError(err)).encode()
	}
	data, err := json.Marshal(result)
	if err != nil {
		m.metrics.RPCCall("server", "error")
		return newResponse(req.ID, req.Method, nil,
			&Error{Code: CodeInternalError, Message: fmt.Sprintf("encode result: %v", err)}).encode()
	}
	m.metrics.RPCCall("server", "ok")
	return newResponse(req.ID, req.Method, data, nil).encode()
}

// HandleBinary answers a binary request. A successful call yields the raw
// result as a binary message, a failure a JSON error envelope as text.
func (m *MessageHandler) HandleBinary(msg []byte) ([]byte, api.MessageType) {
	req, rerr := parseRequest(msg)
	if rerr != nil {
		m.metrics.RPCCall("server", "invalid")
		return newResponse(req.ID, "", nil, rerr).encode(), api.Text
	}
	bh, ok := m.handler.(BinaryHandler)
	if !ok {
		m.metrics.RPCCall("server", "error")
		return newResponse(req.ID, req.Method, nil,
			NewError(CodeMethodNotFound, "binary calls are not supported")).encode(), api.Text
	}
	result, err := m.callBinary(bh, req)
	if err != nil {
		m.metrics.RPCCall("server", "error")
		return newResponse(req.ID, req.Method, nil, asError(err)).encode(), api.Text
	}
	m.metrics.RPCCall("server", "ok")
	return result, api.Binary
}

// call runs the handler, converting a panic into an internal error.
func (m *MessageHandler) call(req Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("method", req.Method).Interface("panic", r).
				Bytes("stack", debug.Stack()).Msg("handler panicked")
			err = &Error{Code: CodeInternalError, Message: fmt.Sprint(r)}
		}
	}()
	return m.handler.Execute(req.ID, req.Method, req.Params)
}

func (m *MessageHandler) callBinary(bh BinaryHandler, req Request) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("method", req.Method).Interface("panic", r).Msg("binary handler panicked")
			err = &Error{Code: CodeInternalError, Message: fmt.Sprint(r)}
		}
	}()
	return bh.ExecuteBinary(req.ID, req.Method, req.Params)
}

// Server serves a Handler on a topic.
type Server struct {
	hub *hub.Hub
}

// NewServer registers topic and routes every request on it to h.
func NewServer(topic string, h Handler, opts ...Option) (*Server, error) {
	cfg := newSettings(opts)
	mh := NewMessageHandler(h, cfg.log, cfg.metrics)
	hb, err := hub.New(topic, append(cfg.hubOpts, hub.WithHandler(mh))...)
	if err != nil {
		return nil, err
	}
	return &Server{hub: hb}, nil
}

// Address returns the address the server published.
func (s *Server) Address() api.Address { return s.hub.Address() }

// Hub exposes the underlying hub.
func (s *Server) Hub() *hub.Hub { return s.hub }

// HandleEvents accepts new clients and answers pending requests.
func (s *Server) HandleEvents() { s.hub.HandleEvents() }

// Run serves until ctx ends.
func (s *Server) Run(ctx context.Context) error { return s.hub.Run(ctx) }

// Close unregisters the topic and drops every client.
func (s *Server) Close() { s.hub.Close() }
