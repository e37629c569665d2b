// File: registry/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/internal/logging"
	"github.com/momentics/rcom/protocol"
	"github.com/momentics/rcom/server"
)

// Outcomes recorded in the registry request metric.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeFailed   = "failed"
)

// Handler serves the registry protocol. It plugs into a server.Server.
type Handler struct {
	reg     *Registry
	log     zerolog.Logger
	metrics *control.Metrics
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// WithMetrics records requests and the topic count.
func WithMetrics(m *control.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler returns a handler answering requests against reg.
func NewHandler(reg *Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		reg: reg,
		log: logging.Component("registry"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Listen starts a WebSocket server on addr that serves the handler's
// registry. The caller drives it with HandleEvents or Run.
func (h *Handler) Listen(addr api.Address, opts ...server.ServerOption) (*server.Server, error) {
	opts = append([]server.ServerOption{
		server.WithName("registry"),
		server.WithMetrics(h.metrics),
	}, opts...)
	return server.Listen(addr, h, opts...)
}

// OnMessage answers one request on link.
func (h *Handler) OnMessage(_ *server.Server, link *protocol.Conn, msg []byte, _ api.MessageType) {
	h.log.Debug().Bytes("message", msg).Msg("request received")
	resp := h.Handle(msg)
	if err := link.Send(resp, api.Text); err != nil {
		h.log.Error().Err(err).Msg("sending response failed")
	}
}

// Handle decodes a request, applies it and returns the encoded response.
func (h *Handler) Handle(msg []byte) []byte {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		h.log.Error().Err(err).Msg("malformed request")
		h.metrics.RegistryRequest("invalid", outcomeFailed)
		return failResponse(fmt.Sprintf("malformed request: %v", err))
	}
	resp, outcome := h.apply(req)
	h.metrics.RegistryRequest(req.Request, outcome)
	h.metrics.SetRegistryTopics(h.reg.Len())
	return resp
}

func (h *Handler) apply(req Request) ([]byte, string) {
	if req.Request == "" {
		return h.fail("missing request")
	}
	if req.Topic == "" && isKnownRequest(req.Request) {
		return h.fail("missing topic")
	}
	switch req.Request {
	case RequestRegister:
		addr, err := api.ParseAddress(req.Address)
		if err == nil {
			err = h.reg.Set(req.Topic, addr)
		}
		if err != nil {
			return h.fail(err.Error())
		}
		h.log.Info().Str("topic", req.Topic).Str("address", addr.String()).Msg("topic registered")
		return successResponse(), outcomeOK
	case RequestUnregister:
		h.reg.Remove(req.Topic)
		h.log.Info().Str("topic", req.Topic).Msg("topic unregistered")
		return successResponse(), outcomeOK
	case RequestGet:
		addr, ok := h.reg.Get(req.Topic)
		if !ok {
			h.log.Info().Str("topic", req.Topic).Msg("topic not registered")
			return successResponse(), outcomeNotFound
		}
		h.log.Debug().Str("topic", req.Topic).Str("address", addr.String()).Msg("topic resolved")
		return addressResponse(addr.String()), outcomeOK
	default:
		h.log.Warn().Str("request", req.Request).Msg("unknown request")
		return h.fail("unknown request")
	}
}

func (h *Handler) fail(msg string) ([]byte, string) {
	h.log.Warn().Str("reason", msg).Msg("request failed")
	return failResponse(msg), outcomeFailed
}

func isKnownRequest(kind string) bool {
	return kind == RequestRegister || kind == RequestUnregister || kind == RequestGet
}
