// File: registry/proxy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/internal/logging"
	"github.com/momentics/rcom/protocol"
)

const (
	// DefaultResponseTimeout bounds the wait for a single response.
	DefaultResponseTimeout = 2 * time.Second
	// retryPause is the longest pause between two get attempts.
	retryPause = 500 * time.Millisecond
)

var errNoAddress = errors.New("response carries no address")

// Proxy talks to a remote registry over one WebSocket connection.
// Requests are sequential; a Proxy must not be shared between goroutines.
type Proxy struct {
	conn            *protocol.Conn
	log             zerolog.Logger
	responseTimeout time.Duration
}

// ProxyOption customizes a Proxy.
type ProxyOption func(*proxyConfig)

type proxyConfig struct {
	log             zerolog.Logger
	responseTimeout time.Duration
	connOpts        []protocol.Option
}

// WithProxyLogger overrides the component logger.
func WithProxyLogger(l zerolog.Logger) ProxyOption {
	return func(c *proxyConfig) { c.log = l }
}

// WithResponseTimeout bounds the wait for each response.
func WithResponseTimeout(d time.Duration) ProxyOption {
	return func(c *proxyConfig) {
		if d > 0 {
			c.responseTimeout = d
		}
	}
}

// WithProxyConnOptions passes options to the underlying connection.
func WithProxyConnOptions(opts ...protocol.Option) ProxyOption {
	return func(c *proxyConfig) { c.connOpts = append(c.connOpts, opts...) }
}

func newProxyConfig(opts []ProxyOption) proxyConfig {
	cfg := proxyConfig{
		log:             logging.Component("registry-proxy"),
		responseTimeout: DefaultResponseTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Dial connects to the registry at addr.
func Dial(addr api.Address, opts ...ProxyOption) (*Proxy, error) {
	cfg := newProxyConfig(opts)
	conn, err := protocol.Connect(addr, cfg.connOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to registry %s: %w", addr, err)
	}
	return &Proxy{conn: conn, log: cfg.log, responseTimeout: cfg.responseTimeout}, nil
}

// NewProxy wraps an established client connection.
func NewProxy(conn *protocol.Conn, opts ...ProxyOption) *Proxy {
	cfg := newProxyConfig(opts)
	return &Proxy{conn: conn, log: cfg.log, responseTimeout: cfg.responseTimeout}
}

// Set registers address under topic.
func (p *Proxy) Set(topic string, address api.Address) error {
	return p.call(Request{Request: RequestRegister, Topic: topic, Address: address.String()})
}

// Remove unregisters topic.
func (p *Proxy) Remove(topic string) error {
	return p.call(Request{Request: RequestUnregister, Topic: topic})
}

// call runs a single-shot request that expects a plain success answer.
func (p *Proxy) call(req Request) error {
	if err := p.conn.Send(encode(req), api.Text); err != nil {
		return fmt.Errorf("%s %q: %w", req.Request, req.Topic, err)
	}
	resp, err := p.readResponse(p.responseTimeout)
	if err != nil {
		return fmt.Errorf("%s %q: %w", req.Request, req.Topic, err)
	}
	if !resp.Success {
		p.log.Error().Str("request", req.Request).Str("reason", resp.Message).Msg("request failed")
		return fmt.Errorf("%s %q: %w: %s", req.Request, req.Topic, api.ErrRegistryFailure, resp.Message)
	}
	return nil
}

// Get resolves topic, retrying until an address is known or timeout
// elapses. A topic that is not registered yet is retried; a broken
// connection ends the wait at once.
func (p *Proxy) Get(topic string, timeout time.Duration) (api.Address, error) {
	req := encode(Request{Request: RequestGet, Topic: topic})
	start := time.Now()
	var last error
	for {
		addr, err := p.tryGet(req, timeout-time.Since(start))
		if err == nil {
			return addr, nil
		}
		if !retryable(err) {
			return api.Address{}, fmt.Errorf("get %q: %w", topic, err)
		}
		last = err
		elapsed := time.Since(start)
		if elapsed >= timeout {
			break
		}
		time.Sleep(min(retryPause, timeout-elapsed))
	}
	p.log.Debug().Str("topic", topic).Err(last).Msg("get timed out")
	return api.Address{}, fmt.Errorf("get %q: %w: %w", topic, api.ErrNotFound, last)
}

func (p *Proxy) tryGet(req []byte, remaining time.Duration) (api.Address, error) {
	if err := p.conn.Send(req, api.Text); err != nil {
		return api.Address{}, err
	}
	resp, err := p.readResponse(max(0, min(p.responseTimeout, remaining)))
	if err != nil {
		return api.Address{}, err
	}
	if !resp.Success {
		return api.Address{}, fmt.Errorf("%w: %s", api.ErrRegistryFailure, resp.Message)
	}
	if resp.Address == "" {
		return api.Address{}, errNoAddress
	}
	return api.ParseAddress(resp.Address)
}

// retryable reports whether a get attempt may be repeated.
func retryable(err error) bool {
	return errors.Is(err, errNoAddress) ||
		errors.Is(err, api.ErrOperationTimeout) ||
		errors.Is(err, api.ErrInvalidAddress) ||
		errors.Is(err, api.ErrUnexpectedMessage) ||
		errors.Is(err, api.ErrRegistryFailure)
}

func (p *Proxy) readResponse(timeout time.Duration) (Response, error) {
	var resp Response
	msg, status := p.conn.Recv(timeout)
	switch status {
	case api.RecvText:
	case api.RecvTimeout:
		p.log.Warn().Msg("response timed out")
		return resp, api.ErrOperationTimeout
	case api.RecvBinary:
		return resp, fmt.Errorf("%w: binary response", api.ErrUnexpectedMessage)
	case api.RecvClosed:
		return resp, api.ErrTransportClosed
	default:
		p.log.Warn().Msg("receive failed")
		return resp, fmt.Errorf("receive: %w", api.ErrTransportClosed)
	}
	if err := json.Unmarshal(msg, &resp); err != nil {
		p.log.Error().Err(err).Msg("malformed response")
		return resp, fmt.Errorf("%w: %v", api.ErrUnexpectedMessage, err)
	}
	return resp, nil
}

// Close ends the connection to the registry.
func (p *Proxy) Close() {
	p.conn.Close(protocol.CloseNormal)
}
