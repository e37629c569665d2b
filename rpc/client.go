// File: rpc/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/hub"
	"github.com/momentics/rcom/internal/logging"
)

// Client calls methods on the server behind a topic. Calls are sequential;
// a Client must not be shared between goroutines.
type Client struct {
	link    *hub.Link
	timeout time.Duration
	log     zerolog.Logger
	metrics *control.Metrics
}

// Dial connects to the server of topic, waiting up to the configured
// timeout for the topic to be published.
func Dial(topic string, opts ...Option) (*Client, error) {
	cfg := newSettings(opts)
	link, err := hub.Dial(topic, cfg.timeout, cfg.hubOpts...)
	if err != nil {
		return nil, err
	}
	return NewClient(link, opts...), nil
}

// NewClient wraps an established link.
func NewClient(link *hub.Link, opts ...Option) *Client {
	cfg := newSettings(opts)
	log := logging.Component("rpc-client")
	if cfg.log != nil {
		log = *cfg.log
	}
	return &Client{
		link:    link,
		timeout: cfg.timeout,
		log:     log.With().Str("topic", link.Topic()).Logger(),
		metrics: cfg.metrics,
	}
}

// Execute calls method with params and decodes the result into result,
// which may be nil. Any failure is returned as an *Error.
func (c *Client) Execute(method string, params, result any) error {
	return c.ExecuteWithID(uuid.NewString(), method, params, result)
}

// ExecuteWithID is Execute with a caller-chosen request id, as used to
// address one of several objects behind a topic.
func (c *Client) ExecuteWithID(id, method string, params, result any) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Code: CodeInternalError, Message: fmt.Sprint(r)}
		}
		c.record(method, start, err)
	}()

	msg, _, rerr := c.roundTrip(id, method, params, api.Text)
	if rerr != nil {
		return rerr
	}
	resp, rerr := c.parseResponse(msg)
	if rerr != nil {
		return rerr
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return &Error{Code: CodeInvalidResponse, Message: fmt.Sprintf("decode result: %v", err)}
	}
	return nil
}

// ExecuteBinary sends the call as a binary message and returns the raw
// bytes the handler produced.
func (c *Client) ExecuteBinary(method string, params any) (data []byte, err error) {
	id := uuid.NewString()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Code: CodeInternalError, Message: fmt.Sprint(r)}
		}
		c.record(method, start, err)
	}()

	msg, typ, rerr := c.roundTrip(id, method, params, api.Binary)
	if rerr != nil {
		return nil, rerr
	}
	if typ == api.Binary {
		return msg, nil
	}
	if _, rerr := c.parseResponse(msg); rerr != nil {
		return nil, rerr
	}
	return nil, &Error{Code: CodeInvalidResponse, Message: "expected a binary response"}
}

// roundTrip sends one request and waits for the answer.
func (c *Client) roundTrip(id, method string, params any, typ api.MessageType) ([]byte, api.MessageType, *Error) {
	req := Request{ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, 0, InvalidParams(err)
		}
		req.Params = raw
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, 0, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	if err := c.link.Send(data, typ); err != nil {
		c.log.Error().Err(err).Str("method", method).Msg("sending request failed")
		return nil, 0, &Error{Code: CodeSendError, Message: "Sending failed"}
	}
	deadline := time.Now().Add(c.timeout)
	for {
		msg, ok := c.link.Recv(max(time.Until(deadline), 0))
		if !ok {
			return nil, 0, statusError(c.link.RecvStatus())
		}
		rtyp := c.link.RecvStatus().MessageType()
		if rtyp == api.Text && staleReply(id, msg) {
			c.log.Warn().Str("method", method).Msg("dropping reply to an earlier request")
			continue
		}
		return msg, rtyp, nil
	}
}

// staleReply reports whether msg answers a request other than id.
// Unparsable replies are left for parseResponse to reject.
func staleReply(id string, msg []byte) bool {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return false
	}
	return head.ID != "" && head.ID != NoID && head.ID != id
}

func (c *Client) parseResponse(msg []byte) (Response, *Error) {
	var resp Response
	if err := json.Unmarshal(msg, &resp); err != nil {
		return resp, &Error{Code: CodeParseError, Message: "Parsing response failed"}
	}
	if resp.Error != nil {
		return resp, resp.Error
	}
	return resp, nil
}

func statusError(status api.RecvStatus) *Error {
	switch status {
	case api.RecvClosed:
		return &Error{Code: CodeLinkClosed, Message: "Link closed"}
	case api.RecvTimeout:
		return &Error{Code: CodeReceiveTimeout, Message: "Timeout"}
	default:
		return &Error{Code: CodeReceiveError, Message: "Receive failed"}
	}
}

func (c *Client) record(method string, start time.Time, err error) {
	c.metrics.ObserveRPC(method, time.Since(start))
	if err != nil {
		c.metrics.RPCCall("client", "error")
		return
	}
	c.metrics.RPCCall("client", "ok")
}

// IsConnected reports whether the link to the server is open.
func (c *Client) IsConnected() bool { return c.link.IsConnected() }

// Close drops the link.
func (c *Client) Close() { c.link.Close() }
