// File: protocol/handshake.go
// Package protocol implements the WebSocket opening handshake.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server and client sides of the RFC 6455 HTTP Upgrade exchange,
// Sec-WebSocket-Key generation and Sec-WebSocket-Accept computation.

package protocol

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/momentics/rcom/api"
)

const (
	HeaderHost               = "Host"
	HeaderConnection         = "Connection"
	HeaderUpgrade            = "Upgrade"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderSecWebSocketVer    = "Sec-WebSocket-Version"
	HeaderSecWebSocketAccept = "Sec-WebSocket-Accept"

	keyLength = 24
)

// AcceptKey computes the Sec-WebSocket-Accept value for a client key.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// NewKey returns a fresh base64-encoded 16-byte nonce.
func NewKey() (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("handshake nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// ValidKey checks the shape of a Sec-WebSocket-Key: 24 base64 characters
// encoding 16 bytes, hence ending in "==".
func ValidKey(key string) bool {
	if len(key) != keyLength || !strings.HasSuffix(key, "==") {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	return err == nil && len(raw) == 16
}

// ValidateUpgradeRequest checks that req asks for a WebSocket upgrade and
// returns the client key.
func ValidateUpgradeRequest(req *Request) (string, error) {
	if req.Method != "GET" {
		return "", &HTTPError{Status: StatusMethodNotAllowed, Reason: "method not allowed"}
	}
	key, ok := req.Headers.Get(HeaderSecWebSocketKey)
	if !ok || !ValidKey(key) {
		return "", &HTTPError{Status: StatusBadRequest, Reason: "bad Sec-WebSocket-Key header"}
	}
	if v, ok := req.Headers.Get(HeaderSecWebSocketVer); !ok || v != RequiredWebSocketVersion {
		return "", &HTTPError{Status: StatusBadRequest, Reason: "bad Sec-WebSocket-Version header"}
	}
	// Browsers send e.g. "keep-alive, Upgrade": a substring match is enough.
	if v, ok := req.Headers.Get(HeaderConnection); !ok || !strings.Contains(strings.ToLower(v), "upgrade") {
		return "", &HTTPError{Status: StatusBadRequest, Reason: "bad Connection header"}
	}
	if v, ok := req.Headers.Get(HeaderUpgrade); !ok || !strings.EqualFold(v, "websocket") {
		return "", &HTTPError{Status: StatusBadRequest, Reason: "bad Upgrade header"}
	}
	return key, nil
}

// ValidateUpgradeResponse checks a server's answer against the key we sent.
func ValidateUpgradeResponse(resp *Response, key string) error {
	if resp.Code != http.StatusSwitchingProtocols {
		return fmt.Errorf("expected status 101, got %d", resp.Code)
	}
	if v, ok := resp.Headers.Get(HeaderConnection); !ok || !strings.EqualFold(v, "upgrade") {
		return fmt.Errorf("bad Connection header %q", v)
	}
	if v, ok := resp.Headers.Get(HeaderUpgrade); !ok || !strings.EqualFold(v, "websocket") {
		return fmt.Errorf("bad Upgrade header %q", v)
	}
	if v, ok := resp.Headers.Get(HeaderSecWebSocketAccept); !ok || v != AcceptKey(key) {
		return fmt.Errorf("bad Sec-WebSocket-Accept header %q", v)
	}
	return nil
}

// UpgradeRequest renders the client's opening request.
func UpgradeRequest(host, key string) []byte {
	return []byte("GET / HTTP/1.1\r\n" +
		HeaderHost + ": " + host + "\r\n" +
		HeaderConnection + ": Upgrade\r\n" +
		HeaderUpgrade + ": websocket\r\n" +
		HeaderSecWebSocketVer + ": " + RequiredWebSocketVersion + "\r\n" +
		HeaderSecWebSocketKey + ": " + key + "\r\n" +
		"\r\n")
}

// UpgradeResponse renders the server's 101 answer.
func UpgradeResponse(key string) []byte {
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		HeaderUpgrade + ": websocket\r\n" +
		HeaderConnection + ": Upgrade\r\n" +
		HeaderSecWebSocketAccept + ": " + AcceptKey(key) + "\r\n" +
		"\r\n")
}

// ErrorResponse renders a minimal error answer for a rejected upgrade.
func ErrorResponse(status int) []byte {
	text := http.StatusText(status)
	if text == "" {
		text = "Error"
	}
	return []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\nConnection: close\r\nContent-Length: 0\r\n\r\n", status, text))
}

// serverHandshake reads the upgrade request and answers it. A rejected
// request gets a best-effort HTTP error status before the caller closes.
func serverHandshake(sock api.Socket, timeout time.Duration) error {
	req, err := ReadRequest(sock, timeout)
	if err == nil {
		var key string
		key, err = ValidateUpgradeRequest(req)
		if err == nil {
			if werr := sock.Write(UpgradeResponse(key)); werr != nil {
				return handshakeError(ServerRole, "send response", werr)
			}
			return nil
		}
	}
	status := StatusBadRequest
	var herr *HTTPError
	if errors.As(err, &herr) {
		status = herr.Status
	}
	_ = sock.Write(ErrorResponse(status))
	return handshakeError(ServerRole, "read request", err).WithContext("status", status)
}

// clientHandshake sends the upgrade request for host and validates the answer.
func clientHandshake(sock api.Socket, host string, timeout time.Duration) error {
	key, err := NewKey()
	if err != nil {
		return handshakeError(ClientRole, "generate key", err)
	}
	if err := sock.Write(UpgradeRequest(host, key)); err != nil {
		return handshakeError(ClientRole, "send request", err)
	}
	resp, err := ReadResponse(sock, timeout)
	if err != nil {
		return handshakeError(ClientRole, "read response", err)
	}
	if err := ValidateUpgradeResponse(resp, key); err != nil {
		return handshakeError(ClientRole, "validate response", err)
	}
	return nil
}

// handshakeError wraps err as an api.ErrHandshake carrying the role and step.
// Transport failures and timeouts keep their class; everything else is a
// protocol error.
func handshakeError(role Role, step string, err error) *api.Error {
	code := api.CodeOf(err)
	var herr *HTTPError
	switch {
	case errors.As(err, &herr) && herr.Status == StatusRequestTimeout:
		code = api.ErrCodeTimeout
	case code == api.ErrCodeInternal:
		code = api.ErrCodeProtocol
	}
	return api.WrapError(code, api.ErrHandshake, "websocket handshake failed").
		WithDetail(err).
		WithContext("role", role.String()).
		WithContext("step", step)
}
