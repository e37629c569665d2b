package protocol

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/transport"
)

// connectedPair runs both handshakes over a socket pair.
func connectedPair(t *testing.T) (srv, cli *Conn) {
	t.Helper()
	a, b, err := transport.Pair()
	require.NoError(t, err)

	type result struct {
		conn *Conn
		err  error
	}
	srvc := make(chan result, 1)
	go func() {
		c, err := Accept(a, WithCloseTimeout(200*time.Millisecond))
		srvc <- result{c, err}
	}()
	cli, err = Dial(b, "localhost", WithCloseTimeout(200*time.Millisecond))
	require.NoError(t, err)
	r := <-srvc
	require.NoError(t, r.err)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return r.conn, cli
}

func feed(t *testing.T, text string) api.Socket {
	t.Helper()
	a, b, err := transport.Pair()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	require.NoError(t, a.Write([]byte(text)))
	return b
}

func TestAcceptKeyMatchesRFCExample(t *testing.T) {
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestNewKeyIsValid(t *testing.T) {
	k1, err := NewKey()
	require.NoError(t, err)
	k2, err := NewKey()
	require.NoError(t, err)
	assert.True(t, ValidKey(k1))
	assert.NotEqual(t, k1, k2)
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("dGhlIHNhbXBsZSBub25jZQ=="))
	assert.False(t, ValidKey("dGhlIHNhbXBsZSBub25jZQ="))
	assert.False(t, ValidKey("dGhlIHNhbXBsZSBub25jZQAA"))
	assert.False(t, ValidKey("dGhlIHNhbXBsZSBub25j*Q=="))
	assert.False(t, ValidKey(""))
}

func TestReadRequest(t *testing.T) {
	sock := feed(t, "GET /chat HTTP/1.1\r\n"+
		"Host: 10.0.0.1:8080\r\n"+
		"connection: keep-alive, Upgrade\r\n"+
		"Upgrade: websocket\r\n"+
		"Sec-Websocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n"+
		"Sec-WebSocket-Version:   13\r\n"+
		"\r\n"+
		"tail")

	req, err := ReadRequest(sock, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/chat", req.URI)
	require.Len(t, req.Headers, 5)
	v, ok := req.Headers.Get("sec-websocket-version")
	assert.True(t, ok)
	assert.Equal(t, "13", v)

	key, err := ValidateUpgradeRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "dGhlIHNhbXBsZSBub25jZQ==", key)

	// The parser must stop right after the blank line.
	rest := make([]byte, 4)
	require.NoError(t, sock.Read(rest))
	assert.Equal(t, "tail", string(rest))
}

func TestReadRequestErrors(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		status int
	}{
		{"lowercase method", "get / HTTP/1.1\r\n\r\n", StatusBadRequest},
		{"method too long", "GETGETGETGET / HTTP/1.1\r\n\r\n", StatusBadRequest},
		{"post", "POST / HTTP/1.1\r\n\r\n", StatusMethodNotAllowed},
		{"http 1.0", "GET / HTTP/1.0\r\n\r\n", StatusHTTPVersionNotSupported},
		{"bad version char", "GET / HTTP/1.x\r\n\r\n", StatusBadRequest},
		{"uri too long", "GET /" + strings.Repeat("a", maxURILength+1) + " HTTP/1.1\r\n\r\n", StatusURITooLong},
		{"missing LF", "GET / HTTP/1.1\rX", StatusBadRequest},
		{"separator in name", "GET / HTTP/1.1\r\nBad(Name): x\r\n\r\n", StatusBadRequest},
		{"control in name", "GET / HTTP/1.1\r\nBad\x01: x\r\n\r\n", StatusBadRequest},
		{"name too long", "GET / HTTP/1.1\r\n" + strings.Repeat("n", maxHeaderNameLength+1) + ": x\r\n\r\n", StatusEntityTooLarge},
		{"value too long", "GET / HTTP/1.1\r\nX: " + strings.Repeat("v", maxHeaderValueLength+1) + "\r\n\r\n", StatusEntityTooLarge},
		{"empty value", "GET / HTTP/1.1\r\nX:\r\n\r\n", StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadRequest(feed(t, tc.text), time.Second)
			var herr *HTTPError
			require.True(t, errors.As(err, &herr), "got %v", err)
			assert.Equal(t, tc.status, herr.Status)
		})
	}
}

func TestReadRequestTimesOut(t *testing.T) {
	start := time.Now()
	_, err := ReadRequest(feed(t, "GET / HTT"), 100*time.Millisecond)
	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, StatusRequestTimeout, herr.Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReadResponse(t *testing.T) {
	resp, err := ReadResponse(feed(t, "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\n\r\n"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 101, resp.Code)
	assert.Equal(t, "Switching Protocols", resp.Reason)
	v, _ := resp.Headers.Get("upgrade")
	assert.Equal(t, "websocket", v)

	resp, err = ReadResponse(feed(t, "HTTP/1.1 204 \r\n\r\n"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.Code)
}

func TestReadResponseErrors(t *testing.T) {
	for text, status := range map[string]int{
		"HTTP/1.1 700 Nope\r\n\r\n":  StatusInternalServerError,
		"HTTP/1.1 1x1 Nope\r\n\r\n":  StatusBadRequest,
		"HTTP/1.1 1011 Nope\r\n\r\n": StatusBadRequest,
		"HTTP/2.0 101 Nope\r\n\r\n":  StatusHTTPVersionNotSupported,
		"HTTP/1.1 101 " + strings.Repeat("r", maxReasonLength+1) + "\r\n\r\n": StatusEntityTooLarge,
	} {
		_, err := ReadResponse(feed(t, text), time.Second)
		var herr *HTTPError
		require.True(t, errors.As(err, &herr), text)
		assert.Equal(t, status, herr.Status, text)
	}
}

func TestValidateUpgradeRequestRejections(t *testing.T) {
	good := Headers{
		{HeaderConnection, "Upgrade"},
		{HeaderUpgrade, "WebSocket"},
		{HeaderSecWebSocketKey, "dGhlIHNhbXBsZSBub25jZQ=="},
		{HeaderSecWebSocketVer, "13"},
	}
	_, err := ValidateUpgradeRequest(&Request{Method: "GET", Headers: good})
	require.NoError(t, err)

	without := func(name string) Headers {
		var out Headers
		for _, h := range good {
			if h.Name != name {
				out = append(out, h)
			}
		}
		return out
	}
	for _, name := range []string{HeaderConnection, HeaderUpgrade, HeaderSecWebSocketKey, HeaderSecWebSocketVer} {
		_, err := ValidateUpgradeRequest(&Request{Method: "GET", Headers: without(name)})
		assert.Error(t, err, name)
	}
	_, err = ValidateUpgradeRequest(&Request{Method: "GET", Headers: append(without(HeaderSecWebSocketVer), Header{HeaderSecWebSocketVer, "8"})})
	assert.Error(t, err)
}

func TestValidateUpgradeResponse(t *testing.T) {
	key := "dGhlIHNhbXBsZSBub25jZQ=="
	resp := &Response{Code: 101, Headers: Headers{
		{HeaderUpgrade, "websocket"},
		{HeaderConnection, "Upgrade"},
		{"Sec-Websocket-Accept", AcceptKey(key)},
	}}
	require.NoError(t, ValidateUpgradeResponse(resp, key))

	resp.Code = 200
	assert.Error(t, ValidateUpgradeResponse(resp, key))
	resp.Code = 101
	assert.Error(t, ValidateUpgradeResponse(resp, "AAAAAAAAAAAAAAAAAAAAAA=="))
}

func TestServerHandshakeAnswersWithHTTPError(t *testing.T) {
	a, b, err := transport.Pair()
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")))

	_, err = Accept(a)
	require.ErrorIs(t, err, api.ErrHandshake)
	assert.False(t, a.IsConnected())
	var herr *api.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, api.ErrCodeProtocol, herr.Code)
	assert.Equal(t, "server", herr.Context["role"])
	assert.Equal(t, 400, herr.Context["status"])

	resp, err := ReadResponse(b, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.Code)
}

func TestClientHandshakeRejectsBadAccept(t *testing.T) {
	a, b, err := transport.Pair()
	require.NoError(t, err)
	defer a.Close()

	go func() {
		if _, err := ReadRequest(a, time.Second); err != nil {
			return
		}
		_ = a.Write(UpgradeResponse("AAAAAAAAAAAAAAAAAAAAAA=="))
	}()
	_, err = Dial(b, "localhost")
	assert.ErrorIs(t, err, api.ErrHandshake)
	assert.False(t, b.IsConnected())
	var herr *api.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, api.ErrCodeProtocol, herr.Code)
	assert.Equal(t, "client", herr.Context["role"])
	assert.Equal(t, "validate response", herr.Context["step"])
}

func TestClientHandshakeTimeoutIsClassified(t *testing.T) {
	a, b, err := transport.Pair()
	require.NoError(t, err)
	defer a.Close()

	_, err = Dial(b, "localhost", WithHandshakeTimeout(50*time.Millisecond))
	require.ErrorIs(t, err, api.ErrHandshake)
	assert.Equal(t, api.ErrCodeTimeout, api.CodeOf(err))
}
