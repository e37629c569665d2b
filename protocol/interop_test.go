package protocol_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/internal/testutil/testlog"
	"github.com/momentics/rcom/protocol"
	"github.com/momentics/rcom/transport"
)

// TestServerRoleWithGorillaClient checks the server side against an
// independent RFC 6455 client.
func TestServerRoleWithGorillaClient(t *testing.T) {
	testlog.Start(t)
	ln, err := transport.Listen(api.MustAddress("127.0.0.1", 0))
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		sock, err := ln.Accept(5 * time.Second)
		if err != nil || sock == nil {
			done <- err
			return
		}
		conn, err := protocol.Accept(sock)
		if err != nil {
			done <- err
			return
		}
		for i := 0; i < 2; i++ {
			msg, status := conn.Recv(5 * time.Second)
			if !status.IsMessage() {
				break
			}
			if err := conn.Send(msg, status.MessageType()); err != nil {
				done <- err
				return
			}
		}
		conn.Close(protocol.CloseNormal)
		done <- nil
	}()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Address().String()+"/", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	typ, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, "hello", string(msg))

	big := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7}, 40000)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, big))
	typ, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)
	assert.True(t, bytes.Equal(big, msg))

	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.NoError(t, <-done)
}

// TestClientRoleWithGorillaServer checks the client side against an
// independent RFC 6455 server.
func TestClientRoleWithGorillaServer(t *testing.T) {
	testlog.Start(t)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			typ, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(typ, msg); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	addr, err := api.ParseAddress(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	conn, err := protocol.Connect(addr, protocol.WithCloseTimeout(time.Second))
	require.NoError(t, err)

	require.NoError(t, conn.Send([]byte(`{"method":"ping"}`), api.Text))
	msg, status := conn.Recv(5 * time.Second)
	require.Equal(t, api.RecvText, status)
	assert.Equal(t, `{"method":"ping"}`, string(msg))

	big := bytes.Repeat([]byte("0123456789abcdef"), 20000)
	require.NoError(t, conn.Send(big, api.Binary))
	msg, status = conn.Recv(5 * time.Second)
	require.Equal(t, api.RecvBinary, status)
	assert.True(t, bytes.Equal(big, msg))

	conn.Close(protocol.CloseNormal)
	assert.False(t, conn.IsConnected())
	assert.Equal(t, protocol.CloseNormal, conn.RemoteCloseReason())
}
