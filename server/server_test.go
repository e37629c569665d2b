// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/internal/testutil/testlog"
	"github.com/momentics/rcom/protocol"
	"github.com/momentics/rcom/server"
	"github.com/momentics/rcom/transport"
)

var loopback = api.MustAddress("127.0.0.1", 0)

// shortClose keeps close handshakes with idle peers from stalling the suite.
var shortClose = protocol.WithCloseTimeout(200 * time.Millisecond)

// relay rebroadcasts every message to all other links.
var relay = server.HandlerFunc(func(srv *server.Server, link *protocol.Conn, msg []byte, typ api.MessageType) {
	srv.Broadcast(msg, typ, link)
})

func startServer(t *testing.T, h server.Handler, opts ...server.ServerOption) *server.Server {
	t.Helper()
	opts = append([]server.ServerOption{
		server.WithPollInterval(5 * time.Millisecond),
		server.WithConnOptions(shortClose),
	}, opts...)
	srv, err := server.Listen(loopback, h, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv
}

func connect(t *testing.T, srv *server.Server) *protocol.Conn {
	t.Helper()
	conn, err := protocol.Connect(srv.Address(), shortClose)
	require.NoError(t, err)
	return conn
}

func waitLinks(t *testing.T, srv *server.Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return srv.CountLinks() == n },
		3*time.Second, 5*time.Millisecond, "want %d links", n)
}

func TestBroadcastSkipsSender(t *testing.T) {
	testlog.Start(t)
	srv := startServer(t, relay)

	a := connect(t, srv)
	b := connect(t, srv)
	c := connect(t, srv)
	waitLinks(t, srv, 3)

	require.NoError(t, a.Send([]byte("hello"), api.Text))

	for _, peer := range []*protocol.Conn{b, c} {
		msg, status := peer.Recv(2 * time.Second)
		require.Equal(t, api.RecvText, status)
		assert.Equal(t, "hello", string(msg))
	}
	_, status := a.Recv(100 * time.Millisecond)
	assert.Equal(t, api.RecvTimeout, status)
}

func TestHandlerSeesMessageType(t *testing.T) {
	testlog.Start(t)
	var mu sync.Mutex
	var got []api.MessageType
	h := server.HandlerFunc(func(_ *server.Server, link *protocol.Conn, msg []byte, typ api.MessageType) {
		mu.Lock()
		got = append(got, typ)
		mu.Unlock()
		_ = link.Send(msg, typ)
	})
	srv := startServer(t, h)
	conn := connect(t, srv)

	require.NoError(t, conn.Send([]byte{0, 1, 2}, api.Binary))
	msg, status := conn.Recv(2 * time.Second)
	require.Equal(t, api.RecvBinary, status)
	assert.Equal(t, []byte{0, 1, 2}, msg)

	require.NoError(t, conn.Send([]byte("text"), api.Text))
	_, status = conn.Recv(2 * time.Second)
	require.Equal(t, api.RecvText, status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []api.MessageType{api.Binary, api.Text}, got)
}

func TestClosedLinksArePruned(t *testing.T) {
	testlog.Start(t)
	srv := startServer(t, relay)

	a := connect(t, srv)
	b := connect(t, srv)
	waitLinks(t, srv, 2)

	a.Close(protocol.CloseNormal)
	assert.False(t, a.IsConnected())
	waitLinks(t, srv, 1)

	assert.Equal(t, 1, srv.Broadcast([]byte("x"), api.Text, nil))
	msg, status := b.Recv(2 * time.Second)
	require.Equal(t, api.RecvText, status)
	assert.Equal(t, "x", string(msg))
}

func TestProtocolErrorClosesOnlyThatLink(t *testing.T) {
	testlog.Start(t)
	srv := startServer(t, relay)

	good := connect(t, srv)
	sock, err := transport.Dial(srv.Address())
	require.NoError(t, err)
	defer sock.Close()
	raw, err := protocol.Dial(sock, srv.Address().String(), shortClose)
	require.NoError(t, err)
	waitLinks(t, srv, 2)

	// An unmasked frame from a client is a protocol error.
	frame := protocol.AppendHeader(nil, protocol.FrameHeader{Fin: true, Opcode: protocol.OpcodeText, Length: 2})
	require.NoError(t, sock.Write(append(frame, 'h', 'i')))

	_, status := raw.Recv(2 * time.Second)
	assert.Equal(t, api.RecvClosed, status)
	assert.Equal(t, protocol.CloseProtocolError, raw.RemoteCloseReason())
	waitLinks(t, srv, 1)

	assert.True(t, good.IsConnected())
	require.NoError(t, good.Send([]byte("still here"), api.Text))
}

func TestCloseSendsGoingAway(t *testing.T) {
	testlog.Start(t)
	srv, err := server.Listen(loopback, relay, server.WithConnOptions(shortClose))
	require.NoError(t, err)

	conns := make(chan *protocol.Conn, 1)
	go func() {
		conn, err := protocol.Connect(srv.Address(), shortClose)
		if err != nil {
			conns <- nil
			return
		}
		conns <- conn
	}()
	var conn *protocol.Conn
	require.Eventually(t, func() bool {
		srv.HandleEvents()
		select {
		case conn = <-conns:
			return true
		default:
			return false
		}
	}, 3*time.Second, 5*time.Millisecond)
	require.NotNil(t, conn)
	srv.HandleEvents()
	require.Equal(t, 1, srv.CountLinks())

	closed := make(chan error, 1)
	go func() { closed <- srv.Close() }()

	_, status := conn.Recv(3 * time.Second)
	assert.Equal(t, api.RecvClosed, status)
	assert.Equal(t, protocol.CloseGoingAway, conn.RemoteCloseReason())
	require.NoError(t, <-closed)
	assert.Equal(t, 0, srv.CountLinks())
	assert.ErrorIs(t, srv.Close(), server.ErrServerClosed)
}

func TestFailedHandshakeIsDropped(t *testing.T) {
	testlog.Start(t)
	srv, err := server.Listen(loopback, relay, server.WithConnOptions(shortClose))
	require.NoError(t, err)
	defer srv.Close()

	sock, err := transport.Dial(srv.Address())
	require.NoError(t, err)
	defer sock.Close()
	require.NoError(t, sock.Write([]byte("POST / HTTP/1.1\r\nHost: x\r\n\r\n")))

	srv.HandleEvents()
	assert.Equal(t, 0, srv.CountLinks())

	require.Equal(t, api.WaitOK, sock.Wait(2*time.Second))
	resp, err := protocol.ReadResponse(sock, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 405, resp.Code)
	assert.True(t, strings.HasPrefix(resp.Reason, "Method"))
}
