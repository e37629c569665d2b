//go:build linux
// +build linux

package transport_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/transport"
)

var loopback = api.Address{IP: [4]byte{127, 0, 0, 1}}

func TestListenDialRoundTrip(t *testing.T) {
	ln, err := transport.Listen(loopback)
	require.NoError(t, err)
	defer ln.Close()
	require.NotZero(t, ln.Address().Port)
	assert.Equal(t, loopback.IP, ln.Address().IP)

	client, err := transport.Dial(ln.Address())
	require.NoError(t, err)
	defer client.Close()

	server, err := ln.Accept(time.Second)
	require.NoError(t, err)
	require.NotNil(t, server)
	defer server.Close()

	require.NoError(t, client.Write([]byte("hello")))
	assert.Equal(t, api.WaitOK, server.Wait(time.Second))
	buf := make([]byte, 5)
	require.NoError(t, server.Read(buf))
	assert.Equal(t, "hello", string(buf))
	assert.Equal(t, loopback.IP, client.LocalAddress().IP)
}

func TestAcceptTimesOutWithoutPendingConnection(t *testing.T) {
	ln, err := transport.Listen(loopback)
	require.NoError(t, err)
	defer ln.Close()

	sock, err := ln.Accept(0)
	assert.NoError(t, err)
	assert.Nil(t, sock)
}

func TestWaitStatuses(t *testing.T) {
	a, b, err := transport.Pair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	assert.Equal(t, api.WaitTimeout, a.Wait(0))
	assert.Equal(t, api.WaitError, a.Wait(-time.Second))

	start := time.Now()
	assert.Equal(t, api.WaitTimeout, a.Wait(50*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	require.NoError(t, b.Write([]byte{1}))
	assert.Equal(t, api.WaitOK, a.Wait(time.Second))
}

func TestReadReportsPeerClose(t *testing.T) {
	a, b, err := transport.Pair()
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, b.Write([]byte{1, 2}))
	require.NoError(t, b.Close())
	assert.False(t, b.IsConnected())

	buf := make([]byte, 4)
	assert.ErrorIs(t, a.Read(buf), api.ErrTransportClosed)
	assert.False(t, a.IsEndpointConnected())
}

func TestClosedSocketRejectsIO(t *testing.T) {
	a, b, err := transport.Pair()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Write([]byte{1}), api.ErrTransportClosed)
	assert.ErrorIs(t, a.Read(make([]byte, 1)), api.ErrTransportClosed)
	assert.Equal(t, api.WaitError, a.Wait(0))
}

func TestLocalIPv4IsSetIP(t *testing.T) {
	ip := transport.LocalIPv4()
	assert.NotEqual(t, [4]byte{}, ip.IP)
}
