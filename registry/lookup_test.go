// File: registry/lookup_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/internal/testutil/testlog"
	"github.com/momentics/rcom/registry"
)

func TestLookupFindsResponder(t *testing.T) {
	testlog.Start(t)
	want := api.MustAddress("10.20.30.40", 10101)
	srv, err := registry.StartLookupServer(context.Background(), 0, want)
	require.NoError(t, err)
	defer srv.Stop()

	res := <-registry.Lookup(context.Background(), srv.Port(),
		registry.WithLookupTarget(net.IPv4(127, 0, 0, 1)),
		registry.WithLookupWait(time.Second))
	require.NoError(t, res.Err)
	assert.Equal(t, want, res.Address)
}

func TestLookupGivesUp(t *testing.T) {
	testlog.Start(t)
	// Reserve a port and release it so nobody answers there.
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(pc.LocalAddr().(*net.UDPAddr).Port)
	require.NoError(t, pc.Close())

	res := <-registry.Lookup(context.Background(), port,
		registry.WithLookupTarget(net.IPv4(127, 0, 0, 1)),
		registry.WithLookupAttempts(2),
		registry.WithLookupWait(50*time.Millisecond))
	assert.ErrorIs(t, res.Err, api.ErrRegistryNotFound)
}

func TestLookupServerStopsOnContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := registry.StartLookupServer(ctx, 0, api.MustAddress("127.0.0.1", 10101))
	require.NoError(t, err)
	cancel()

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("responder did not stop")
	}
}
