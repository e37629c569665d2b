// File: api/address_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rcom/api"
)

func TestParseAddress(t *testing.T) {
	a, err := api.ParseAddress("10.0.1.2:10101")
	require.NoError(t, err)
	assert.Equal(t, [4]byte{10, 0, 1, 2}, a.IP)
	assert.Equal(t, uint16(10101), a.Port)
	assert.Equal(t, "10.0.1.2:10101", a.String())
	assert.True(t, a.IsSet())
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "10.0.0.1", ":80", "10.0.0.1:", "10.0.0.1:http", "10.0.0.1:70000", "host:80", "::1:80"} {
		_, err := api.ParseAddress(s)
		if assert.Error(t, err, s) {
			assert.True(t, errors.Is(err, api.ErrInvalidAddress), s)
		}
	}
}

func TestAddressIsSet(t *testing.T) {
	assert.False(t, api.Address{}.IsSet())
	assert.False(t, api.MustAddress("0.0.0.0", 80).IsSet())
	assert.False(t, api.MustAddress("127.0.0.1", 0).IsSet())
	assert.True(t, api.MustAddress("127.0.0.1", 80).IsSet())
}

func TestRecvStatusMessageType(t *testing.T) {
	assert.Equal(t, api.Text, api.RecvText.MessageType())
	assert.Equal(t, api.Binary, api.RecvBinary.MessageType())
	assert.Equal(t, api.MessageType(0), api.RecvTimeout.MessageType())
	assert.True(t, api.RecvBinary.IsMessage())
	assert.False(t, api.RecvClosed.IsMessage())
}

func TestWrapErrorMatchesSentinel(t *testing.T) {
	err := api.WrapError(api.ErrCodeProtocol, api.ErrHandshake, "bad accept").WithContext("role", "client")
	assert.True(t, errors.Is(err, api.ErrHandshake))
	assert.Contains(t, err.Error(), "bad accept")
}

func TestWrapErrorKeepsDetail(t *testing.T) {
	err := api.WrapError(api.ErrCodeIO, api.ErrHandshake, "handshake").WithDetail(api.ErrTransportClosed)
	assert.True(t, errors.Is(err, api.ErrHandshake))
	assert.True(t, errors.Is(err, api.ErrTransportClosed))
	assert.Equal(t, "handshake: transport is closed", err.Error())
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want api.ErrorCode
	}{
		{nil, api.ErrCodeOK},
		{fmt.Errorf("recv: %w", api.ErrOperationTimeout), api.ErrCodeTimeout},
		{api.ErrTransportClosed, api.ErrCodeIO},
		{api.ErrInvalidTopic, api.ErrCodeInvalidArgument},
		{api.ErrRegistryNotFound, api.ErrCodeNotFound},
		{api.ErrNotSupported, api.ErrCodeNotSupported},
		{fmt.Errorf("wrapped: %w", api.NewError(api.ErrCodeProtocol, "x")), api.ErrCodeProtocol},
		{errors.New("other"), api.ErrCodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, api.CodeOf(tc.err), "%v", tc.err)
	}
}
