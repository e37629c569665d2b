// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket wire protocol constants

package protocol

import "time"

// Opcode is the 4-bit frame type.
type Opcode byte

const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

// IsControl reports whether the opcode is close, ping or pong.
func (op Opcode) IsControl() bool {
	return op == OpcodeClose || op == OpcodePing || op == OpcodePong
}

// IsData reports whether the opcode is text, binary or continuation.
func (op Opcode) IsData() bool {
	return op == OpcodeContinuation || op == OpcodeText || op == OpcodeBinary
}

func (op Opcode) String() string {
	switch op {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return "invalid"
	}
}

// CloseCode is a close status code carried in a Close frame.
type CloseCode uint16

const (
	CloseNormal            CloseCode = 1000
	CloseGoingAway         CloseCode = 1001
	CloseProtocolError     CloseCode = 1002
	CloseUnhandledData     CloseCode = 1003
	CloseMissingCode       CloseCode = 1005
	CloseInvalidData       CloseCode = 1007
	ClosePolicyViolation   CloseCode = 1008
	CloseTooBig            CloseCode = 1009
	CloseMissingExtensions CloseCode = 1010
	CloseInternalError     CloseCode = 1011
)

const (
	// Bit masks
	FinBit  = 0x80
	MaskBit = 0x80

	MaxFrameHeaderLen = 14 // 2 + 8 extended length + 4 mask key

	// Frame and message limits
	DefaultMaxPayloadLength   = 128 * 1024 * 1024
	DefaultMaxMessageLength   = 128 * 1024 * 1024
	DefaultShortMessageLength = 128 * 1024

	// payloadChunk is the block size for streamed reads and writes.
	payloadChunk = 1024

	DefaultHandshakeTimeout = 5 * time.Second
	DefaultCloseTimeout     = 5 * time.Second

	closePollStep = 10 * time.Millisecond

	// A client waits this long for the server to drop the TCP connection first.
	clientLinger     = 500 * time.Millisecond
	clientLingerStep = 100 * time.Millisecond

	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	RequiredWebSocketVersion = "13"
)
