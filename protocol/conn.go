// File: protocol/conn.go
// Package protocol implements the WebSocket engine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn is one WebSocket connection over an owned api.Socket. Receiving is
// driven by the caller: Recv polls the socket, handles control frames in
// place and returns once a complete data message has been reassembled.
// A single goroutine may call Recv; Send is safe for concurrent use.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/pool"
	"github.com/momentics/rcom/transport"
)

// readChunk is the largest single read while pulling in a payload.
const readChunk = 64 * 1024

// framePool backs writeFrame. Messages above the largest class fall back
// to a plain allocation.
var framePool = pool.NewBytePool(256, MaxFrameHeaderLen+DefaultShortMessageLength)

// Conn is a WebSocket connection bound to a client or server Role.
type Conn struct {
	sock api.Socket
	role Role
	cfg  config
	log  zerolog.Logger

	writeMu sync.Mutex

	// Reassembly state, owned by the reading goroutine.
	inMessage bool
	isText    bool
	message   []byte
	// desynced is set when a frame was rejected before its payload was consumed.
	desynced bool

	remoteClose CloseCode
}

func newConn(sock api.Socket, role Role, cfg config) *Conn {
	return &Conn{
		sock:        sock,
		role:        role,
		cfg:         cfg,
		log:         cfg.logger.With().Str("role", role.String()).Logger(),
		remoteClose: CloseNormal,
	}
}

// Accept performs the server handshake on sock. On failure the socket is closed.
func Accept(sock api.Socket, opts ...Option) (*Conn, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := serverHandshake(sock, cfg.handshakeTimeout); err != nil {
		cfg.metrics.HandshakeFailed(ServerRole.String())
		_ = sock.Close()
		return nil, err
	}
	return newConn(sock, ServerRole, cfg), nil
}

// Dial performs the client handshake on an already connected sock,
// announcing host in the Host header. On failure the socket is closed.
func Dial(sock api.Socket, host string, opts ...Option) (*Conn, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := clientHandshake(sock, host, cfg.handshakeTimeout); err != nil {
		cfg.metrics.HandshakeFailed(ClientRole.String())
		_ = sock.Close()
		return nil, err
	}
	return newConn(sock, ClientRole, cfg), nil
}

// Connect opens a TCP connection to addr and performs the client handshake.
func Connect(addr api.Address, opts ...Option) (*Conn, error) {
	sock, err := transport.Dial(addr)
	if err != nil {
		return nil, err
	}
	return Dial(sock, addr.String(), opts...)
}

// Role returns the side this connection plays.
func (c *Conn) Role() Role { return c.role }

// IsConnected reports whether the underlying socket is still open.
func (c *Conn) IsConnected() bool { return c.sock.IsConnected() }

// LocalAddress returns the local socket address.
func (c *Conn) LocalAddress() api.Address { return c.sock.LocalAddress() }

// RemoteCloseReason is the close code the peer sent, or CloseNormal if none arrived.
func (c *Conn) RemoteCloseReason() CloseCode { return c.remoteClose }

// Recv waits up to timeout for a complete data message. The remaining time
// is re-evaluated after each frame, so a trickle of control frames cannot
// extend the wait. A protocol violation fails the connection with the
// matching close code and yields RecvError.
func (c *Conn) Recv(timeout time.Duration) ([]byte, api.RecvStatus) {
	if !c.sock.IsConnected() {
		return nil, api.RecvClosed
	}
	start := time.Now()
	for remaining := timeout; remaining >= 0; remaining = timeout - time.Since(start) {
		switch c.sock.Wait(remaining) {
		case api.WaitOK:
		case api.WaitTimeout:
			continue
		default:
			c.fail(fault(CloseInternalError, "socket wait failed"))
			return nil, api.RecvError
		}

		if !c.sock.IsEndpointConnected() {
			c.log.Debug().Msg("peer closed the connection without a close frame")
			_ = c.sock.Close()
			return nil, api.RecvClosed
		}
		msg, complete, f := c.handleFrame()
		if f != nil {
			c.fail(f)
			return nil, api.RecvError
		}
		if complete {
			status := api.RecvBinary
			if c.isText {
				status = api.RecvText
			}
			c.cfg.metrics.MessageReceived(status.MessageType())
			return msg, status
		}
		if !c.sock.IsConnected() {
			return nil, api.RecvClosed
		}
	}
	return nil, api.RecvTimeout
}

// Send writes one data message. Messages shorter than the short-message
// threshold go out in a single write; longer ones stream the payload in
// 1 KiB chunks after the header.
func (c *Conn) Send(data []byte, typ api.MessageType) error {
	if uint64(len(data)) > c.cfg.maxMessageLength {
		return fmt.Errorf("send %d bytes: %w", len(data), api.ErrMessageTooLong)
	}
	op := OpcodeBinary
	if typ == api.Text {
		op = OpcodeText
	}
	var err error
	if len(data) < c.cfg.shortMessageLength {
		err = c.writeFrame(op, data)
	} else {
		err = c.writeStreamed(op, data)
	}
	if err != nil {
		return err
	}
	c.cfg.metrics.MessageSent(typ)
	return nil
}

// Close runs the closing handshake with code and releases the socket.
// It never panics and is a no-op on a closed connection.
func (c *Conn) Close(code CloseCode) {
	c.closeWithHandshake(code)
}

// handleFrame reads one frame and applies it. complete is true when a
// data message has been fully reassembled into msg.
func (c *Conn) handleFrame() (msg []byte, complete bool, f *Fault) {
	hdr, payload, f := c.readFrame()
	if f != nil {
		return nil, false, f
	}
	if hdr.Opcode.IsControl() {
		return nil, false, c.handleControl(hdr, payload)
	}
	return c.handleData(hdr, payload)
}

func (c *Conn) readFrame() (FrameHeader, []byte, *Fault) {
	hdr, payload, f := c.readFrameRaw()
	if f != nil {
		c.desynced = true
	}
	return hdr, payload, f
}

func (c *Conn) readFrameRaw() (FrameHeader, []byte, *Fault) {
	hdr, err := ReadHeader(c.sock)
	if err != nil {
		return hdr, nil, fault(CloseInternalError, "read failed: "+err.Error())
	}
	if f := c.role.checkMask(hdr.Masked); f != nil {
		return hdr, nil, f
	}
	if !hdr.Opcode.IsControl() && !hdr.Opcode.IsData() {
		return hdr, nil, fault(CloseProtocolError, fmt.Sprintf("invalid opcode 0x%x", byte(hdr.Opcode)))
	}
	if hdr.Opcode.IsControl() && (hdr.Length > 125 || !hdr.Fin) {
		return hdr, nil, fault(CloseProtocolError, "fragmented or oversized control frame")
	}
	if hdr.Length > c.cfg.maxPayloadLength {
		return hdr, nil, fault(CloseTooBig, fmt.Sprintf("frame too large (%d bytes)", hdr.Length))
	}
	payload, err := c.readPayload(hdr)
	if err != nil {
		return hdr, nil, fault(CloseInternalError, "read failed: "+err.Error())
	}
	return hdr, payload, nil
}

// readPayload reads the payload in bounded chunks so the buffer only grows
// as fast as bytes actually arrive.
func (c *Conn) readPayload(hdr FrameHeader) ([]byte, error) {
	payload := make([]byte, 0, min(hdr.Length, readChunk))
	pos := 0
	for uint64(len(payload)) < hdr.Length {
		n := int(min(hdr.Length-uint64(len(payload)), readChunk))
		off := len(payload)
		payload = append(payload, make([]byte, n)...)
		chunk := payload[off:]
		if err := c.sock.Read(chunk); err != nil {
			return nil, err
		}
		if hdr.Masked {
			pos = Mask(chunk, chunk, hdr.MaskKey, pos)
		}
	}
	return payload, nil
}

func (c *Conn) handleData(hdr FrameHeader, payload []byte) ([]byte, bool, *Fault) {
	continuation := hdr.Opcode == OpcodeContinuation
	if continuation && !c.inMessage {
		return nil, false, fault(CloseProtocolError, "unexpected continuation frame")
	}
	if !continuation && c.inMessage {
		return nil, false, fault(CloseProtocolError, "expected a continuation frame")
	}

	length := uint64(len(payload))
	if continuation {
		length += uint64(len(c.message))
	}
	if length > c.cfg.maxMessageLength {
		return nil, false, fault(CloseTooBig, fmt.Sprintf("message too big (%d bytes)", length))
	}

	if !continuation {
		c.isText = hdr.Opcode == OpcodeText
		if hdr.Fin {
			return payload, true, nil
		}
		c.message = payload
		c.inMessage = true
		return nil, false, nil
	}

	c.message = append(c.message, payload...)
	if !hdr.Fin {
		return nil, false, nil
	}
	msg := c.message
	c.message = nil
	c.inMessage = false
	return msg, true, nil
}

func (c *Conn) handleControl(hdr FrameHeader, payload []byte) *Fault {
	switch hdr.Opcode {
	case OpcodeClose:
		c.answerClose(payload)
	case OpcodePing:
		if err := c.writeFrame(OpcodePong, payload); err != nil {
			c.log.Warn().Err(err).Msg("failed to send pong")
		}
	case OpcodePong:
		c.log.Debug().Int("length", len(payload)).Msg("got pong")
	}
	return nil
}

// answerClose echoes the peer's close code and drops the connection.
// A close without a full code is echoed empty since 1005 must not appear
// on the wire.
func (c *Conn) answerClose(payload []byte) {
	var reply []byte
	switch len(payload) {
	case 0, 1:
		c.remoteClose = CloseMissingCode
	default:
		c.remoteClose = CloseCode(binary.BigEndian.Uint16(payload[:2]))
		reply = closePayload(c.remoteClose)
	}
	c.log.Debug().Uint16("code", uint16(c.remoteClose)).Msg("peer closed the connection")
	if err := c.writeFrame(OpcodeClose, reply); err != nil {
		c.log.Debug().Err(err).Msg("failed to answer close")
	}
	c.role.closeSocket(c.sock)
}

func closePayload(code CloseCode) []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(code))
}

func (c *Conn) fail(f *Fault) {
	c.log.Error().Uint16("code", uint16(f.Code)).Str("reason", f.Reason).Msg("websocket failure")
	c.cfg.metrics.ProtocolFault(uint16(f.Code))
	c.closeWithHandshake(f.Code)
}

func (c *Conn) closeWithHandshake(code CloseCode) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("close with handshake failed")
			_ = c.sock.Close()
		}
	}()
	if !c.sock.IsConnected() {
		return
	}
	if err := c.writeFrame(OpcodeClose, closePayload(code)); err != nil {
		c.log.Warn().Err(err).Msg("failed to send close, not waiting for a reply")
		_ = c.sock.Close()
		return
	}
	c.awaitClose()
	c.role.closeSocket(c.sock)
}

// awaitClose reads and discards frames until the peer's Close arrives
// or the peer goes away, bounded by the close timeout. Once the stream
// is out of sync, bytes are discarded without being parsed as frames.
func (c *Conn) awaitClose() {
	deadline := time.Now().Add(c.cfg.closeTimeout)
	var discard [1]byte
	for time.Now().Before(deadline) {
		if c.sock.Wait(closePollStep) != api.WaitOK {
			continue
		}
		if !c.sock.IsEndpointConnected() {
			return
		}
		if c.desynced {
			if c.sock.Read(discard[:]) != nil {
				return
			}
			continue
		}
		hdr, payload, f := c.readFrame()
		if f != nil {
			return
		}
		if hdr.Opcode == OpcodeClose {
			if len(payload) >= 2 {
				c.remoteClose = CloseCode(binary.BigEndian.Uint16(payload[:2]))
			}
			return
		}
	}
}

func (c *Conn) newMask() ([4]byte, error) {
	var key [4]byte
	if !c.role.maskOutput {
		return key, nil
	}
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("mask key: %w", err)
	}
	return key, nil
}

// writeFrame sends a complete single frame in one write.
func (c *Conn) writeFrame(op Opcode, payload []byte) error {
	key, err := c.newMask()
	if err != nil {
		return err
	}
	hdr := FrameHeader{Fin: true, Opcode: op, Masked: c.role.maskOutput, Length: uint64(len(payload)), MaskKey: key}
	bp := framePool.Get(MaxFrameHeaderLen + len(payload))
	defer framePool.Put(bp)
	buf := AppendHeader((*bp)[:0], hdr)
	off := len(buf)
	buf = append(buf, payload...)
	if hdr.Masked {
		Mask(buf[off:], buf[off:], key, 0)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.write(buf)
}

// writeStreamed sends the header, then the payload in 1 KiB chunks.
func (c *Conn) writeStreamed(op Opcode, payload []byte) error {
	key, err := c.newMask()
	if err != nil {
		return err
	}
	hdr := FrameHeader{Fin: true, Opcode: op, Masked: c.role.maskOutput, Length: uint64(len(payload)), MaskKey: key}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.write(AppendHeader(make([]byte, 0, MaxFrameHeaderLen), hdr)); err != nil {
		return err
	}
	var chunk [payloadChunk]byte
	pos := 0
	for sent := 0; sent < len(payload); {
		n := min(payloadChunk, len(payload)-sent)
		out := payload[sent : sent+n]
		if hdr.Masked {
			pos = Mask(chunk[:n], out, key, pos)
			out = chunk[:n]
		}
		if err := c.write(out); err != nil {
			return err
		}
		sent += n
	}
	return nil
}

func (c *Conn) write(p []byte) error {
	if err := c.sock.Write(p); err != nil {
		if errors.Is(err, api.ErrTransportClosed) {
			return err
		}
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}
