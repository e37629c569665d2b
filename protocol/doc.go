// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the WebSocket protocol (RFC 6455) on top of a blocking api.Socket.
//
// Includes:
//   - A byte-at-a-time HTTP/1.1 parser for the upgrade request and response
//   - Client and server opening handshakes with Sec-WebSocket-Key/Accept validation
//   - Frame header encoding/decoding, masking and fragmentation reassembly
//   - Ping/Pong/Close control frames and the closing handshake
//   - A single engine (Conn) parameterized by a client or server Role
package protocol
