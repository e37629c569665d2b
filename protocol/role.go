// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Client and server roles of the WebSocket engine.

package protocol

import (
	"time"

	"github.com/momentics/rcom/api"
)

// Role captures what differs between the two ends of a connection:
// which direction is masked and who drops the TCP connection first.
type Role struct {
	name string
	// maskInput is true when frames from the peer must be masked.
	maskInput bool
	// maskOutput is true when our frames must be masked.
	maskOutput bool
	// linger makes the local side wait for the peer to close TCP first.
	linger bool
}

var (
	// ServerRole expects masked input, sends unmasked frames and closes first.
	ServerRole = Role{name: "server", maskInput: true}
	// ClientRole sends masked frames, rejects masked input and lets the server close first.
	ClientRole = Role{name: "client", maskOutput: true, linger: true}
)

func (r Role) String() string { return r.name }

// checkMask enforces the masking direction of RFC 6455 section 5.1.
func (r Role) checkMask(masked bool) *Fault {
	if masked == r.maskInput {
		return nil
	}
	if r.maskInput {
		return fault(CloseProtocolError, "client sent an unmasked frame")
	}
	return fault(CloseProtocolError, "server sent a masked frame")
}

// closeSocket releases the socket. A client waits briefly for the server
// to close first so the TIME_WAIT state stays on the server.
func (r Role) closeSocket(sock api.Socket) {
	if r.linger {
		deadline := time.Now().Add(clientLinger)
		for sock.IsEndpointConnected() {
			left := time.Until(deadline)
			if left <= 0 {
				break
			}
			time.Sleep(min(clientLingerStep, left))
		}
	}
	_ = sock.Close()
}
