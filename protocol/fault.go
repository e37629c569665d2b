// Package protocol
// Author: momentics <momentics@gmail.com>

package protocol

import "fmt"

// Fault is a protocol violation detected on an established connection.
// Code is the close code sent to the peer when the connection is failed.
type Fault struct {
	Reason string
	Code   CloseCode
}

func (f *Fault) Error() string {
	return fmt.Sprintf("websocket fault %d: %s", f.Code, f.Reason)
}

func fault(code CloseCode, reason string) *Fault {
	return &Fault{Reason: reason, Code: code}
}
