// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and status enumerations.

package api

// MessageType distinguishes text and binary WebSocket messages.
type MessageType int

const (
	Text MessageType = iota + 1
	Binary
)

func (t MessageType) String() string {
	switch t {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// RecvStatus is the outcome of a receive call on a link.
type RecvStatus int

const (
	RecvText RecvStatus = iota + 1
	RecvBinary
	RecvTimeout
	RecvClosed
	RecvError
)

func (s RecvStatus) String() string {
	switch s {
	case RecvText:
		return "text"
	case RecvBinary:
		return "binary"
	case RecvTimeout:
		return "timeout"
	case RecvClosed:
		return "closed"
	case RecvError:
		return "error"
	default:
		return "unknown"
	}
}

// IsMessage reports whether the status carries a complete message.
func (s RecvStatus) IsMessage() bool {
	return s == RecvText || s == RecvBinary
}

// MessageType maps a message status to its payload type.
// It returns zero for statuses that carry no message.
func (s RecvStatus) MessageType() MessageType {
	switch s {
	case RecvText:
		return Text
	case RecvBinary:
		return Binary
	}
	return 0
}

// WaitStatus is the outcome of waiting for socket readability.
type WaitStatus int

const (
	WaitOK WaitStatus = iota
	WaitTimeout
	WaitError
)

func (s WaitStatus) String() string {
	switch s {
	case WaitOK:
		return "ok"
	case WaitTimeout:
		return "timeout"
	default:
		return "error"
	}
}
