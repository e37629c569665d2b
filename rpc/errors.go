// File: rpc/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"errors"
	"fmt"
)

// Error codes. The -327xx/-326xx range follows JSON-RPC; the rest report
// transport failures seen by the client.
const (
	CodeParseError      = -32700 // invalid JSON
	CodeInvalidRequest  = -32600 // JSON is not a valid request
	CodeMethodNotFound  = -32601 // handler does not know the method
	CodeInvalidParams   = -32602 // invalid parameters
	CodeSendError       = -32603 // sending the request failed
	CodeReceiveError    = -32604 // reading the response failed
	CodeReceiveTimeout  = -32605 // no response in time
	CodeLinkClosed      = -32606 // the link was closed
	CodeInternalError   = -32607 // handler failure
	CodeNullMethod      = -32000 // empty method name
	CodeInvalidResponse = -32001 // JSON is not a valid response
	CodeUnknownObject   = 2      // Objects has no handler for the id
)

// Error is an RPC failure as carried in the "error" member of a response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError builds an Error; handlers return it to pick the code.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidParams reports bad parameters for method.
func InvalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: err.Error()}
}

// ErrorCode returns the code carried by err, 0 for nil and
// CodeInternalError for errors that are not an *Error.
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return CodeInternalError
}

// asError converts any handler error into an *Error.
func asError(err error) *Error {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	msg := err.Error()
	if msg == "" {
		msg = "No message was given"
	}
	return &Error{Code: CodeInternalError, Message: msg}
}
