// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for the rcom library.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrTransportClosed   = fmt.Errorf("transport is closed")
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrInvalidAddress    = fmt.Errorf("invalid address")
	ErrInvalidTopic      = fmt.Errorf("invalid topic")
	ErrOperationTimeout  = fmt.Errorf("operation timeout")
	ErrNotSupported      = fmt.Errorf("operation not supported")
	ErrNotFound          = fmt.Errorf("resource not found")
	ErrMessageTooLong    = fmt.Errorf("message too long")
	ErrHandshake         = fmt.Errorf("websocket handshake failed")
	ErrRegistryFailure   = fmt.Errorf("registry request failed")
	ErrRegistryNotFound  = fmt.Errorf("registry not found")
	ErrUnexpectedMessage = fmt.Errorf("unexpected message")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeTimeout
	ErrCodeNotSupported
	ErrCodeNotFound
	ErrCodeProtocol
	ErrCodeIO
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error // sentinel
	detail  error // underlying failure
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.detail != nil {
		msg += ": " + e.detail.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the sentinel and the underlying failure to errors.Is/As.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	if e.detail != nil {
		errs = append(errs, e.detail)
	}
	return errs
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error that matches cause under errors.Is.
func WrapError(code ErrorCode, cause error, message string) *Error {
	e := NewError(code, message)
	e.cause = cause
	return e
}

// WithDetail attaches the failure that triggered the error.
func (e *Error) WithDetail(err error) *Error {
	e.detail = err
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf classifies err: a structured error keeps its code, timeouts and
// closed transports map to ErrCodeTimeout and ErrCodeIO.
func CodeOf(err error) ErrorCode {
	var se *Error
	switch {
	case err == nil:
		return ErrCodeOK
	case errors.As(err, &se):
		return se.Code
	case errors.Is(err, ErrOperationTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrTransportClosed):
		return ErrCodeIO
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrInvalidTopic):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrNotSupported):
		return ErrCodeNotSupported
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRegistryNotFound):
		return ErrCodeNotFound
	default:
		return ErrCodeInternal
	}
}
