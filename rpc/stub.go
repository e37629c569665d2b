// File: rpc/stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"github.com/rs/zerolog"
)

// Caller is the part of Client a Stub needs.
type Caller interface {
	Execute(method string, params, result any) error
}

// Stub is a base for typed remote proxies. It logs failed calls so that
// generated wrappers only need to check the returned bool.
type Stub struct {
	caller Caller
	log    zerolog.Logger
}

// NewStub builds a stub over caller.
func NewStub(caller Caller, log zerolog.Logger) *Stub {
	return &Stub{caller: caller, log: log}
}

// Execute calls method and reports whether it succeeded.
func (s *Stub) Execute(method string, params, result any) bool {
	if err := s.caller.Execute(method, params, result); err != nil {
		s.log.Error().Err(err).Str("method", method).Msg("remote call failed")
		return false
	}
	return true
}

// ExecuteWithResult calls a method that takes no parameters.
func (s *Stub) ExecuteWithResult(method string, result any) bool {
	return s.Execute(method, nil, result)
}

// ExecuteWithParams calls a method whose result is ignored.
func (s *Stub) ExecuteWithParams(method string, params any) bool {
	return s.Execute(method, params, nil)
}

// ExecuteSimple calls a method with neither parameters nor result.
func (s *Stub) ExecuteSimple(method string) bool {
	return s.Execute(method, nil, nil)
}
