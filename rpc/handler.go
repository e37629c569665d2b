// File: rpc/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Handler executes calls. The result is marshalled into the "result"
// member; returning an *Error selects the error code, any other error is
// reported as an internal error.
type Handler interface {
	Execute(id, method string, params json.RawMessage) (any, error)
}

// BinaryHandler executes calls sent as binary messages. Its result is
// returned to the caller as raw bytes.
type BinaryHandler interface {
	ExecuteBinary(id, method string, params json.RawMessage) ([]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(id, method string, params json.RawMessage) (any, error)

// Execute calls f.
func (f HandlerFunc) Execute(id, method string, params json.RawMessage) (any, error) {
	return f(id, method, params)
}

// MethodFunc implements one method of a Methods table.
type MethodFunc func(params json.RawMessage) (any, error)

// Methods dispatches calls by method name.
type Methods struct {
	mu      sync.RWMutex
	methods map[string]MethodFunc
	binary  map[string]func(params json.RawMessage) ([]byte, error)
}

// NewMethods returns an empty method table.
func NewMethods() *Methods {
	return &Methods{
		methods: make(map[string]MethodFunc),
		binary:  make(map[string]func(json.RawMessage) ([]byte, error)),
	}
}

// Register binds fn to method, replacing any previous binding.
func (m *Methods) Register(method string, fn MethodFunc) *Methods {
	m.mu.Lock()
	m.methods[method] = fn
	m.mu.Unlock()
	return m
}

// RegisterBinary binds fn to method for binary requests.
func (m *Methods) RegisterBinary(method string, fn func(params json.RawMessage) ([]byte, error)) *Methods {
	m.mu.Lock()
	m.binary[method] = fn
	m.mu.Unlock()
	return m
}

// Execute implements Handler.
func (m *Methods) Execute(_ string, method string, params json.RawMessage) (any, error) {
	m.mu.RLock()
	fn, ok := m.methods[method]
	m.mu.RUnlock()
	if !ok {
		return nil, NewError(CodeMethodNotFound, "Unknown method: %s", method)
	}
	return fn(params)
}

// ExecuteBinary implements BinaryHandler.
func (m *Methods) ExecuteBinary(_ string, method string, params json.RawMessage) ([]byte, error) {
	m.mu.RLock()
	fn, ok := m.binary[method]
	m.mu.RUnlock()
	if !ok {
		return nil, NewError(CodeMethodNotFound, "Unknown method: %s", method)
	}
	return fn(params)
}

// Objects routes calls to per-object handlers keyed by the request id.
type Objects struct {
	mu      sync.RWMutex
	objects map[string]Handler
}

// NewObjects returns an empty adaptor.
func NewObjects() *Objects {
	return &Objects{objects: make(map[string]Handler)}
}

// Add exposes h under id.
func (o *Objects) Add(id string, h Handler) {
	o.mu.Lock()
	o.objects[id] = h
	o.mu.Unlock()
}

func (o *Objects) lookup(id string) (Handler, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.objects[id]
	return h, ok
}

// Execute implements Handler.
func (o *Objects) Execute(id, method string, params json.RawMessage) (any, error) {
	h, ok := o.lookup(id)
	if !ok {
		return nil, &Error{Code: CodeUnknownObject, Message: "Unknown object id"}
	}
	return h.Execute(id, method, params)
}

// ExecuteBinary implements BinaryHandler for objects that support it.
func (o *Objects) ExecuteBinary(id, method string, params json.RawMessage) ([]byte, error) {
	h, ok := o.lookup(id)
	if !ok {
		return nil, &Error{Code: CodeUnknownObject, Message: "Unknown object id"}
	}
	bh, ok := h.(BinaryHandler)
	if !ok {
		return nil, NewError(CodeMethodNotFound, "object %s has no binary methods", id)
	}
	return bh.ExecuteBinary(id, method, params)
}

// DecodeParams unmarshals params into v, mapping failures to
// CodeInvalidParams.
func DecodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return NewError(CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return InvalidParams(fmt.Errorf("decode params: %w", err))
	}
	return nil
}
