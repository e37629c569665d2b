// File: rpc/envelope.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import "encoding/json"

// Placeholders echoed when a request carries no usable id or method.
const (
	NoID          = "unknown"
	UnknownMethod = "unknown"
)

// Request is the wire form of a call.
type Request struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the wire form of an answer.
type Response struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// rawRequest keeps fields undecoded so that type errors can be told apart
// from missing fields.
type rawRequest struct {
	ID     json.RawMessage `json:"id"`
	Method json.RawMessage `json:"method"`
	Params json.RawMessage `json:"params"`
}

// parseRequest decodes msg. On failure it returns the id it managed to
// read, so the error response can still echo it.
func parseRequest(msg []byte) (Request, *Error) {
	var raw rawRequest
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Request{}, &Error{Code: CodeParseError, Message: "Failed to parse the request"}
	}
	var req Request
	if len(raw.ID) > 0 && string(raw.ID) != "null" {
		if err := json.Unmarshal(raw.ID, &req.ID); err != nil {
			return req, &Error{Code: CodeInvalidRequest, Message: "Invalid ID"}
		}
	}
	if len(raw.Method) == 0 {
		return req, &Error{Code: CodeInvalidRequest, Message: "Missing method"}
	}
	if string(raw.Method) == "null" {
		return req, &Error{Code: CodeNullMethod, Message: "Null method"}
	}
	if err := json.Unmarshal(raw.Method, &req.Method); err != nil {
		return req, &Error{Code: CodeInvalidRequest, Message: "Invalid method"}
	}
	if req.Method == "" {
		return req, &Error{Code: CodeNullMethod, Message: "Empty method"}
	}
	if string(raw.Params) != "null" {
		req.Params = raw.Params
	}
	return req, nil
}

// newResponse fills the envelope, substituting placeholders for a missing
// id or method.
func newResponse(id, method string, result json.RawMessage, rerr *Error) Response {
	if id == "" {
		id = NoID
	}
	if method == "" {
		method = UnknownMethod
	}
	if rerr != nil && rerr.Message == "" {
		rerr = &Error{Code: rerr.Code, Message: "No message was given"}
	}
	resp := Response{ID: id, Method: method, Error: rerr}
	if rerr == nil && len(result) > 0 && string(result) != "null" {
		resp.Result = result
	}
	return resp
}

func (r Response) encode() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(newResponse(r.ID, r.Method, nil,
			&Error{Code: CodeInternalError, Message: err.Error()}))
	}
	return data
}
