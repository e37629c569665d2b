// File: registry/wire.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// JSON messages exchanged between Proxy and Handler. Every request is one
// text message answered by exactly one text message.

package registry

import "encoding/json"

// Request kinds.
const (
	RequestRegister   = "register"
	RequestUnregister = "unregister"
	RequestGet        = "get"
)

// Request is a registry request.
type Request struct {
	Request string `json:"request"`
	Topic   string `json:"topic,omitempty"`
	Address string `json:"address,omitempty"`
}

// Response answers a Request. Address is only present for a successful get
// that found the topic.
type Response struct {
	Success bool   `json:"success"`
	Address string `json:"address,omitempty"`
	Message string `json:"message,omitempty"`
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Request and Response only hold strings and bools.
		panic(err)
	}
	return data
}

func successResponse() []byte {
	return encode(Response{Success: true})
}

func addressResponse(address string) []byte {
	return encode(Response{Success: true, Address: address})
}

func failResponse(msg string) []byte {
	return encode(Response{Success: false, Message: msg})
}
