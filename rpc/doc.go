// File: rpc/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package rpc runs JSON remote procedure calls over a topic.
//
// A request is a text message {"id":I,"method":M,"params":P}. The answer
// echoes id and method and carries either "result" or
// "error":{"code":C,"message":S}. A request sent as a binary message is
// answered with the handler's raw bytes, or with a JSON error envelope.
package rpc
