// File: protocol/http.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Byte-at-a-time HTTP/1.1 parser for the WebSocket opening handshake.
// It reads exactly up to the blank line that ends the headers, so the
// bytes that follow stay in the socket for the frame reader.

package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/momentics/rcom/api"
)

const (
	maxMethodLength      = 8
	maxURILength         = 2048
	maxVersionLength     = 8
	maxStatusCodeLength  = 3
	maxReasonLength      = 128
	maxHeaderNameLength  = 128
	maxHeaderValueLength = 1024

	httpVersion = "HTTP/1.1"
)

// HTTP status codes reported by parse failures.
const (
	StatusBadRequest              = 400
	StatusMethodNotAllowed        = 405
	StatusRequestTimeout          = 408
	StatusEntityTooLarge          = 413
	StatusURITooLong              = 414
	StatusInternalServerError     = 500
	StatusHTTPVersionNotSupported = 505
)

// Header is one HTTP header line in arrival order.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header list. Lookups ignore case.
type Headers []Header

// Get returns the value of the first header matching name.
func (h Headers) Get(name string) (string, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value, true
		}
	}
	return "", false
}

// Request is a parsed request line plus headers.
type Request struct {
	Method  string
	URI     string
	Headers Headers
}

// Response is a parsed status line plus headers.
type Response struct {
	Code    int
	Reason  string
	Headers Headers
}

// HTTPError describes a rejected request or response. Status is the
// HTTP status a server answers with.
type HTTPError struct {
	Status int
	Reason string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Reason)
}

type parseState int

const (
	stateRequestMethod parseState = iota
	stateRequestMethodSpaces
	stateRequestURI
	stateRequestURISpaces
	stateRequestVersion
	stateRequestLineLF
	stateResponseVersion
	stateResponseVersionSpaces
	stateResponseCode
	stateResponseCodeSpaces
	stateResponseReason
	stateResponseReasonLF
	stateHeaderStart
	stateHeaderName
	stateHeaderSpaces
	stateHeaderValue
	stateHeaderLF
	stateHeadersEndLF
	stateBody
	stateError
)

type httpParser struct {
	state   parseState
	buf     []byte
	name    string
	err     *HTTPError
	request *Request
	resp    *Response
}

// ReadRequest parses an HTTP request head off sock, waiting at most
// timeout for each byte.
func ReadRequest(sock api.Socket, timeout time.Duration) (*Request, error) {
	p := &httpParser{state: stateRequestMethod, request: &Request{}}
	if err := p.run(sock, timeout); err != nil {
		return nil, err
	}
	return p.request, nil
}

// ReadResponse parses an HTTP response head off sock, waiting at most
// timeout for each byte.
func ReadResponse(sock api.Socket, timeout time.Duration) (*Response, error) {
	p := &httpParser{state: stateResponseVersion, resp: &Response{}}
	if err := p.run(sock, timeout); err != nil {
		return nil, err
	}
	return p.resp, nil
}

func (p *httpParser) run(sock api.Socket, timeout time.Duration) error {
	var c [1]byte
	for p.state != stateBody {
		switch sock.Wait(timeout) {
		case api.WaitOK:
		case api.WaitTimeout:
			return &HTTPError{Status: StatusRequestTimeout, Reason: "timed out reading the HTTP head"}
		default:
			return &HTTPError{Status: StatusBadRequest, Reason: "socket wait failed"}
		}
		if err := sock.Read(c[:]); err != nil {
			return &HTTPError{Status: StatusBadRequest, Reason: "connection closed while reading the HTTP head"}
		}
		if !p.feed(c[0]) {
			return p.err
		}
	}
	return nil
}

// feed advances the state machine by one byte. It returns false once the
// parser has entered the error state.
func (p *httpParser) feed(c byte) bool {
	switch p.state {
	case stateRequestMethod:
		switch {
		case c == ' ':
			p.setMethod()
		case len(p.buf) >= maxMethodLength:
			p.fail(StatusBadRequest, "method string too long")
		case c >= 'A' && c <= 'Z':
			p.buf = append(p.buf, c)
		default:
			p.fail(StatusBadRequest, "unexpected char in method")
		}

	case stateRequestMethodSpaces:
		p.skipSpaces(c, stateRequestURI)

	case stateRequestURI:
		switch {
		case c == ' ':
			p.request.URI = string(p.buf)
			p.state = stateRequestURISpaces
		case len(p.buf) >= maxURILength:
			p.fail(StatusURITooLong, "URI too long")
		default:
			p.buf = append(p.buf, c)
		}

	case stateRequestURISpaces:
		p.skipSpaces(c, stateRequestVersion)

	case stateRequestVersion:
		switch {
		case c == '\r':
			if p.checkVersion() {
				p.state = stateRequestLineLF
			}
		case len(p.buf) >= maxVersionLength:
			p.fail(StatusBadRequest, "HTTP version too long")
		case !isVersionChar(c):
			p.fail(StatusBadRequest, "invalid character in HTTP version")
		default:
			p.buf = append(p.buf, c)
		}

	case stateRequestLineLF:
		p.expectLF(c, stateHeaderStart, "expected CRLF while reading request")

	case stateResponseVersion:
		switch {
		case c == ' ':
			if p.checkVersion() {
				p.state = stateResponseVersionSpaces
			}
		case len(p.buf) >= maxVersionLength:
			p.fail(StatusBadRequest, "HTTP version too long")
		case !isVersionChar(c):
			p.fail(StatusBadRequest, "invalid character in HTTP version")
		default:
			p.buf = append(p.buf, c)
		}

	case stateResponseVersionSpaces:
		p.skipSpaces(c, stateResponseCode)

	case stateResponseCode:
		switch {
		case c == ' ':
			p.setCode()
		case len(p.buf) >= maxStatusCodeLength:
			p.fail(StatusBadRequest, "HTTP code too long")
		case c >= '0' && c <= '9':
			p.buf = append(p.buf, c)
		default:
			p.fail(StatusBadRequest, "unexpected char in status code")
		}

	case stateResponseCodeSpaces:
		if c == '\r' {
			// Empty reason phrase.
			p.buf = p.buf[:0]
			p.resp.Reason = ""
			p.state = stateResponseReasonLF
			break
		}
		p.skipSpaces(c, stateResponseReason)

	case stateResponseReason:
		switch {
		case c == '\r':
			p.resp.Reason = string(p.buf)
			p.state = stateResponseReasonLF
		case len(p.buf) >= maxReasonLength:
			p.fail(StatusEntityTooLarge, "HTTP status reason too long")
		default:
			p.buf = append(p.buf, c)
		}

	case stateResponseReasonLF:
		p.expectLF(c, stateHeaderStart, "expected CRLF while reading status")

	case stateHeaderStart:
		switch {
		case c == '\r':
			p.state = stateHeadersEndLF
		case isTokenChar(c):
			p.buf = append(p.buf[:0], c)
			p.state = stateHeaderName
		default:
			p.fail(StatusBadRequest, "unexpected char in header name")
		}

	case stateHeaderName:
		switch {
		case c == ':':
			p.name = string(p.buf)
			p.state = stateHeaderSpaces
		case !isTokenChar(c):
			p.fail(StatusBadRequest, "unexpected char in header name")
		case len(p.buf) >= maxHeaderNameLength:
			p.fail(StatusEntityTooLarge, "header name too long")
		default:
			p.buf = append(p.buf, c)
		}

	case stateHeaderSpaces:
		switch c {
		case ' ', '\t':
		case '\r':
			p.fail(StatusBadRequest, "unexpected CR in header value")
		default:
			p.buf = append(p.buf[:0], c)
			p.state = stateHeaderValue
		}

	case stateHeaderValue:
		switch {
		case c == '\r':
			p.addHeader(Header{Name: p.name, Value: strings.TrimRight(string(p.buf), " \t")})
			p.state = stateHeaderLF
		case len(p.buf) >= maxHeaderValueLength:
			p.fail(StatusEntityTooLarge, "header value too long")
		default:
			p.buf = append(p.buf, c)
		}

	case stateHeaderLF:
		p.expectLF(c, stateHeaderStart, "expected CRLF at end of header")

	case stateHeadersEndLF:
		p.expectLF(c, stateBody, "expected CRLF at end of headers")

	default:
		p.fail(StatusInternalServerError, "parser reached an invalid state")
	}
	return p.state != stateError
}

func (p *httpParser) fail(status int, reason string) {
	p.err = &HTTPError{Status: status, Reason: reason}
	p.state = stateError
}

func (p *httpParser) skipSpaces(c byte, next parseState) {
	if c == ' ' {
		return
	}
	p.buf = append(p.buf[:0], c)
	p.state = next
}

func (p *httpParser) expectLF(c byte, next parseState, reason string) {
	if c == '\n' {
		p.state = next
		return
	}
	p.fail(StatusBadRequest, reason)
}

func (p *httpParser) setMethod() {
	method := string(p.buf)
	if method != "GET" {
		p.fail(StatusMethodNotAllowed, "method not allowed")
		return
	}
	p.request.Method = method
	p.state = stateRequestMethodSpaces
}

func (p *httpParser) checkVersion() bool {
	if string(p.buf) != httpVersion {
		p.fail(StatusHTTPVersionNotSupported, "unsupported HTTP version")
		return false
	}
	return true
}

func (p *httpParser) setCode() {
	code, err := strconv.Atoi(string(p.buf))
	if err != nil || code < 100 || code >= 600 {
		p.fail(StatusInternalServerError, "invalid status code")
		return
	}
	p.resp.Code = code
	p.state = stateResponseCodeSpaces
}

func (p *httpParser) addHeader(h Header) {
	if p.request != nil {
		p.request.Headers = append(p.request.Headers, h)
	} else {
		p.resp.Headers = append(p.resp.Headers, h)
	}
}

func isVersionChar(c byte) bool {
	return strings.IndexByte("HTTP/0123456789.", c) >= 0
}

func isSeparator(c byte) bool {
	return strings.IndexByte("()<>@,;:\\'/[]?={} \t\"", c) >= 0
}

// isTokenChar accepts RFC 2616 token characters: no controls, no separators.
func isTokenChar(c byte) bool {
	return c > 31 && c != 127 && !isSeparator(c)
}
