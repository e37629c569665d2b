// File: api/address.go
// Author: momentics <momentics@gmail.com>
//
// IPv4 endpoint value type shared by sockets, the registry and hubs.

package api

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Address is an IPv4 address and TCP/UDP port.
// The zero value is "unset".
type Address struct {
	IP   [4]byte
	Port uint16
}

// NewAddress builds an Address from a dotted-quad IP and a port.
func NewAddress(ip string, port uint16) (Address, error) {
	var a Address
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return a, fmt.Errorf("%w: ip %q", ErrInvalidAddress, ip)
	}
	copy(a.IP[:], parsed)
	a.Port = port
	return a, nil
}

// MustAddress is NewAddress for constants known to be valid.
func MustAddress(ip string, port uint16) Address {
	a, err := NewAddress(ip, port)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAddress parses "ip:port". The split happens at the last colon.
func ParseAddress(s string) (Address, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	port, err := strconv.ParseUint(s[i+1:], 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("%w: invalid port in %q", ErrInvalidAddress, s)
	}
	return NewAddress(s[:i], uint16(port))
}

// IsSet reports whether both the IP and the port are non-zero.
func (a Address) IsSet() bool {
	return a.Port != 0 && a.IP != [4]byte{}
}

// IPString returns the dotted-quad form of the IP.
func (a Address) IPString() string {
	return net.IP(a.IP[:]).String()
}

// String returns "ip:port".
func (a Address) String() string {
	return a.IPString() + ":" + strconv.Itoa(int(a.Port))
}

// WithPort returns a copy of the address with another port.
func (a Address) WithPort(port uint16) Address {
	a.Port = port
	return a
}
