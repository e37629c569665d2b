// File: registry/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package registry maps topics to the addresses of the hubs that serve them.
//
// Registry is the in-memory table. Handler exposes it over WebSocket with a
// small JSON request/response protocol, and Proxy is the client side of that
// protocol. LookupServer and Lookup let peers find the registry on the local
// network with a UDP broadcast.
package registry
