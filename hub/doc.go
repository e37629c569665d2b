// File: hub/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package hub provides named message channels on top of the registry.
//
// A Hub serves a topic: it listens on an ephemeral port and publishes its
// address in the registry. A Link is a client of one topic: it resolves the
// topic through the registry and connects to the hub behind it.
package hub
