// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, metrics and runtime introspection for rcom processes.
//
// Provides:
//   - TOML-backed configuration with defaults for every field
//   - Prometheus collectors for connections, messages, faults, registry and RPC traffic
//   - Reload hooks driven by a configuration re-read
//   - Named debug probes that export internal state as JSON
package control
