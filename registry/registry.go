// File: registry/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry

import (
	"fmt"
	"sync"

	"github.com/momentics/rcom/api"
)

type entry struct {
	topic   string
	address api.Address
}

// Registry is a topic to address table. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries []entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

func (r *Registry) find(topic string) int {
	for i := range r.entries {
		if r.entries[i].topic == topic {
			return i
		}
	}
	return -1
}

// Set publishes address under topic, replacing any previous entry.
// The address must be set.
func (r *Registry) Set(topic string, address api.Address) error {
	if !address.IsSet() {
		return fmt.Errorf("set %q: %w: address not set", topic, api.ErrInvalidAddress)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.find(topic); i >= 0 {
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
	}
	r.entries = append(r.entries, entry{topic: topic, address: address})
	return nil
}

// Get returns the address registered for topic.
func (r *Registry) Get(topic string) (api.Address, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.find(topic); i >= 0 {
		return r.entries[i].address, true
	}
	return api.Address{}, false
}

// Remove drops topic. Removing an unknown topic is a no-op.
func (r *Registry) Remove(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.find(topic); i >= 0 {
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
	}
}

// Len returns the number of registered topics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Topics lists the registered topics in registration order.
func (r *Registry) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.topic
	}
	return out
}
