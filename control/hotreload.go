// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Configuration reload: re-read the file and hand the result to every hook.

package control

import (
	"sync"
)

// Reloader re-reads a configuration file on demand and notifies hooks.
type Reloader struct {
	mu    sync.Mutex
	path  string
	hooks []func(Config)
}

// NewReloader creates a reloader for the file at path.
func NewReloader(path string) *Reloader {
	return &Reloader{path: path}
}

// OnReload adds a hook. Hooks run in registration order.
func (r *Reloader) OnReload(fn func(Config)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Reload loads the file and invokes hooks synchronously.
// On a load error no hook runs and the previous settings stay in effect.
func (r *Reloader) Reload() (Config, error) {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		return Config{}, err
	}
	r.mu.Lock()
	hooks := append([]func(Config){}, r.hooks...)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(cfg)
	}
	return cfg, nil
}
