// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"time"
)

// Run drives HandleEvents at the configured poll interval until ctx is
// cancelled, then closes the server. It returns ctx.Err().
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	defer s.Close()

	for {
		s.HandleEvents()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
