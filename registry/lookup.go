// File: registry/lookup.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// UDP discovery of the registry address. The responder runs on its own
// goroutine and shares nothing with the event loops: it only answers
// probes with a fixed "ip:port" string.

package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/internal/logging"
)

// LookupMessage is the probe a client broadcasts to find the registry.
const LookupMessage = "who-has-the-registry-ip"

const (
	// DefaultLookupAttempts is how many probes Lookup sends before giving up.
	DefaultLookupAttempts = 8
	// DefaultLookupWait bounds the wait for an answer to one probe.
	DefaultLookupWait = 2 * time.Second

	lookupBufferSize = 1024
	stopCheck        = 100 * time.Millisecond
)

// LookupServer answers registry probes.
type LookupServer struct {
	conn  net.PacketConn
	reply []byte
	log   zerolog.Logger
	stop  atomic.Bool
	done  chan struct{}
}

// StartLookupServer binds a UDP socket on all interfaces at port and answers
// every probe with registry. It runs until Stop is called or ctx ends.
func StartLookupServer(ctx context.Context, port uint16, registry api.Address) (*LookupServer, error) {
	conn, err := net.ListenPacket("udp4", ":"+strconv.Itoa(int(port)))
	if err != nil {
		return nil, fmt.Errorf("lookup listen on port %d: %w", port, err)
	}
	s := &LookupServer{
		conn:  conn,
		reply: []byte(registry.String()),
		log:   logging.Component("registry-lookup"),
		done:  make(chan struct{}),
	}
	go s.serve(ctx)
	s.log.Info().Str("addr", conn.LocalAddr().String()).Str("registry", registry.String()).Msg("lookup responder started")
	return s, nil
}

// Port returns the bound UDP port.
func (s *LookupServer) Port() uint16 {
	if ua, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		return uint16(ua.Port)
	}
	return 0
}

func (s *LookupServer) serve(ctx context.Context) {
	defer close(s.done)
	buf := make([]byte, lookupBufferSize)
	for !s.stop.Load() && ctx.Err() == nil {
		_ = s.conn.SetReadDeadline(time.Now().Add(stopCheck))
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if s.stop.Load() {
				return
			}
			s.log.Debug().Err(err).Msg("read failed")
			continue
		}
		if string(buf[:n]) != LookupMessage {
			s.log.Debug().Str("from", from.String()).Msg("ignoring unknown probe")
			continue
		}
		if _, err := s.conn.WriteTo(s.reply, from); err != nil {
			s.log.Warn().Err(err).Str("to", from.String()).Msg("reply failed")
			continue
		}
		s.log.Debug().Str("to", from.String()).Msg("answered probe")
	}
}

// Stop ends the responder and waits for its goroutine.
func (s *LookupServer) Stop() {
	if s.stop.Swap(true) {
		<-s.done
		return
	}
	_ = s.conn.Close()
	<-s.done
	s.log.Info().Msg("lookup responder stopped")
}

// LookupResult is the outcome of Lookup.
type LookupResult struct {
	Address api.Address
	Err     error
}

type lookupConfig struct {
	target   net.IP
	attempts int
	wait     time.Duration
}

// LookupOption customizes Lookup.
type LookupOption func(*lookupConfig)

// WithLookupTarget sends probes to ip instead of the broadcast address.
func WithLookupTarget(ip net.IP) LookupOption {
	return func(c *lookupConfig) { c.target = ip }
}

// WithLookupAttempts sets the number of probes.
func WithLookupAttempts(n int) LookupOption {
	return func(c *lookupConfig) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithLookupWait bounds the wait for each answer.
func WithLookupWait(d time.Duration) LookupOption {
	return func(c *lookupConfig) {
		if d > 0 {
			c.wait = d
		}
	}
}

// Lookup broadcasts probes on port until a responder answers. The single
// result is delivered on the returned channel.
func Lookup(ctx context.Context, port uint16, opts ...LookupOption) <-chan LookupResult {
	cfg := lookupConfig{
		target:   net.IPv4bcast,
		attempts: DefaultLookupAttempts,
		wait:     DefaultLookupWait,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	out := make(chan LookupResult, 1)
	go func() {
		addr, err := lookup(ctx, port, cfg)
		out <- LookupResult{Address: addr, Err: err}
	}()
	return out
}

func lookup(ctx context.Context, port uint16, cfg lookupConfig) (api.Address, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return api.Address{}, fmt.Errorf("lookup socket: %w", err)
	}
	defer conn.Close()

	log := logging.Component("registry-lookup")
	dst := &net.UDPAddr{IP: cfg.target, Port: int(port)}
	buf := make([]byte, lookupBufferSize)
	for i := 0; i < cfg.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return api.Address{}, err
		}
		if _, err := conn.WriteTo([]byte(LookupMessage), dst); err != nil {
			return api.Address{}, fmt.Errorf("send probe: %w", err)
		}
		deadline := time.Now().Add(cfg.wait)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = conn.SetReadDeadline(deadline)
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			log.Debug().Int("attempt", i+1).Err(err).Msg("no answer")
			continue
		}
		addr, err := api.ParseAddress(string(buf[:n]))
		if err != nil {
			log.Warn().Err(err).Msg("bad answer")
			continue
		}
		return addr, nil
	}
	return api.Address{}, fmt.Errorf("%w after %d probes", api.ErrRegistryNotFound, cfg.attempts)
}
