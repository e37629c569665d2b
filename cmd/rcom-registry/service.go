// File: cmd/rcom-registry/service.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/control"
	"github.com/momentics/rcom/internal/logging"
	"github.com/momentics/rcom/protocol"
	"github.com/momentics/rcom/registry"
	"github.com/momentics/rcom/server"
	"github.com/momentics/rcom/transport"
)

type options struct {
	cfg        control.Config
	configPath string
	listenIP   string
}

func loadOptions(path string) (options, error) {
	opts := options{cfg: control.DefaultConfig(), configPath: path}
	if path == "" {
		return opts, nil
	}
	cfg, err := control.LoadConfig(path)
	if err != nil {
		return opts, err
	}
	opts.cfg = cfg
	return opts, nil
}

type service struct {
	opts     options
	log      zerolog.Logger
	reg      *registry.Registry
	srv      *server.Server
	lookup   *registry.LookupServer
	metrics  *control.Metrics
	promReg  *prometheus.Registry
	probes   *control.DebugProbes
	reloader *control.Reloader
}

func newService(opts options) (*service, error) {
	log := logging.Component("rcom-registry")
	if !logging.SetLevel(opts.cfg.LogLevel) {
		log.Warn().Str("level", opts.cfg.LogLevel).Msg("unknown log level, keeping default")
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := control.NewMetrics(promReg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	bind, err := api.NewAddress(opts.listenIP, opts.cfg.Registry.Address.Port)
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	h := registry.NewHandler(reg, registry.WithMetrics(metrics))
	srv, err := h.Listen(bind,
		server.WithPollInterval(opts.cfg.PollInterval),
		server.WithConnOptions(protocol.WithConfig(opts.cfg.WebSocket)))
	if err != nil {
		return nil, err
	}

	s := &service{
		opts:    opts,
		log:     log,
		reg:     reg,
		srv:     srv,
		metrics: metrics,
		promReg: promReg,
		probes:  control.NewDebugProbes(),
	}
	control.RegisterRuntimeProbes(s.probes)
	s.probes.RegisterProbe("registry.topics", func() any { return reg.Topics() })
	s.probes.RegisterProbe("registry.links", func() any { return srv.CountLinks() })
	s.probes.RegisterProbe("registry.address", func() any { return srv.Address().String() })
	if opts.configPath != "" {
		s.reloader = control.NewReloader(opts.configPath)
		s.reloader.OnReload(s.applyReload)
	}
	return s, nil
}

// advertised is the address handed out to lookup probes.
func (s *service) advertised() api.Address {
	addr := s.srv.Address()
	if addr.IP == [4]byte{} {
		return transport.LocalIPv4().WithPort(addr.Port)
	}
	return addr
}

func (s *service) Run(ctx context.Context) error {
	if s.opts.cfg.Registry.LookupEnabled {
		lk, err := registry.StartLookupServer(ctx, s.opts.cfg.Registry.LookupPort, s.advertised())
		if err != nil {
			_ = s.srv.Close()
			return err
		}
		s.lookup = lk
		defer lk.Stop()
	}

	if s.opts.cfg.MetricsAddr != "" {
		httpSrv := s.httpServer()
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	if s.reloader != nil {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go s.watchReload(ctx, hup)
	}

	s.log.Info().Str("addr", s.srv.Address().String()).Msg("registry server running")
	err := s.srv.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.log.Info().Msg("registry server stopped")
	return err
}

func (s *service) httpServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metricsHandler())
	mux.Handle("/debug/probes", s.probes)
	s.log.Info().Str("addr", s.opts.cfg.MetricsAddr).Msg("metrics endpoint enabled")
	return &http.Server{
		Addr:              s.opts.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *service) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})
}

func (s *service) watchReload(ctx context.Context, hup <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := s.reloader.Reload(); err != nil {
				s.log.Error().Err(err).Msg("reload failed")
			}
		}
	}
}

// applyReload takes over the settings that can change at runtime. The
// listening ports and connection limits need a restart.
func (s *service) applyReload(cfg control.Config) {
	if logging.SetLevel(cfg.LogLevel) {
		s.log.Info().Str("level", cfg.LogLevel).Msg("log level reloaded")
	}
	if cfg.Registry.Address.Port != s.opts.cfg.Registry.Address.Port ||
		cfg.Registry.LookupEnabled != s.opts.cfg.Registry.LookupEnabled ||
		cfg.MetricsAddr != s.opts.cfg.MetricsAddr {
		s.log.Warn().Msg("listener settings changed, restart to apply")
	}
}
