// File: cmd/rcom-registry/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// rcom-registry serves the topic registry, answers UDP lookup probes and
// optionally exports Prometheus metrics.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/momentics/rcom/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	listenIP := flag.String("listen", "0.0.0.0", "IP address to bind the registry to")
	port := flag.Uint("port", 0, "registry port (overrides the configuration)")
	lookup := flag.Bool("lookup", false, "answer UDP registry lookups (overrides the configuration)")
	metricsAddr := flag.String("metrics", "", "address for /metrics and /debug/probes (overrides the configuration)")
	flag.Parse()

	logging.ConfigureRuntime()

	opts, err := loadOptions(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rcom-registry: %v\n", err)
		os.Exit(2)
	}
	opts.listenIP = *listenIP
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			opts.cfg.Registry.Address.Port = uint16(*port)
		case "lookup":
			opts.cfg.Registry.LookupEnabled = *lookup
		case "metrics":
			opts.cfg.MetricsAddr = *metricsAddr
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rcom-registry: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "rcom-registry: %v\n", err)
		os.Exit(1)
	}
}
