// File: cmd/rcom-registry/service_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rcom/api"
	"github.com/momentics/rcom/internal/testutil/testlog"
	"github.com/momentics/rcom/registry"
)

func TestLoadOptions(t *testing.T) {
	opts, err := loadOptions("")
	require.NoError(t, err)
	assert.Equal(t, uint16(10101), opts.cfg.Registry.Address.Port)

	path := filepath.Join(t.TempDir(), "registry.toml")
	require.NoError(t, os.WriteFile(path, []byte("[registry]\nport = 12000\nlookup_enabled = true\n"), 0o600))
	opts, err = loadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(12000), opts.cfg.Registry.Address.Port)
	assert.True(t, opts.cfg.Registry.LookupEnabled)

	_, err = loadOptions(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestServiceServesRegistry(t *testing.T) {
	testlog.Start(t)
	opts, err := loadOptions("")
	require.NoError(t, err)
	opts.listenIP = "127.0.0.1"
	opts.cfg.Registry.Address.Port = 0
	opts.cfg.PollInterval = 5 * time.Millisecond
	opts.cfg.Registry.LookupEnabled = true
	opts.cfg.Registry.LookupPort = 0

	svc, err := newService(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	proxy, err := registry.Dial(svc.srv.Address())
	require.NoError(t, err)
	hubAddr := api.MustAddress("10.9.8.7", 3000)
	require.NoError(t, proxy.Set("camera", hubAddr))
	proxy.Close()

	rec := httptest.NewRecorder()
	svc.probes.ServeHTTP(rec, httptest.NewRequest("GET", "/debug/probes", nil))
	var state map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, []any{"camera"}, state["registry.topics"])

	rec = httptest.NewRecorder()
	svc.metricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `rcom_registry_requests_total{outcome="ok",request="register"} 1`)
}

func TestAdvertisedReplacesWildcard(t *testing.T) {
	testlog.Start(t)
	opts, err := loadOptions("")
	require.NoError(t, err)
	opts.listenIP = "0.0.0.0"
	opts.cfg.Registry.Address.Port = 0

	svc, err := newService(opts)
	require.NoError(t, err)
	defer svc.srv.Close()

	adv := svc.advertised()
	assert.True(t, adv.IsSet())
	assert.Equal(t, svc.srv.Address().Port, adv.Port)
}
