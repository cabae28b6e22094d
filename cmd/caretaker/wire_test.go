package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/caretaker/internal/audit"
	"github.com/fentz26/caretaker/internal/config"
	"github.com/fentz26/caretaker/internal/connectors/bridge"
	"github.com/fentz26/caretaker/internal/logger"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/fentz26/caretaker/internal/registry"
	"github.com/fentz26/caretaker/internal/store"
	"github.com/fentz26/caretaker/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Decision: config.DecisionConfig{
			Order:       []string{"openai", "gemini", "ollama", "anthropic"},
			CallTimeout: time.Second,
		},
		Providers: map[string]config.ProviderConfig{
			"openai":    {Enabled: true, APIKey: "sk"},
			"gemini":    {Enabled: true},
			"ollama":    {Enabled: true},
			"anthropic": {Enabled: false, APIKey: "k"},
		},
		Bridge: config.BridgeConfig{
			URL:                 "http://bridge.local",
			Routines:            []string{"wordle"},
			MaintenanceInterval: time.Minute,
		},
		Telemetry: config.TelemetryConfig{Store: true},
	}
}

func TestBuildProvidersKeepsUsableInOrder(t *testing.T) {
	providers := buildProviders(testConfig(), logger.NewTestLogger())

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"openai", "ollama"}, names)
}

func TestBuildRegistryPrefersURL(t *testing.T) {
	cfg := testConfig()
	cfg.Registry = config.RegistryConfig{URL: "http://registry.local", File: "accounts.toml"}
	assert.IsType(t, &registry.HTTP{}, buildRegistry(cfg))

	cfg.Registry.URL = ""
	assert.IsType(t, &registry.File{}, buildRegistry(cfg))
}

func TestMonitorFactory(t *testing.T) {
	cfg := testConfig()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	client := bridge.NewClient(cfg.Bridge.URL, time.Second, cfg.Bridge.Routines)
	chain := buildChain(cfg, newLimiter(cfg), logger.NewTestLogger())
	factory := monitorFactory(cfg, client, chain, telemetry.Discard{}, audit.NewDecisionWriter(st), logger.NewTestLogger())

	runner, err := factory("1001", "session-token")
	require.NoError(t, err)
	assert.Equal(t, models.MonitorStarting, runner.State())

	_, err = factory("1002", "")
	assert.ErrorIs(t, err, errEmptyCredential)
}

func TestBuildTelemetryWithoutNATS(t *testing.T) {
	cfg := testConfig()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	sink, nc, err := buildTelemetry(cfg, st, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Nil(t, nc)
	require.NoError(t, sink.Close(t.Context()))
}

func TestParseRoom(t *testing.T) {
	room, err := parseRoom("kitchen")
	require.NoError(t, err)
	assert.Equal(t, models.LocationKitchen, *room)

	room, err = parseRoom("")
	require.NoError(t, err)
	assert.Nil(t, room)

	_, err = parseRoom("attic")
	assert.Error(t, err)
}
