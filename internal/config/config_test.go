package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps a developer's ~/.caretaker/caretaker.toml out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("CARETAKER_REGISTRY_URL", "http://registry.local/accounts")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://registry.local/accounts", cfg.Registry.URL)
	assert.Equal(t, 10, cfg.Fleet.MaxMonitors)
	assert.Equal(t, 5*time.Minute, cfg.Fleet.ReconcileInterval)
	assert.Equal(t, 3*time.Hour, cfg.Monitor.MaxSession)
	assert.Equal(t, 20*time.Second, cfg.Monitor.UrgentInterval)
	assert.Equal(t, []string{"wordle", "doors"}, cfg.Bridge.Routines)
	assert.Equal(t, ProviderNames, cfg.Decision.Order)
	assert.Equal(t, 5, cfg.RateLimits["openai"].MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimits["openai"].Window)
	assert.NotContains(t, cfg.RateLimits, "anthropic")
	assert.True(t, cfg.Telemetry.Store)
	assert.Equal(t, "caretaker", cfg.Telemetry.SubjectPrefix)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CARETAKER_REGISTRY_URL", "http://registry.local/accounts")
	t.Setenv("CARETAKER_FLEET_MAX_MONITORS", "3")
	t.Setenv("CARETAKER_MONITOR_IDLE_INTERVAL", "45s")
	t.Setenv("CARETAKER_PROVIDERS_GEMINI_API_KEY", "g-key")
	t.Setenv("CARETAKER_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Fleet.MaxMonitors)
	assert.Equal(t, 45*time.Second, cfg.Monitor.IdleInterval)
	assert.Equal(t, "g-key", cfg.Providers["gemini"].APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "caretaker.toml")
	content := `
listen_addr = "0.0.0.0:9000"

[registry]
file = "accounts.toml"

[fleet]
max_monitors = 4
reconcile_interval = "1m"

[decision]
order = ["ollama", "openai"]

[providers.openai]
api_key = "sk-test"
model = "gpt-4o-mini"

[rate_limits.openai]
max_requests = 2
window = "30s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "accounts.toml", cfg.Registry.File)
	assert.Equal(t, 4, cfg.Fleet.MaxMonitors)
	assert.Equal(t, time.Minute, cfg.Fleet.ReconcileInterval)
	assert.Equal(t, []string{"ollama", "openai"}, cfg.Decision.Order)
	assert.Equal(t, "gpt-4o-mini", cfg.Providers["openai"].Model)
	assert.Equal(t, 2, cfg.RateLimits["openai"].MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.RateLimits["openai"].Window)
	assert.Equal(t, []string{"ollama", "openai"}, cfg.UsableProviders())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidateRequiresRegistry(t *testing.T) {
	isolate(t)
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry")
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	isolate(t)
	t.Setenv("CARETAKER_REGISTRY_FILE", "accounts.toml")
	t.Setenv("CARETAKER_DECISION_ORDER", "openai,bard")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bard")
}

func TestValidateRejectsZeroCap(t *testing.T) {
	isolate(t)
	t.Setenv("CARETAKER_REGISTRY_FILE", "accounts.toml")
	t.Setenv("CARETAKER_FLEET_MAX_MONITORS", "0")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_monitors")
}

func TestProviderUsable(t *testing.T) {
	t.Parallel()

	assert.False(t, ProviderConfig{Enabled: true}.Usable("openai"))
	assert.True(t, ProviderConfig{Enabled: true}.Usable("ollama"))
	assert.False(t, ProviderConfig{Enabled: false, APIKey: "k"}.Usable("openai"))
	assert.True(t, ProviderConfig{Enabled: true, APIKey: "k"}.Usable("openai"))
}
