// Package config loads caretaker settings from the environment and an
// optional TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/caretaker/internal/connectors/bridge"
	"github.com/fentz26/caretaker/internal/fleet"
	"github.com/fentz26/caretaker/internal/llm"
	"github.com/fentz26/caretaker/internal/logger"
	"github.com/fentz26/caretaker/internal/monitor"
	"github.com/fentz26/caretaker/internal/ratelimit"
	"github.com/spf13/viper"
)

const (
	configName = "caretaker"
	configType = "toml"
	envPrefix  = "CARETAKER"
)

// ProviderNames lists the known decision providers in default ranking.
var ProviderNames = []string{"openai", "gemini", "mistral", "huggingface", "ollama", "anthropic"}

// Config is the full daemon configuration.
type Config struct {
	ListenAddr string        `mapstructure:"listen_addr"`
	StorePath  string        `mapstructure:"store_path"`
	Retention  time.Duration `mapstructure:"retention"`

	Log       logger.Config   `mapstructure:"log"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Fleet     fleet.Config    `mapstructure:"fleet"`
	Monitor   monitor.Config  `mapstructure:"monitor"`
	Decision  DecisionConfig  `mapstructure:"decision"`

	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	RateLimits map[string]ratelimit.Rule `mapstructure:"rate_limits"`
}

// RegistryConfig selects the source of desired accounts. URL wins over File.
type RegistryConfig struct {
	URL     string        `mapstructure:"url"`
	File    string        `mapstructure:"file"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig configures the telemetry publishers. Empty URLs disable
// the matching publisher.
type TelemetryConfig struct {
	URL           string        `mapstructure:"url"`
	NATSURL       string        `mapstructure:"nats_url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	Store         bool          `mapstructure:"store"`
	Buffer        int           `mapstructure:"buffer"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// BridgeConfig points at the session bridge.
type BridgeConfig struct {
	URL                 string        `mapstructure:"url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Routines            []string      `mapstructure:"routines"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// DecisionConfig orders the provider chain.
type DecisionConfig struct {
	Order       []string      `mapstructure:"order"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// ProviderConfig is one provider's connection settings.
type ProviderConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LLM converts to the llm client settings.
func (p ProviderConfig) LLM() llm.Config {
	return llm.Config{APIKey: p.APIKey, Endpoint: p.Endpoint, Model: p.Model, Timeout: p.Timeout}
}

// Usable reports whether the provider is enabled and has what it needs to
// authenticate. Ollama runs locally without a key.
func (p ProviderConfig) Usable(name string) bool {
	if !p.Enabled {
		return false
	}
	return p.APIKey != "" || name == "ollama"
}

// SetDefaults registers every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1:7477")
	v.SetDefault("store_path", defaultStorePath())
	v.SetDefault("retention", 7*24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.debug", false)
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.time_format", "")
	v.SetDefault("log.pretty", false)

	v.SetDefault("registry.url", "")
	v.SetDefault("registry.file", "")
	v.SetDefault("registry.timeout", 10*time.Second)

	v.SetDefault("telemetry.url", "")
	v.SetDefault("telemetry.nats_url", "")
	v.SetDefault("telemetry.subject_prefix", "caretaker")
	v.SetDefault("telemetry.store", true)
	v.SetDefault("telemetry.buffer", 256)
	v.SetDefault("telemetry.timeout", 10*time.Second)

	v.SetDefault("bridge.url", "http://127.0.0.1:8081")
	v.SetDefault("bridge.timeout", 2*time.Minute)
	v.SetDefault("bridge.routines", bridge.DefaultRoutines)
	v.SetDefault("bridge.maintenance_interval", monitor.DefaultMaintenanceInterval)

	fc := fleet.DefaultConfig()
	v.SetDefault("fleet.max_monitors", fc.MaxMonitors)
	v.SetDefault("fleet.reconcile_interval", fc.ReconcileInterval)
	v.SetDefault("fleet.registry_timeout", fc.RegistryTimeout)

	mc := monitor.DefaultConfig()
	v.SetDefault("monitor.max_session", mc.MaxSession)
	v.SetDefault("monitor.status_timeout", mc.StatusTimeout)
	v.SetDefault("monitor.decision_timeout", mc.DecisionTimeout)
	v.SetDefault("monitor.action_timeout", mc.ActionTimeout)
	v.SetDefault("monitor.max_consecutive_errors", mc.MaxConsecutiveErrors)
	v.SetDefault("monitor.reconnect_delay", mc.ReconnectDelay)
	v.SetDefault("monitor.error_retry_delay", mc.ErrorRetryDelay)
	v.SetDefault("monitor.urgent_interval", mc.UrgentInterval)
	v.SetDefault("monitor.idle_interval", mc.IdleInterval)

	v.SetDefault("decision.order", ProviderNames)
	v.SetDefault("decision.call_timeout", llm.DefaultTimeout)

	for _, name := range ProviderNames {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"endpoint", "")
		v.SetDefault(prefix+"model", "")
		v.SetDefault(prefix+"timeout", llm.DefaultTimeout)
	}

	for name, rule := range ratelimit.DefaultRules() {
		prefix := "rate_limits." + name + "."
		v.SetDefault(prefix+"max_requests", rule.MaxRequests)
		v.SetDefault(prefix+"window", rule.Window)
	}
}

// Load reads configuration into a Config. path names an explicit config
// file; when empty, caretaker.toml is looked up in the working directory
// and ~/.caretaker and may be absent. Callers that run the fleet must also
// call Validate.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".caretaker"))
		}
		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the daemon cannot start without.
func (c *Config) Validate() error {
	if c.Registry.URL == "" && c.Registry.File == "" {
		return errors.New("config: registry.url or registry.file is required")
	}
	if c.Bridge.URL == "" {
		return errors.New("config: bridge.url is required")
	}
	if c.Fleet.MaxMonitors <= 0 {
		return fmt.Errorf("config: fleet.max_monitors must be positive, got %d", c.Fleet.MaxMonitors)
	}
	if c.Fleet.ReconcileInterval <= 0 {
		return errors.New("config: fleet.reconcile_interval must be positive")
	}
	if c.Monitor.UrgentInterval <= 0 || c.Monitor.IdleInterval <= 0 {
		return errors.New("config: monitor intervals must be positive")
	}
	for _, name := range c.Decision.Order {
		if _, err := llm.New(name, llm.Config{}); err != nil {
			return fmt.Errorf("config: decision.order: %w", err)
		}
	}
	return nil
}

// UsableProviders returns the providers in decision order that are enabled
// and configured.
func (c *Config) UsableProviders() []string {
	var names []string
	for _, name := range c.Decision.Order {
		if p, ok := c.Providers[name]; ok && p.Usable(name) {
			names = append(names, name)
		}
	}
	return names
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "caretaker.db"
	}
	return filepath.Join(home, ".caretaker", "caretaker.db")
}
