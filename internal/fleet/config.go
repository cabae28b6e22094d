package fleet

import "time"

// Config defines the orchestrator configuration.
type Config struct {
	// MaxMonitors is the maximum number of live monitors, stopping ones included.
	MaxMonitors int `mapstructure:"max_monitors"`
	// ReconcileInterval is the pause between reconciliation passes.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	// RegistryTimeout bounds one fetch of the desired set.
	RegistryTimeout time.Duration `mapstructure:"registry_timeout"`
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		MaxMonitors:       10,
		ReconcileInterval: 5 * time.Minute,
		RegistryTimeout:   10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxMonitors <= 0 {
		c.MaxMonitors = d.MaxMonitors
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = d.ReconcileInterval
	}
	if c.RegistryTimeout <= 0 {
		c.RegistryTimeout = d.RegistryTimeout
	}
	return c
}
