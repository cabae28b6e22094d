package monitor

import "time"

// Config holds the timing of one account monitor.
type Config struct {
	// MaxSession bounds the lifetime of a monitor. The orchestrator starts a
	// fresh one on its next reconcile.
	MaxSession time.Duration `mapstructure:"max_session"`
	// StatusTimeout bounds one status fetch.
	StatusTimeout time.Duration `mapstructure:"status_timeout"`
	// DecisionTimeout bounds the whole provider chain for one cycle.
	DecisionTimeout time.Duration `mapstructure:"decision_timeout"`
	// ActionTimeout bounds one action or maintenance routine.
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	// MaxConsecutiveErrors status failures in a row trigger a reconnect.
	MaxConsecutiveErrors int `mapstructure:"max_consecutive_errors"`
	// ReconnectDelay is the pause between teardown and reconnect.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	// ErrorRetryDelay is the pause after a failed status fetch.
	ErrorRetryDelay time.Duration `mapstructure:"error_retry_delay"`
	// UrgentInterval is the pause after a high urgency decision.
	UrgentInterval time.Duration `mapstructure:"urgent_interval"`
	// IdleInterval is the pause after any other decision.
	IdleInterval time.Duration `mapstructure:"idle_interval"`
}

// DefaultConfig returns the default monitor timing.
func DefaultConfig() Config {
	return Config{
		MaxSession:           3 * time.Hour,
		StatusTimeout:        15 * time.Second,
		DecisionTimeout:      20 * time.Second,
		ActionTimeout:        2 * time.Minute,
		MaxConsecutiveErrors: 3,
		ReconnectDelay:       5 * time.Second,
		ErrorRetryDelay:      30 * time.Second,
		UrgentInterval:       20 * time.Second,
		IdleInterval:         30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSession <= 0 {
		c.MaxSession = d.MaxSession
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = d.StatusTimeout
	}
	if c.DecisionTimeout <= 0 {
		c.DecisionTimeout = d.DecisionTimeout
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = d.ActionTimeout
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = d.MaxConsecutiveErrors
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.ErrorRetryDelay <= 0 {
		c.ErrorRetryDelay = d.ErrorRetryDelay
	}
	if c.UrgentInterval <= 0 {
		c.UrgentInterval = d.UrgentInterval
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = d.IdleInterval
	}
	return c
}
