package ratelimit

import "time"

// Rule caps a provider at MaxRequests per Window for each account.
type Rule struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// DefaultRules returns the per-provider limits of the default deployment.
// Providers without a rule are not limited.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"openai":      {MaxRequests: 5, Window: time.Minute},
		"gemini":      {MaxRequests: 10, Window: time.Minute},
		"mistral":     {MaxRequests: 15, Window: time.Minute},
		"huggingface": {MaxRequests: 5, Window: time.Minute},
		"ollama":      {MaxRequests: 30, Window: time.Minute},
	}
}

func (r Rule) enabled() bool {
	return r.MaxRequests > 0 && r.Window > 0
}
