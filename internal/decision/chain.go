// Package decision chooses the next care action for an account by asking a
// ranked list of language model providers and falling back to local rules.
package decision

import (
	"context"
	"time"

	"github.com/fentz26/caretaker/internal/llm"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/rs/zerolog"
)

// Limiter gates provider calls per account.
type Limiter interface {
	Wait(ctx context.Context, account models.AccountID, provider string) error
}

// Chain tries providers in order and returns the first usable answer.
type Chain struct {
	providers   []llm.Provider
	limiter     Limiter
	callTimeout time.Duration
	logger      zerolog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLimiter rate limits every provider call.
func WithLimiter(l Limiter) ChainOption {
	return func(c *Chain) { c.limiter = l }
}

// WithCallTimeout bounds each provider call.
func WithCallTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.callTimeout = d }
}

// WithLogger sets the chain logger.
func WithLogger(l zerolog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// NewChain creates a chain over providers in rank order.
func NewChain(providers []llm.Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers:   providers,
		callTimeout: llm.DefaultTimeout,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns the provider names in rank order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Decide returns a decision for the snapshot. It always returns one: when
// every provider fails, or ctx ends first, the local fallback rules decide.
func (c *Chain) Decide(ctx context.Context, account models.AccountID, snapshot models.StatusSnapshot) models.Decision {
	prompt := BuildPrompt(snapshot)
	log := c.logger.With().Str("account", string(account)).Logger()

	for _, p := range c.providers {
		if ctx.Err() != nil {
			break
		}

		raw, err := c.query(ctx, account, p, prompt)
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed")
			continue
		}

		d := Parse(raw)
		d.Source = p.Name()
		log.Info().Str("provider", p.Name()).Str("action", string(d.Action)).Msg("decision from provider")
		return d
	}

	log.Error().Msg("all providers failed, using fallback decision")
	return Fallback(snapshot)
}

func (c *Chain) query(ctx context.Context, account models.AccountID, p llm.Provider, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, account, p.Name()); err != nil {
			return "", err
		}
	}

	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	return p.Query(callCtx, prompt)
}
