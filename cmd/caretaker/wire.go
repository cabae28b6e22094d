package main

import (
	"errors"
	"fmt"

	"github.com/fentz26/caretaker/internal/audit"
	"github.com/fentz26/caretaker/internal/config"
	"github.com/fentz26/caretaker/internal/connectors/bridge"
	"github.com/fentz26/caretaker/internal/decision"
	"github.com/fentz26/caretaker/internal/fleet"
	"github.com/fentz26/caretaker/internal/llm"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/fentz26/caretaker/internal/monitor"
	"github.com/fentz26/caretaker/internal/ratelimit"
	"github.com/fentz26/caretaker/internal/registry"
	"github.com/fentz26/caretaker/internal/store"
	"github.com/fentz26/caretaker/internal/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var errEmptyCredential = errors.New("empty credential")

func loadConfig() (*config.Config, error) {
	return config.Load(viper.New(), configPath)
}

// buildProviders returns the usable providers in decision order.
func buildProviders(cfg *config.Config, log zerolog.Logger) []llm.Provider {
	var providers []llm.Provider
	for _, name := range cfg.UsableProviders() {
		p, err := llm.New(name, cfg.Providers[name].LLM())
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("skipping provider")
			continue
		}
		providers = append(providers, p)
	}
	return providers
}

func buildChain(cfg *config.Config, limiter decision.Limiter, log zerolog.Logger) *decision.Chain {
	opts := []decision.ChainOption{
		decision.WithCallTimeout(cfg.Decision.CallTimeout),
		decision.WithLogger(log),
	}
	if limiter != nil {
		opts = append(opts, decision.WithLimiter(limiter))
	}
	return decision.NewChain(buildProviders(cfg, log), opts...)
}

func buildRegistry(cfg *config.Config) registry.Registry {
	if cfg.Registry.URL != "" {
		return registry.NewHTTP(cfg.Registry.URL, cfg.Registry.Timeout)
	}
	return registry.NewFile(cfg.Registry.File)
}

// buildTelemetry wires every configured publisher behind one async sink.
// The returned NATS connection is nil when NATS is not configured.
func buildTelemetry(cfg *config.Config, st *store.Store, log zerolog.Logger) (*telemetry.Async, *nats.Conn, error) {
	var publishers []telemetry.Publisher
	if cfg.Telemetry.Store {
		publishers = append(publishers, telemetry.NewStorePublisher(st))
	}
	if cfg.Telemetry.URL != "" {
		publishers = append(publishers, telemetry.NewHTTPPublisher(cfg.Telemetry.URL))
	}

	var nc *nats.Conn
	if cfg.Telemetry.NATSURL != "" {
		var err error
		nc, err = telemetry.Connect(cfg.Telemetry.NATSURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		publishers = append(publishers, telemetry.NewNATSPublisher(nc, cfg.Telemetry.SubjectPrefix))
	}

	sink := telemetry.NewAsync(publishers, cfg.Telemetry.Buffer, cfg.Telemetry.Timeout, log)
	return sink, nc, nil
}

// monitorFactory builds a monitor per account on a bridge session.
func monitorFactory(cfg *config.Config, client *bridge.Client, decider monitor.Decider, sink telemetry.Sink, recorder *audit.DecisionWriter, log zerolog.Logger) fleet.Factory {
	return func(account models.AccountID, credential models.Credential) (fleet.Runner, error) {
		if credential == "" {
			return nil, errEmptyCredential
		}
		session := client.Session(account, credential)

		tasks := make([]monitor.Maintenance, 0, len(cfg.Bridge.Routines))
		for _, name := range cfg.Bridge.Routines {
			tasks = append(tasks, monitor.Routine(session, name, cfg.Bridge.MaintenanceInterval))
		}

		return monitor.New(account, session, decider, sink,
			monitor.WithConfig(cfg.Monitor),
			monitor.WithLogger(log),
			monitor.WithRecorder(recorder),
			monitor.WithMaintenance(tasks...),
		), nil
	}
}

func newLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimits)
}
