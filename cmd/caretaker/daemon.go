package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/caretaker/internal/audit"
	"github.com/fentz26/caretaker/internal/connectors/bridge"
	"github.com/fentz26/caretaker/internal/controlplane"
	"github.com/fentz26/caretaker/internal/fleet"
	"github.com/fentz26/caretaker/internal/logger"
	"github.com/fentz26/caretaker/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 30 * time.Second
	pruneInterval   = time.Hour
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the caretaker daemon",
	Long: `Starts the fleet orchestrator and the read-only control plane API.
Configuration comes from CARETAKER_* environment variables and an optional
TOML file.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	log.Info().Str("version", version).Msg("starting caretaker")

	st, err := store.New(cfg.StorePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("database close error")
		}
	}()

	sink, nc, err := buildTelemetry(cfg, st, log)
	if err != nil {
		return err
	}

	chain := buildChain(cfg, newLimiter(cfg), logger.WithComponent(log, "decision"))
	log.Info().Strs("providers", chain.Providers()).Msg("decision chain ready")

	client := bridge.NewClient(cfg.Bridge.URL, cfg.Bridge.Timeout, cfg.Bridge.Routines)
	factory := monitorFactory(cfg, client, chain, sink, audit.NewDecisionWriter(st), log)
	orch := fleet.New(buildRegistry(cfg), factory, cfg.Fleet, fleet.WithLogger(log))

	server := controlplane.NewServer(controlplane.NewService(st, orch), cfg.ListenAddr, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	fleetDone := make(chan struct{})
	go func() {
		defer close(fleetDone)
		orch.Run(ctx)
	}()

	go pruneLoop(ctx, st, cfg.Retention, log)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("received signal, shutting down")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server error")
			runErr = err
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	select {
	case <-fleetDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("monitors did not stop in time")
	}
	if err := sink.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Uint64("dropped", sink.Dropped()).Msg("telemetry not fully flushed")
	}
	if nc != nil {
		nc.Close()
	}

	log.Info().Msg("shutdown complete")
	return runErr
}

// pruneLoop drops observability rows older than retention.
func pruneLoop(ctx context.Context, st *store.Store, retention time.Duration, log zerolog.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.PruneBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				log.Warn().Err(err).Msg("prune failed")
				continue
			}
			log.Debug().Int64("rows", n).Msg("pruned old records")
		}
	}
}
