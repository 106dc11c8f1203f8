package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/pbxsim"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := pbxsim.DefaultConfig()

	// CLI flags
	var (
		port        = flag.String("port", "9090", "HTTP port")
		token       = flag.String("token", "", "Bearer token required on /api (empty disables the check)")
		queues      = flag.Int("queues", defaults.Queues, "Number of queues")
		agents      = flag.Int("agents", defaults.Agents, "Number of agents")
		callsPerMin = flag.Float64("calls-per-min", defaults.CallsPerMin, "New callers per minute")
		interval    = flag.Duration("interval", time.Second, "Simulation step")
		seed        = flag.Int64("seed", defaults.Seed, "Random seed")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Setup logger
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "pbxsim").
		Logger()

	cfg := defaults
	cfg.Queues = *queues
	cfg.Agents = *agents
	cfg.CallsPerMin = *callsPerMin
	cfg.Seed = *seed

	sim := pbxsim.New(cfg, logger)
	api := pbxsim.NewAPI(sim, *token, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sim.Run(ctx, *interval)
	go func() {
		if err := api.Start(ctx, ":"+*port); err != nil {
			logger.Error().Err(err).Msg("simulated PBX API stopped")
			cancel()
		}
	}()

	logger.Info().
		Int("queues", cfg.Queues).
		Int("agents", cfg.Agents).
		Float64("calls_per_min", cfg.CallsPerMin).
		Str("pbx_api_url", fmt.Sprintf("http://localhost:%s/api", *port)).
		Msg("pbxsim ready")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down pbxsim")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
