package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/api"
	"github.com/dennisdiepolder/qmconsole/internal/auth"
	"github.com/dennisdiepolder/qmconsole/internal/config"
	"github.com/dennisdiepolder/qmconsole/internal/filter"
	"github.com/dennisdiepolder/qmconsole/internal/live"
	"github.com/dennisdiepolder/qmconsole/internal/metrics"
	"github.com/dennisdiepolder/qmconsole/internal/pbxapi"
	"github.com/dennisdiepolder/qmconsole/internal/preferences"
	"github.com/dennisdiepolder/qmconsole/internal/state"
	"github.com/dennisdiepolder/qmconsole/internal/storage"
	"github.com/dennisdiepolder/qmconsole/internal/websocket"
	"github.com/dennisdiepolder/qmconsole/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("pbx_api_url", cfg.PBXAPIURL).
		Str("prefs_backend", string(cfg.Storage.Backend)).
		Msg("starting queue console server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	views, err := filter.NewRegistry(cfg.Views)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid view defaults")
	}

	// Preference storage
	kv, err := storage.New(ctx, cfg.Storage, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open preference storage")
	}
	defer kv.Close()

	prefs := preferences.NewStore(kv, log.Logger)
	go prefs.Run(ctx)

	// Live feed
	store := state.NewStore()
	snapshotFilter := live.NewPreferenceFilter(views, prefs, log.Logger)
	hub := websocket.NewHub(log.Logger, snapshotFilter)

	pbx := pbxapi.NewClient(cfg.PBXAPIURL, cfg.PBXAPIToken, cfg.PBXAPITimeout, log.Logger)
	pollers := live.NewPollers(pbx, store, live.Intervals{
		Queues:  cfg.PollQueuesInterval,
		Agents:  cfg.PollAgentsInterval,
		Calls:   cfg.PollCallsInterval,
		Timeout: cfg.PBXAPITimeout,
	}, log.Logger)
	hub.OnMessage(pollers.HandleClientMessage)
	go hub.Run(ctx)

	broadcaster := live.NewBroadcaster(store, hub, log.Logger)
	go broadcaster.Start(ctx)
	go pollers.Start(ctx)

	// REST API
	apiHandler := api.NewHandler(store, views, prefs, pollers, log.Logger)
	apiHandler.OnFilterChange(func(username string, st filter.State) {
		snapshotFilter.Update(username, st)
		broadcaster.Notify()
	})

	verifier := auth.NewVerifier(auth.Config{SkipAuth: cfg.SkipAuth, IssuerURL: cfg.OIDCIssuerURL}, log.Logger)
	if cfg.SkipAuth {
		log.Warn().Str("username", auth.DevUsername).Msg("authentication disabled")
	}

	r := newRouter(cfg, verifier, apiHandler, websocket.NewHandler(hub, cfg, log.Logger))

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stops pollers, hub, broadcaster and the preference writer
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// newRouter mounts the public and authenticated routes
func newRouter(cfg *config.Config, verifier *auth.Verifier, apiHandler *api.Handler, wsHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(verifier.Middleware)
		r.Get("/ws", wsHandler.ServeHTTP)
		apiHandler.Routes(r)
	})

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"qmconsole"}`)
}
