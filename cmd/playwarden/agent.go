package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/playwarden/internal/agent"
	"github.com/goodtune/playwarden/internal/alert"
	"github.com/goodtune/playwarden/internal/api"
	"github.com/goodtune/playwarden/internal/api/ws"
	"github.com/goodtune/playwarden/internal/backend/jsonrpc"
	"github.com/goodtune/playwarden/internal/config"
	"github.com/goodtune/playwarden/internal/metrics"
	"github.com/goodtune/playwarden/internal/names"
	"github.com/goodtune/playwarden/internal/policy"
	"github.com/goodtune/playwarden/internal/policy/opa"
	redisstore "github.com/goodtune/playwarden/internal/storage/redis"
	"github.com/goodtune/playwarden/internal/systemd"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Start the Playwarden agent",
	Long:  `Start the agent: poll loop, alert escalation, dashboard API, WebSocket feed, and metrics endpoint.`,
	RunE:  runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Playwarden")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := redisstore.Open(cfg.Storage.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("redis_host", cfg.Storage.Redis.Host).
		Int("redis_port", cfg.Storage.Redis.Port).
		Msg("Storage initialized")

	// Initialize monitor service client
	client := jsonrpc.New(jsonrpc.Config{
		URL:     cfg.Backend.URL,
		Timeout: parseDuration(cfg.Backend.Timeout, 5*time.Second),
	}, logger)

	logger.Info().Str("url", cfg.Backend.URL).Msg("Monitor service client initialized")

	// Initialize session policy engine
	policyEngine, err := policy.NewEngine(opa.Config{
		PolicyDir: cfg.Policy.Dir,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	logger.Info().Str("policy_dir", cfg.Policy.Dir).Msg("Policy engine initialized")

	// Initialize display name resolver
	resolver, err := names.NewResolver(cfg.Agent.NameCacheSize)
	if err != nil {
		return fmt.Errorf("failed to initialize name resolver: %w", err)
	}

	// Initialize auto-closer
	autoCloser := alert.NewAutoCloser(
		client,
		parseDuration(cfg.Agent.AutoCloseDelay, 30*time.Second),
		logger,
	)

	// Initialize WebSocket hub
	hub := ws.NewHub(logger)

	// Initialize agent
	budgetAgent := agent.New(agent.Options{
		Backend:      client,
		Store:        store,
		Policy:       policyEngine,
		Names:        resolver,
		Hub:          hub,
		AutoCloser:   autoCloser,
		PollInterval: parseDuration(cfg.Agent.PollInterval, time.Second),
		Logger:       logger,
	})

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().Str("addr", metricsAddr).Msg("Metrics server started")

	// Initialize API Server
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer := api.NewServer(api.Config{
		ListenAddr:     apiAddr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, budgetAgent, client, store, hub, logger)
	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	logger.Info().Str("addr", apiAddr).Msg("API server started")

	// Start the poll loop
	budgetAgent.Start()

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd")
	}

	logger.Info().Msg("Playwarden startup complete")

	// Wait for shutdown signal; SIGHUP reloads policies in place
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			logger.Info().Msg("SIGHUP received, reloading policies")
			if err := budgetAgent.ReloadPolicy(); err != nil {
				logger.Error().Err(err).Msg("Policy reload failed, previous policies stay active")
			}
			continue
		}
		break
	}

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd")
	}

	// Stop in reverse order of startup
	budgetAgent.Stop()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	hub.Stop()

	logger.Info().Msg("Playwarden stopped")
	return nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
