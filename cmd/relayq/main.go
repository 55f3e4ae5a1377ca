package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relayq/internal/config"
	"relayq/internal/constants"
	"relayq/internal/database"
	"relayq/internal/service"
	"relayq/internal/tracing"
	"relayq/pkg/relay"

	"github.com/sirupsen/logrus"
)

var (
	// Set via ldflags at build time
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	configPath := flag.String("config", "config.json", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("relayq %s (built %s, commit %s)\n", version, buildTime, gitCommit)
		return
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *verbose); err != nil {
		logger.WithError(err).Fatal("relayq exited with error")
	}
}

func run(ctx context.Context, logger *logrus.Logger, configPath string, verbose bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if !verbose {
		if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(level)
		}
	}

	logger.WithFields(logrus.Fields{
		"version": version,
		"port":    cfg.Server.Port,
	}).Info("Starting relayq")

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingManager.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Tracing shutdown failed")
		}
	}()

	store, cleanup, err := openStore(ctx, cfg.Database.Path, cfg.Database.Ephemeral, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	relayClient := relay.NewClientWithLogger(
		cfg.Relay.BaseURL,
		cfg.Relay.AuthToken,
		&http.Client{Timeout: time.Duration(cfg.Relay.TimeoutSec) * time.Second},
		logger,
	)

	breaker := service.NewCircuitBreaker(
		"relay-server",
		constants.CBMaxFailures,
		constants.CBOpenTimeoutSec*time.Second,
		logger,
	)

	queueService := service.NewQueueService(store, relayClient, breaker, cfg.Queue, logger)

	monitor := service.NewConnectivityMonitor(
		relayClient,
		time.Duration(cfg.Connectivity.ProbeIntervalSec)*time.Second,
		logger,
	)
	monitor.Start(ctx)
	defer monitor.Stop()

	var listener *service.RealtimeListener
	if cfg.Relay.RealtimeEnabled {
		listener = service.NewRealtimeListener(cfg.Relay.WebsocketURL, cfg.Relay.AuthToken, monitor, logger)
		listener.Start(ctx)
		defer listener.Stop()
	}

	supervisor := service.NewSupervisor(
		queueService,
		monitor,
		time.Duration(cfg.Queue.ResyncIntervalSec)*time.Second,
		cfg.RetentionDays,
		logger,
	)
	supervisor.Start(ctx)
	defer supervisor.Stop()

	server := NewServer(cfg, queueService, monitor, logger)

	serverErr := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("admin server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Admin server shutdown failed")
	}

	logger.Info("relayq stopped")
	return nil
}

// openStore opens the queue store, retrying with backoff while the
// database file is briefly locked by a previous instance that is still
// shutting down.
func openStore(ctx context.Context, dbPath string, ephemeral bool, logger *logrus.Logger) (service.Store, func(), error) {
	if ephemeral {
		logger.Warn("Using in-memory store; queued messages will not survive a restart")
		mem := database.NewMemoryStore()
		return mem, func() { _ = mem.Close() }, nil
	}

	backoff := constants.DefaultStartupBackoffMs * time.Millisecond
	maxBackoff := constants.DefaultStartupMaxBackoffSec * time.Second

	var lastErr error
	for attempt := 1; ; attempt++ {
		store, err := database.New(dbPath)
		if err == nil {
			logger.WithField("path", dbPath).Info("Queue store opened")
			return store, func() { _ = store.Close() }, nil
		}
		lastErr = err

		logger.WithError(err).WithField("attempt", attempt).Warn("Failed to open queue store, retrying")

		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("failed to open queue store: %w", lastErr)
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		if attempt >= constants.DefaultDatabaseRetryAttempts*2 {
			return nil, nil, fmt.Errorf("failed to open queue store after %d attempts: %w", attempt, lastErr)
		}
	}
}
