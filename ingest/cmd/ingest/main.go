package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telhawk-systems/linehawk/common/database"
	"github.com/telhawk-systems/linehawk/common/linestats"
	"github.com/telhawk-systems/linehawk/common/logging"
	"github.com/telhawk-systems/linehawk/common/messaging"
	natsclient "github.com/telhawk-systems/linehawk/common/messaging/nats"
	"github.com/telhawk-systems/linehawk/common/tracing"
	"github.com/telhawk-systems/linehawk/ingest/internal/config"
	"github.com/telhawk-systems/linehawk/ingest/internal/dlq"
	"github.com/telhawk-systems/linehawk/ingest/internal/handlers"
	"github.com/telhawk-systems/linehawk/ingest/internal/mqtt"
	"github.com/telhawk-systems/linehawk/ingest/internal/repository"
	"github.com/telhawk-systems/linehawk/ingest/internal/server"
	"github.com/telhawk-systems/linehawk/ingest/internal/service"
	"github.com/telhawk-systems/linehawk/ingest/internal/stats"
)

var version = "dev"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ingest"))
	logging.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Ingest service failed", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	slog.Info("Starting Ingest service",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port),
		slog.String("database", cfg.Database.Type),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(tctx)
	}()

	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()

	// NATS carries change notifications and, optionally, the DLQ stream
	var (
		broker    messaging.Client
		publisher messaging.Publisher = messaging.NoopPublisher{}
		jsClient  *natsclient.JetStreamClient
	)
	if cfg.NATS.Enabled {
		jsClient, err = natsclient.NewJetStreamClient(cfg.NATS.Client)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer jsClient.Drain()
		broker, publisher = jsClient, jsClient
		slog.Info("NATS connected", slog.String("url", cfg.NATS.Client.URL))
	} else {
		slog.Info("NATS disabled - record change notifications will not be published")
	}

	deadLetter, err := openDLQ(ctx, cfg.DLQ, jsClient)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithNotifier(service.NewRecordNotifier(publisher, logger)),
	}
	if deadLetter != nil {
		opts = append(opts, service.WithDeadLetter(deadLetter))
	}

	// Per-factory counters live in Redis so every instance contributes
	var lineStats *linestats.Client
	if cfg.Redis.Enabled {
		instanceID := cfg.Redis.InstanceID
		if instanceID == "" {
			hostname, _ := os.Hostname()
			instanceID = fmt.Sprintf("%s-%d", hostname, os.Getpid())
		}
		lineStats, err = linestats.NewClient(cfg.Redis.URL, instanceID)
		if err != nil {
			slog.Warn("Failed to initialize line stats; counters will not be collected", logging.Error(err))
		} else {
			defer lineStats.Close()
			collector := linestats.NewCollector(lineStats, cfg.Redis.FlushInterval, logger.Logger)
			defer collector.Stop()
			opts = append(opts, service.WithStatsRecorder(collector))
			slog.Info("Line stats collector enabled",
				slog.Duration("flush_interval", cfg.Redis.FlushInterval),
				slog.String("instance", instanceID))
		}
	} else {
		slog.Info("Redis disabled - per-factory ingest counters will not be collected")
	}

	ingestService := service.NewIngestService(repo, service.Config{
		Policy:  cfg.Ingestion.Policy(),
		Workers: cfg.Ingestion.Workers,
	}, opts...)

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.NewClient(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connect to MQTT: %w", err)
		}
		defer mqttClient.Disconnect()
		consumer := mqtt.NewConsumer(mqttClient, ingestService, cfg.MQTT, logger)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer consumer.Stop()
	}

	deps := handlers.Dependencies{
		Ingest:       ingestService,
		Stats:        stats.NewService(repo),
		Store:        repo,
		Broker:       broker,
		MaxBatchSize: cfg.Ingestion.MaxBatchSize,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
	}
	if lineStats != nil {
		deps.LineStats = lineStats
	}
	if deadLetter != nil {
		deps.DLQ = deadLetter
	}
	router := server.NewRouter(handlers.NewHandler(deps), logger)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Ingest service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.Repository, error) {
	switch cfg.Type {
	case config.DatabasePostgres:
		connString := cfg.Postgres.ConnString()
		schemaVersion, err := database.Migrate(cfg.Migrations, connString)
		if err != nil {
			return nil, err
		}
		slog.Info("Database migrations applied", slog.Uint64("version", uint64(schemaVersion)))
		return repository.NewPostgresRepository(ctx, connString, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	case config.DatabaseSQLite:
		slog.Info("Using SQLite store", slog.String("path", cfg.SQLite.Path))
		return repository.NewSQLiteRepository(ctx, cfg.SQLite.Path)
	case config.DatabaseMemory:
		slog.Warn("Using in-memory store - records are lost on restart")
		return repository.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

func openDLQ(ctx context.Context, cfg config.DLQConfig, js *natsclient.JetStreamClient) (dlq.Backend, error) {
	if !cfg.Enabled {
		slog.Info("Dead Letter Queue disabled")
		return nil, nil
	}

	switch cfg.Backend {
	case config.DLQBackendJetStream:
		q, err := dlq.NewJetStreamQueue(ctx, js)
		if err != nil {
			return nil, fmt.Errorf("initialize JetStream DLQ: %w", err)
		}
		slog.Info("Dead Letter Queue enabled", slog.String("backend", "jetstream"))
		return q, nil
	case config.DLQBackendFile:
		q, err := dlq.NewQueue(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("initialize file DLQ: %w", err)
		}
		slog.Info("Dead Letter Queue enabled",
			slog.String("backend", "file"), slog.String("path", cfg.Path))
		slog.Warn("File-based DLQ does not support multiple ingest instances")
		return q, nil
	default:
		return nil, fmt.Errorf("unknown DLQ backend: %s (supported: jetstream, file)", cfg.Backend)
	}
}
