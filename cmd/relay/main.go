package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/telhawk-systems/userrelay/common/audit"
	"github.com/telhawk-systems/userrelay/common/database"
	"github.com/telhawk-systems/userrelay/common/logging"
	natsclient "github.com/telhawk-systems/userrelay/common/messaging/nats"
	"github.com/telhawk-systems/userrelay/common/middleware"
	"github.com/telhawk-systems/userrelay/internal/auth"
	"github.com/telhawk-systems/userrelay/internal/config"
	"github.com/telhawk-systems/userrelay/internal/events"
	"github.com/telhawk-systems/userrelay/internal/handlers"
	"github.com/telhawk-systems/userrelay/internal/history"
	"github.com/telhawk-systems/userrelay/internal/metrics"
	"github.com/telhawk-systems/userrelay/internal/ratelimit"
	"github.com/telhawk-systems/userrelay/internal/relay"
	"github.com/telhawk-systems/userrelay/internal/repository"
	"github.com/telhawk-systems/userrelay/internal/server"
	"github.com/telhawk-systems/userrelay/internal/service"
	"github.com/telhawk-systems/userrelay/internal/telemetry"
	"github.com/telhawk-systems/userrelay/internal/upstream"
	"github.com/telhawk-systems/userrelay/internal/webhook"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("relay"))
	logging.SetDefault(logger)

	slog.Info("Starting relay service",
		slog.String("addr", cfg.Server.Addr()),
		slog.String("environment", cfg.Environment),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "userrelay", cfg.Telemetry, logger.Logger)
	if err != nil {
		slog.Error("Failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open user store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer repo.Close()

	observers := []relay.Observer{metrics.RelayObserver{}}

	// NATS is optional; the relay works without it
	var natsClient *natsclient.Client
	if cfg.NATS.Enabled {
		natsClient, err = natsclient.NewClient(natsclient.Config{
			URL:           cfg.NATS.URL,
			Name:          cfg.NATS.Name,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
			Timeout:       cfg.NATS.Timeout,
		}, logger.Logger)
		if err != nil {
			slog.Warn("Failed to connect to NATS (continuing without events)",
				slog.String("url", cfg.NATS.URL),
				slog.String("error", err.Error()))
		} else {
			slog.Info("Connected to NATS", slog.String("url", cfg.NATS.URL))
			observers = append(observers, events.NewPublisher(natsClient, logger.Logger))
		}
	} else {
		slog.Info("NATS events disabled")
	}

	var svcOpts []service.Option
	var recorder *history.Recorder
	if cfg.OpenSearch.Enabled {
		recorder, err = history.NewRecorder(ctx, cfg.OpenSearch, logger.Logger)
		if err == nil {
			err = recorder.EnsureIndex(ctx)
		}
		if err != nil {
			slog.Warn("Run history unavailable (continuing without it)",
				slog.String("url", cfg.OpenSearch.URL),
				slog.String("error", err.Error()))
			recorder = nil
		} else {
			slog.Info("Connected to OpenSearch", slog.String("url", cfg.OpenSearch.URL))
			observers = append(observers, recorder)
			svcOpts = append(svcOpts, service.WithHistory(recorder))
		}
	} else {
		slog.Info("Run history disabled")
	}

	source := upstream.New(cfg.Upstream.URL, cfg.Upstream.Timeout,
		upstream.WithToken(cfg.Upstream.Token),
		upstream.WithHTTPClient(telemetry.InstrumentClient(&http.Client{Timeout: cfg.Upstream.Timeout})),
	)
	sinkOpts := []webhook.Option{
		webhook.WithHTTPClient(telemetry.InstrumentClient(&http.Client{Timeout: cfg.Webhook.Timeout})),
	}
	if signer := audit.NewRequestSigner(cfg.Webhook.SigningSecret.Reveal()); signer != nil {
		sinkOpts = append(sinkOpts, webhook.WithSigner(signer))
	}
	sink := webhook.New(cfg.Webhook.URL, cfg.Webhook.Timeout, sinkOpts...)

	pipeline := relay.New(
		relay.WithLogger(logger),
		relay.WithObserver(observers...),
	)
	svc := service.NewRelayService(pipeline, source, sink, repo, svcOpts...)
	h := handlers.NewRelayHandler(svc, cfg.Server.MaxBodyBytes, logger.Logger)

	routerOpts := server.Options{
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.Origins(),
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		},
		Logger: logger.Logger,
	}
	if cfg.Auth.Enabled {
		routerOpts.Validator = auth.NewTokenGenerator(cfg.Auth.JWTSecret.Reveal(), cfg.Auth.AccessTokenTTL)
		slog.Info("Bearer authentication enabled for execute and clear")
	}
	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewRedisRateLimiter(ctx, cfg.Redis.URL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err != nil {
			slog.Warn("Rate limiter unavailable (continuing without it)", slog.String("error", err.Error()))
		} else {
			defer limiter.Close()
			routerOpts.Limiter = limiter
			routerOpts.TrustProxyHeaders = cfg.RateLimit.TrustProxyHeaders
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.NewRouter(h, routerOpts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Relay service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", slog.String("error", err.Error()))
	}

	// In-flight runs have finished; flush their observers.
	if recorder != nil {
		recorder.Close()
	}
	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			slog.Warn("NATS close error", slog.String("error", err.Error()))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("Tracer shutdown error", slog.String("error", err.Error()))
	}

	slog.Info("Relay service stopped")
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	if cfg.Database.Type != "postgres" {
		slog.Info("Using in-memory user store")
		return repository.NewInMemoryRepository(), nil
	}

	pg := cfg.Database.Postgres
	slog.Info("Running database migrations")
	if err := runMigrations(ctx, pg.MigrationsPath, pg.ConnString()); err != nil {
		return nil, err
	}
	slog.Info("Database migrations completed")

	return repository.NewPostgresRepository(ctx, pg.ConnString(), repository.PoolConfig{
		MaxConns:        pg.MaxConns,
		MinConns:        pg.MinConns,
		MaxConnLifetime: pg.MaxConnLifetime,
		MaxConnIdleTime: pg.MaxConnIdleTime,
	})
}

// runMigrations applies pending migrations, stopping gracefully when the
// migrate timeout expires.
func runMigrations(ctx context.Context, sourceURL, databaseURL string) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	mctx, cancel := database.MigrateContext(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Up() }()

	select {
	case err = <-done:
	case <-mctx.Done():
		m.GracefulStop <- true
		err = errors.Join(mctx.Err(), <-done)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

