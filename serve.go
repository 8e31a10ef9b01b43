package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/api"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/auth"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/config"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/database"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/logger"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/metrics"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/monitoring"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/services"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/store"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// loadConfig reads, validates and applies the logging part of the configuration.
func loadConfig(envFile string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.IsDevelopment()); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.UsesPlaceholderSecret() {
		log.Warn().Msg("JWT_SECRET is the placeholder default; set a real secret before deploying")
	}
	return cfg, nil
}

// openStore connects the configured user store, migrating SQL backends.
func openStore(ctx context.Context, cfg *config.Config) (store.UserStore, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil

	case config.DriverSQLite:
		db, err := database.NewSQLite(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db, database.DialectSQLite); err != nil {
			db.Close()
			return nil, err
		}
		return store.NewSQLiteStore(db), nil

	case config.DriverPostgres:
		pool, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return store.NewPostgresStore(pool), nil

	case config.DriverRedis:
		client, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func runServe(parent context.Context, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up the user store
	users, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer users.Close()
	log.Info().Str("driver", cfg.StoreDriver).Msg("User store ready")

	// Set up metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Set up WebSocket Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(m)
	go hub.Run(hubCtx)

	// Set up services
	events := services.NewEventService(cfg.EventBufferSize, hub)
	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.TokenLifetime, cfg.JWTIssuer)
	if err != nil {
		return err
	}
	authService, err := services.NewAuthService(users, hasher, tokens,
		auth.PasswordPolicy{MinLength: cfg.PasswordMinLength},
		services.WithEventRecorder(events),
		services.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	if cfg.SeedTestUsers {
		if err := authService.SeedTestUsers(ctx); err != nil {
			return err
		}
	}

	// Set up and run the background scheduler
	scheduler, err := monitoring.NewScheduler(cfg.EventPruneSchedule, cfg.EventRetention, events, users, m)
	if err != nil {
		return err
	}
	scheduler.Start()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Auth:          authService,
		Tokens:        tokens,
		Events:        events,
		Hub:           hub,
		Store:         users,
		Gatherer:      reg,
		CORSOrigins:   cfg.CORSOrigins,
		Environment:   cfg.AppEnv,
		SecureCookies: cfg.AppEnv == config.EnvProduction,
	})

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			scheduler.Stop(context.Background())
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	stopHub()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}
