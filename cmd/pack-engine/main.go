package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prepstack/pack-engine/internal/activation"
	"github.com/prepstack/pack-engine/internal/api"
	"github.com/prepstack/pack-engine/internal/cleanup"
	"github.com/prepstack/pack-engine/internal/config"
	"github.com/prepstack/pack-engine/internal/health"
	"github.com/prepstack/pack-engine/internal/idempotency"
	"github.com/prepstack/pack-engine/internal/packs"
	"github.com/prepstack/pack-engine/internal/storage"
	"github.com/prepstack/pack-engine/internal/validator"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting pack-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize the primary (database) pack repository
	pgRepo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Initialize the filesystem fallback and wrap both behind one interface
	fsRepo, err := storage.NewFilesystemRepository(cfg.Packs.DataDir)
	if err != nil {
		slog.Error("failed to create filesystem repository", "error", err)
		os.Exit(1)
	}
	repo := storage.NewFallbackRepository(pgRepo, fsRepo)

	// Initialize the idempotency store; fall back to in-process memory when
	// redis is unavailable at boot
	var idemStore idempotency.Store
	var memStore *idempotency.MemoryStore

	redisStore, err := idempotency.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Idempotency.FailOpen)
	if err != nil {
		slog.Warn("redis unavailable, using in-memory idempotency store", "error", err)
		memStore = idempotency.NewMemoryStore()
		idemStore = memStore
	} else {
		idemStore = redisStore
	}

	// Initialize health registry
	registry := health.NewRegistry()
	registry.Register(health.NewPackStoreChecker(repo))

	if pgChecker, err := health.NewPostgresChecker(cfg.Database.DSN); err != nil {
		slog.Warn("postgres health checker unavailable", "error", err)
	} else {
		registry.Register(pgChecker)
	}

	if redisChecker, err := health.NewRedisChecker(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		slog.Warn("redis health checker unavailable", "error", err)
	} else {
		registry.Register(redisChecker)
	}

	// Initialize pack manager and the activation event feed
	manager := activation.NewManager(repo, validator.New(cfg.Validation), idemStore, cfg.Idempotency.TTL)

	events := api.NewEventHub()
	manager.AddHook(events.Hook())

	// Import seed packs
	if cfg.Packs.SeedDir != "" {
		seedLoader := packs.NewSeedLoader(manager)
		if err := seedLoader.LoadFromDir(initCtx, cfg.Packs.SeedDir); err != nil {
			slog.Warn("failed to load seed packs", "dir", cfg.Packs.SeedDir, "error", err)
		}
	}

	// Initialize cleanup sweeper
	sweeper := cleanup.NewSweeper(repo, memStore, cfg.Cleanup.Interval)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup sweeper
	sweeper.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, manager, registry, events, pgRepo)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Close backing stores
	if err := idemStore.Close(); err != nil {
		slog.Error("idempotency store close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("pack-engine stopped")
}
