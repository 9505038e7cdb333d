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

	"github.com/pathlearn/roadmap-engine/internal/api"
	"github.com/pathlearn/roadmap-engine/internal/cache"
	"github.com/pathlearn/roadmap-engine/internal/completion"
	"github.com/pathlearn/roadmap-engine/internal/config"
	"github.com/pathlearn/roadmap-engine/internal/content"
	"github.com/pathlearn/roadmap-engine/internal/progress"
	"github.com/pathlearn/roadmap-engine/internal/storage"
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

	slog.Info("starting roadmap-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"cache_backend", cfg.Cache.Backend,
		"store_backend", cfg.Store.Backend,
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

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Load roadmap content and seed the repository
	loader := content.NewLoader()
	if err := loader.LoadFromDir(cfg.Content.Dir); err != nil {
		slog.Warn("failed to load roadmap content", "dir", cfg.Content.Dir, "error", err)
	}
	if err := loader.SeedRepository(initCtx, repo); err != nil {
		slog.Error("failed to seed roadmaps", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation for background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize completion cache
	var completionCache cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.TTL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		completionCache = rc
		slog.Info("redis cache connected", "address", cfg.Redis.Address, "ttl", cfg.Cache.TTL)
	default:
		mc := cache.NewMemoryCache(cfg.Cache.TTL)
		janitor := cache.NewJanitor(mc, cfg.Cache.SweepInterval)
		janitor.Start(ctx)
		completionCache = mc
		slog.Info("in-memory cache initialized", "ttl", cfg.Cache.TTL, "sweep_interval", cfg.Cache.SweepInterval)
	}

	// Initialize completion store
	var store completion.Store
	switch cfg.Store.Backend {
	case "http":
		store = completion.NewHTTPStore(cfg.Store.URL, cfg.Store.APIKey)
		slog.Info("using remote completion store", "url", cfg.Store.URL)
	default:
		store = completion.NewRepositoryStore(repo)
	}

	// Initialize milestone detector and transaction manager
	detector := progress.NewDetector(cfg.Progress.Thresholds)
	manager := completion.NewManager(store, completionCache, repo, detector)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, repo, manager)
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

	if err := completionCache.Close(); err != nil {
		slog.Error("cache close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("roadmap-engine stopped")
}
