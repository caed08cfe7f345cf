// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"categorytree/internal/cache"
	"categorytree/internal/config"
	"categorytree/internal/database"
	"categorytree/internal/handlers"
	"categorytree/internal/middleware"
	"categorytree/internal/router"
	"categorytree/internal/store"
	"categorytree/internal/tree"
)

// shutdownTimeout bounds how long in-flight requests may run after a signal.
const shutdownTimeout = 30 * time.Second

var (
	seedData bool

	rootCmd = &cobra.Command{
		Use:          "categorytree",
		Short:        "HTTP service for managing a forest of categories",
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP server (default)",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE:  runMigrate,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&seedData, "seed", false, "serve: insert sample categories when the table is empty (always on in development)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// bootstrap loads configuration, installs the logger and opens a migrated
// database connection. It never seeds; only serve does.
func bootstrap(ctx context.Context) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	setupLogger(os.Stdout, cfg)

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"cache", cfg.CacheEnabled(),
	)

	db, err := database.Connect(ctx, cfg.DSN(), cfg.DBConnectAttempts, cfg.DBConnectDelay)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	return cfg, db, nil
}

// shouldSeed reports whether serve inserts the sample forest.
func shouldSeed(cfg *config.Config, flag bool) bool {
	return flag || cfg.IsDev()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	_, db, err := bootstrap(cmd.Context())
	if err != nil {
		slog.Error("migrate failed", "error", err)
		return err
	}
	defer db.Close()

	slog.Info("migrations applied")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, db, err := bootstrap(ctx)
	if err != nil {
		slog.Error("startup failed", "error", err)
		return err
	}
	defer db.Close()

	if shouldSeed(cfg, seedData) {
		if err := database.Seed(ctx, db); err != nil {
			slog.Error("startup failed", "error", err)
			return fmt.Errorf("seed database: %w", err)
		}
	}

	// The subtree cache is optional; the service runs without Valkey.
	var subtreeCache *cache.SubtreeCache
	if cfg.CacheEnabled() {
		var valkeyClient *redis.Client
		valkeyClient, err = cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			slog.Warn("valkey unavailable, subtree cache disabled", "error", err)
		} else {
			defer valkeyClient.Close()
			subtreeCache = cache.NewSubtreeCache(valkeyClient, cfg.SubtreeCacheTTL)
		}
	} else {
		slog.Info("valkey not configured, subtree cache disabled")
	}

	manager := tree.NewManager(store.NewCategoryStore(db))
	categories := handlers.NewCategories(manager, subtreeCache)

	opts := router.Options{MaxBodyBytes: cfg.MaxBodyBytes}
	if cfg.RateLimitPerMinute > 0 {
		opts.Limiter = middleware.NewRateLimiter(router.MutationScope, cfg.RateLimitPerMinute, time.Minute)
		defer opts.Limiter.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.New(categories, opts),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			slog.Error("server failed to start", "error", err)
			return err
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}
