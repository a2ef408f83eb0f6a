package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/storygraph/storygraph/internal/api"
	"github.com/storygraph/storygraph/internal/api/handlers"
	"github.com/storygraph/storygraph/internal/cache"
	"github.com/storygraph/storygraph/internal/config"
	"github.com/storygraph/storygraph/internal/database"
	"github.com/storygraph/storygraph/internal/email"
	"github.com/storygraph/storygraph/internal/queue"
	"github.com/storygraph/storygraph/internal/ratelimit"
	"github.com/storygraph/storygraph/internal/storage"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	flagSet := pflag.NewFlagSet("storygraph-api", pflag.ContinueOnError)
	addr := flagSet.String("addr", cfg.Addr(), "listen address")
	flagSet.StringVar(&cfg.Database.MigrationsPath, "migrations", cfg.Database.MigrationsPath,
		"directory of SQL migrations (default: compiled in)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	ctx := context.Background()
	deps := api.Deps{Config: cfg, Health: map[string]handlers.Pinger{}}

	// Postgres when configured, otherwise the in-memory store.
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		var source fs.FS = migrations.FS
		if cfg.Database.MigrationsPath != "" {
			source = os.DirFS(cfg.Database.MigrationsPath)
		}
		if err := database.RunMigrations(ctx, db, source); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		deps.Store = store.NewPostgres(db)
	} else {
		slog.Warn("DATABASE_URL not set, data lives in memory and is lost on restart")
		deps.Store = store.NewMemory()
	}

	// Redis is optional: it carries limiter state, the URL cache and the
	// email queue.
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable at startup", "error", err)
		}
		deps.Health["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		deps.URLCache = cache.NewCache(rdb, "storygraph")
		deps.RequestLimiter = ratelimit.NewRedis(rdb, "storygraph:rl:ip", ratelimit.Bucket{
			Burst: cfg.RateLimit.Burst,
			Rate:  cfg.RateLimit.RequestsPerSecond,
		})
		deps.UploadLimiter = ratelimit.NewRedis(rdb, "storygraph:rl:upload", ratelimit.UploadURLs)

		qc := queue.NewClient(cfg.Redis, cfg.Email)
		defer qc.Close()
		deps.Emails = qc
	} else {
		slog.Warn("REDIS_ADDR not set, rate limits are per process and email is sent inline")
		deps.Emails = email.NewMailer(email.NewResend(cfg.Email.ResendAPIKey, cfg.Email.From), cfg.Site.Name)
	}

	if cfg.Storage.Enabled() {
		deps.Storage = storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket)
	} else {
		slog.Warn("Supabase storage not configured, uploads are disabled")
	}

	router := api.NewRouter(deps)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting API server", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}
