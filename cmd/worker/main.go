package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/storygraph/storygraph/internal/config"
	"github.com/storygraph/storygraph/internal/email"
	"github.com/storygraph/storygraph/internal/queue"
	"github.com/storygraph/storygraph/internal/queue/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !cfg.Redis.Enabled() {
		slog.Error("REDIS_ADDR is required for the worker")
		os.Exit(1)
	}
	if cfg.Email.ResendAPIKey == "" {
		slog.Warn("RESEND_API_KEY not set, email tasks will fail without retry")
	}

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	// Register workers
	mailer := email.NewMailer(email.NewResend(cfg.Email.ResendAPIKey, cfg.Email.From), cfg.Site.Name)
	workers.NewEmailWorker(mailer).Register(registry)

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
