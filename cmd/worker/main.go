package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/ThekraQaqish/Quikko-sub000/internal/carts"
	"github.com/ThekraQaqish/Quikko-sub000/internal/config"
	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/messaging"
	"github.com/ThekraQaqish/Quikko-sub000/internal/telemetry"
	"github.com/ThekraQaqish/Quikko-sub000/internal/worker"
)

func main() {
	logger := telemetry.NewLogger(os.Stdout, "cart-cleanup-worker")

	if err := config.LoadDotEnv(); err != nil {
		logger.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadWorker()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "cart-cleanup-worker")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicOrderPlaced, cfg.GroupID, logger)
	defer func() { _ = consumer.Close() }()

	handler := worker.NewCartCleanupHandler(carts.NewCartRepository(db), logger)

	logger.Info("starting cart cleanup worker", "brokers", cfg.KafkaBrokers, "group_id", cfg.GroupID)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
