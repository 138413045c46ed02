package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ThekraQaqish/Quikko-sub000/internal/carts"
	"github.com/ThekraQaqish/Quikko-sub000/internal/config"
	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/messaging"
	"github.com/ThekraQaqish/Quikko-sub000/internal/orders"
	"github.com/ThekraQaqish/Quikko-sub000/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := telemetry.NewLogger(os.Stdout, "orders")

	if err := config.LoadDotEnv(); err != nil {
		logger.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadOrders()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "orders")
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(ctx) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var placedEvents, decidedEvents orders.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		placed := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicOrderPlaced)
		defer func() { _ = placed.Close() }()
		decided := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicOrderItemDecided)
		defer func() { _ = decided.Close() }()
		placedEvents, decidedEvents = placed, decided
	} else {
		logger.Warn("KAFKA_BROKERS not set, events will not be published")
	}

	var viewCache orders.ViewCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		viewCache = orders.NewRedisViewCache(client, "orders", cfg.StatusViewTTL)
	}

	repo := orders.NewOrderRepository(db)
	projector := orders.NewProjector(repo, viewCache, logger)
	checkout := orders.NewCheckout(orders.NewPostgresCheckoutStore(db), placedEvents, logger)
	decisions := orders.NewDecisions(orders.NewPostgresDecisionStore(db, cfg.LockTimeout), decidedEvents, projector, logger)

	handler := orders.NewHandler(checkout, decisions, projector, repo, logger)
	cartHandler := carts.NewHandler(carts.NewCartRepository(db), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(handler.HandleCheckout))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("GET /orders/{id}/status-view", telemetry.WithHTTPRoute(handler.HandleStatusView))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(handler.HandleUpdateStatus))
	mux.HandleFunc("POST /vendor/order-items/{id}/decision", telemetry.WithHTTPRoute(handler.HandleDecision))

	mux.HandleFunc("POST /carts", telemetry.WithHTTPRoute(cartHandler.HandleCreate))
	mux.HandleFunc("GET /carts/{id}", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("DELETE /carts/{id}", telemetry.WithHTTPRoute(cartHandler.HandleDelete))
	mux.HandleFunc("POST /carts/{id}/items", telemetry.WithHTTPRoute(cartHandler.HandleAddItem))
	mux.HandleFunc("PATCH /carts/{id}/items/{itemId}", telemetry.WithHTTPRoute(cartHandler.HandleUpdateItem))
	mux.HandleFunc("DELETE /carts/{id}/items/{itemId}", telemetry.WithHTTPRoute(cartHandler.HandleRemoveItem))

	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(mux, "orders", otelhttp.WithSpanNameFormatter(telemetry.SpanName)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serve(server, logger)
}

func serve(server *http.Server, logger *slog.Logger) {
	go func() {
		logger.Info("starting orders service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
