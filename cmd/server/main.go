package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ecomarket/purchase-pipeline/internal/brokerbackend"
	"github.com/ecomarket/purchase-pipeline/internal/catalog"
	"github.com/ecomarket/purchase-pipeline/internal/config"
	"github.com/ecomarket/purchase-pipeline/internal/dispatcher"
	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/logging"
	"github.com/ecomarket/purchase-pipeline/internal/metrics"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
	"github.com/ecomarket/purchase-pipeline/internal/queuebackend"
	"github.com/ecomarket/purchase-pipeline/internal/strategy"
	"github.com/ecomarket/purchase-pipeline/internal/telemetry"
	transporthttp "github.com/ecomarket/purchase-pipeline/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using defaults")
	}

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)
	log.Info("starting service", slog.String("http_addr", cfg.HTTPAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracer(ctx, log, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracer init failed, continuing without tracing", slog.Any("error", err))
	} else {
		defer shutdownTracer(context.Background())
	}

	registry := health.New()

	inventory := catalog.New(cfg.InventoryFile, log)
	if err := inventory.LoadOrSeed(); err != nil {
		log.Error("failed to load inventory", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable at startup, queue write-through will keep failing until it recovers", slog.Any("error", err))
	}
	pingCancel()

	queueBackend := queuebackend.New(registry, redisClient, log)
	broker := brokerbackend.New(cfg.RabbitMQUser, cfg.RabbitMQPass, cfg.RabbitMQHost, cfg.RabbitMQPort, cfg.BrokerDialTimeout, registry)

	strategies := map[purchase.StrategyTag]strategy.Strategy{
		purchase.HTTPDirecto:            strategy.NewDirect(registry, strategy.SystemRand{}),
		purchase.ReintentosSimples:      strategy.NewSimpleRetry(registry, strategy.RealClock{}, strategy.SystemRand{}),
		purchase.BackoffExponencial:     strategy.NewExpBackoff(registry, strategy.RealClock{}, strategy.SystemRand{}),
		purchase.ReintentosSofisticados: strategy.NewScheduledRetry(registry, strategy.RealClock{}, strategy.SystemRand{}),
		purchase.RedisQueue:             strategy.NewQueue(registry, queueBackend),
		purchase.RabbitMQ:               strategy.NewBroker(registry, broker),
	}
	for tag, strat := range strategies {
		strategies[tag] = strategy.NewTelemetryMiddleware(strat)
	}

	dispatch := dispatcher.New(inventory, registry, strategies, log)

	httpMetrics := metrics.NewHTTP(cfg.ServiceName)
	purchaseMetrics := metrics.NewPurchase(cfg.ServiceName)

	app := transporthttp.NewApp(transporthttp.Config{
		ServiceName: cfg.ServiceName,
		HTTPAddr:    cfg.HTTPAddr,
	}, log, httpMetrics, purchaseMetrics, dispatch, registry, inventory)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("received shutdown signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", slog.Any("error", err))
		}
		if err := redisClient.Close(); err != nil {
			log.Warn("error closing redis client", slog.Any("error", err))
		}
		cancel()
	}()

	if err := app.Start(ctx); err != nil {
		log.Error("failed to start app", slog.Any("error", err))
		os.Exit(1)
	}
}
