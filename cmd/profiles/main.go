package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/bus"
	"github.com/taskhive/platform/internal/config"
	"github.com/taskhive/platform/internal/httputil"
	"github.com/taskhive/platform/internal/logging"
	"github.com/taskhive/platform/internal/metrics"
	"github.com/taskhive/platform/internal/middleware"
	"github.com/taskhive/platform/internal/server"
	"github.com/taskhive/platform/internal/store"
	"github.com/taskhive/platform/services/profiles"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("profiles")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.ServiceName)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	registry := prometheus.NewRegistry()
	m := metrics.New(cfg.ServiceName, registry)

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		logger.Fatal("connect nats", zap.Error(err))
	}
	defer nc.Close()

	b, err := bus.NewJetStream(ctx, nc, logger, m)
	if err != nil {
		logger.Fatal("build bus", zap.Error(err))
	}

	profileStore, err := store.FromConfig(ctx, cfg.PostgresURL, "profiles", func() *profiles.Profile { return &profiles.Profile{} })
	if err != nil {
		logger.Fatal("build store", zap.Error(err))
	}

	svc := profiles.New(profileStore, b, logger)

	subs, err := svc.Listen(ctx, b, cfg.QueueGroup())
	if err != nil {
		logger.Fatal("bind listeners", zap.Error(err))
	}
	defer func() {
		for _, sub := range subs {
			sub.Stop()
		}
	}()

	router := svc.Router()
	router.Use(middleware.Logging(logger), middleware.Metrics(m))
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", httputil.Health(cfg.ServiceName))

	if err := server.Run(ctx, cfg.HTTPAddr, router, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
