package main

import (
	"context"
	"log"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/config"
	"github.com/taskhive/platform/internal/gateway"
	"github.com/taskhive/platform/internal/httputil"
	"github.com/taskhive/platform/internal/logging"
	"github.com/taskhive/platform/internal/metrics"
	"github.com/taskhive/platform/internal/middleware"
	"github.com/taskhive/platform/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("gateway")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.ServiceName)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	m := metrics.New(cfg.ServiceName, registry)

	routes := config.LoadRouteTableOrDefault()
	gw, err := gateway.New(routes, []byte(cfg.JWTSecret), logger)
	if err != nil {
		logger.Fatal("build gateway", zap.Error(err))
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging(logger), middleware.Metrics(m), middleware.CORS([]string{"*"}))
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", httputil.Health(cfg.ServiceName))
	router.PathPrefix("/").Handler(gw)

	if err := server.Run(context.Background(), cfg.HTTPAddr, router, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
