package main

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/audit"
	"github.com/pi-qualytics/insight-engine/pkg/config"
	"github.com/pi-qualytics/insight-engine/pkg/handlers"
	"github.com/pi-qualytics/insight-engine/pkg/llm"
	"github.com/pi-qualytics/insight-engine/pkg/metrics"
	"github.com/pi-qualytics/insight-engine/pkg/middleware"
	"github.com/pi-qualytics/insight-engine/pkg/pipeline"
	"github.com/pi-qualytics/insight-engine/pkg/schema"
	"github.com/pi-qualytics/insight-engine/pkg/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("provider", cfg.Provider.Kind),
		zap.String("database", cfg.Warehouse.Database),
		zap.Strings("schemas", cfg.Pipeline.Schemas()))

	manager := warehouse.NewManager(cfg.Warehouse, logger)
	defer manager.Close()
	executor := warehouse.NewExecutor(manager,
		time.Duration(cfg.Warehouse.QueryTimeoutSeconds)*time.Second, logger)

	provider, err := llm.NewProvider(cfg.Provider, logger)
	if err != nil {
		logger.Fatal("failed to create LLM provider", zap.Error(err))
	}

	registry := schema.NewBuilder(executor, cfg.Warehouse.Database, cfg.Pipeline.Schemas(), logger)
	auditLog := audit.NewLogger(executor, logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(promRegistry)

	engine := pipeline.NewEngine(provider, registry, executor, auditLog, m,
		cfg.Pipeline.InterpretSampleRows, logger)

	mux := http.NewServeMux()
	handlers.NewAskHandler(engine, logger).RegisterRoutes(mux)
	handlers.NewStatsHandler(auditLog, logger).RegisterRoutes(mux)
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	logger.Info("starting insight-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))

	handler := middleware.RequestLogger(logger)(mux)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
