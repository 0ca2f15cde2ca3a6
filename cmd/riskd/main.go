package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/cwklurks/tokyo-market-risk-dashboard/api"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/actionqueue"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/audit"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/config"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/contagion"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/engine"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/feeds"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/fusion"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/pubsub"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/ws"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.NewLogger(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.Tracing {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			zapLogger.Fatal("Failed to create trace exporter", zap.Error(err))
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		defer tp.Shutdown(context.Background())
	}

	// Topology is static for the session; loaded exactly once.
	topo, err := feeds.LoadTopology(cfg.TopologyPath)
	if err != nil {
		zapLogger.Fatal("Failed to load topology", zap.Error(err))
	}
	entityIDs := make([]string, 0, len(topo.Entities))
	for _, e := range topo.Entities {
		entityIDs = append(entityIDs, e.ID)
	}
	graph, err := contagion.NewGraph(entityIDs, topo.Edges)
	if err != nil {
		zapLogger.Fatal("Invalid contagion topology", zap.Error(err))
	}

	mode, err := fusion.ParseMode(cfg.Engine.Mode)
	if err != nil {
		zapLogger.Fatal("Invalid fusion mode", zap.Error(err))
	}
	fuser, err := fusion.New(fusion.Config{
		PricingWeight:   cfg.Engine.PricingWeight,
		ContagionWeight: cfg.Engine.ContagionWeight,
		PricingScale:    cfg.Engine.PricingScale,
		ContagionScale:  cfg.Engine.ContagionScale,
		TierThresholds:  cfg.Engine.TierThresholds,
		Mode:            mode,
	})
	if err != nil {
		zapLogger.Fatal("Invalid fusion configuration", zap.Error(err))
	}

	auditStore, err := audit.NewStore(cfg.Audit.DSN)
	if err != nil {
		zapLogger.Fatal("Failed to open audit store", zap.Error(err))
	}
	queue := actionqueue.New(zapLogger, auditStore)

	cache := feeds.NewCache(feeds.NewRedisKV(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB), cfg.Feeds.SnapshotTTL)

	var market feeds.MarketProvider
	if cfg.Feeds.MarketURL != "" {
		market = feeds.NewHTTPMarketProvider(cfg.Feeds.MarketURL, cfg.Feeds.Timeout, cache, cfg.Feeds.StaleAfter, zapLogger)
	} else {
		zapLogger.Info("No market feed configured, serving topology-seeded universe")
		market = feeds.NewStaticMarketProvider(topo.Entities)
	}

	var seismic feeds.SeismicProvider
	if cfg.Feeds.SeismicURL != "" {
		seismic = feeds.NewP2PQuakeProvider(cfg.Feeds.SeismicURL, cfg.Feeds.Timeout, cache, cfg.Feeds.SeismicMinMag, cfg.Engine.ShockDecayWindow, zapLogger)
	} else {
		zapLogger.Info("No seismic feed configured, running unshocked")
		seismic = feeds.NewStaticSeismicProvider(nil)
	}

	var backend pubsub.Backend = pubsub.NewRedisPubSub(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if cfg.Kafka.Enabled {
		backend = pubsub.NewKafkaPubSub(cfg.Kafka.Brokers, cfg.Kafka.Topic, "riskd", zapLogger)
	}

	hub := ws.NewHub(zapLogger)

	engineSvc, err := engine.NewService(zapLogger, cfg.Engine, market, seismic, graph, fuser, queue, backend, hub)
	if err != nil {
		zapLogger.Fatal("Failed to create risk engine", zap.Error(err))
	}

	apiServer := api.NewServer(zapLogger, engineSvc, queue, auditStore, hub, cfg.Server.AllowedOrigins)

	if err := engineSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start risk engine", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := apiServer.Start(addr); err != nil {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down...")

	if err := engineSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop risk engine", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}
