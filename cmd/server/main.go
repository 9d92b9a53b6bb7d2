// Command server runs the yield scanner API: the agent registry, the scan
// orchestrator, the strategy store and the strategy execution engine behind a
// REST surface under /api.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yield-scanner/internal/api"
	"github.com/yield-scanner/internal/config"
	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/service"
	"github.com/yield-scanner/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	// All state is volatile: repositories share one id allocator and live for
	// the lifetime of the process.
	seq := storage.NewSequence()
	catalog := storage.NewCatalogRepository(seq)
	agents := storage.NewAgentRepository(seq)
	strategies := storage.NewStrategyRepository(seq)
	activities := storage.NewActivityRepository(seq)

	storage.SeedCatalog(catalog)
	logger.WithFields(map[string]interface{}{
		"protocols": len(catalog.ListProtocols()),
		"networks":  len(catalog.ListNetworks()),
	}).Info("Catalog seeded")

	// The redis enrichment cache is optional; the catalog stays authoritative
	// when it is absent or unreachable.
	var redisCache *storage.RedisCache
	if cfg.Redis.Enabled() {
		redisCache, err = storage.NewRedisCache(&cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, enrichment cache disabled")
			redisCache = nil
		} else {
			logger.Info("Redis enrichment cache connected")
			defer redisCache.Close()
		}
	}
	cache := storage.NewCatalogCache(catalog, redisCache, cfg.Redis.TTL)

	agentService := service.NewAgentService(agents, activities, logger)
	scanService := service.NewScanService(agents, catalog, activities, service.ScanOptionsFromConfig(&cfg.Scanner), logger)
	strategyService := service.NewStrategyService(strategies, activities, logger)
	executionService := service.NewExecutionService(strategies, catalog, activities, service.EngineOptionsFromConfig(&cfg.Engine), logger)

	server := api.NewServer(cfg, &api.Handlers{
		Agents:     api.NewAgentHandler(agentService, scanService, cache, logger),
		Strategies: api.NewStrategyHandler(strategyService, executionService, cache, logger),
		Catalog:    api.NewCatalogHandler(catalog, activities, cache, logger),
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Fatal("Server failed")
		}
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}

	// Let in-flight scan tasks settle their agents before exit.
	scanService.Wait()

	logger.Info("Server stopped")
}
