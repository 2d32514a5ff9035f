package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mia/apps/backend/internal/bootstrap"
	"mia/apps/backend/internal/cache"
	"mia/apps/backend/internal/config"
	"mia/apps/backend/internal/db"
	"mia/apps/backend/internal/logging"
	"mia/apps/backend/internal/metrics"
	"mia/apps/backend/internal/seed"
	"mia/apps/backend/internal/server"
	"mia/apps/backend/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		stores bootstrap.Stores
		ready  func(context.Context) error
	)
	if cfg.UseInMemoryStore {
		fixture, err := seed.Load(cfg.SeedPath)
		if err != nil {
			logger.Fatal("seed load failed", zap.Error(err))
		}
		stores = bootstrap.MemoryStores(fixture)
		logger.Info("serving from in-memory stores", zap.String("seed", cfg.SeedPath))
	} else {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connect failed", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("database ping failed", zap.Error(err))
		}
		if err := db.ValidateRuntimeSchema(ctx, pool); err != nil {
			logger.Fatal("database schema mismatch", zap.Error(err))
		}
		stores = bootstrap.PostgresStores(store.New(pool, logger.Named("store")))
		ready = pool.Ping
	}

	var broadcaster cache.Broadcaster
	if cfg.RedisURL != "" {
		redisBroadcaster, err := cache.NewRedisBroadcaster(ctx, cfg.RedisURL, cfg.CacheChannel)
		if err != nil {
			logger.Fatal("redis connect failed", zap.Error(err))
		}
		defer func() { _ = redisBroadcaster.Close() }()
		broadcaster = redisBroadcaster
	}
	bus := cache.NewBus(broadcaster, logger.Named("cache"))

	m := metrics.New()
	runtime, err := bootstrap.Build(cfg, stores, bootstrap.NewGenerator(cfg, logger.Named("llm")), bus, m, logger)
	if err != nil {
		logger.Fatal("pipeline setup failed", zap.Error(err))
	}

	go func() {
		if err := bus.Listen(ctx); err != nil {
			logger.Error("cache invalidation listener stopped", zap.Error(err))
		}
	}()

	app := server.New(cfg, server.Deps{
		Chat:     runtime.Service,
		Catalog:  runtime.Engine,
		Clinics:  runtime.Clinics,
		Patterns: stores.Patterns,
		Prompts:  stores.Prompts,
		Bus:      bus,
		Metrics:  m,
		Ready:    ready,
	}, logger.Named("http"))
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("mia api listening", zap.String("addr", "http://localhost:"+cfg.AppPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
