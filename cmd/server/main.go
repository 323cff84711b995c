package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"coinimage/internal/coin_image"
	"coinimage/internal/coin_registry"
	"coinimage/internal/config"
	httphandlers "coinimage/internal/http"
	"coinimage/internal/logger"
	"coinimage/internal/object_store"
	"coinimage/internal/origin"
	"coinimage/internal/telemetry"
	"coinimage/internal/warmup"
)

const serviceName = "coinimage"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OtelEndpoint, cfg.OtelEnabled)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	log.Info("Starting coin image server",
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.StoreType),
		zap.String("origin", cfg.OriginBaseURL),
		zap.Bool("tracing", cfg.IsTracingEnabled()),
	)

	registry, err := coin_registry.LoadFile(cfg.OriginBaseURL, cfg.CoinTablePath)
	if err != nil {
		log.Fatal("Failed to load coin table", zap.String("path", cfg.CoinTablePath), zap.Error(err))
	}
	log.Info("Coin table loaded", zap.Int("coins", registry.Len()))

	store, err := object_store.NewStore(cfg.StoreOptions(), log)
	if err != nil {
		log.Fatal("Failed to initialize object store", zap.Error(err))
	}

	fetcher := origin.New(cfg.OriginTimeout, cfg.OriginMaxBytes)
	service := coin_image.New(registry, store, fetcher, log)

	handlers := httphandlers.New(cfg, log, service, store)

	if len(cfg.WarmupCoins) > 0 {
		sizes, err := warmup.ParseSizes(cfg.WarmupSizes)
		if err != nil {
			log.Fatal("Invalid warmup sizes", zap.Error(err))
		}
		go warmup.Run(ctx, service, cfg.WarmupCoins, sizes, cfg.WarmupWorkers, log)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handlers.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	<-ctx.Done()

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
