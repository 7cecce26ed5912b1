package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/utakatalp/league-ratings/internal/api"
	"github.com/utakatalp/league-ratings/internal/cache"
	"github.com/utakatalp/league-ratings/internal/config"
	"github.com/utakatalp/league-ratings/internal/dataset"
	"github.com/utakatalp/league-ratings/internal/store"
	"github.com/utakatalp/league-ratings/internal/telemetry"
)

func main() {
	cfg := config.Load()

	logger, err := telemetry.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	params, err := config.LoadRatingParams(cfg.RatingConfigPath)
	if err != nil {
		logger.Fatal("Invalid rating parameters", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hcfg := api.Config{
		Source:   dataset.Dir{Root: cfg.DataDir},
		Params:   params,
		Logger:   logger,
		CacheTTL: cfg.CacheTTL,
	}

	if cfg.DBDriver != "" {
		st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to open store", zap.Error(err))
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate store", zap.Error(err))
		}
		hcfg.Store = st
	}

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rc.Close()
		hcfg.Cache = rc
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.New(hcfg).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Listening", zap.String("addr", srv.Addr), zap.String("data", cfg.DataDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
}
