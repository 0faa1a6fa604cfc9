// cmd/clipnotes/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipnotes/clipnotes/internal/api"
	"github.com/clipnotes/clipnotes/internal/clips"
	"github.com/clipnotes/clipnotes/internal/config"
	"github.com/clipnotes/clipnotes/internal/database"
	"github.com/clipnotes/clipnotes/internal/insights"
	"github.com/clipnotes/clipnotes/internal/logger"
	"github.com/clipnotes/clipnotes/internal/usage"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("CLIPNOTES_CONFIG"), "path to YAML config file")
	flag.Parse()

	bootLog, _ := zap.NewProduction()
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal("failed to load config", zap.Error(err))
	}

	log, err := logger.New(cfg.Server.LogLevel)
	if err != nil {
		bootLog.Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewPostgres(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.CreateTables(ctx); err != nil {
		cancel()
		log.Fatal("failed to create tables", zap.Error(err))
	}
	cancel()

	clipStore := clips.NewPostgresStore(db.DB(), log)

	apiMetrics := api.NewMetrics()
	insightMetrics := insights.NewMetrics(apiMetrics.Registry())

	aggregator := insights.NewAggregator(clipStore, log)
	cacheTTL := time.Duration(cfg.Insights.CacheTTLSeconds) * time.Second

	var opts []insights.ServiceOption
	if cfg.Insights.ShareBaseURL != "" {
		shareStore := insights.NewPostgresShareStore(db.DB(), cfg.Insights.ShareTokenSalt, log)
		opts = append(opts, insights.WithShareStore(shareStore, cfg.Insights.ShareBaseURL))
	} else {
		log.Info("share base URL not configured; insight sharing disabled")
	}

	insightService := insights.NewService(aggregator, cacheTTL, insightMetrics, log, opts...)
	usageService := usage.NewService(db.DB())
	counter := api.NewRequestCounter(db.DB())

	server := api.NewServer(cfg, log, clipStore, insightService, usageService, apiMetrics, counter)

	// Reload config on file changes so rate-limit tweaks don't need restarts.
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, cfg, log, server.ApplyConfig)
		if err != nil {
			log.Warn("config watcher unavailable", zap.Error(err))
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
