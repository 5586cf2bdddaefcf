// Package main provides the API server entry point for the portfolio
// tracker service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portfolio-tracker/internal/api"
	"github.com/portfolio-tracker/internal/cache"
	"github.com/portfolio-tracker/internal/config"
	"github.com/portfolio-tracker/internal/logging"
	"github.com/portfolio-tracker/internal/service"
	"github.com/portfolio-tracker/internal/source"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"sources":   len(cfg.Portfolio.Sources),
		"baseFiat":  cfg.Portfolio.BaseFiat,
		"reference": cfg.Portfolio.ReferenceSource,
	}).Info("Starting portfolio tracker")

	adapters, err := source.BuildAll(&cfg.Portfolio, cfg.HTTP)
	if err != nil {
		logger.Fatalf("Failed to build sources: %v", err)
	}

	priceCache := cache.FromConfig(&cfg.Cache)
	portfolio := service.NewPortfolioService(&cfg.Portfolio, adapters, priceCache)
	server := api.NewServer(&cfg.Server, portfolio, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Graceful shutdown failed")
		}
	}
}
