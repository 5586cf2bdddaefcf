// Package main provides the one-shot console report: aggregate all
// configured sources, resolve address-type prices, and print the balance
// table and risk section.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/portfolio-tracker/internal/cache"
	"github.com/portfolio-tracker/internal/config"
	apperrors "github.com/portfolio-tracker/internal/errors"
	"github.com/portfolio-tracker/internal/logging"
	"github.com/portfolio-tracker/internal/report"
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

	adapters, err := source.BuildAll(&cfg.Portfolio, cfg.HTTP)
	if err != nil {
		logger.Fatalf("Failed to build sources: %v", err)
	}

	priceCache := cache.FromConfig(&cfg.Cache)
	portfolio := service.NewPortfolioService(&cfg.Portfolio, adapters, priceCache)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	holdings, err := portfolio.Refresh(ctx)
	if err != nil {
		logger.Fatalf("Aggregation failed: %v", err)
	}
	report.WriteHoldings(os.Stdout, holdings)

	snapshot, err := portfolio.RiskSnapshot(ctx, holdings.Ledger)
	if err != nil {
		// A short or empty history is not worth failing the balance report over.
		if apperrors.IsInsufficientHistory(err) {
			logger.WithError(err).Warn("Skipping risk section")
			return
		}
		logger.Fatalf("Risk computation failed: %v", err)
	}
	report.WriteRisk(os.Stdout, snapshot, cfg.Portfolio.BaseFiat)
}
