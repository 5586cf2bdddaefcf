// Package service wires the aggregation pipeline: fetch balances, resolve
// address-type prices, compute totals, and derive the risk snapshot.
package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/portfolio-tracker/internal/cache"
	"github.com/portfolio-tracker/internal/config"
	"github.com/portfolio-tracker/internal/ledger"
	"github.com/portfolio-tracker/internal/risk"
	"github.com/portfolio-tracker/internal/source"
)

// PortfolioService owns one adapter set and rebuilds the ledger from live
// data on every call. Nothing is carried over between refreshes.
type PortfolioService struct {
	cfg        *config.PortfolioConfig
	aggregator *ledger.Aggregator
	resolver   *ledger.Resolver
	engine     *risk.Engine
}

// NewPortfolioService builds the service from pre-built adapters and the
// shared price cache.
func NewPortfolioService(cfg *config.PortfolioConfig, adapters map[string]source.Adapter, priceCache cache.PriceCache) *PortfolioService {
	return &PortfolioService{
		cfg:        cfg,
		aggregator: ledger.NewAggregator(cfg, adapters),
		resolver:   ledger.NewResolver(cfg.ReferenceSource, adapters, priceCache),
		engine:     risk.NewEngine(cfg, adapters, priceCache),
	}
}

// Holdings is one refreshed portfolio state.
type Holdings struct {
	Ledger      *ledger.Ledger
	Failures    []ledger.SourceFailure
	TotalFiat   decimal.Decimal
	TotalCrypto decimal.NullDecimal
	Significant []ledger.Holding
}

// Refresh aggregates all sources, resolves address-type prices against the
// reference source and computes totals. Configuration and reference errors
// abort the cycle; per-source failures are reported in Holdings.Failures.
func (s *PortfolioService) Refresh(ctx context.Context) (*Holdings, error) {
	led, failures, err := s.aggregator.Aggregate(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.resolver.ResolveAddressPrices(ctx, led); err != nil {
		return nil, err
	}

	totalFiat, totalCrypto := led.Totals()
	return &Holdings{
		Ledger:      led,
		Failures:    failures,
		TotalFiat:   totalFiat,
		TotalCrypto: totalCrypto,
		Significant: led.Significant(decimal.NewFromFloat(s.cfg.SignificantThreshold)),
	}, nil
}

// RiskSnapshot derives the risk report for a refreshed ledger.
func (s *PortfolioService) RiskSnapshot(ctx context.Context, led *ledger.Ledger) (*risk.Snapshot, error) {
	return s.engine.Snapshot(ctx, led)
}

// Config exposes the portfolio configuration for presentation layers.
func (s *PortfolioService) Config() *config.PortfolioConfig {
	return s.cfg
}
