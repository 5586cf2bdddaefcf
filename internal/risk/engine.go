package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/portfolio-tracker/internal/cache"
	"github.com/portfolio-tracker/internal/config"
	"github.com/portfolio-tracker/internal/ledger"
	"github.com/portfolio-tracker/internal/logging"
	"github.com/portfolio-tracker/internal/source"
)

// PnLStats summarizes one return horizon of the portfolio P&L.
type PnLStats struct {
	Worst    Extreme `json:"worst"`
	Best     Extreme `json:"best"`
	WorstPct float64 `json:"worstPct"`
	BestPct  float64 `json:"bestPct"`
}

// Snapshot is one risk report, derived and ephemeral. It is recomputed from
// live data on every call and never persisted.
type Snapshot struct {
	CycleID    uuid.UUID         `json:"cycleId"`
	Days       int               `json:"days"`
	From       time.Time         `json:"from"`
	To         time.Time         `json:"to"`
	Volatility []AssetVolatility `json:"volatility"`
	Daily      PnLStats          `json:"daily"`
	Weekly     PnLStats          `json:"weekly"`
	ESDaily    Shortfall         `json:"esDaily"`
	ESWeekly   Shortfall         `json:"esWeekly"`
}

// Engine derives risk snapshots from a resolved ledger and the sources'
// price histories.
type Engine struct {
	cfg     *config.PortfolioConfig
	fetcher *historyFetcher
}

// NewEngine creates a risk engine over the same adapter set the aggregator
// uses, plus the shared price cache.
func NewEngine(cfg *config.PortfolioConfig, adapters map[string]source.Adapter, priceCache cache.PriceCache) *Engine {
	return &Engine{
		cfg: cfg,
		fetcher: &historyFetcher{
			adapters:  adapters,
			reference: cfg.ReferenceSource,
			cache:     priceCache,
		},
	}
}

// Snapshot computes the full risk report for an aggregated, price-resolved
// ledger: significant rows first, then the aligned matrix, then returns,
// volatility, portfolio P&L extremes and expected shortfall.
func (e *Engine) Snapshot(ctx context.Context, led *ledger.Ledger) (*Snapshot, error) {
	logger := logging.FromContext(ctx)

	rows := led.Significant(decimal.NewFromFloat(e.cfg.SignificantThreshold))

	matrix, err := e.fetcher.BuildMatrix(ctx, rows, led.BaseFiat)
	if err != nil {
		return nil, err
	}

	daily := DailyReturns(matrix)
	weekly := PeriodReturns(matrix, PeriodReturnLag)

	totalFiat, _ := led.Totals()
	total := totalFiat.InexactFloat64()

	dailyPnL := PortfolioPnL(daily, rows)
	weeklyPnL := PortfolioPnL(weekly, rows)

	snapshot := &Snapshot{
		CycleID:    led.CycleID,
		Days:       matrix.Len(),
		From:       matrix.Dates[0],
		To:         matrix.Dates[matrix.Len()-1],
		Volatility: Volatility(daily, rows, VolatilityWindow),
		Daily:      pnlStats(dailyPnL, total),
		Weekly:     pnlStats(weeklyPnL, total),
		ESDaily:    ExpectedShortfall(dailyPnL, DefaultConfidence),
		ESWeekly:   ExpectedShortfall(weeklyPnL, DefaultConfidence),
	}

	logger.WithFields(map[string]interface{}{
		"cycleId": led.CycleID.String(),
		"days":    snapshot.Days,
		"assets":  len(matrix.Keys),
	}).Info("Risk snapshot computed")

	return snapshot, nil
}

func pnlStats(pnl *PnLSeries, totalFiat float64) PnLStats {
	worst, best := WorstBest(pnl)
	stats := PnLStats{Worst: worst, Best: best}
	if totalFiat != 0 {
		stats.WorstPct = worst.Value / totalFiat
		stats.BestPct = best.Value / totalFiat
	}
	return stats
}
