package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/portfolio-tracker/internal/ledger"
	"github.com/portfolio-tracker/internal/risk"
	"github.com/portfolio-tracker/internal/service"
	"github.com/portfolio-tracker/internal/source"
)

func sampleHoldings() *service.Holdings {
	led := ledger.New("USD", "BTC")
	btc := ledger.Holding{
		Key:         ledger.Key{Source: "kraken", Asset: "BTC"},
		Kind:        source.KindExchange,
		Amount:      decimal.NewFromInt(2),
		PriceFiat:   decimal.NewNullDecimal(decimal.NewFromInt(60000)),
		PriceCrypto: decimal.NewNullDecimal(decimal.NewFromInt(1)),
	}
	eth := ledger.Holding{
		Key:         ledger.Key{Source: "etherscan", Asset: "ETH"},
		Kind:        source.KindAddress,
		Amount:      decimal.RequireFromString("1.5"),
		PriceFiat:   decimal.NewNullDecimal(decimal.NewFromInt(3000)),
		PriceCrypto: decimal.NewNullDecimal(decimal.RequireFromString("0.05")),
	}
	led.Upsert(btc)
	led.Upsert(eth)

	totalFiat, totalCrypto := led.Totals()
	return &service.Holdings{
		Ledger:      led,
		TotalFiat:   totalFiat,
		TotalCrypto: totalCrypto,
		Significant: led.Rows(),
	}
}

func TestWriteHoldings(t *testing.T) {
	var buf strings.Builder
	WriteHoldings(&buf, sampleHoldings())
	out := buf.String()

	assert.Contains(t, out, "Total USD: 124500.00")
	assert.Contains(t, out, "Total BTC: 2.075")
	assert.Contains(t, out, "kraken")
	assert.Contains(t, out, "etherscan")

	// Descending fiat value: the BTC row precedes the ETH row.
	assert.Less(t, strings.Index(out, "kraken"), strings.Index(out, "etherscan"))
	assert.NotContains(t, out, "Skipped sources")
}

func TestWriteHoldings_SkippedSources(t *testing.T) {
	h := sampleHoldings()
	h.Failures = []ledger.SourceFailure{{Source: "bitfinex", Reason: "upstream error"}}

	var buf strings.Builder
	WriteHoldings(&buf, h)

	assert.Contains(t, buf.String(), "Skipped sources (1):")
	assert.Contains(t, buf.String(), "bitfinex")
}

func TestWriteRisk(t *testing.T) {
	snapshot := &risk.Snapshot{
		Days: 25,
		From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
		Volatility: []risk.AssetVolatility{
			{Key: ledger.Key{Source: "kraken", Asset: "BTC"}, Pct: 0.0312, Fiat: 3744.12, Samples: 20},
		},
		Daily: risk.PnLStats{
			Worst:    risk.Extreme{Date: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), Value: -2500},
			Best:     risk.Extreme{Date: time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC), Value: 3100},
			WorstPct: -0.0201,
			BestPct:  0.0249,
		},
		ESDaily:  risk.Shortfall{Confidence: 0.975},
		ESWeekly: risk.Shortfall{Confidence: 0.975},
	}

	var buf strings.Builder
	WriteRisk(&buf, snapshot, "USD")
	out := buf.String()

	assert.Contains(t, out, "25 days of aligned history, 2026-08-01 to 2026-08-25")
	assert.Contains(t, out, "3.12%")
	assert.Contains(t, out, "Worst day  2026-08-10")
	assert.Contains(t, out, "(-2.01%)")
	assert.Contains(t, out, "n/a (history too short)")
}

func TestWriteRisk_DefinedShortfall(t *testing.T) {
	snapshot := &risk.Snapshot{
		Days:     60,
		From:     time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		ESDaily:  risk.Shortfall{Value: -1234.5, Samples: 1, Confidence: 0.975},
		ESWeekly: risk.Shortfall{Value: -2345.6, Samples: 1, Confidence: 0.975},
	}

	var buf strings.Builder
	WriteRisk(&buf, snapshot, "USD")

	assert.Contains(t, buf.String(), "1-day -1234.50 USD")
	assert.Contains(t, buf.String(), "7-day -2345.60 USD")
}
