// Package report renders the aggregated ledger and risk snapshot for the
// console. Pure presentation: everything printed here was computed upstream.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/portfolio-tracker/internal/ledger"
	"github.com/portfolio-tracker/internal/risk"
	"github.com/portfolio-tracker/internal/service"
)

const dateLayout = "2006-01-02"

// WriteHoldings prints the date-stamped balance table: totals first, then
// the significant holdings sorted by descending fiat value, then any
// sources skipped this cycle.
func WriteHoldings(w io.Writer, h *service.Holdings) {
	led := h.Ledger

	fmt.Fprintf(w, "Portfolio balance  %s  (cycle %s)\n",
		led.Timestamp.Format("2006-01-02 15:04:05 MST"), shortID(led))
	fmt.Fprintf(w, "Total %s: %s\n", led.BaseFiat, h.TotalFiat.StringFixed(2))
	if h.TotalCrypto.Valid {
		fmt.Fprintf(w, "Total %s: %s\n", led.BaseCrypto, h.TotalCrypto.Decimal.String())
	}
	fmt.Fprintln(w)

	rows := make([]ledger.Holding, len(h.Significant))
	copy(rows, h.Significant)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ValueFiat().GreaterThan(rows[j].ValueFiat())
	})

	cryptoCol := ""
	if led.BaseCrypto != "" {
		cryptoCol = fmt.Sprintf("  %12s", "value "+led.BaseCrypto)
	}
	fmt.Fprintf(w, "%-12s %-6s %16s %16s %14s%s\n",
		"source", "asset", "amount", "price "+led.BaseFiat, "value "+led.BaseFiat, cryptoCol)
	fmt.Fprintln(w, strings.Repeat("-", 68+len(cryptoCol)))

	for _, row := range rows {
		price := "-"
		if row.PriceFiat.Valid {
			price = row.PriceFiat.Decimal.StringFixed(2)
		}
		line := fmt.Sprintf("%-12s %-6s %16s %16s %14s",
			row.Key.Source, row.Key.Asset, row.Amount.String(), price, row.ValueFiat().StringFixed(2))
		if led.BaseCrypto != "" {
			if v := row.ValueCrypto(); v.Valid {
				line += fmt.Sprintf("  %12s", v.Decimal.String())
			} else {
				line += fmt.Sprintf("  %12s", "-")
			}
		}
		fmt.Fprintln(w, line)
	}

	if len(h.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Skipped sources (%d):\n", len(h.Failures))
		for _, f := range h.Failures {
			fmt.Fprintf(w, "  %-12s %s\n", f.Source, f.Reason)
		}
	}
}

// WriteRisk prints the risk section: history span, per-asset volatility,
// worst and best day and week, and the expected shortfalls.
func WriteRisk(w io.Writer, s *risk.Snapshot, baseFiat string) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Risk  (%d days of aligned history, %s to %s)\n",
		s.Days, s.From.Format(dateLayout), s.To.Format(dateLayout))

	fmt.Fprintf(w, "%-12s %-6s %10s %14s\n", "source", "asset", "vol", "vol "+baseFiat)
	fmt.Fprintln(w, strings.Repeat("-", 46))
	for _, v := range s.Volatility {
		fmt.Fprintf(w, "%-12s %-6s %9.2f%% %14.2f\n",
			v.Key.Source, v.Key.Asset, v.Pct*100, v.Fiat)
	}
	fmt.Fprintln(w)

	writeExtremes(w, "day", baseFiat, s.Daily)
	writeExtremes(w, "week", baseFiat, s.Weekly)

	fmt.Fprintf(w, "Expected shortfall (%.1f%%): 1-day %s, 7-day %s\n",
		s.ESDaily.Confidence*100, shortfall(s.ESDaily, baseFiat), shortfall(s.ESWeekly, baseFiat))
}

func writeExtremes(w io.Writer, horizon, baseFiat string, stats risk.PnLStats) {
	fmt.Fprintf(w, "Worst %-4s %s  %12.2f %s (%+.2f%%)\n",
		horizon, stats.Worst.Date.Format(dateLayout), stats.Worst.Value, baseFiat, stats.WorstPct*100)
	fmt.Fprintf(w, "Best  %-4s %s  %12.2f %s (%+.2f%%)\n",
		horizon, stats.Best.Date.Format(dateLayout), stats.Best.Value, baseFiat, stats.BestPct*100)
}

func shortfall(s risk.Shortfall, baseFiat string) string {
	if !s.Defined() {
		return "n/a (history too short)"
	}
	return fmt.Sprintf("%.2f %s", s.Value, baseFiat)
}

func shortID(led *ledger.Ledger) string {
	id := led.CycleID.String()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
