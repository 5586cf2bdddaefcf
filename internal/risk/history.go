// Package risk implements the risk engine: the aligned price history matrix
// and the return, volatility, P&L and expected-shortfall statistics derived
// from it. Nothing here persists between calls; every snapshot is computed
// fresh from the current ledger.
package risk

import (
	"context"
	"sort"
	"time"

	"github.com/portfolio-tracker/internal/cache"
	apperrors "github.com/portfolio-tracker/internal/errors"
	"github.com/portfolio-tracker/internal/ledger"
	"github.com/portfolio-tracker/internal/logging"
	"github.com/portfolio-tracker/internal/source"
)

// MinAlignedDates is the minimum overlap needed to compute a single return.
const MinAlignedDates = 2

// Matrix is the multi-asset daily close matrix, aligned on the intersection
// of available dates. Dates are strictly ascending; every series has exactly
// one close per date.
type Matrix struct {
	Dates  []time.Time
	Keys   []ledger.Key
	Closes map[ledger.Key][]float64
}

// Len returns the number of aligned dates.
func (m *Matrix) Len() int { return len(m.Dates) }

// historyFetcher loads one raw close series, cache first.
type historyFetcher struct {
	adapters  map[string]source.Adapter
	reference string
	cache     cache.PriceCache
}

// fetch loads the daily closes that price the given row. Address-type rows
// substitute the reference source's series for the same asset; they are
// never fetched from the address source itself, which has no price feed.
func (f *historyFetcher) fetch(ctx context.Context, row ledger.Holding, baseFiat string) ([]source.Close, error) {
	sourceName := row.Key.Source
	if row.Kind == source.KindAddress {
		sourceName = f.reference
	}

	adapter, ok := f.adapters[sourceName]
	if !ok {
		return nil, apperrors.NewUnresolvedReferenceError(sourceName, row.Key.Asset,
			"history source is not among the configured sources")
	}
	exchange, ok := adapter.(source.ExchangeAdapter)
	if !ok {
		return nil, apperrors.NewUnresolvedReferenceError(sourceName, row.Key.Asset,
			"history source must be exchange-type")
	}

	key := cache.HistoryKey(sourceName, row.Key.Asset, baseFiat)
	if closes, ok := f.cache.GetHistory(ctx, key); ok {
		return closes, nil
	}

	closes, err := exchange.GetHistory(ctx, row.Key.Asset, baseFiat)
	if err != nil {
		return nil, err
	}
	f.cache.SetHistory(ctx, key, closes)
	return closes, nil
}

// BuildMatrix fetches the close series for every non-fiat significant row
// and aligns them on the intersection of their dates. Dates missing from any
// series are dropped, never filled.
func (f *historyFetcher) BuildMatrix(ctx context.Context, rows []ledger.Holding, baseFiat string) (*Matrix, error) {
	logger := logging.FromContext(ctx)

	raw := make(map[ledger.Key]map[time.Time]float64)
	var keys []ledger.Key

	for _, row := range rows {
		if source.IsFiat(row.Key.Asset) {
			continue
		}

		closes, err := f.fetch(ctx, row, baseFiat)
		if err != nil {
			return nil, err
		}

		byDate := make(map[time.Time]float64, len(closes))
		for _, c := range closes {
			byDate[c.Date] = c.Price
		}
		raw[row.Key] = byDate
		keys = append(keys, row.Key)
	}

	if len(keys) == 0 {
		return nil, apperrors.NewInsufficientHistoryError(MinAlignedDates, 0)
	}

	// Inner join on date: keep only dates present in every series.
	var aligned []time.Time
	for date := range raw[keys[0]] {
		inAll := true
		for _, k := range keys[1:] {
			if _, ok := raw[k][date]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			aligned = append(aligned, date)
		}
	}
	sort.Slice(aligned, func(i, j int) bool { return aligned[i].Before(aligned[j]) })

	if len(aligned) < MinAlignedDates {
		return nil, apperrors.NewInsufficientHistoryError(MinAlignedDates, len(aligned))
	}

	matrix := &Matrix{
		Dates:  aligned,
		Keys:   keys,
		Closes: make(map[ledger.Key][]float64, len(keys)),
	}
	for _, k := range keys {
		series := make([]float64, len(aligned))
		for i, date := range aligned {
			series[i] = raw[k][date]
		}
		matrix.Closes[k] = series
	}

	logger.WithFields(map[string]interface{}{
		"assets": len(keys),
		"days":   len(aligned),
	}).Debug("Price history matrix aligned")

	return matrix, nil
}
