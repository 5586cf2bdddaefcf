package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/portfolio-tracker/internal/config"
	apperrors "github.com/portfolio-tracker/internal/errors"
	"github.com/portfolio-tracker/internal/logging"
	"github.com/portfolio-tracker/internal/source"
)

// SourceFailure records one source that was skipped during aggregation.
type SourceFailure struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}

// Aggregator builds ledger snapshots from the configured sources.
type Aggregator struct {
	cfg      *config.PortfolioConfig
	adapters map[string]source.Adapter
	order    []string
}

// NewAggregator creates an aggregator over pre-built adapters. The adapter
// set is expected to come from source.BuildAll, which already rejected
// unknown names and validated the reference source.
func NewAggregator(cfg *config.PortfolioConfig, adapters map[string]source.Adapter) *Aggregator {
	order := make([]string, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		order = append(order, sc.Name)
	}
	return &Aggregator{
		cfg:      cfg,
		adapters: adapters,
		order:    order,
	}
}

// fetchResult is one source's balance fetch, joined before merging.
type fetchResult struct {
	name     string
	kind     source.Kind
	balances []source.Balance
	err      error
}

// Aggregate queries every configured source once, concurrently, and merges
// the results into a fresh ledger in configured-source order, so two runs
// against unchanged sources produce identical rows. A failing source is
// isolated: it is reported in the returned failures, not fatal to the cycle.
// Zero-amount balances are excluded upstream by the adapters.
func (a *Aggregator) Aggregate(ctx context.Context) (*Ledger, []SourceFailure, error) {
	logger := logging.FromContext(ctx)

	results := make(map[string]fetchResult, len(a.order))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range a.order {
		adapter, ok := a.adapters[name]
		if !ok {
			return nil, nil, apperrors.NewConfigurationError(fmt.Sprintf("no adapter built for source %q", name))
		}

		wg.Add(1)
		go func(name string, adapter source.Adapter) {
			defer wg.Done()
			result := a.fetchOne(ctx, name, adapter)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, adapter)
	}
	wg.Wait()

	led := New(a.cfg.BaseFiat, a.cfg.BaseCrypto)
	var failures []SourceFailure

	// Merge single-threaded in configured order for deterministic rows.
	for _, name := range a.order {
		result := results[name]
		if result.err != nil {
			logger.WithError(result.err).WithField("source", name).Error("Source skipped")
			failures = append(failures, SourceFailure{
				Source: name,
				Err:    result.err,
				Reason: result.err.Error(),
			})
			continue
		}

		for _, b := range result.balances {
			key := Key{Source: name, Asset: b.Asset}
			if _, exists := led.Holding(key); exists {
				return nil, nil, apperrors.NewUpstreamError(name,
					fmt.Errorf("duplicate asset %s in source response", b.Asset))
			}
			led.Upsert(Holding{
				Key:         key,
				Kind:        result.kind,
				Amount:      b.Amount,
				PriceFiat:   b.PriceFiat,
				PriceCrypto: b.PriceCrypto,
			})
		}
	}

	logger.WithFields(map[string]interface{}{
		"cycleId": led.CycleID.String(),
		"rows":    led.Len(),
		"skipped": len(failures),
	}).Info("Aggregation cycle complete")

	return led, failures, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, name string, adapter source.Adapter) fetchResult {
	switch ad := adapter.(type) {
	case source.ExchangeAdapter:
		balances, err := ad.GetBalances(ctx, a.cfg.BaseFiat, a.cfg.BaseCrypto)
		return fetchResult{name: name, kind: source.KindExchange, balances: nonZero(balances), err: err}
	case source.AddressAdapter:
		balance, err := ad.GetBalance(ctx)
		if err != nil {
			return fetchResult{name: name, kind: source.KindAddress, err: err}
		}
		return fetchResult{name: name, kind: source.KindAddress, balances: nonZero([]source.Balance{balance})}
	default:
		return fetchResult{name: name, err: apperrors.NewConfigurationError(
			fmt.Sprintf("source %q implements neither capability", name))}
	}
}

// nonZero drops zero-amount positions that slipped through an adapter.
func nonZero(balances []source.Balance) []source.Balance {
	filtered := balances[:0]
	for _, b := range balances {
		if !b.Amount.IsZero() {
			filtered = append(filtered, b)
		}
	}
	return filtered
}
