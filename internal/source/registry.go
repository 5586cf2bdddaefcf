package source

import (
	"fmt"
	"sort"
	"strings"

	"github.com/portfolio-tracker/internal/config"
	apperrors "github.com/portfolio-tracker/internal/errors"
)

// Factory constructs one adapter from its source configuration.
type Factory func(cfg config.SourceConfig, httpCfg config.HTTPConfig) (Adapter, error)

// registry is the closed set of known source names. Dispatch happens here,
// at configuration load, never by name at call time.
var registry = map[string]Factory{
	"kraken": func(cfg config.SourceConfig, httpCfg config.HTTPConfig) (Adapter, error) {
		return NewKraken(loadOrEmpty(cfg.Name, cfg.CredentialPath), httpCfg), nil
	},
	"bitfinex": func(cfg config.SourceConfig, httpCfg config.HTTPConfig) (Adapter, error) {
		return NewBitfinex(loadOrEmpty(cfg.Name, cfg.CredentialPath), httpCfg), nil
	},
	"etherscan": func(cfg config.SourceConfig, httpCfg config.HTTPConfig) (Adapter, error) {
		if cfg.Address == "" {
			return nil, apperrors.NewConfigurationError("etherscan source requires an address")
		}
		return NewEtherscan(cfg.Address, loadOrEmpty(cfg.Name, cfg.CredentialPath).Key, httpCfg)
	},
	"blockchain": func(cfg config.SourceConfig, httpCfg config.HTTPConfig) (Adapter, error) {
		if cfg.Address == "" {
			return nil, apperrors.NewConfigurationError("blockchain source requires an address")
		}
		return NewBlockchain(cfg.Address, httpCfg), nil
	},
	"ethereum-rpc": func(cfg config.SourceConfig, httpCfg config.HTTPConfig) (Adapter, error) {
		if cfg.RPCURL == "" || cfg.Address == "" {
			return nil, apperrors.NewConfigurationError("ethereum-rpc source requires an RPC URL and an address")
		}
		return NewEthereumRPC(cfg.RPCURL, cfg.Address)
	},
}

// KnownSources returns the sorted list of registered source names.
func KnownSources() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the adapter for one configured source. An unknown name
// is a configuration error.
func Build(cfg config.SourceConfig, httpCfg config.HTTPConfig) (Adapter, error) {
	factory, ok := registry[cfg.Name]
	if !ok {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf(
			"unknown source %q (known: %s)", cfg.Name, strings.Join(KnownSources(), ", ")))
	}
	return factory(cfg, httpCfg)
}

// BuildAll constructs every configured adapter, keyed by source name, and
// validates the reference source: it must be configured and exchange-type
// whenever an address-type source needs its prices.
func BuildAll(pcfg *config.PortfolioConfig, httpCfg config.HTTPConfig) (map[string]Adapter, error) {
	adapters := make(map[string]Adapter, len(pcfg.Sources))
	hasAddressSource := false

	for _, sc := range pcfg.Sources {
		adapter, err := Build(sc, httpCfg)
		if err != nil {
			return nil, err
		}
		adapters[sc.Name] = adapter
		if adapter.Kind() == KindAddress {
			hasAddressSource = true
		}
	}

	if hasAddressSource {
		ref, ok := adapters[pcfg.ReferenceSource]
		if !ok {
			return nil, apperrors.NewUnresolvedReferenceError(pcfg.ReferenceSource, "",
				"reference source is not among the configured sources")
		}
		if ref.Kind() != KindExchange {
			return nil, apperrors.NewUnresolvedReferenceError(pcfg.ReferenceSource, "",
				"reference source must be exchange-type")
		}
	}

	return adapters, nil
}
