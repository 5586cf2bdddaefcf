// Package source defines the balance source contract and its implementations.
// Exchange-type sources report balances with native price discovery; address-type
// sources report a single on-chain balance and borrow prices from a reference
// exchange during ledger resolution.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes the two source capabilities.
type Kind int

const (
	// KindExchange is a custodial venue with balances and native prices
	KindExchange Kind = iota
	// KindAddress is a public ledger balance lookup with no price feed
	KindAddress
)

func (k Kind) String() string {
	if k == KindAddress {
		return "address"
	}
	return "exchange"
}

// Balance is one asset position as reported by a source. Price fields are
// unset for address-type sources until ledger resolution fills them in.
type Balance struct {
	Asset       string
	Amount      decimal.Decimal
	PriceFiat   decimal.NullDecimal
	PriceCrypto decimal.NullDecimal
}

// PriceQuote is the price of one asset in the configured numeraires.
type PriceQuote struct {
	Fiat   decimal.Decimal
	Crypto decimal.NullDecimal
}

// Close is one daily close in a price history, ascending by date.
type Close struct {
	Date  time.Time
	Price float64
}

// Adapter is the capability common to every source.
type Adapter interface {
	Name() string
	Kind() Kind
}

// ExchangeAdapter is implemented by exchange-type sources.
type ExchangeAdapter interface {
	Adapter

	// GetBalances returns all nonzero holdings, each priced in baseFiat and,
	// when baseCrypto is non-empty, in baseCrypto.
	GetBalances(ctx context.Context, baseFiat, baseCrypto string) ([]Balance, error)

	// GetPrice quotes a single asset in the configured numeraires.
	GetPrice(ctx context.Context, asset, baseFiat, baseCrypto string) (PriceQuote, error)

	// GetHistory returns the daily closes of asset priced in baseFiat,
	// ascending by date, without gap filling.
	GetHistory(ctx context.Context, asset, baseFiat string) ([]Close, error)
}

// AddressAdapter is implemented by address-type sources.
type AddressAdapter interface {
	Adapter

	// GetBalance returns the single on-chain holding, amount only.
	GetBalance(ctx context.Context) (Balance, error)
}

// fiatSet mirrors the supported fiat currencies; assets in this set quote
// at exactly 1 against the base fiat.
var fiatSet = map[string]bool{"USD": true, "EUR": true, "GBP": true}

// IsFiat reports whether the (normalized) asset is a recognized fiat currency.
func IsFiat(asset string) bool {
	return fiatSet[asset]
}

// krakenAliases maps venue-specific asset codes to common tickers.
var krakenAliases = map[string]string{
	"XBT":  "BTC",
	"XXBT": "BTC",
	"XETH": "ETH",
	"XXRP": "XRP",
	"XXLM": "XLM",
	"XLTC": "LTC",
	"ZUSD": "USD",
	"ZEUR": "EUR",
	"ZGBP": "GBP",
	"ETH2": "ETH",
}

// NormalizeTicker maps a venue asset code to its common base ticker.
// Staking-locked variants (ETH2.S, DOT.S, ATOM.M, BTC.F and the like) are
// collapsed to their base ticker so price lookups always hit a spot pair.
func NormalizeTicker(asset string) string {
	asset = strings.ToUpper(strings.TrimSpace(asset))

	// Suffixed variants: everything after the first dot is a lock marker.
	if i := strings.IndexByte(asset, '.'); i > 0 {
		asset = asset[:i]
	}

	if alias, ok := krakenAliases[asset]; ok {
		return alias
	}
	return asset
}
