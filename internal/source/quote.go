package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "github.com/portfolio-tracker/internal/errors"
)

// ErrPairNotListed signals that a venue has no market for the requested pair.
// Callers fall back to the USD pivot or the inverted orientation; any other
// error propagates unchanged.
var ErrPairNotListed = errors.New("pair not listed")

// PairPricer fetches the last trade price of one direct market pair.
// Implemented by each exchange adapter on top of its ticker endpoint.
type PairPricer interface {
	PairPrice(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// ResolveQuote applies the shared price-tuple semantics on top of a venue's
// raw pair lookup:
//
//   - fiat assets quote at 1 against the base fiat (and at 1 against the
//     crypto numeraire when one is requested);
//   - the crypto numeraire itself quotes at exactly 1 against itself;
//   - a missing asset/fiat pair falls back to a USD pivot cross-rate;
//   - a missing asset/crypto pair falls back to the inverted orientation.
func ResolveQuote(ctx context.Context, p PairPricer, sourceName, asset, baseFiat, baseCrypto string) (PriceQuote, error) {
	asset = NormalizeTicker(asset)

	var quote PriceQuote

	if IsFiat(asset) {
		quote.Fiat = decimal.NewFromInt(1)
		if baseCrypto != "" {
			quote.Crypto = decimal.NewNullDecimal(decimal.NewFromInt(1))
		}
		return quote, nil
	}

	fiat, err := fiatPrice(ctx, p, asset, baseFiat)
	if err != nil {
		return PriceQuote{}, apperrors.NewUpstreamError(sourceName,
			fmt.Errorf("price %s/%s: %w", asset, baseFiat, err))
	}
	quote.Fiat = fiat

	if baseCrypto != "" {
		crypto, err := cryptoPrice(ctx, p, asset, baseCrypto)
		if err != nil {
			return PriceQuote{}, apperrors.NewUpstreamError(sourceName,
				fmt.Errorf("price %s/%s: %w", asset, baseCrypto, err))
		}
		quote.Crypto = decimal.NewNullDecimal(crypto)
	}

	return quote, nil
}

// fiatPrice quotes asset in baseFiat, pivoting through USD when the direct
// pair is not listed: price = (asset/USD) / (baseFiat/USD).
func fiatPrice(ctx context.Context, p PairPricer, asset, baseFiat string) (decimal.Decimal, error) {
	price, err := p.PairPrice(ctx, asset, baseFiat)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, ErrPairNotListed) || baseFiat == "USD" {
		return decimal.Decimal{}, err
	}

	usd, err := p.PairPrice(ctx, asset, "USD")
	if err != nil {
		return decimal.Decimal{}, err
	}
	cross, err := p.PairPrice(ctx, baseFiat, "USD")
	if err != nil {
		return decimal.Decimal{}, err
	}
	if cross.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("zero %s/USD cross rate", baseFiat)
	}
	return usd.Div(cross), nil
}

// cryptoPrice quotes asset in the crypto numeraire. The numeraire itself is
// a self-referential rate of exactly 1. When only the crypto/asset
// orientation trades, the quote is inverted.
func cryptoPrice(ctx context.Context, p PairPricer, asset, baseCrypto string) (decimal.Decimal, error) {
	if asset == baseCrypto {
		return decimal.NewFromInt(1), nil
	}

	price, err := p.PairPrice(ctx, asset, baseCrypto)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, ErrPairNotListed) {
		return decimal.Decimal{}, err
	}

	inverted, err := p.PairPrice(ctx, baseCrypto, asset)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if inverted.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("zero inverted quote %s/%s", baseCrypto, asset)
	}
	return decimal.NewFromInt(1).Div(inverted), nil
}
