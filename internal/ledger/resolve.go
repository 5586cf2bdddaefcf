package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/portfolio-tracker/internal/cache"
	apperrors "github.com/portfolio-tracker/internal/errors"
	"github.com/portfolio-tracker/internal/logging"
	"github.com/portfolio-tracker/internal/source"
)

// Resolver fills in prices for address-type rows by borrowing them from the
// reference exchange. Live lookups go through the price cache so repeated
// cycles within the TTL reuse the same quote.
type Resolver struct {
	reference string
	adapters  map[string]source.Adapter
	cache     cache.PriceCache
}

// NewResolver creates a resolver against the named reference source.
func NewResolver(reference string, adapters map[string]source.Adapter, priceCache cache.PriceCache) *Resolver {
	return &Resolver{
		reference: reference,
		adapters:  adapters,
		cache:     priceCache,
	}
}

// ResolveAddressPrices mutates the ledger in place: every address-type row
// gets its price_in_fiat (and price_in_crypto when a numeraire is set) from
// the reference source's row for the same asset, falling back to a live
// quote against the reference adapter. Writes replace the whole row through
// the ledger index, so the resolved price always persists in the snapshot.
//
// When the asset is the crypto numeraire itself, price_in_crypto is forced
// to exactly 1 regardless of where the fiat price came from.
func (r *Resolver) ResolveAddressPrices(ctx context.Context, led *Ledger) error {
	logger := logging.FromContext(ctx)

	for _, h := range led.Rows() {
		if h.Kind != source.KindAddress {
			continue
		}

		refKey := Key{Source: r.reference, Asset: h.Key.Asset}
		if refRow, ok := led.Holding(refKey); ok && refRow.PriceFiat.Valid {
			h.PriceFiat = refRow.PriceFiat
			h.PriceCrypto = refRow.PriceCrypto
		} else {
			quote, err := r.liveQuote(ctx, led, h)
			if err != nil {
				return err
			}
			h.PriceFiat = decimal.NewNullDecimal(quote.Fiat)
			h.PriceCrypto = quote.Crypto
		}

		if led.BaseCrypto != "" && h.Key.Asset == led.BaseCrypto {
			h.PriceCrypto = decimal.NewNullDecimal(decimal.NewFromInt(1))
		}

		led.Upsert(h)
		logger.WithFields(map[string]interface{}{
			"source":    h.Key.Source,
			"asset":     h.Key.Asset,
			"reference": r.reference,
		}).Debug("Resolved address-type price")
	}

	return nil
}

// liveQuote fetches the asset's price from the reference adapter when the
// current ledger holds no reference row for it.
func (r *Resolver) liveQuote(ctx context.Context, led *Ledger, h Holding) (source.PriceQuote, error) {
	refAdapter, ok := r.adapters[r.reference]
	if !ok {
		return source.PriceQuote{}, apperrors.NewUnresolvedReferenceError(r.reference, h.Key.Asset,
			"reference source is not among the configured sources")
	}
	exchange, ok := refAdapter.(source.ExchangeAdapter)
	if !ok {
		return source.PriceQuote{}, apperrors.NewUnresolvedReferenceError(r.reference, h.Key.Asset,
			"reference source must be exchange-type")
	}

	key := cache.QuoteKey(r.reference, h.Key.Asset, led.BaseFiat, led.BaseCrypto)
	if quote, ok := r.cache.GetQuote(ctx, key); ok {
		return quote, nil
	}

	quote, err := exchange.GetPrice(ctx, h.Key.Asset, led.BaseFiat, led.BaseCrypto)
	if err != nil {
		return source.PriceQuote{}, &apperrors.CategorizedError{
			Category: apperrors.CategoryUnresolvedReference,
			Code:     "UNRESOLVED_REFERENCE",
			Message:  "live reference quote failed for " + r.reference + "/" + h.Key.Asset,
			Cause:    err,
			Details: map[string]interface{}{
				"source": r.reference,
				"asset":  h.Key.Asset,
			},
		}
	}

	r.cache.SetQuote(ctx, key, quote)
	return quote, nil
}
