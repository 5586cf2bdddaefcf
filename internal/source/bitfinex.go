package source

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfolio-tracker/internal/config"
	apperrors "github.com/portfolio-tracker/internal/errors"
)

const (
	bitfinexPublicURL  = "https://api-pub.bitfinex.com/v2"
	bitfinexPrivateURL = "https://api.bitfinex.com/v2"
)

// Bitfinex is an exchange-type source backed by the Bitfinex v2 REST API.
// v2 responds with positional JSON arrays rather than objects.
type Bitfinex struct {
	creds     Credentials
	transport *transport
}

// NewBitfinex creates a Bitfinex adapter.
func NewBitfinex(creds Credentials, httpCfg config.HTTPConfig) *Bitfinex {
	return &Bitfinex{
		creds:     creds,
		transport: newTransport("bitfinex", httpCfg),
	}
}

// Name implements Adapter.
func (b *Bitfinex) Name() string { return "bitfinex" }

// Kind implements Adapter.
func (b *Bitfinex) Kind() Kind { return KindExchange }

// GetBalances implements ExchangeAdapter, reading the authenticated wallets
// endpoint. Wallet rows are [WALLET_TYPE, CURRENCY, BALANCE, ...]; the same
// currency may appear in several wallet types and is summed.
func (b *Bitfinex) GetBalances(ctx context.Context, baseFiat, baseCrypto string) ([]Balance, error) {
	var wallets [][]json.RawMessage
	if err := b.queryPrivate(ctx, "auth/r/wallets", &wallets); err != nil {
		return nil, err
	}

	amounts := make(map[string]decimal.Decimal)
	for _, row := range wallets {
		if len(row) < 3 {
			return nil, apperrors.NewUpstreamError(b.Name(), fmt.Errorf("malformed wallet row"))
		}
		var currency string
		if err := json.Unmarshal(row[1], &currency); err != nil {
			return nil, apperrors.NewUpstreamError(b.Name(), fmt.Errorf("wallet currency: %w", err))
		}
		var amount float64
		if err := json.Unmarshal(row[2], &amount); err != nil {
			return nil, apperrors.NewUpstreamError(b.Name(), fmt.Errorf("wallet balance: %w", err))
		}
		if amount == 0 {
			continue
		}
		asset := NormalizeTicker(currency)
		amounts[asset] = amounts[asset].Add(decimal.NewFromFloat(amount))
	}

	assets := make([]string, 0, len(amounts))
	for asset := range amounts {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	balances := make([]Balance, 0, len(assets))
	for _, asset := range assets {
		quote, err := ResolveQuote(ctx, b, b.Name(), asset, baseFiat, baseCrypto)
		if err != nil {
			return nil, err
		}
		balances = append(balances, Balance{
			Asset:       asset,
			Amount:      amounts[asset],
			PriceFiat:   decimal.NewNullDecimal(quote.Fiat),
			PriceCrypto: quote.Crypto,
		})
	}
	return balances, nil
}

// GetPrice implements ExchangeAdapter.
func (b *Bitfinex) GetPrice(ctx context.Context, asset, baseFiat, baseCrypto string) (PriceQuote, error) {
	return ResolveQuote(ctx, b, b.Name(), asset, baseFiat, baseCrypto)
}

// PairPrice implements PairPricer on top of the public ticker endpoint.
// Ticker rows are positional; LAST_PRICE is index 6.
func (b *Bitfinex) PairPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	symbol := bitfinexSymbol(base, quote)

	var ticker []float64
	endpoint := fmt.Sprintf("%s/ticker/%s", bitfinexPublicURL, symbol)
	err := b.transport.getJSON(ctx, b.Name(), endpoint, &ticker)
	if err != nil {
		// An unknown symbol answers 400 with an "Unknown pair" body.
		if strings.Contains(err.Error(), "Unknown pair") || strings.Contains(err.Error(), "status 400") {
			return decimal.Decimal{}, fmt.Errorf("%s/%s: %w", base, quote, ErrPairNotListed)
		}
		return decimal.Decimal{}, err
	}
	if len(ticker) < 7 {
		return decimal.Decimal{}, apperrors.NewUpstreamError(b.Name(),
			fmt.Errorf("ticker %s: short response", symbol))
	}
	return decimal.NewFromFloat(ticker[6]), nil
}

// GetHistory implements ExchangeAdapter using daily trade candles.
// Candle rows are [MTS, OPEN, CLOSE, HIGH, LOW, VOLUME]; sort=1 asks for
// ascending order.
func (b *Bitfinex) GetHistory(ctx context.Context, asset, baseFiat string) ([]Close, error) {
	symbol := bitfinexSymbol(NormalizeTicker(asset), baseFiat)

	var candles [][]float64
	endpoint := fmt.Sprintf("%s/candles/trade:1D:%s/hist?limit=365&sort=1", bitfinexPublicURL, symbol)
	if err := b.transport.getJSON(ctx, b.Name(), endpoint, &candles); err != nil {
		return nil, err
	}

	closes := make([]Close, 0, len(candles))
	for _, row := range candles {
		if len(row) < 3 {
			return nil, apperrors.NewUpstreamError(b.Name(), fmt.Errorf("candles %s: malformed row", symbol))
		}
		closes = append(closes, Close{
			Date:  time.UnixMilli(int64(row[0])).UTC().Truncate(24 * time.Hour),
			Price: row[2],
		})
	}

	sort.Slice(closes, func(i, j int) bool { return closes[i].Date.Before(closes[j].Date) })
	return closes, nil
}

// queryPrivate performs an authenticated POST with the Bitfinex v2 signature
// scheme: HMAC-SHA384 over "/api/v2/<path><nonce><body>" in hex.
func (b *Bitfinex) queryPrivate(ctx context.Context, path string, out interface{}) error {
	if b.creds.Empty() {
		return apperrors.NewAuthenticationError(b.Name())
	}

	return b.transport.doJSON(ctx, b.Name(), func(ctx context.Context) (*http.Request, error) {
		nonce := strconv.FormatInt(time.Now().UnixMilli()*10, 10)
		body := "{}"

		payload := "/api/v2/" + path + nonce + body
		mac := hmac.New(sha512.New384, []byte(b.creds.Secret))
		mac.Write([]byte(payload))
		signature := hex.EncodeToString(mac.Sum(nil))

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			bitfinexPrivateURL+"/"+path, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("bfx-nonce", nonce)
		req.Header.Set("bfx-apikey", b.creds.Key)
		req.Header.Set("bfx-signature", signature)
		return req, nil
	}, out)
}

// bitfinexSymbol builds a trading symbol: "t" + base + quote, with the
// venue's 3-letter alias for long tickers kept as-is.
func bitfinexSymbol(base, quote string) string {
	if len(base) > 3 {
		return "t" + base + ":" + quote
	}
	return "t" + base + quote
}
