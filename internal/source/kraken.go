package source

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfolio-tracker/internal/config"
	apperrors "github.com/portfolio-tracker/internal/errors"
)

const (
	krakenBaseURL    = "https://api.kraken.com"
	krakenAPIVersion = "0"
)

// Kraken is an exchange-type source backed by the Kraken REST API.
type Kraken struct {
	creds     Credentials
	transport *transport
}

// NewKraken creates a Kraken adapter. Empty credentials still allow public
// market data calls; the private Balance call then fails with an
// authentication error.
func NewKraken(creds Credentials, httpCfg config.HTTPConfig) *Kraken {
	return &Kraken{
		creds:     creds,
		transport: newTransport("kraken", httpCfg),
	}
}

// Name implements Adapter.
func (k *Kraken) Name() string { return "kraken" }

// Kind implements Adapter.
func (k *Kraken) Kind() Kind { return KindExchange }

// krakenEnvelope is the common {error, result} response shape.
type krakenEnvelope struct {
	Error []string `json:"error"`
}

type krakenBalanceResponse struct {
	krakenEnvelope
	Result map[string]string `json:"result"`
}

type krakenTickerResponse struct {
	krakenEnvelope
	Result map[string]struct {
		Last []string `json:"c"`
	} `json:"result"`
}

type krakenOHLCResponse struct {
	krakenEnvelope
	Result map[string]interface{} `json:"result"`
}

// GetBalances implements ExchangeAdapter. Venue asset codes (XXBT, ZUSD,
// ETH2.S...) are normalized before pricing; variants of the same ticker are
// summed into one position; zero balances are dropped.
func (k *Kraken) GetBalances(ctx context.Context, baseFiat, baseCrypto string) ([]Balance, error) {
	var resp krakenBalanceResponse
	if err := k.queryPrivate(ctx, "Balance", url.Values{}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Error) > 0 {
		return nil, apperrors.NewUpstreamError(k.Name(), fmt.Errorf("kraken: %s", strings.Join(resp.Error, "; ")))
	}

	amounts := make(map[string]decimal.Decimal)
	for code, raw := range resp.Result {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, apperrors.NewUpstreamError(k.Name(), fmt.Errorf("balance %s: %w", code, err))
		}
		if amount.IsZero() {
			continue
		}
		asset := NormalizeTicker(code)
		amounts[asset] = amounts[asset].Add(amount)
	}

	assets := make([]string, 0, len(amounts))
	for asset := range amounts {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	balances := make([]Balance, 0, len(assets))
	for _, asset := range assets {
		quote, err := ResolveQuote(ctx, k, k.Name(), asset, baseFiat, baseCrypto)
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
func (k *Kraken) GetPrice(ctx context.Context, asset, baseFiat, baseCrypto string) (PriceQuote, error) {
	return ResolveQuote(ctx, k, k.Name(), asset, baseFiat, baseCrypto)
}

// PairPrice implements PairPricer on top of the public Ticker endpoint.
func (k *Kraken) PairPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	pair := krakenPairCode(base) + krakenPairCode(quote)

	var resp krakenTickerResponse
	endpoint := fmt.Sprintf("%s/%s/public/Ticker?pair=%s", krakenBaseURL, krakenAPIVersion, pair)
	if err := k.transport.getJSON(ctx, k.Name(), endpoint, &resp); err != nil {
		return decimal.Decimal{}, err
	}
	if len(resp.Error) > 0 {
		if krakenUnknownPair(resp.Error) {
			return decimal.Decimal{}, fmt.Errorf("%s/%s: %w", base, quote, ErrPairNotListed)
		}
		return decimal.Decimal{}, apperrors.NewUpstreamError(k.Name(),
			fmt.Errorf("ticker %s: %s", pair, strings.Join(resp.Error, "; ")))
	}

	// The result key may differ from the requested pair code; take the
	// single entry.
	for _, ticker := range resp.Result {
		if len(ticker.Last) == 0 {
			break
		}
		return decimal.NewFromString(ticker.Last[0])
	}
	return decimal.Decimal{}, apperrors.NewUpstreamError(k.Name(), fmt.Errorf("ticker %s: empty result", pair))
}

// GetHistory implements ExchangeAdapter using daily OHLC candles.
func (k *Kraken) GetHistory(ctx context.Context, asset, baseFiat string) ([]Close, error) {
	pair := krakenPairCode(NormalizeTicker(asset)) + krakenPairCode(baseFiat)

	var resp krakenOHLCResponse
	endpoint := fmt.Sprintf("%s/%s/public/OHLC?pair=%s&interval=1440", krakenBaseURL, krakenAPIVersion, pair)
	if err := k.transport.getJSON(ctx, k.Name(), endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Error) > 0 {
		return nil, apperrors.NewUpstreamError(k.Name(),
			fmt.Errorf("ohlc %s: %s", pair, strings.Join(resp.Error, "; ")))
	}

	// Result holds the candle list under the pair key plus a "last" cursor.
	var candles []interface{}
	for key, value := range resp.Result {
		if key == "last" {
			continue
		}
		if list, ok := value.([]interface{}); ok {
			candles = list
		}
	}

	closes := make([]Close, 0, len(candles))
	for _, raw := range candles {
		row, ok := raw.([]interface{})
		if !ok || len(row) < 5 {
			return nil, apperrors.NewUpstreamError(k.Name(), fmt.Errorf("ohlc %s: malformed candle", pair))
		}
		ts, ok := row[0].(float64)
		if !ok {
			return nil, apperrors.NewUpstreamError(k.Name(), fmt.Errorf("ohlc %s: malformed timestamp", pair))
		}
		closeStr, ok := row[4].(string)
		if !ok {
			return nil, apperrors.NewUpstreamError(k.Name(), fmt.Errorf("ohlc %s: malformed close", pair))
		}
		price, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			return nil, apperrors.NewUpstreamError(k.Name(), fmt.Errorf("ohlc %s: %w", pair, err))
		}
		closes = append(closes, Close{
			Date:  time.Unix(int64(ts), 0).UTC().Truncate(24 * time.Hour),
			Price: price,
		})
	}

	sort.Slice(closes, func(i, j int) bool { return closes[i].Date.Before(closes[j].Date) })
	return closes, nil
}

// queryPrivate performs an authenticated POST with the Kraken signature
// scheme: HMAC-SHA512 over path + SHA256(nonce + postdata), keyed with the
// base64-decoded secret.
func (k *Kraken) queryPrivate(ctx context.Context, method string, data url.Values, out interface{}) error {
	if k.creds.Empty() {
		return apperrors.NewAuthenticationError(k.Name())
	}

	urlPath := "/" + krakenAPIVersion + "/private/" + method

	return k.transport.doJSON(ctx, k.Name(), func(ctx context.Context) (*http.Request, error) {
		nonce := strconv.FormatInt(time.Now().UnixMilli()*10, 10)
		data.Set("nonce", nonce)
		postData := data.Encode()

		signature, err := krakenSign(k.creds.Secret, urlPath, nonce, postData)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			krakenBaseURL+urlPath, strings.NewReader(postData))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("API-Key", k.creds.Key)
		req.Header.Set("API-Sign", signature)
		return req, nil
	}, out)
}

func krakenSign(secret, urlPath, nonce, postData string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	shaSum := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(urlPath))
	mac.Write(shaSum[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// krakenPairCode maps a common ticker to the code Kraken pair names use.
func krakenPairCode(asset string) string {
	if asset == "BTC" {
		return "XBT"
	}
	return asset
}

// krakenUnknownPair recognizes the venue's unknown-pair error strings.
func krakenUnknownPair(errs []string) bool {
	for _, e := range errs {
		if strings.Contains(e, "Unknown asset pair") {
			return true
		}
	}
	return false
}
