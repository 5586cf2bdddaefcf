package source

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTC", "BTC"},
		{"XBT", "BTC"},
		{"XXBT", "BTC"},
		{"XETH", "ETH"},
		{"ZUSD", "USD"},
		{"ZEUR", "EUR"},
		{"ETH2", "ETH"},
		{"ETH2.S", "ETH"},
		{"DOT.S", "DOT"},
		{"ATOM.M", "ATOM"},
		{"BTC.F", "BTC"},
		{"ada", "ADA"},
		{" sol ", "SOL"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTicker(tt.in))
		})
	}
}

func TestIsFiat(t *testing.T) {
	assert.True(t, IsFiat("USD"))
	assert.True(t, IsFiat("EUR"))
	assert.True(t, IsFiat("GBP"))
	assert.False(t, IsFiat("BTC"))
	assert.False(t, IsFiat("USDT"))
}

// fakePricer serves direct pair quotes from a map; everything else is
// not listed.
type fakePricer struct {
	pairs map[string]decimal.Decimal
	calls []string
}

func (f *fakePricer) PairPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	pair := base + "/" + quote
	f.calls = append(f.calls, pair)
	if price, ok := f.pairs[pair]; ok {
		return price, nil
	}
	return decimal.Decimal{}, fmt.Errorf("%s: %w", pair, ErrPairNotListed)
}

func TestResolveQuote_FiatAsset(t *testing.T) {
	pricer := &fakePricer{}

	quote, err := ResolveQuote(context.Background(), pricer, "kraken", "EUR", "USD", "")
	require.NoError(t, err)
	assert.True(t, quote.Fiat.Equal(decimal.NewFromInt(1)))
	assert.False(t, quote.Crypto.Valid)
	assert.Empty(t, pricer.calls, "fiat assets must not hit the venue")

	quote, err = ResolveQuote(context.Background(), pricer, "kraken", "EUR", "USD", "BTC")
	require.NoError(t, err)
	assert.True(t, quote.Fiat.Equal(decimal.NewFromInt(1)))
	require.True(t, quote.Crypto.Valid)
	assert.True(t, quote.Crypto.Decimal.Equal(decimal.NewFromInt(1)))
}

func TestResolveQuote_SelfReferentialCrypto(t *testing.T) {
	pricer := &fakePricer{pairs: map[string]decimal.Decimal{
		"BTC/USD": decimal.NewFromInt(60000),
	}}

	quote, err := ResolveQuote(context.Background(), pricer, "kraken", "BTC", "USD", "BTC")
	require.NoError(t, err)
	assert.True(t, quote.Fiat.Equal(decimal.NewFromInt(60000)))
	require.True(t, quote.Crypto.Valid)
	assert.True(t, quote.Crypto.Decimal.Equal(decimal.NewFromInt(1)), "numeraire against itself is exactly 1")
}

func TestResolveQuote_GeneralCase(t *testing.T) {
	pricer := &fakePricer{pairs: map[string]decimal.Decimal{
		"ETH/USD": decimal.NewFromInt(3000),
		"ETH/BTC": decimal.RequireFromString("0.05"),
	}}

	quote, err := ResolveQuote(context.Background(), pricer, "kraken", "ETH", "USD", "BTC")
	require.NoError(t, err)
	assert.True(t, quote.Fiat.Equal(decimal.NewFromInt(3000)))
	require.True(t, quote.Crypto.Valid)
	assert.True(t, quote.Crypto.Decimal.Equal(decimal.RequireFromString("0.05")))
}

func TestResolveQuote_InvertedCryptoPair(t *testing.T) {
	// Only BTC/ADA trades; ADA/BTC must come back as the inverse.
	pricer := &fakePricer{pairs: map[string]decimal.Decimal{
		"ADA/USD": decimal.RequireFromString("0.5"),
		"BTC/ADA": decimal.NewFromInt(100000),
	}}

	quote, err := ResolveQuote(context.Background(), pricer, "kraken", "ADA", "USD", "BTC")
	require.NoError(t, err)
	require.True(t, quote.Crypto.Valid)
	assert.True(t, quote.Crypto.Decimal.Equal(decimal.RequireFromString("0.00001")))
}

func TestResolveQuote_USDPivot(t *testing.T) {
	// No ETH/EUR market: pivot through USD with the EUR/USD cross.
	pricer := &fakePricer{pairs: map[string]decimal.Decimal{
		"ETH/USD": decimal.NewFromInt(3000),
		"EUR/USD": decimal.RequireFromString("1.25"),
	}}

	quote, err := ResolveQuote(context.Background(), pricer, "kraken", "ETH", "EUR", "")
	require.NoError(t, err)
	assert.True(t, quote.Fiat.Equal(decimal.NewFromInt(2400)), "3000 / 1.25")
}

func TestResolveQuote_UnlistedAsset(t *testing.T) {
	pricer := &fakePricer{}

	_, err := ResolveQuote(context.Background(), pricer, "kraken", "DOGE", "USD", "")
	require.Error(t, err)
}

func TestResolveQuote_NormalizesBeforeLookup(t *testing.T) {
	pricer := &fakePricer{pairs: map[string]decimal.Decimal{
		"ETH/USD": decimal.NewFromInt(3000),
	}}

	quote, err := ResolveQuote(context.Background(), pricer, "kraken", "ETH2.S", "USD", "")
	require.NoError(t, err)
	assert.True(t, quote.Fiat.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, []string{"ETH/USD"}, pricer.calls, "staking variant must be priced as its base ticker")
}

func TestKrakenSign(t *testing.T) {
	// Fixed inputs must produce a stable signature.
	secret := "a2V5c2VjcmV0a2V5c2VjcmV0" // base64 of "keysecretkeysecret"
	sig1, err := krakenSign(secret, "/0/private/Balance", "1616492376594", "nonce=1616492376594")
	require.NoError(t, err)
	sig2, err := krakenSign(secret, "/0/private/Balance", "1616492376594", "nonce=1616492376594")
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)
	assert.NotEmpty(t, sig1)

	_, err = krakenSign("%%%not-base64%%%", "/0/private/Balance", "1", "nonce=1")
	assert.Error(t, err)
}

func TestCredentialsEmpty(t *testing.T) {
	assert.True(t, Credentials{}.Empty())
	assert.True(t, Credentials{Key: "k"}.Empty())
	assert.False(t, Credentials{Key: "k", Secret: "s"}.Empty())
}
