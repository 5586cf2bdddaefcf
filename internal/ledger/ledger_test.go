package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-tracker/internal/source"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestHoldingDerivedValues(t *testing.T) {
	h := Holding{
		Key:         Key{Source: "kraken", Asset: "BTC"},
		Amount:      dec("2"),
		PriceFiat:   nullDec("60000"),
		PriceCrypto: nullDec("1"),
	}

	assert.True(t, h.ValueFiat().Equal(dec("120000")))
	require.True(t, h.ValueCrypto().Valid)
	assert.True(t, h.ValueCrypto().Decimal.Equal(dec("2")))
}

func TestHoldingUnresolvedPrice(t *testing.T) {
	h := Holding{Key: Key{Source: "etherscan", Asset: "ETH"}, Amount: dec("1.5")}

	assert.True(t, h.ValueFiat().IsZero())
	assert.False(t, h.ValueCrypto().Valid)
}

func TestLedgerUpsertReplacesWholeRow(t *testing.T) {
	led := New("USD", "BTC")

	key := Key{Source: "etherscan", Asset: "ETH"}
	led.Upsert(Holding{Key: key, Kind: source.KindAddress, Amount: dec("1.5")})
	require.Equal(t, 1, led.Len())

	// Patch in a resolved price by replacing the record.
	h, ok := led.Holding(key)
	require.True(t, ok)
	h.PriceFiat = nullDec("3000")
	led.Upsert(h)

	got, ok := led.Holding(key)
	require.True(t, ok)
	require.True(t, got.PriceFiat.Valid, "resolved price must persist in the snapshot")
	assert.True(t, got.PriceFiat.Decimal.Equal(dec("3000")))
	assert.Equal(t, 1, led.Len(), "replacement must not duplicate the row")
}

func TestLedgerTotals(t *testing.T) {
	led := New("USD", "BTC")
	led.Upsert(Holding{
		Key: Key{Source: "kraken", Asset: "BTC"}, Amount: dec("2"),
		PriceFiat: nullDec("60000"), PriceCrypto: nullDec("1"),
	})
	led.Upsert(Holding{
		Key: Key{Source: "etherscan", Asset: "ETH"}, Kind: source.KindAddress, Amount: dec("1.5"),
		PriceFiat: nullDec("3000"), PriceCrypto: nullDec("0.05"),
	})

	totalFiat, totalCrypto := led.Totals()
	assert.True(t, totalFiat.Equal(dec("124500")))
	require.True(t, totalCrypto.Valid)
	assert.True(t, totalCrypto.Decimal.Equal(dec("2.075")))
}

func TestLedgerTotals_NoCryptoNumeraire(t *testing.T) {
	led := New("USD", "")
	led.Upsert(Holding{
		Key: Key{Source: "kraken", Asset: "BTC"}, Amount: dec("1"),
		PriceFiat: nullDec("60000"),
	})

	totalFiat, totalCrypto := led.Totals()
	assert.True(t, totalFiat.Equal(dec("60000")))
	assert.False(t, totalCrypto.Valid, "crypto total is undefined without a numeraire")
}

func TestLedgerTotals_NeverStale(t *testing.T) {
	led := New("USD", "")
	key := Key{Source: "kraken", Asset: "BTC"}
	led.Upsert(Holding{Key: key, Amount: dec("1"), PriceFiat: nullDec("50000")})

	totalFiat, _ := led.Totals()
	assert.True(t, totalFiat.Equal(dec("50000")))

	h, _ := led.Holding(key)
	h.PriceFiat = nullDec("60000")
	led.Upsert(h)

	totalFiat, _ = led.Totals()
	assert.True(t, totalFiat.Equal(dec("60000")), "totals must follow mutations")
}

func TestLedgerSignificant(t *testing.T) {
	led := New("USD", "")
	led.Upsert(Holding{Key: Key{Source: "kraken", Asset: "BTC"}, Amount: dec("1"), PriceFiat: nullDec("60000")})
	led.Upsert(Holding{Key: Key{Source: "kraken", Asset: "DUST"}, Amount: dec("0.001"), PriceFiat: nullDec("1")})

	view := led.Significant(dec("0.01"))
	require.Len(t, view, 1)
	assert.Equal(t, "BTC", view[0].Key.Asset)

	// Memoized view: the same threshold returns the cached slice.
	again := led.Significant(dec("0.01"))
	assert.Equal(t, view, again)

	// A mutation invalidates the memo.
	led.Upsert(Holding{Key: Key{Source: "kraken", Asset: "ETH"}, Amount: dec("10"), PriceFiat: nullDec("3000")})
	refreshed := led.Significant(dec("0.01"))
	assert.Len(t, refreshed, 2)
}

func TestLedgerSignificant_ThresholdBoundary(t *testing.T) {
	led := New("USD", "")
	led.Upsert(Holding{Key: Key{Source: "kraken", Asset: "CENT"}, Amount: dec("1"), PriceFiat: nullDec("0.01")})

	// value == threshold is kept (>= semantics).
	assert.Len(t, led.Significant(dec("0.01")), 1)
	assert.Len(t, led.Significant(dec("0.02")), 0)
}
