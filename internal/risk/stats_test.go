package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-tracker/internal/ledger"
	"github.com/portfolio-tracker/internal/source"
)

func btcKey() ledger.Key { return ledger.Key{Source: "kraken", Asset: "BTC"} }
func ethKey() ledger.Key { return ledger.Key{Source: "kraken", Asset: "ETH"} }

func matrixOf(closes map[ledger.Key][]float64) *Matrix {
	var keys []ledger.Key
	var n int
	for k, s := range closes {
		keys = append(keys, k)
		n = len(s)
	}
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = day(i + 1)
	}
	return &Matrix{Dates: dates, Keys: keys, Closes: closes}
}

func pnlOf(values ...float64) *PnLSeries {
	dates := make([]time.Time, len(values))
	for i := range dates {
		dates[i] = day(i + 1)
	}
	return &PnLSeries{Dates: dates, Values: values}
}

func TestDailyReturns(t *testing.T) {
	m := matrixOf(map[ledger.Key][]float64{
		btcKey(): {100, 110, 99},
	})

	r := DailyReturns(m)

	require.Equal(t, 2, r.Len())
	assert.Equal(t, []time.Time{day(2), day(3)}, r.Dates)
	assert.InDelta(t, 0.10, r.Series[btcKey()][0], 1e-12)
	assert.InDelta(t, -0.10, r.Series[btcKey()][1], 1e-12)
}

func TestDailyReturns_ZeroPreviousClose(t *testing.T) {
	m := matrixOf(map[ledger.Key][]float64{
		btcKey(): {0, 110},
	})

	r := DailyReturns(m)
	assert.Equal(t, 0.0, r.Series[btcKey()][0], "zero previous close yields zero, not Inf")
}

func TestPeriodReturns(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104, 105, 106, 107, 214}
	m := matrixOf(map[ledger.Key][]float64{btcKey(): closes})

	r := PeriodReturns(m, 7)

	require.Equal(t, 2, r.Len(), "length is N minus lag")
	assert.InDelta(t, 107.0/100.0-1, r.Series[btcKey()][0], 1e-12)
	assert.InDelta(t, 214.0/101.0-1, r.Series[btcKey()][1], 1e-12)
}

func TestPeriodReturns_ShorterThanLag(t *testing.T) {
	m := matrixOf(map[ledger.Key][]float64{btcKey(): {100, 110}})

	r := PeriodReturns(m, 7)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Series[btcKey()])
}

func TestVolatility(t *testing.T) {
	// 4 returns; latest is excluded, leaving {0.1, -0.1, 0.2} in the window.
	r := &Returns{
		Dates: []time.Time{day(2), day(3), day(4), day(5)},
		Keys:  []ledger.Key{btcKey()},
		Series: map[ledger.Key][]float64{
			btcKey(): {0.1, -0.1, 0.2, 99.0},
		},
	}
	rows := []ledger.Holding{row("kraken", "BTC", source.KindExchange, "1000")}

	vols := Volatility(r, rows, VolatilityWindow)

	require.Len(t, vols, 1)
	v := vols[0]
	assert.Equal(t, btcKey(), v.Key)
	assert.Equal(t, 3, v.Samples, "latest observation excluded")

	// mean = 0.0666..., sample variance over n−1.
	mean := (0.1 - 0.1 + 0.2) / 3
	ss := math.Pow(0.1-mean, 2) + math.Pow(-0.1-mean, 2) + math.Pow(0.2-mean, 2)
	want := math.Sqrt(ss / 2)
	assert.InDelta(t, want, v.Pct, 1e-12)
	assert.InDelta(t, want*1000, v.Fiat, 1e-9)
}

func TestVolatility_WindowTruncatesTrailing(t *testing.T) {
	series := make([]float64, 30)
	for i := range series {
		series[i] = float64(i)
	}
	r := &Returns{
		Keys:   []ledger.Key{btcKey()},
		Series: map[ledger.Key][]float64{btcKey(): series},
	}
	rows := []ledger.Holding{row("kraken", "BTC", source.KindExchange, "1000")}

	vols := Volatility(r, rows, 20)
	require.Len(t, vols, 1)
	assert.Equal(t, 20, vols[0].Samples)

	// Window is the last 20 of the first 29 observations: values 9..28.
	want := sampleStdDev(series[9:29])
	assert.InDelta(t, want, vols[0].Pct, 1e-12)
}

func TestVolatility_TooFewReturns(t *testing.T) {
	r := &Returns{
		Keys:   []ledger.Key{btcKey()},
		Series: map[ledger.Key][]float64{btcKey(): {0.1, 0.2}},
	}
	rows := []ledger.Holding{row("kraken", "BTC", source.KindExchange, "1000")}

	// Two returns leave a single trailing observation, not enough for a
	// sample standard deviation.
	assert.Empty(t, Volatility(r, rows, 20))
}

func TestPortfolioPnL(t *testing.T) {
	r := &Returns{
		Dates: []time.Time{day(2), day(3)},
		Keys:  []ledger.Key{btcKey(), ethKey()},
		Series: map[ledger.Key][]float64{
			btcKey(): {0.10, -0.05},
			ethKey(): {0.20, 0.10},
		},
	}
	rows := []ledger.Holding{
		row("kraken", "BTC", source.KindExchange, "1000"),
		row("kraken", "ETH", source.KindExchange, "500"),
	}

	pnl := PortfolioPnL(r, rows)

	require.Len(t, pnl.Values, 2)
	assert.InDelta(t, 0.10*1000+0.20*500, pnl.Values[0], 1e-9)
	assert.InDelta(t, -0.05*1000+0.10*500, pnl.Values[1], 1e-9)
}

func TestWorstBest(t *testing.T) {
	worst, best := WorstBest(pnlOf(10, -50, 30, -20))

	assert.Equal(t, -50.0, worst.Value)
	assert.Equal(t, day(2), worst.Date)
	assert.Equal(t, 30.0, best.Value)
	assert.Equal(t, day(3), best.Date)
}

func TestWorstBest_TieEarliestDateWins(t *testing.T) {
	worst, best := WorstBest(pnlOf(-50, 30, -50, 30))

	assert.Equal(t, day(1), worst.Date)
	assert.Equal(t, day(2), best.Date)
}

func TestWorstBest_Empty(t *testing.T) {
	worst, best := WorstBest(&PnLSeries{})
	assert.True(t, worst.Date.IsZero())
	assert.True(t, best.Date.IsZero())
}

func TestExpectedShortfall(t *testing.T) {
	// 80 observations, tail = floor(0.025 * 80) = 2: mean of the two worst.
	values := make([]float64, 80)
	for i := range values {
		values[i] = float64(i)
	}
	values[17] = -100
	values[42] = -200

	es := ExpectedShortfall(pnlOf(values...), 0.975)

	assert.True(t, es.Defined())
	assert.Equal(t, 2, es.Samples)
	assert.InDelta(t, -150.0, es.Value, 1e-9)
	assert.Equal(t, 0.975, es.Confidence)
}

func TestExpectedShortfall_TailTruncatesToZero(t *testing.T) {
	// 39 observations: floor(0.025 * 39) = 0, undefined rather than NaN.
	values := make([]float64, 39)
	es := ExpectedShortfall(pnlOf(values...), 0.975)

	assert.False(t, es.Defined())
	assert.Equal(t, 0, es.Samples)
	assert.Equal(t, 0.0, es.Value)
}

func TestExpectedShortfall_InvalidConfidenceDefaults(t *testing.T) {
	es := ExpectedShortfall(pnlOf(make([]float64, 10)...), 0)
	assert.Equal(t, DefaultConfidence, es.Confidence)
}
