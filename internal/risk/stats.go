package risk

import (
	"math"
	"sort"
	"time"

	"github.com/portfolio-tracker/internal/ledger"
)

// VolatilityWindow is the trailing window of daily returns used for the
// per-asset standard deviation.
const VolatilityWindow = 20

// DefaultConfidence is the expected-shortfall confidence level.
const DefaultConfidence = 0.975

// AssetVolatility is one asset's trailing volatility, as a fraction and
// scaled by the holding's current fiat value.
type AssetVolatility struct {
	Key     ledger.Key `json:"key"`
	Pct     float64    `json:"pct"`
	Fiat    float64    `json:"fiat"`
	Samples int        `json:"samples"`
}

// Volatility computes, per asset, the sample standard deviation of the most
// recent VolatilityWindow daily returns preceding the latest observation.
// The latest point is excluded as the still-forming one. Not annualized.
// Fiat volatility scales the fraction by the holding's current fiat value.
func Volatility(r *Returns, rows []ledger.Holding, window int) []AssetVolatility {
	if window <= 0 {
		window = VolatilityWindow
	}

	valueFiat := make(map[ledger.Key]float64, len(rows))
	for _, row := range rows {
		valueFiat[row.Key] = row.ValueFiat().InexactFloat64()
	}

	var out []AssetVolatility
	for _, k := range r.Keys {
		series := r.Series[k]
		if len(series) < 2 {
			continue
		}

		// Trailing window, excluding the latest observation.
		trailing := series[:len(series)-1]
		if len(trailing) > window {
			trailing = trailing[len(trailing)-window:]
		}
		if len(trailing) < 2 {
			continue
		}

		pct := sampleStdDev(trailing)
		out = append(out, AssetVolatility{
			Key:     k,
			Pct:     pct,
			Fiat:    pct * valueFiat[k],
			Samples: len(trailing),
		})
	}
	return out
}

// sampleStdDev is the n−1 standard deviation.
func sampleStdDev(xs []float64) float64 {
	n := float64(len(xs))
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= n

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}

// PnLSeries is the per-date portfolio fiat P&L derived from a return series.
type PnLSeries struct {
	Dates  []time.Time
	Values []float64
}

// PortfolioPnL applies each holding's CURRENT fiat value to its historical
// return series and sums across holdings per date. This is an approximation:
// today's weights are applied retroactively, it is not a replay of the
// weights actually held on those dates.
func PortfolioPnL(r *Returns, rows []ledger.Holding) *PnLSeries {
	valueFiat := make(map[ledger.Key]float64, len(rows))
	for _, row := range rows {
		valueFiat[row.Key] = row.ValueFiat().InexactFloat64()
	}

	values := make([]float64, r.Len())
	for _, k := range r.Keys {
		weight := valueFiat[k]
		for i, ret := range r.Series[k] {
			values[i] += ret * weight
		}
	}

	return &PnLSeries{Dates: r.Dates, Values: values}
}

// Extreme is one extreme point of a P&L series.
type Extreme struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// WorstBest finds the minimum and maximum of the P&L series. Ties are broken
// by series order: the earliest date wins.
func WorstBest(pnl *PnLSeries) (worst, best Extreme) {
	if len(pnl.Values) == 0 {
		return Extreme{}, Extreme{}
	}

	worst = Extreme{Date: pnl.Dates[0], Value: pnl.Values[0]}
	best = worst
	for i := 1; i < len(pnl.Values); i++ {
		if pnl.Values[i] < worst.Value {
			worst = Extreme{Date: pnl.Dates[i], Value: pnl.Values[i]}
		}
		if pnl.Values[i] > best.Value {
			best = Extreme{Date: pnl.Dates[i], Value: pnl.Values[i]}
		}
	}
	return worst, best
}

// Shortfall is an expected-shortfall result. Samples is the size of the
// averaged tail; when the tail truncates to zero observations the value is
// zero and Samples says so, rather than dividing by zero.
type Shortfall struct {
	Value      float64 `json:"value"`
	Samples    int     `json:"samples"`
	Confidence float64 `json:"confidence"`
}

// Defined reports whether the tail held at least one observation.
func (s Shortfall) Defined() bool { return s.Samples > 0 }

// ExpectedShortfall averages the worst floor((1−confidence)·N) observations
// of the P&L series. The tail count truncates, so series shorter than
// 1/(1−confidence) observations produce an undefined (zero-sample) result.
func ExpectedShortfall(pnl *PnLSeries, confidence float64) Shortfall {
	if confidence <= 0 || confidence >= 1 {
		confidence = DefaultConfidence
	}

	n := int(float64(len(pnl.Values)) * (1 - confidence))
	if n <= 0 {
		return Shortfall{Confidence: confidence}
	}

	sorted := make([]float64, len(pnl.Values))
	copy(sorted, pnl.Values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted[:n] {
		sum += v
	}
	return Shortfall{
		Value:      sum / float64(n),
		Samples:    n,
		Confidence: confidence,
	}
}
