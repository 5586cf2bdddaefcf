package risk

import (
	"time"

	"github.com/portfolio-tracker/internal/ledger"
)

// Returns holds percentage-change series aligned to a shared date index.
// The first `lag` observations of the underlying matrix are dropped because
// their change is undefined.
type Returns struct {
	Dates  []time.Time
	Keys   []ledger.Key
	Series map[ledger.Key][]float64
}

// Len returns the number of return observations.
func (r *Returns) Len() int { return len(r.Dates) }

// DailyReturns computes simple one-day percentage changes between
// consecutive aligned closes. Not log returns.
func DailyReturns(m *Matrix) *Returns {
	return lagReturns(m, 1)
}

// PeriodReturnLag is the default multi-day return horizon.
const PeriodReturnLag = 7

// PeriodReturns computes percentage changes over a fixed lag, dropping the
// first lag observations.
func PeriodReturns(m *Matrix, lag int) *Returns {
	if lag < 1 {
		lag = PeriodReturnLag
	}
	return lagReturns(m, lag)
}

func lagReturns(m *Matrix, lag int) *Returns {
	n := m.Len() - lag
	if n < 0 {
		n = 0
	}

	r := &Returns{
		Dates:  m.Dates[m.Len()-n:],
		Keys:   m.Keys,
		Series: make(map[ledger.Key][]float64, len(m.Keys)),
	}

	for _, k := range m.Keys {
		closes := m.Closes[k]
		series := make([]float64, n)
		for i := 0; i < n; i++ {
			prev := closes[i]
			curr := closes[i+lag]
			if prev == 0 {
				series[i] = 0
			} else {
				series[i] = curr/prev - 1
			}
		}
		r.Series[k] = series
	}

	return r
}
