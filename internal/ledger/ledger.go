// Package ledger implements the balance ledger: the merged, priced table of
// all holdings across configured sources, keyed by (source, asset).
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/portfolio-tracker/internal/source"
)

// Key identifies one holding within a ledger snapshot.
type Key struct {
	Source string
	Asset  string
}

// Holding is one row of the ledger. PriceCrypto is present only when a
// crypto numeraire is configured; for address-type rows both prices stay
// unset until resolution. Value columns are always derived from amount and
// price, never set independently.
type Holding struct {
	Key         Key
	Kind        source.Kind
	Amount      decimal.Decimal
	PriceFiat   decimal.NullDecimal
	PriceCrypto decimal.NullDecimal
}

// ValueFiat derives amount × price_in_fiat. Zero until the price resolves.
func (h Holding) ValueFiat() decimal.Decimal {
	if !h.PriceFiat.Valid {
		return decimal.Decimal{}
	}
	return h.Amount.Mul(h.PriceFiat.Decimal)
}

// ValueCrypto derives amount × price_in_crypto when a crypto numeraire is
// configured.
func (h Holding) ValueCrypto() decimal.NullDecimal {
	if !h.PriceCrypto.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(h.Amount.Mul(h.PriceCrypto.Decimal))
}

// Ledger is one aggregation snapshot: ordered rows plus an index for
// whole-record replacement. It is rebuilt from scratch on every refresh and
// owned by a single goroutine; there is no incremental update.
type Ledger struct {
	CycleID    uuid.UUID
	Timestamp  time.Time
	BaseFiat   string
	BaseCrypto string // empty when no crypto numeraire is configured

	rows  []Holding
	index map[Key]int

	// significant-view memo, invalidated on any mutation
	sigRows      []Holding
	sigThreshold decimal.Decimal
	sigValid     bool
}

// New creates an empty ledger snapshot for the given numeraires.
func New(baseFiat, baseCrypto string) *Ledger {
	return &Ledger{
		CycleID:    uuid.New(),
		Timestamp:  time.Now().UTC(),
		BaseFiat:   baseFiat,
		BaseCrypto: baseCrypto,
		index:      make(map[Key]int),
	}
}

// Len returns the number of rows.
func (l *Ledger) Len() int { return len(l.rows) }

// Rows returns the rows in insertion order.
func (l *Ledger) Rows() []Holding { return l.rows }

// Holding returns the row for key, if present.
func (l *Ledger) Holding(key Key) (Holding, bool) {
	i, ok := l.index[key]
	if !ok {
		return Holding{}, false
	}
	return l.rows[i], true
}

// Upsert inserts or replaces the whole row for h.Key. Mutation always goes
// through the index and replaces the full record, so a resolved price can
// never be written to a temporary view.
func (l *Ledger) Upsert(h Holding) {
	if i, ok := l.index[h.Key]; ok {
		l.rows[i] = h
	} else {
		l.index[h.Key] = len(l.rows)
		l.rows = append(l.rows, h)
	}
	l.sigValid = false
}

// Totals reduces the ledger to its grand totals: the fiat total always, the
// crypto total only when a crypto numeraire is configured. Recomputed on
// every call so totals can never go stale against mutated rows.
func (l *Ledger) Totals() (totalFiat decimal.Decimal, totalCrypto decimal.NullDecimal) {
	for _, h := range l.rows {
		totalFiat = totalFiat.Add(h.ValueFiat())
	}

	if l.BaseCrypto == "" {
		return totalFiat, decimal.NullDecimal{}
	}

	var crypto decimal.Decimal
	for _, h := range l.rows {
		if v := h.ValueCrypto(); v.Valid {
			crypto = crypto.Add(v.Decimal)
		}
	}
	return totalFiat, decimal.NewNullDecimal(crypto)
}

// Significant returns the rows with value_in_fiat at or above threshold, a
// non-destructive view memoized until the next mutation.
func (l *Ledger) Significant(threshold decimal.Decimal) []Holding {
	if l.sigValid && l.sigThreshold.Equal(threshold) {
		return l.sigRows
	}

	view := make([]Holding, 0, len(l.rows))
	for _, h := range l.rows {
		if h.ValueFiat().GreaterThanOrEqual(threshold) {
			view = append(view, h)
		}
	}

	l.sigRows = view
	l.sigThreshold = threshold
	l.sigValid = true
	return view
}
