package ledger

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/portfolio-tracker/internal/source"
)

// mockExchange is an in-memory exchange-type source.
type mockExchange struct {
	name       string
	balances   map[string]string // asset -> amount
	prices     map[string]mockPrice
	history    map[string][]source.Close
	balanceErr error
	priceCalls int
}

type mockPrice struct {
	fiat   string
	crypto string // empty means no crypto quote
}

func (m *mockExchange) Name() string      { return m.name }
func (m *mockExchange) Kind() source.Kind { return source.KindExchange }

func (m *mockExchange) GetBalances(ctx context.Context, baseFiat, baseCrypto string) ([]source.Balance, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}

	assets := make([]string, 0, len(m.balances))
	for asset := range m.balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	var out []source.Balance
	for _, asset := range assets {
		amount := decimal.RequireFromString(m.balances[asset])
		if amount.IsZero() {
			continue
		}
		quote, err := m.GetPrice(ctx, asset, baseFiat, baseCrypto)
		if err != nil {
			return nil, err
		}
		out = append(out, source.Balance{
			Asset:       asset,
			Amount:      amount,
			PriceFiat:   decimal.NewNullDecimal(quote.Fiat),
			PriceCrypto: quote.Crypto,
		})
	}
	return out, nil
}

func (m *mockExchange) GetPrice(ctx context.Context, asset, baseFiat, baseCrypto string) (source.PriceQuote, error) {
	m.priceCalls++
	p, ok := m.prices[asset]
	if !ok {
		return source.PriceQuote{}, errors.New("no price for " + asset)
	}

	quote := source.PriceQuote{Fiat: decimal.RequireFromString(p.fiat)}
	if baseCrypto != "" {
		if asset == baseCrypto {
			quote.Crypto = decimal.NewNullDecimal(decimal.NewFromInt(1))
		} else if p.crypto != "" {
			quote.Crypto = decimal.NewNullDecimal(decimal.RequireFromString(p.crypto))
		}
	}
	return quote, nil
}

func (m *mockExchange) GetHistory(ctx context.Context, asset, baseFiat string) ([]source.Close, error) {
	closes, ok := m.history[asset]
	if !ok {
		return nil, errors.New("no history for " + asset)
	}
	return closes, nil
}

// mockAddress is an in-memory address-type source.
type mockAddress struct {
	name   string
	asset  string
	amount string
	err    error
}

func (m *mockAddress) Name() string      { return m.name }
func (m *mockAddress) Kind() source.Kind { return source.KindAddress }

func (m *mockAddress) GetBalance(ctx context.Context) (source.Balance, error) {
	if m.err != nil {
		return source.Balance{}, m.err
	}
	return source.Balance{
		Asset:  m.asset,
		Amount: decimal.RequireFromString(m.amount),
	}, nil
}
