package source

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/portfolio-tracker/internal/config"
)

const blockchainBaseURL = "https://blockchain.info"

// satoshiDecimals is the satoshi-to-bitcoin exponent.
const satoshiDecimals = 8

// Blockchain is an address-type source reporting the BTC balance of one
// on-chain address via the blockchain.info API.
type Blockchain struct {
	address   string
	transport *transport
}

// NewBlockchain creates a blockchain.info adapter for the given address.
// The explorer is public; no credentials are involved.
func NewBlockchain(address string, httpCfg config.HTTPConfig) *Blockchain {
	return &Blockchain{
		address:   address,
		transport: newTransport("blockchain", httpCfg),
	}
}

// Name implements Adapter.
func (b *Blockchain) Name() string { return "blockchain" }

// Kind implements Adapter.
func (b *Blockchain) Kind() Kind { return KindAddress }

type blockchainAddrResponse struct {
	Address      string `json:"address"`
	FinalBalance int64  `json:"final_balance"`
}

// GetBalance implements AddressAdapter. final_balance is denominated in
// satoshi.
func (b *Blockchain) GetBalance(ctx context.Context) (Balance, error) {
	var resp blockchainAddrResponse
	endpoint := fmt.Sprintf("%s/rawaddr/%s?limit=0", blockchainBaseURL, b.address)
	if err := b.transport.getJSON(ctx, b.Name(), endpoint, &resp); err != nil {
		return Balance{}, err
	}

	return Balance{
		Asset:  "BTC",
		Amount: decimal.NewFromInt(resp.FinalBalance).Shift(-satoshiDecimals),
	}, nil
}
