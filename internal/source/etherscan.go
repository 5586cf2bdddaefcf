package source

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/portfolio-tracker/internal/config"
	apperrors "github.com/portfolio-tracker/internal/errors"
)

const etherscanBaseURL = "https://api.etherscan.io/api"

// weiDecimals is the wei-to-ether exponent.
const weiDecimals = 18

// Etherscan is an address-type source reporting the ETH balance of one
// on-chain address via the Etherscan API. It has no price feed; the ledger
// borrows prices from the reference exchange.
type Etherscan struct {
	address   string
	apiKey    string
	transport *transport
}

// NewEtherscan creates an Etherscan adapter for the given address.
func NewEtherscan(address, apiKey string, httpCfg config.HTTPConfig) (*Etherscan, error) {
	if !common.IsHexAddress(address) {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("invalid ethereum address %q", address))
	}
	return &Etherscan{
		address:   common.HexToAddress(address).Hex(),
		apiKey:    apiKey,
		transport: newTransport("etherscan", httpCfg),
	}, nil
}

// Name implements Adapter.
func (e *Etherscan) Name() string { return "etherscan" }

// Kind implements Adapter.
func (e *Etherscan) Kind() Kind { return KindAddress }

type etherscanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// GetBalance implements AddressAdapter. The API answers the balance in wei
// as a decimal string; status "0" is an upstream failure even on HTTP 200.
func (e *Etherscan) GetBalance(ctx context.Context) (Balance, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "balance")
	params.Set("address", e.address)
	params.Set("tag", "latest")
	if e.apiKey != "" {
		params.Set("apikey", e.apiKey)
	}

	var resp etherscanResponse
	if err := e.transport.getJSON(ctx, e.Name(), etherscanBaseURL+"?"+params.Encode(), &resp); err != nil {
		return Balance{}, err
	}
	if resp.Status != "1" {
		return Balance{}, apperrors.NewUpstreamError(e.Name(),
			fmt.Errorf("etherscan: %s: %s", resp.Message, resp.Result))
	}

	wei, err := decimal.NewFromString(resp.Result)
	if err != nil {
		return Balance{}, apperrors.NewUpstreamError(e.Name(), fmt.Errorf("parse balance: %w", err))
	}

	return Balance{
		Asset:  "ETH",
		Amount: wei.Shift(-weiDecimals),
	}, nil
}
