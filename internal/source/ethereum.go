package source

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	apperrors "github.com/portfolio-tracker/internal/errors"
)

// EthereumRPC is an address-type source reading the ETH balance of one
// address straight from a node over JSON-RPC, for setups that prefer their
// own endpoint over an explorer API.
type EthereumRPC struct {
	address common.Address
	client  *ethclient.Client
}

// NewEthereumRPC dials the RPC endpoint and validates the address.
func NewEthereumRPC(rpcURL, address string) (*EthereumRPC, error) {
	if !common.IsHexAddress(address) {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("invalid ethereum address %q", address))
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, apperrors.NewUpstreamError("ethereum-rpc", fmt.Errorf("dial %s: %w", rpcURL, err))
	}

	return &EthereumRPC{
		address: common.HexToAddress(address),
		client:  client,
	}, nil
}

// Name implements Adapter.
func (e *EthereumRPC) Name() string { return "ethereum-rpc" }

// Kind implements Adapter.
func (e *EthereumRPC) Kind() Kind { return KindAddress }

// Close releases the underlying RPC connection.
func (e *EthereumRPC) Close() {
	e.client.Close()
}

// GetBalance implements AddressAdapter against the latest block.
func (e *EthereumRPC) GetBalance(ctx context.Context) (Balance, error) {
	wei, err := e.client.BalanceAt(ctx, e.address, nil)
	if err != nil {
		return Balance{}, apperrors.NewUpstreamError(e.Name(), err)
	}

	return Balance{
		Asset:  "ETH",
		Amount: weiToEther(wei),
	}, nil
}

func weiToEther(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -weiDecimals)
}
