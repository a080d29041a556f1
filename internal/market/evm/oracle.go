package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"twap-engine/internal/market"
)

var oracleABI = mustABI(`[
	{"name":"getPrice","type":"function","stateMutability":"view","inputs":[
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"}
	],"outputs":[{"name":"","type":"uint256"}]}
]`)

// Oracle implements market.Oracle against a price-feed contract exposing
// getPrice(tokenIn, tokenOut) at 1e18 scale.
type Oracle struct {
	client *Client
	feed   common.Address
}

// NewOracle creates a price-feed oracle.
func NewOracle(client *Client, feed common.Address) *Oracle {
	return &Oracle{client: client, feed: feed}
}

// Compile-time interface check.
var _ market.Oracle = (*Oracle)(nil)

// Price reads the current quote from the feed.
func (o *Oracle) Price(ctx context.Context, assetIn, assetOut common.Address) (*big.Int, error) {
	outs, err := o.client.callView(ctx, o.feed, oracleABI, "getPrice", assetIn, assetOut)
	if err != nil {
		return nil, err
	}
	return outs[0].(*big.Int), nil
}
