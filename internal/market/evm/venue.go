package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"twap-engine/internal/market"
)

var routerABI = mustABI(`[
	{"name":"swap","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"amountIn","type":"uint256"},
		{"name":"minOut","type":"uint256"}
	],"outputs":[
		{"name":"filled","type":"uint256"},
		{"name":"received","type":"uint256"},
		{"name":"fee","type":"uint256"}
	]},
	{"name":"Swapped","type":"event","anonymous":false,"inputs":[
		{"name":"tokenIn","type":"address","indexed":true},
		{"name":"tokenOut","type":"address","indexed":true},
		{"name":"filled","type":"uint256","indexed":false},
		{"name":"received","type":"uint256","indexed":false},
		{"name":"fee","type":"uint256","indexed":false}
	]}
]`)

// Venue implements market.Venue against a router contract exposing
// swap(tokenIn, tokenOut, amountIn, minOut). The reported result is read
// back from the router's Swapped event in the receipt.
type Venue struct {
	client *Client
	router common.Address
}

// NewVenue creates a router venue.
func NewVenue(client *Client, router common.Address) *Venue {
	return &Venue{client: client, router: router}
}

// Compile-time interface check.
var _ market.Venue = (*Venue)(nil)

// Swap executes the swap and returns the router-reported amounts.
func (v *Venue) Swap(ctx context.Context, assetIn, assetOut common.Address, amountIn, minOut *big.Int) (market.SwapResult, error) {
	receipt, err := v.client.transact(ctx, v.router, routerABI, "swap", assetIn, assetOut, amountIn, minOut)
	if err != nil {
		return market.SwapResult{}, err
	}

	swappedID := routerABI.Events["Swapped"].ID
	for _, lg := range receipt.Logs {
		if lg.Address != v.router || len(lg.Topics) == 0 || lg.Topics[0] != swappedID {
			continue
		}
		var out struct {
			Filled   *big.Int
			Received *big.Int
			Fee      *big.Int
		}
		if err := routerABI.UnpackIntoInterface(&out, "Swapped", lg.Data); err != nil {
			return market.SwapResult{}, fmt.Errorf("unpack Swapped: %w", err)
		}
		return market.SwapResult{
			Filled:   out.Filled,
			Received: out.Received,
			Fee:      out.Fee,
		}, nil
	}
	return market.SwapResult{}, fmt.Errorf("swap mined without Swapped event: tx %s", receipt.TxHash.Hex())
}
