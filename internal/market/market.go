// Package market defines the external capabilities the engine invokes:
// the swap venue, the price oracle, and the asset bank that holds custody
// of the engine's balances. Production adapters live in market/evm,
// deterministic doubles in market/stub.
package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset is the designated identifier for the chain's native
// currency in Bank operations.
var NativeAsset = common.Address{}

// SwapResult is the venue's reported outcome for one swap.
type SwapResult struct {
	Filled   *big.Int
	Received *big.Int
	Fee      *big.Int
}

// Venue executes a swap of amountIn assetIn for assetOut. A conforming
// venue never returns Received below minOut; the engine re-validates the
// result regardless.
type Venue interface {
	Swap(ctx context.Context, assetIn, assetOut common.Address, amountIn, minOut *big.Int) (SwapResult, error)
}

// Oracle quotes the assetIn/assetOut price at 1e18 fixed-point scale.
// A valid quote is strictly positive.
type Oracle interface {
	Price(ctx context.Context, assetIn, assetOut common.Address) (*big.Int, error)
}

// Bank holds the engine's asset balances. Approve grants a spender an
// allowance over the engine's holdings of an asset; Transfer moves the
// engine's holdings out. The zero asset address designates the native
// currency, for which Approve is not meaningful.
type Bank interface {
	BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error)
	Approve(ctx context.Context, asset, spender common.Address, amount *big.Int) error
	Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error
}
