package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"twap-engine/internal/market"
)

var erc20ABI = mustABI(`[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`)

// Bank implements market.Bank over ERC-20 contracts. The zero asset
// address designates the native currency: BalanceOf reads the account
// balance, Transfer sends a plain value transaction, and Approve is not
// meaningful.
type Bank struct {
	client *Client
}

// NewBank creates an ERC-20 bank.
func NewBank(client *Client) *Bank {
	return &Bank{client: client}
}

// Compile-time interface check.
var _ market.Bank = (*Bank)(nil)

// BalanceOf reads the holder's balance of the asset.
func (b *Bank) BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error) {
	if asset == market.NativeAsset {
		bal, err := b.client.eth.BalanceAt(ctx, holder, nil)
		if err != nil {
			return nil, fmt.Errorf("native balance: %w", err)
		}
		return bal, nil
	}

	outs, err := b.client.callView(ctx, asset, erc20ABI, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	return outs[0].(*big.Int), nil
}

// Approve grants the spender an allowance over the signer's holdings.
func (b *Bank) Approve(ctx context.Context, asset, spender common.Address, amount *big.Int) error {
	if asset == market.NativeAsset {
		return fmt.Errorf("approve native asset: unsupported")
	}
	_, err := b.client.transact(ctx, asset, erc20ABI, "approve", spender, amount)
	return err
}

// Transfer moves the signer's holdings of the asset to the recipient.
// The native asset goes out as a plain value transaction.
func (b *Bank) Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if asset == market.NativeAsset {
		_, err := b.client.transferNative(ctx, to, amount)
		return err
	}
	_, err := b.client.transact(ctx, asset, erc20ABI, "transfer", to, amount)
	return err
}
