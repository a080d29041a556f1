// Package evm provides the production market adapters: an ERC-20 asset
// bank, a router-contract swap venue, and an on-chain price-feed oracle,
// all over a single go-ethereum client.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// backend is the node surface the adapters need. ethclient.Client
// satisfies it; tests substitute a scripted implementation.
type backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client wraps a node connection plus the signing identity the adapters
// transact with.
type Client struct {
	eth     backend
	key     *ecdsa.PrivateKey
	chainID *big.Int
	closer  func()

	// From is the signer's address, which is also the engine's custody
	// identity on chain.
	From common.Address
}

// Dial connects to an EVM node and prepares the signing identity.
// privHex may carry an optional 0x prefix. If chainID is zero it is read
// from the node.
func Dial(ctx context.Context, rpcURL, privHex string, chainID uint64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("parse key: %w", err)
	}

	id := new(big.Int).SetUint64(chainID)
	if chainID == 0 {
		id, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("chain id: %w", err)
		}
	}

	return &Client{
		eth:     eth,
		key:     key,
		chainID: id,
		closer:  eth.Close,
		From:    crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// callView packs, executes a static call and unpacks outputs.
func (c *Client) callView(ctx context.Context, addr common.Address, cABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := cABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	res, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	outs, err := cABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return outs, nil
}

// transact submits a state-changing call through a bound contract and
// waits for it to be mined. Returns the successful receipt.
func (c *Client) transact(ctx context.Context, addr common.Address, cABI abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	auth.Context = ctx

	bound := bind.NewBoundContract(addr, cABI, c.eth, c.eth, c.eth)
	tx, err := bound.Transact(auth, method, args...)
	if err != nil {
		return nil, fmt.Errorf("transact %s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s reverted: tx %s", method, tx.Hash().Hex())
	}
	return receipt, nil
}

// nativeTransferGas is the fixed cost of a plain value transaction.
const nativeTransferGas = 21_000

// transferNative sends a plain value transaction from the signer and
// waits for it to be mined. Returns the successful receipt.
func (c *Client) transferNative(ctx context.Context, to common.Address, amount *big.Int) (*types.Receipt, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.From)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      nativeTransferGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign native transfer: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send native transfer: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return nil, fmt.Errorf("wait mined native transfer: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("native transfer reverted: tx %s", signed.Hash().Hex())
	}
	return receipt, nil
}

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
