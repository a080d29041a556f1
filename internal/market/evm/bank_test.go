package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"twap-engine/internal/market"
)

// fakeBackend scripts the node surface: every transaction sent is
// recorded and reported mined successfully.
type fakeBackend struct {
	balance *big.Int
	sent    []*types.Transaction
}

var _ backend = (*fakeBackend)(nil)

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{}, nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x01}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return nativeTransferGas, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	for _, tx := range f.sent {
		if tx.Hash() == txHash {
			return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	if f.balance == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(f.balance), nil
}

func newTestClient(t *testing.T, fake *fakeBackend) *Client {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &Client{
		eth:     fake,
		key:     key,
		chainID: big.NewInt(1),
		From:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

func TestBankNativeTransfer(t *testing.T) {
	fake := &fakeBackend{}
	client := newTestClient(t, fake)
	bank := NewBank(client)
	to := common.Address{19: 0xD1}
	amount := big.NewInt(123_456)

	require.NoError(t, bank.Transfer(context.Background(), market.NativeAsset, to, amount))

	require.Len(t, fake.sent, 1)
	tx := fake.sent[0]
	require.Equal(t, to, *tx.To())
	require.Equal(t, amount, tx.Value())
	require.EqualValues(t, nativeTransferGas, tx.Gas())
	require.EqualValues(t, 7, tx.Nonce())

	// The transaction is signed by the client identity.
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), tx)
	require.NoError(t, err)
	require.Equal(t, client.From, sender)
}

func TestBankNativeBalance(t *testing.T) {
	fake := &fakeBackend{balance: big.NewInt(42)}
	bank := NewBank(newTestClient(t, fake))

	bal, err := bank.BalanceOf(context.Background(), market.NativeAsset, common.Address{19: 0xD2})
	require.NoError(t, err)
	require.Equal(t, big.NewInt(42), bal)
}

func TestBankNativeApproveUnsupported(t *testing.T) {
	fake := &fakeBackend{}
	bank := NewBank(newTestClient(t, fake))

	err := bank.Approve(context.Background(), market.NativeAsset, common.Address{19: 0xD3}, big.NewInt(1))
	require.Error(t, err)
	require.Empty(t, fake.sent)
}
