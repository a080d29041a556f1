// Package stub provides deterministic in-memory implementations of the
// market capabilities for tests.
package stub

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"twap-engine/internal/market"
)

// Oracle implements market.Oracle with a settable quote.
type Oracle struct {
	mu    sync.Mutex
	price *big.Int
	err   error
	calls int
}

// NewOracle creates a stub oracle quoting price for every pair.
func NewOracle(price *big.Int) *Oracle {
	return &Oracle{price: price}
}

// SetPrice replaces the current quote.
func (o *Oracle) SetPrice(price *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.price = price
}

// Fail makes every subsequent query return err.
func (o *Oracle) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Calls returns the number of queries served.
func (o *Oracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// Price returns the scripted quote.
func (o *Oracle) Price(_ context.Context, _, _ common.Address) (*big.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	if o.price == nil {
		return nil, nil
	}
	return new(big.Int).Set(o.price), nil
}

// SwapCall records one venue invocation.
type SwapCall struct {
	AssetIn  common.Address
	AssetOut common.Address
	AmountIn *big.Int
	MinOut   *big.Int
}

// Venue implements market.Venue with scriptable behavior. The default
// handler fills the full amountIn and returns exactly minOut with no fee.
type Venue struct {
	mu sync.Mutex

	// Handler overrides the default swap behavior when set.
	Handler func(call SwapCall) (market.SwapResult, error)

	calls []SwapCall
}

// NewVenue creates a stub venue.
func NewVenue() *Venue {
	return &Venue{}
}

// Calls returns a copy of the recorded invocations.
func (v *Venue) Calls() []SwapCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]SwapCall, len(v.calls))
	copy(out, v.calls)
	return out
}

// Swap records the call and runs the scripted behavior.
func (v *Venue) Swap(_ context.Context, assetIn, assetOut common.Address, amountIn, minOut *big.Int) (market.SwapResult, error) {
	call := SwapCall{
		AssetIn:  assetIn,
		AssetOut: assetOut,
		AmountIn: new(big.Int).Set(amountIn),
		MinOut:   new(big.Int).Set(minOut),
	}

	v.mu.Lock()
	v.calls = append(v.calls, call)
	handler := v.Handler
	v.mu.Unlock()

	if handler != nil {
		return handler(call)
	}
	return market.SwapResult{
		Filled:   new(big.Int).Set(amountIn),
		Received: new(big.Int).Set(minOut),
		Fee:      new(big.Int),
	}, nil
}

// ApproveCall records one allowance grant.
type ApproveCall struct {
	Asset   common.Address
	Spender common.Address
	Amount  *big.Int
}

// Bank implements market.Bank with in-memory balances. It records the full
// Approve sequence so tests can assert the zero-then-set pattern.
type Bank struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*big.Int // asset -> holder -> amount
	approves []ApproveCall
}

// NewBank creates a stub bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// SetBalance sets a holder's balance of an asset.
func (b *Bank) SetBalance(asset, holder common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[asset] == nil {
		b.balances[asset] = make(map[common.Address]*big.Int)
	}
	b.balances[asset][holder] = new(big.Int).Set(amount)
}

// Approves returns a copy of the recorded allowance grants.
func (b *Bank) Approves() []ApproveCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ApproveCall, len(b.approves))
	copy(out, b.approves)
	return out
}

// BalanceOf returns the holder's balance, zero if unknown.
func (b *Bank) BalanceOf(_ context.Context, asset, holder common.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if holders := b.balances[asset]; holders != nil {
		if bal := holders[holder]; bal != nil {
			return new(big.Int).Set(bal), nil
		}
	}
	return new(big.Int), nil
}

// Approve records the allowance grant.
func (b *Bank) Approve(_ context.Context, asset, spender common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.approves = append(b.approves, ApproveCall{
		Asset:   asset,
		Spender: spender,
		Amount:  new(big.Int).Set(amount),
	})
	return nil
}

// Transfer moves the engine's holdings out. Balances go negative rather
// than erroring; tests assert the recorded movement.
func (b *Bank) Transfer(_ context.Context, asset, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[asset] == nil {
		b.balances[asset] = make(map[common.Address]*big.Int)
	}
	bal := b.balances[asset][to]
	if bal == nil {
		bal = new(big.Int)
	}
	b.balances[asset][to] = new(big.Int).Add(bal, amount)
	return nil
}

// Compile-time interface checks.
var (
	_ market.Oracle = (*Oracle)(nil)
	_ market.Venue  = (*Venue)(nil)
	_ market.Bank   = (*Bank)(nil)
)
