// Package domain defines the core entities of the time-sliced execution
// engine: the installed strategy, order lifecycle states, and the records
// emitted or persisted as the order progresses.
package domain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Basis-point guard bounds. 10,000 bps = 100%.
const (
	BpsDenominator = 10_000

	// MaxSlippageCapBps is the hard cap on the per-slice slippage guard.
	MaxSlippageCapBps uint16 = 1_500

	// MaxPriceDeviationCapBps is the hard cap on the reference-price
	// deviation guard.
	MaxPriceDeviationCapBps uint16 = 2_500
)

// PriceScale is the fixed-point scale (1e18) shared by all amounts and
// prices.
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Strategy validation errors, one per violated constraint.
var (
	ErrZeroAsset              = errors.New("strategy: asset address is zero")
	ErrSameAsset              = errors.New("strategy: input and output asset are identical")
	ErrZeroCapability         = errors.New("strategy: venue or oracle address is zero")
	ErrInvalidAmounts         = errors.New("strategy: total and slice amounts must be positive")
	ErrTooManySlices          = errors.New("strategy: slice count exceeds addressable range")
	ErrInvalidWindow          = errors.New("strategy: execution window is invalid")
	ErrBpsOutOfRange          = errors.New("strategy: guard bps exceeds cap")
	ErrVenueExecutorCollision = errors.New("strategy: venue equals executor identity")
)

// Strategy is the configuration installed once per configuration event. It
// mirrors the on-chain layout: 20-byte asset and capability identifiers,
// 1e18 fixed-point amounts, unix-second window bounds, basis-point guards.
type Strategy struct {
	AssetIn  common.Address
	AssetOut common.Address
	Venue    common.Address
	Oracle   common.Address

	TotalAmountIn *big.Int
	SliceAmountIn *big.Int

	StartTime uint64
	EndTime   uint64

	MaxSlippageBps       uint16
	MaxPriceDeviationBps uint16
}

// Validate checks every configuration constraint against the current time
// and the authorized executor identity. It returns the sentinel error for
// the first violated constraint.
func (s *Strategy) Validate(now uint64, executor common.Address) error {
	zero := common.Address{}
	if s.AssetIn == zero || s.AssetOut == zero {
		return ErrZeroAsset
	}
	if s.AssetIn == s.AssetOut {
		return ErrSameAsset
	}
	if s.Venue == zero || s.Oracle == zero {
		return ErrZeroCapability
	}
	if s.TotalAmountIn == nil || s.SliceAmountIn == nil ||
		s.TotalAmountIn.Sign() <= 0 || s.SliceAmountIn.Sign() <= 0 {
		return ErrInvalidAmounts
	}
	// ceil(total/slice) must fit a uint64 slice index.
	q, r := new(big.Int).DivMod(s.TotalAmountIn, s.SliceAmountIn, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsUint64() {
		return ErrTooManySlices
	}
	if s.StartTime <= now || s.EndTime <= s.StartTime {
		return ErrInvalidWindow
	}
	if s.MaxSlippageBps > MaxSlippageCapBps || s.MaxPriceDeviationBps > MaxPriceDeviationCapBps {
		return ErrBpsOutOfRange
	}
	if s.Venue == executor {
		return ErrVenueExecutorCollision
	}
	return nil
}

// Clone returns a deep copy. Big integers are copied so callers cannot
// alias engine-owned state.
func (s *Strategy) Clone() *Strategy {
	c := *s
	if s.TotalAmountIn != nil {
		c.TotalAmountIn = new(big.Int).Set(s.TotalAmountIn)
	}
	if s.SliceAmountIn != nil {
		c.SliceAmountIn = new(big.Int).Set(s.SliceAmountIn)
	}
	return &c
}
