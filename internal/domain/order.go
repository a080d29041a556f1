package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OrderStatus is the order-level lifecycle state. Wire values match the
// on-chain enum: Open=0, PartialFilled=1, Filled=2, Cancelled=3.
type OrderStatus uint8

const (
	StatusOpen OrderStatus = iota
	StatusPartialFilled
	StatusFilled
	StatusCancelled
)

// String returns the canonical name of the status.
func (s OrderStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusPartialFilled:
		return "PARTIAL_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status admits no further slice execution.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled
}

// Order-event causes recorded alongside status notifications.
const (
	CauseConfigure = "configure"
	CauseFill      = "fill"
	CauseCancel    = "cancel"
)

// FillRecord is emitted once per successfully executed slice.
type FillRecord struct {
	OrderSeq   uint64
	SliceID    uint64
	AmountIn   *big.Int
	AmountOut  *big.Int
	Fee        *big.Int
	ExecutedAt time.Time
}

// OrderEvent is the cumulative order-status notification, emitted once per
// successful slice and once per configuration or cancellation.
type OrderEvent struct {
	OrderSeq          uint64
	FilledAmountIn    *big.Int
	ReceivedAmountOut *big.Int
	AccruedFee        *big.Int
	Status            OrderStatus
	Cause             string
	ObservedAt        time.Time
}

// QuotePoint is one oracle observation, recorded for offline analysis of
// guard behavior against realized pricing.
type QuotePoint struct {
	AssetIn    common.Address
	AssetOut   common.Address
	Price      *big.Int
	Source     string
	ObservedAt time.Time
}
