package twap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"twap-engine/internal/domain"
)

// Read-only surface. Every accessor takes the engine lock and returns
// copies, never engine-owned state.

// Strategy returns a copy of the active strategy, or false if none is
// configured.
func (e *Engine) Strategy() (domain.Strategy, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.strategy == nil {
		return domain.Strategy{}, false
	}
	return *e.strategy.Clone(), true
}

// Status returns the current order status.
func (e *Engine) Status() domain.OrderStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Progress returns the cumulative filled input, received output, and
// accrued fee. All zero before the first configuration.
func (e *Engine) Progress() (filled, received, fee *big.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return new(big.Int), new(big.Int), new(big.Int)
	}
	return e.ledger.Filled(), e.ledger.Received(), e.ledger.Fee()
}

// SliceCount returns the active strategy's slice count, zero if none.
func (e *Engine) SliceCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sliceCount
}

// SliceDone reports whether slice sliceID has completed.
func (e *Engine) SliceDone(sliceID uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return false, ErrNoStrategy
	}
	if sliceID >= e.sliceCount {
		return false, ErrSliceOutOfRange
	}
	return e.ledger.Done(sliceID), nil
}

// ScheduledAt returns the earliest-eligible unix time for sliceID.
func (e *Engine) ScheduledAt(sliceID uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.strategy == nil {
		return 0, ErrNoStrategy
	}
	if sliceID >= e.sliceCount {
		return 0, ErrSliceOutOfRange
	}
	return ScheduledTime(e.strategy, sliceID), nil
}

// ReferencePrice returns a copy of the captured reference price, nil if no
// strategy is configured.
func (e *Engine) ReferencePrice() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refPrice == nil {
		return nil
	}
	return new(big.Int).Set(e.refPrice)
}

// Paused reports whether the engine is quiesced.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Executor returns the currently authorized executor identity.
func (e *Engine) Executor() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executor
}

// Owner returns the configuration authority identity.
func (e *Engine) Owner() common.Address {
	return e.owner
}

// OrderSeq returns the sequence number of the active configuration,
// starting at 1 for the first installed strategy.
func (e *Engine) OrderSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orderSeq
}
