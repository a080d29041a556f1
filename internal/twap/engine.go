// Package twap implements the time-sliced order-execution engine: strategy
// configuration, slice scheduling, price and slippage guards, fill
// accounting, and the admin controls layered over them.
//
// The engine is the single writer of its own state. Every state-changing
// operation holds one mutex for its whole duration, so an operation is
// applied entirely or not at all. The only external calls made while an
// operation is in flight are the oracle query and the venue swap; every
// guard runs before the venue is invoked and the ledger commits only after
// the venue's result has been validated. The structural defense against a
// venue calling back in is configuration-time: the venue identity can never
// equal the authorized executor identity.
package twap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"twap-engine/internal/domain"
	"twap-engine/internal/market"
	"twap-engine/internal/notify"
	"twap-engine/internal/observability"
)

// Options configures an Engine.
type Options struct {
	// Owner is the configuration authority.
	Owner common.Address

	// Executor is the initially authorized execution identity. Must be
	// non-zero.
	Executor common.Address

	// Self is the engine's own custody identity at the Bank.
	Self common.Address

	// Oracle, Venue and Bank are the in-process bindings of the
	// capability addresses the strategy names.
	Oracle market.Oracle
	Venue  market.Venue
	Bank   market.Bank

	// Notifier receives Fill and OrderStatus notifications. Optional.
	Notifier notify.Notifier

	// Metrics records engine counters. Optional.
	Metrics *observability.Metrics

	// Now supplies the current unix time. Defaults to the wall clock.
	Now func() uint64

	Logger *zap.Logger
}

// Engine owns the active strategy, its reference price, the accounting
// ledger, and the quiescence/status flags. It starts quiesced with no
// strategy installed.
type Engine struct {
	mu sync.Mutex

	owner    common.Address
	executor common.Address
	self     common.Address

	oracle market.Oracle
	venue  market.Venue
	bank   market.Bank

	notifier notify.Notifier
	metrics  *observability.Metrics
	now      func() uint64
	logger   *zap.Logger

	strategy   *domain.Strategy
	refPrice   *big.Int
	ledger     *Ledger
	sliceCount uint64
	status     domain.OrderStatus
	paused     bool
	orderSeq   uint64
}

// New creates an Engine. The engine starts paused so the owner can install
// the first strategy.
func New(opts Options) (*Engine, error) {
	if opts.Executor == (common.Address{}) {
		return nil, ErrZeroExecutor
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	now := opts.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Engine{
		owner:    opts.Owner,
		executor: opts.Executor,
		self:     opts.Self,
		oracle:   opts.Oracle,
		venue:    opts.Venue,
		bank:     opts.Bank,
		notifier: notifier,
		metrics:  opts.Metrics,
		now:      now,
		logger:   logger,
		status:   domain.StatusOpen,
		paused:   true,
	}, nil
}

// Configure validates and atomically installs a new strategy: the previous
// slice-done state is discarded, the ledger resets to zero, the oracle
// price is captured as the deviation reference, and status returns to Open.
// Callable only by the owner while the engine is paused.
func (e *Engine) Configure(ctx context.Context, caller common.Address, s domain.Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return ErrNotOwner
	}
	if !e.paused {
		return ErrNotQuiesced
	}
	if err := s.Validate(e.now(), e.executor); err != nil {
		return err
	}

	price, err := e.oracle.Price(ctx, s.AssetIn, s.AssetOut)
	if err != nil {
		return fmt.Errorf("query oracle: %w", err)
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidOraclePrice
	}

	// All checks passed; install everything or nothing.
	installed := s.Clone()
	count := SliceCount(installed)
	e.strategy = installed
	e.refPrice = new(big.Int).Set(price)
	e.ledger = NewLedger(count)
	e.sliceCount = count
	e.status = domain.StatusOpen
	e.orderSeq++

	e.logger.Info("strategy configured",
		zap.Uint64("order_seq", e.orderSeq),
		zap.String("asset_in", installed.AssetIn.Hex()),
		zap.String("asset_out", installed.AssetOut.Hex()),
		zap.String("total_amount_in", installed.TotalAmountIn.String()),
		zap.String("slice_amount_in", installed.SliceAmountIn.String()),
		zap.Uint64("slice_count", count),
		zap.String("reference_price", e.refPrice.String()),
	)
	if e.metrics != nil {
		e.metrics.Configurations.Inc()
		e.metrics.OrderStatusValue.Set(float64(e.status))
	}
	e.notifier.OrderStatus(e.orderEvent(domain.CauseConfigure))
	return nil
}

// ExecuteSlice runs one slice through the venue. Callable only by the
// authorized executor while the engine is not paused. The sequence is
// fixed: lifecycle and schedule checks, oracle quote, deviation guard,
// minimum-output computation, one-shot allowance, venue swap, result
// validation, then commit and notifications. Any failure aborts with no
// ledger mutation.
func (e *Engine) ExecuteSlice(ctx context.Context, caller common.Address, sliceID uint64) (domain.FillRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fill, err := e.executeSlice(ctx, caller, sliceID)
	if err != nil {
		if e.metrics != nil {
			e.metrics.SliceRejections.WithLabelValues(rejectReason(err)).Inc()
		}
		return domain.FillRecord{}, err
	}
	if e.metrics != nil {
		e.metrics.SlicesExecuted.Inc()
		e.metrics.OrderStatusValue.Set(float64(e.status))
	}
	return fill, nil
}

func (e *Engine) executeSlice(ctx context.Context, caller common.Address, sliceID uint64) (domain.FillRecord, error) {
	var zero domain.FillRecord

	if caller != e.executor {
		return zero, ErrNotExecutor
	}
	if e.paused {
		return zero, ErrQuiesced
	}
	if e.strategy == nil {
		return zero, ErrNoStrategy
	}
	if e.status.Terminal() {
		return zero, ErrOrderClosed
	}
	if sliceID >= e.sliceCount {
		return zero, ErrSliceOutOfRange
	}
	if e.ledger.Done(sliceID) {
		return zero, ErrSliceAlreadyDone
	}
	// No upper bound at endTime: execution stays permitted after the
	// nominal window closes.
	if e.now() < ScheduledTime(e.strategy, sliceID) {
		return zero, ErrTooEarly
	}

	amountIn := new(big.Int).Sub(e.strategy.TotalAmountIn, e.ledger.Filled())
	if amountIn.Cmp(e.strategy.SliceAmountIn) > 0 {
		amountIn.Set(e.strategy.SliceAmountIn)
	}
	if amountIn.Sign() <= 0 {
		return zero, ErrNothingRemaining
	}

	price, err := e.oracle.Price(ctx, e.strategy.AssetIn, e.strategy.AssetOut)
	if err != nil {
		return zero, fmt.Errorf("query oracle: %w", err)
	}
	if price == nil || price.Sign() <= 0 {
		return zero, ErrInvalidOraclePrice
	}
	if err := CheckDeviation(price, e.refPrice, e.strategy.MaxPriceDeviationBps); err != nil {
		return zero, err
	}
	minOut, err := MinOut(amountIn, price, e.strategy.MaxSlippageBps)
	if err != nil {
		return zero, err
	}

	// One-shot allowance, zero-then-set for non-conforming assets.
	if err := e.bank.Approve(ctx, e.strategy.AssetIn, e.strategy.Venue, new(big.Int)); err != nil {
		return zero, fmt.Errorf("reset allowance: %w", err)
	}
	if err := e.bank.Approve(ctx, e.strategy.AssetIn, e.strategy.Venue, amountIn); err != nil {
		return zero, fmt.Errorf("grant allowance: %w", err)
	}

	res, err := e.venue.Swap(ctx, e.strategy.AssetIn, e.strategy.AssetOut, amountIn, minOut)
	if err != nil {
		return zero, fmt.Errorf("venue swap: %w", err)
	}
	if e.metrics != nil {
		e.metrics.VenueSwaps.Inc()
	}
	if res.Filled == nil || res.Filled.Sign() <= 0 || res.Filled.Cmp(amountIn) > 0 {
		return zero, ErrInvalidFill
	}
	if res.Received == nil || res.Received.Cmp(minOut) < 0 {
		return zero, ErrSlippage
	}

	// Commit.
	e.ledger.Apply(res.Filled, res.Received, res.Fee)
	e.ledger.MarkDone(sliceID)
	switch {
	case e.ledger.Filled().Cmp(e.strategy.TotalAmountIn) >= 0:
		e.status = domain.StatusFilled
	case e.ledger.Filled().Sign() > 0:
		e.status = domain.StatusPartialFilled
	default:
		e.status = domain.StatusOpen
	}

	fee := new(big.Int)
	if res.Fee != nil {
		fee.Set(res.Fee)
	}
	fill := domain.FillRecord{
		OrderSeq:   e.orderSeq,
		SliceID:    sliceID,
		AmountIn:   new(big.Int).Set(res.Filled),
		AmountOut:  new(big.Int).Set(res.Received),
		Fee:        fee,
		ExecutedAt: time.Unix(int64(e.now()), 0).UTC(),
	}
	e.logger.Info("slice executed",
		zap.Uint64("slice_id", sliceID),
		zap.String("amount_in", fill.AmountIn.String()),
		zap.String("amount_out", fill.AmountOut.String()),
		zap.String("status", e.status.String()),
	)
	e.notifier.Fill(fill)
	e.notifier.OrderStatus(e.orderEvent(domain.CauseFill))
	return fill, nil
}

// Pause quiesces the engine: slice execution is disabled and configuration
// becomes permitted. Idempotent. Owner only.
func (e *Engine) Pause(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotOwner
	}
	e.paused = true
	return nil
}

// Resume lifts quiescence. Idempotent. Owner only.
func (e *Engine) Resume(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotOwner
	}
	e.paused = false
	return nil
}

// Cancel terminates the order irreversibly: status becomes Cancelled and
// the engine is forced quiescent. Fails if the order is already Filled or
// Cancelled. Owner only.
func (e *Engine) Cancel(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotOwner
	}
	if e.status.Terminal() {
		return ErrOrderClosed
	}
	e.status = domain.StatusCancelled
	e.paused = true
	e.logger.Info("order cancelled", zap.Uint64("order_seq", e.orderSeq))
	if e.metrics != nil {
		e.metrics.OrderStatusValue.Set(float64(e.status))
	}
	e.notifier.OrderStatus(e.orderEvent(domain.CauseCancel))
	return nil
}

// Sweep transfers the engine's entire balance of asset to the recipient.
// The zero asset address designates the native currency. Unrestricted by
// order status. Owner only.
func (e *Engine) Sweep(ctx context.Context, caller common.Address, asset, to common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotOwner
	}
	if to == (common.Address{}) {
		return ErrZeroRecipient
	}
	bal, err := e.bank.BalanceOf(ctx, asset, e.self)
	if err != nil {
		return fmt.Errorf("query balance: %w", err)
	}
	if bal.Sign() == 0 {
		return nil
	}
	if err := e.bank.Transfer(ctx, asset, to, bal); err != nil {
		return fmt.Errorf("sweep transfer: %w", err)
	}
	e.logger.Info("swept",
		zap.String("asset", asset.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", bal.String()),
	)
	return nil
}

// SetExecutor replaces the authorized executor identity. The new identity
// must be non-zero and must differ from the current strategy's venue.
// Owner only.
func (e *Engine) SetExecutor(caller common.Address, newExecutor common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotOwner
	}
	if newExecutor == (common.Address{}) {
		return ErrZeroExecutor
	}
	if e.strategy != nil && e.strategy.Venue == newExecutor {
		return domain.ErrVenueExecutorCollision
	}
	e.executor = newExecutor
	return nil
}

// orderEvent snapshots the cumulative totals. Caller holds e.mu.
func (e *Engine) orderEvent(cause string) domain.OrderEvent {
	ev := domain.OrderEvent{
		OrderSeq:          e.orderSeq,
		FilledAmountIn:    new(big.Int),
		ReceivedAmountOut: new(big.Int),
		AccruedFee:        new(big.Int),
		Status:            e.status,
		Cause:             cause,
		ObservedAt:        time.Unix(int64(e.now()), 0).UTC(),
	}
	if e.ledger != nil {
		ev.FilledAmountIn = e.ledger.Filled()
		ev.ReceivedAmountOut = e.ledger.Received()
		ev.AccruedFee = e.ledger.Fee()
	}
	return ev
}

// rejectReason maps an execution failure to a bounded metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNotExecutor):
		return "not_executor"
	case errors.Is(err, ErrQuiesced):
		return "paused"
	case errors.Is(err, ErrNoStrategy):
		return "no_strategy"
	case errors.Is(err, ErrOrderClosed):
		return "order_closed"
	case errors.Is(err, ErrSliceOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrSliceAlreadyDone):
		return "already_done"
	case errors.Is(err, ErrTooEarly):
		return "too_early"
	case errors.Is(err, ErrNothingRemaining):
		return "nothing_remaining"
	case errors.Is(err, ErrInvalidOraclePrice):
		return "oracle_price"
	case errors.Is(err, ErrPriceDeviation):
		return "price_deviation"
	case errors.Is(err, ErrMinOutZero):
		return "min_out_zero"
	case errors.Is(err, ErrInvalidFill):
		return "invalid_fill"
	case errors.Is(err, ErrSlippage):
		return "slippage"
	default:
		return "other"
	}
}
