package twap

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"twap-engine/internal/domain"
	"twap-engine/internal/market"
	"twap-engine/internal/market/stub"
)

var (
	owner    = common.Address{19: 0xA1}
	executor = common.Address{19: 0xA2}
	self     = common.Address{19: 0xA3}
	assetIn  = common.Address{19: 0xB1}
	assetOut = common.Address{19: 0xB2}
	venue    = common.Address{19: 0xC1}
	feed     = common.Address{19: 0xC2}
)

// harness bundles an engine with its stub capabilities and a settable
// clock.
type harness struct {
	engine *Engine
	oracle *stub.Oracle
	venue  *stub.Venue
	bank   *stub.Bank
	clock  uint64
}

func newHarness(t *testing.T, price *big.Int) *harness {
	t.Helper()
	h := &harness{
		oracle: stub.NewOracle(price),
		venue:  stub.NewVenue(),
		bank:   stub.NewBank(),
		clock:  1000,
	}
	engine, err := New(Options{
		Owner:    owner,
		Executor: executor,
		Self:     self,
		Oracle:   h.oracle,
		Venue:    h.venue,
		Bank:     h.bank,
		Now:      func() uint64 { return h.clock },
	})
	require.NoError(t, err)
	h.engine = engine
	return h
}

func e18i(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), domain.PriceScale)
}

func testStrategy() domain.Strategy {
	return domain.Strategy{
		AssetIn:              assetIn,
		AssetOut:             assetOut,
		Venue:                venue,
		Oracle:               feed,
		TotalAmountIn:        e18i(10),
		SliceAmountIn:        e18i(3),
		StartTime:            2000,
		EndTime:              3000,
		MaxSlippageBps:       100,
		MaxPriceDeviationBps: 250,
	}
}

// configure installs the test strategy and resumes execution.
func (h *harness) configure(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Configure(context.Background(), owner, testStrategy()))
	require.NoError(t, h.engine.Resume(owner))
}

func TestNewRejectsZeroExecutor(t *testing.T) {
	_, err := New(Options{Owner: owner})
	require.ErrorIs(t, err, ErrZeroExecutor)
}

func TestConfigure(t *testing.T) {
	t.Run("installs strategy and captures reference price", func(t *testing.T) {
		h := newHarness(t, e18i(2))
		require.NoError(t, h.engine.Configure(context.Background(), owner, testStrategy()))

		require.Equal(t, uint64(4), h.engine.SliceCount()) // ceil(10/3)
		require.Equal(t, e18i(2), h.engine.ReferencePrice())
		require.Equal(t, domain.StatusOpen, h.engine.Status())
		require.Equal(t, uint64(1), h.engine.OrderSeq())
		require.True(t, h.engine.Paused())
	})

	t.Run("owner only", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		err := h.engine.Configure(context.Background(), executor, testStrategy())
		require.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("requires quiescence", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		require.NoError(t, h.engine.Resume(owner))
		err := h.engine.Configure(context.Background(), owner, testStrategy())
		require.ErrorIs(t, err, ErrNotQuiesced)
	})

	t.Run("rejects non-positive oracle price", func(t *testing.T) {
		h := newHarness(t, big.NewInt(0))
		err := h.engine.Configure(context.Background(), owner, testStrategy())
		require.ErrorIs(t, err, ErrInvalidOraclePrice)
		_, configured := h.engine.Strategy()
		require.False(t, configured)
	})

	t.Run("validation failure leaves prior strategy intact", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		require.NoError(t, h.engine.Configure(context.Background(), owner, testStrategy()))

		bad := testStrategy()
		bad.EndTime = bad.StartTime
		err := h.engine.Configure(context.Background(), owner, bad)
		require.ErrorIs(t, err, domain.ErrInvalidWindow)

		s, configured := h.engine.Strategy()
		require.True(t, configured)
		require.Equal(t, uint64(3000), s.EndTime)
		require.Equal(t, uint64(1), h.engine.OrderSeq())
	})
}

func TestExecuteSliceFillsOrder(t *testing.T) {
	h := newHarness(t, e18i(1))
	h.configure(t)
	h.clock = 3000 // all four slices past schedule

	// Slices of 3+3+3+1 complete the 10-unit order.
	for i, want := range []int64{3, 3, 3, 1} {
		fill, err := h.engine.ExecuteSlice(context.Background(), executor, uint64(i))
		require.NoError(t, err)
		require.Equal(t, e18i(want), fill.AmountIn)
		require.Equal(t, uint64(1), fill.OrderSeq)
	}

	require.Equal(t, domain.StatusFilled, h.engine.Status())
	filled, received, fee := h.engine.Progress()
	require.Equal(t, e18i(10), filled)
	require.Zero(t, fee.Sign())
	// Stub venue returns exactly minOut: 1% below notional at price 1.
	wantOut := new(big.Int).Mul(e18i(10), big.NewInt(9900))
	wantOut.Div(wantOut, big.NewInt(10000))
	require.Equal(t, wantOut, received)

	// A fifth execution hits the completion flag, and the order is closed.
	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.ErrorIs(t, err, ErrOrderClosed)
}

func TestExecuteSliceStatusProgression(t *testing.T) {
	h := newHarness(t, e18i(1))
	h.configure(t)
	h.clock = 3000

	require.Equal(t, domain.StatusOpen, h.engine.Status())
	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPartialFilled, h.engine.Status())
}

func TestExecuteSliceRejections(t *testing.T) {
	t.Run("executor only", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		h.configure(t)
		h.clock = 3000
		_, err := h.engine.ExecuteSlice(context.Background(), owner, 0)
		require.ErrorIs(t, err, ErrNotExecutor)
	})

	t.Run("paused", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		require.NoError(t, h.engine.Configure(context.Background(), owner, testStrategy()))
		h.clock = 3000
		_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
		require.ErrorIs(t, err, ErrQuiesced)
	})

	t.Run("no strategy", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		require.NoError(t, h.engine.Resume(owner))
		_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
		require.ErrorIs(t, err, ErrNoStrategy)
	})

	t.Run("out of range", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		h.configure(t)
		h.clock = 3000
		_, err := h.engine.ExecuteSlice(context.Background(), executor, 4)
		require.ErrorIs(t, err, ErrSliceOutOfRange)
	})

	t.Run("already done", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		h.configure(t)
		h.clock = 3000
		_, err := h.engine.ExecuteSlice(context.Background(), executor, 1)
		require.NoError(t, err)
		_, err = h.engine.ExecuteSlice(context.Background(), executor, 1)
		require.ErrorIs(t, err, ErrSliceAlreadyDone)
	})

	t.Run("too early", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		h.configure(t)
		// Interval is 250; slice 1 opens at 2250.
		h.clock = 2249
		_, err := h.engine.ExecuteSlice(context.Background(), executor, 1)
		require.ErrorIs(t, err, ErrTooEarly)
		h.clock = 2250
		_, err = h.engine.ExecuteSlice(context.Background(), executor, 1)
		require.NoError(t, err)
	})

	t.Run("permitted after endTime", func(t *testing.T) {
		h := newHarness(t, e18i(1))
		h.configure(t)
		h.clock = 999_999
		_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
		require.NoError(t, err)
	})
}

func TestExecuteSliceDeviationGuard(t *testing.T) {
	h := newHarness(t, e18i(1))
	h.configure(t)
	h.clock = 3000

	// Quote doubles after the reference was captured.
	h.oracle.SetPrice(e18i(2))
	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.ErrorIs(t, err, ErrPriceDeviation)

	// The venue was never invoked and nothing committed.
	require.Empty(t, h.venue.Calls())
	filled, _, _ := h.engine.Progress()
	require.Zero(t, filled.Sign())
	done, err := h.engine.SliceDone(0)
	require.NoError(t, err)
	require.False(t, done)
}

func TestExecuteSliceSlippageGuard(t *testing.T) {
	h := newHarness(t, e18i(1))
	h.configure(t)
	h.clock = 3000

	// Venue fills but returns one unit under the minimum output.
	h.venue.Handler = func(call stub.SwapCall) (market.SwapResult, error) {
		short := new(big.Int).Sub(call.MinOut, big.NewInt(1))
		return market.SwapResult{
			Filled:   new(big.Int).Set(call.AmountIn),
			Received: short,
			Fee:      new(big.Int),
		}, nil
	}
	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.ErrorIs(t, err, ErrSlippage)

	// Rejected after the external call: no ledger mutation.
	filled, received, _ := h.engine.Progress()
	require.Zero(t, filled.Sign())
	require.Zero(t, received.Sign())
	done, err := h.engine.SliceDone(0)
	require.NoError(t, err)
	require.False(t, done)
}

func TestExecuteSliceInvalidFill(t *testing.T) {
	h := newHarness(t, e18i(1))
	h.configure(t)
	h.clock = 3000

	// Venue claims to have consumed more than it was given.
	h.venue.Handler = func(call stub.SwapCall) (market.SwapResult, error) {
		over := new(big.Int).Add(call.AmountIn, big.NewInt(1))
		return market.SwapResult{
			Filled:   over,
			Received: new(big.Int).Set(call.MinOut),
			Fee:      new(big.Int),
		}, nil
	}
	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.ErrorIs(t, err, ErrInvalidFill)
}

func TestExecuteSliceAllowancePattern(t *testing.T) {
	h := newHarness(t, e18i(1))
	h.configure(t)
	h.clock = 3000

	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.NoError(t, err)

	approves := h.bank.Approves()
	require.Len(t, approves, 2)
	require.Equal(t, assetIn, approves[0].Asset)
	require.Equal(t, venue, approves[0].Spender)
	require.Zero(t, approves[0].Amount.Sign())
	require.Equal(t, e18i(3), approves[1].Amount)
}

func TestReconfigureResetsLedger(t *testing.T) {
	h := newHarness(t, e18i(1))
	h.configure(t)
	h.clock = 3000
	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.NoError(t, err)

	require.NoError(t, h.engine.Pause(owner))
	next := testStrategy()
	next.StartTime = 4000
	next.EndTime = 5000
	require.NoError(t, h.engine.Configure(context.Background(), owner, next))

	require.Equal(t, uint64(2), h.engine.OrderSeq())
	require.Equal(t, domain.StatusOpen, h.engine.Status())
	filled, _, _ := h.engine.Progress()
	require.Zero(t, filled.Sign())
	done, err := h.engine.SliceDone(0)
	require.NoError(t, err)
	require.False(t, done)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, e18i(1))
	h.configure(t)

	require.NoError(t, h.engine.Cancel(owner))
	require.Equal(t, domain.StatusCancelled, h.engine.Status())
	require.True(t, h.engine.Paused())

	// Terminal: no second cancel, no execution.
	require.ErrorIs(t, h.engine.Cancel(owner), ErrOrderClosed)
	require.NoError(t, h.engine.Resume(owner))
	h.clock = 3000
	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.ErrorIs(t, err, ErrOrderClosed)

	// A cancelled engine accepts a fresh configuration.
	require.NoError(t, h.engine.Pause(owner))
	next := testStrategy()
	next.StartTime = 4000
	next.EndTime = 5000
	require.NoError(t, h.engine.Configure(context.Background(), owner, next))
	require.Equal(t, domain.StatusOpen, h.engine.Status())
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t, e18i(1))
	require.ErrorIs(t, h.engine.Pause(executor), ErrNotOwner)
	require.ErrorIs(t, h.engine.Resume(executor), ErrNotOwner)

	require.NoError(t, h.engine.Pause(owner))
	require.NoError(t, h.engine.Pause(owner))
	require.True(t, h.engine.Paused())
	require.NoError(t, h.engine.Resume(owner))
	require.NoError(t, h.engine.Resume(owner))
	require.False(t, h.engine.Paused())
}

func TestSetExecutor(t *testing.T) {
	h := newHarness(t, e18i(1))
	h.configure(t)

	require.ErrorIs(t, h.engine.SetExecutor(executor, executor), ErrNotOwner)
	require.ErrorIs(t, h.engine.SetExecutor(owner, common.Address{}), ErrZeroExecutor)
	require.ErrorIs(t, h.engine.SetExecutor(owner, venue), domain.ErrVenueExecutorCollision)

	next := common.Address{19: 0xA9}
	require.NoError(t, h.engine.SetExecutor(owner, next))
	require.Equal(t, next, h.engine.Executor())

	// The old identity is no longer authorized.
	h.clock = 3000
	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.ErrorIs(t, err, ErrNotExecutor)
	_, err = h.engine.ExecuteSlice(context.Background(), next, 0)
	require.NoError(t, err)
}

func TestSweep(t *testing.T) {
	h := newHarness(t, e18i(1))
	recipient := common.Address{19: 0xD1}

	require.ErrorIs(t, h.engine.Sweep(context.Background(), executor, assetIn, recipient), ErrNotOwner)
	require.ErrorIs(t, h.engine.Sweep(context.Background(), owner, assetIn, common.Address{}), ErrZeroRecipient)

	// Zero balance is a no-op.
	require.NoError(t, h.engine.Sweep(context.Background(), owner, assetIn, recipient))

	h.bank.SetBalance(assetIn, self, e18i(7))
	require.NoError(t, h.engine.Sweep(context.Background(), owner, assetIn, recipient))
	bal, err := h.bank.BalanceOf(context.Background(), assetIn, recipient)
	require.NoError(t, err)
	require.Equal(t, e18i(7), bal)

	// Native asset sweeps through the zero address namespace.
	h.bank.SetBalance(market.NativeAsset, self, e18i(1))
	require.NoError(t, h.engine.Sweep(context.Background(), owner, market.NativeAsset, recipient))
	bal, err = h.bank.BalanceOf(context.Background(), market.NativeAsset, recipient)
	require.NoError(t, err)
	require.Equal(t, e18i(1), bal)
}

// recordingNotifier captures notifications for ordering assertions.
type recordingNotifier struct {
	fills  []domain.FillRecord
	events []domain.OrderEvent
}

func (r *recordingNotifier) Fill(f domain.FillRecord)        { r.fills = append(r.fills, f) }
func (r *recordingNotifier) OrderStatus(e domain.OrderEvent) { r.events = append(r.events, e) }

func TestNotifications(t *testing.T) {
	h := newHarness(t, e18i(1))
	rec := &recordingNotifier{}
	h.engine.notifier = rec

	h.configure(t)
	require.Len(t, rec.events, 1)
	require.Equal(t, domain.CauseConfigure, rec.events[0].Cause)
	require.Equal(t, domain.StatusOpen, rec.events[0].Status)

	h.clock = 3000
	_, err := h.engine.ExecuteSlice(context.Background(), executor, 0)
	require.NoError(t, err)
	require.Len(t, rec.fills, 1)
	require.Equal(t, e18i(3), rec.fills[0].AmountIn)
	require.Len(t, rec.events, 2)
	require.Equal(t, domain.CauseFill, rec.events[1].Cause)
	require.Equal(t, e18i(3), rec.events[1].FilledAmountIn)

	require.NoError(t, h.engine.Cancel(owner))
	require.Len(t, rec.events, 3)
	require.Equal(t, domain.CauseCancel, rec.events[2].Cause)
	require.Equal(t, domain.StatusCancelled, rec.events[2].Status)
}
