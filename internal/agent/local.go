package agent

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"twap-engine/internal/twap"
)

// LocalEngine adapts an in-process engine to the agent's Engine surface,
// calling as a fixed executor identity.
type LocalEngine struct {
	engine *twap.Engine
	caller common.Address
}

// NewLocalEngine creates the in-process adapter.
func NewLocalEngine(engine *twap.Engine, caller common.Address) *LocalEngine {
	return &LocalEngine{engine: engine, caller: caller}
}

// Compile-time interface check.
var _ Engine = (*LocalEngine)(nil)

// Order snapshots the engine's read-only surface.
func (l *LocalEngine) Order(_ context.Context) (OrderView, error) {
	strategy, configured := l.engine.Strategy()
	filled, _, _ := l.engine.Progress()

	view := OrderView{
		Configured:     configured,
		Status:         l.engine.Status(),
		Paused:         l.engine.Paused(),
		FilledAmountIn: filled,
	}
	if !configured {
		return view, nil
	}

	view.TotalAmountIn = strategy.TotalAmountIn
	view.StartTime = strategy.StartTime
	view.EndTime = strategy.EndTime

	count := l.engine.SliceCount()
	view.Slices = make([]SliceView, count)
	for i := uint64(0); i < count; i++ {
		done, err := l.engine.SliceDone(i)
		if err != nil {
			return OrderView{}, err
		}
		at, err := l.engine.ScheduledAt(i)
		if err != nil {
			return OrderView{}, err
		}
		view.Slices[i] = SliceView{Done: done, ScheduledAt: at}
	}
	return view, nil
}

// ExecuteSlice submits one slice as the configured executor identity.
func (l *LocalEngine) ExecuteSlice(ctx context.Context, sliceID uint64) error {
	_, err := l.engine.ExecuteSlice(ctx, l.caller, sliceID)
	return err
}
