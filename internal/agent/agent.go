// Package agent implements the executor agent: it watches the engine's
// read-only surface and submits eligible slice executions. Scheduling,
// retries and backoff live here, entirely outside the engine core.
package agent

import (
	"context"
	"math/big"

	"twap-engine/internal/domain"
)

// SliceView is the schedule state of one slice.
type SliceView struct {
	Done        bool
	ScheduledAt uint64
}

// OrderView is the snapshot the agent plans against.
type OrderView struct {
	Configured bool
	Status     domain.OrderStatus
	Paused     bool

	FilledAmountIn *big.Int
	TotalAmountIn  *big.Int

	StartTime uint64
	EndTime   uint64
	Slices    []SliceView
}

// Engine is the surface the agent drives: the in-process engine or a
// remote twapd instance.
type Engine interface {
	// Order returns the current order snapshot.
	Order(ctx context.Context) (OrderView, error)

	// ExecuteSlice submits one slice execution as the authorized
	// executor.
	ExecuteSlice(ctx context.Context, sliceID uint64) error
}
