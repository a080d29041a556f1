package agent

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Runner polls the engine and executes the first eligible undone slice.
type Runner struct {
	engine   Engine
	interval time.Duration
	maxRetry int
	logger   *zap.Logger
	now      func() uint64

	terminalLogged bool
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Engine       Engine
	PollInterval time.Duration
	MaxRetry     int
	Logger       *zap.Logger

	// Now supplies the current unix time. Defaults to the wall clock.
	Now func() uint64
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxRetry := opts.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 3
	}
	now := opts.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Runner{
		engine:   opts.Engine,
		interval: interval,
		maxRetry: maxRetry,
		logger:   logger,
		now:      now,
	}
}

// Run polls until the context is cancelled. The loop keeps watching after
// the order turns terminal; a reconfiguration can make it active again.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("agent started", zap.Duration("poll_interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one planning pass.
func (r *Runner) Tick(ctx context.Context) {
	view, err := r.engine.Order(ctx)
	if err != nil {
		r.logger.Warn("read order state", zap.Error(err))
		return
	}
	if !view.Configured {
		r.logger.Debug("no strategy configured")
		return
	}
	if view.Status.Terminal() {
		if !r.terminalLogged {
			r.logger.Info("order terminal",
				zap.String("status", view.Status.String()),
				zap.String("filled_amount_in", view.FilledAmountIn.String()),
			)
			r.terminalLogged = true
		}
		return
	}
	r.terminalLogged = false
	if view.Paused {
		r.logger.Debug("engine paused")
		return
	}

	sliceID, slice, ok := firstUndone(view)
	if !ok {
		return
	}
	now := r.now()
	if now < slice.ScheduledAt {
		r.logger.Info("next slice not yet eligible",
			zap.Uint64("slice_id", sliceID),
			zap.Uint64("scheduled_at", slice.ScheduledAt),
			zap.Uint64("in_seconds", slice.ScheduledAt-now),
		)
		return
	}

	r.execute(ctx, sliceID)
}

func (r *Runner) execute(ctx context.Context, sliceID uint64) {
	var err error
	for attempt := 1; attempt <= r.maxRetry; attempt++ {
		err = r.engine.ExecuteSlice(ctx, sliceID)
		if err == nil {
			r.logger.Info("slice executed", zap.Uint64("slice_id", sliceID))
			return
		}
		if !IsRetryable(err) {
			r.logger.Warn("slice rejected",
				zap.Uint64("slice_id", sliceID),
				zap.Error(err),
			)
			return
		}

		wait := time.Duration(attempt) * time.Second
		r.logger.Warn("slice execution failed, retrying",
			zap.Uint64("slice_id", sliceID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	r.logger.Error("slice execution failed after retries",
		zap.Uint64("slice_id", sliceID),
		zap.Error(err),
	)
}

// firstUndone returns the lowest-indexed slice whose completion flag is
// unset, regardless of schedule.
func firstUndone(view OrderView) (uint64, SliceView, bool) {
	for i, s := range view.Slices {
		if !s.Done {
			return uint64(i), s, true
		}
	}
	return 0, SliceView{}, false
}

// Preflight prints the order snapshot and the next eligible slice.
func Preflight(ctx context.Context, engine Engine, now uint64, w io.Writer) error {
	view, err := engine.Order(ctx)
	if err != nil {
		return fmt.Errorf("read order state: %w", err)
	}

	fmt.Fprintf(w, "Preflight:\n")
	fmt.Fprintf(w, "- time: %d (%s)\n", now, time.Unix(int64(now), 0).UTC().Format(time.RFC3339))
	if !view.Configured {
		fmt.Fprintf(w, "- no strategy configured\n")
		return nil
	}
	fmt.Fprintf(w, "- status: %s\n", view.Status)
	fmt.Fprintf(w, "- totalAmountIn: %s\n", view.TotalAmountIn)
	fmt.Fprintf(w, "- filledAmountIn: %s\n", view.FilledAmountIn)
	fmt.Fprintf(w, "- window: %d -> %d\n", view.StartTime, view.EndTime)
	fmt.Fprintf(w, "- totalSlices: %d\n", len(view.Slices))

	next := -1
	for i, s := range view.Slices {
		if !s.Done && now >= s.ScheduledAt {
			next = i
			break
		}
	}
	if next >= 0 {
		fmt.Fprintf(w, "- nextEligibleSlice: %d\n", next)
	} else {
		fmt.Fprintf(w, "- nextEligibleSlice: none (by schedule or all done)\n")
	}
	return nil
}
