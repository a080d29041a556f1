package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"twap-engine/internal/domain"
	"twap-engine/internal/observability"
	"twap-engine/internal/storage"
)

// StoreRecorder persists notifications to the fill and order-event stores.
// Each insert runs under its own timeout so a stalled store cannot hold
// the engine beyond that bound. Persistence failures are logged and
// counted, never propagated: storage is an observer of the engine, not a
// participant in its transitions.
type StoreRecorder struct {
	fills   storage.FillStore
	events  storage.OrderEventStore
	logger  *zap.Logger
	metrics *observability.Metrics
	timeout time.Duration
}

// NewStoreRecorder creates a persisting notifier.
func NewStoreRecorder(fills storage.FillStore, events storage.OrderEventStore, logger *zap.Logger, metrics *observability.Metrics) *StoreRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreRecorder{
		fills:   fills,
		events:  events,
		logger:  logger,
		metrics: metrics,
		timeout: 5 * time.Second,
	}
}

// Compile-time interface check.
var _ Notifier = (*StoreRecorder)(nil)

// Fill persists one slice fill.
func (r *StoreRecorder) Fill(f domain.FillRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.fills.Insert(ctx, &f); err != nil {
		if r.metrics != nil {
			r.metrics.RecorderErrors.Inc()
		}
		r.logger.Error("persist fill",
			zap.Uint64("order_seq", f.OrderSeq),
			zap.Uint64("slice_id", f.SliceID),
			zap.Error(err),
		)
		return
	}
	if r.metrics != nil {
		r.metrics.FillsRecorded.Inc()
	}
}

// OrderStatus persists one cumulative order-status event.
func (r *StoreRecorder) OrderStatus(e domain.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.events.Insert(ctx, &e); err != nil {
		if r.metrics != nil {
			r.metrics.RecorderErrors.Inc()
		}
		r.logger.Error("persist order event",
			zap.Uint64("order_seq", e.OrderSeq),
			zap.String("cause", e.Cause),
			zap.Error(err),
		)
		return
	}
	if r.metrics != nil {
		r.metrics.EventsRecorded.Inc()
	}
}
