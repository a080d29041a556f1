// Package notify fans engine notifications out to observers: structured
// logs, persistent stores, and websocket subscribers.
package notify

import (
	"go.uber.org/zap"

	"twap-engine/internal/domain"
)

// Notifier receives the engine's append-only notifications. Implementations
// are called with the engine lock held: they must not call back into the
// engine, and any I/O they perform must be bounded by a short deadline,
// since slice execution waits on them.
type Notifier interface {
	// Fill is invoked once per successfully executed slice.
	Fill(f domain.FillRecord)

	// OrderStatus is invoked once per successful slice and once per
	// configuration or cancellation.
	OrderStatus(e domain.OrderEvent)
}

// Multi fans notifications out to every child notifier in order.
type Multi []Notifier

// Fill forwards the fill to all children.
func (m Multi) Fill(f domain.FillRecord) {
	for _, n := range m {
		n.Fill(f)
	}
}

// OrderStatus forwards the event to all children.
func (m Multi) OrderStatus(e domain.OrderEvent) {
	for _, n := range m {
		n.OrderStatus(e)
	}
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Fill(domain.FillRecord)        {}
func (Nop) OrderStatus(domain.OrderEvent) {}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Fill logs one slice fill.
func (n *LogNotifier) Fill(f domain.FillRecord) {
	n.logger.Info("fill",
		zap.Uint64("order_seq", f.OrderSeq),
		zap.Uint64("slice_id", f.SliceID),
		zap.String("amount_in", f.AmountIn.String()),
		zap.String("amount_out", f.AmountOut.String()),
		zap.String("fee", f.Fee.String()),
	)
}

// OrderStatus logs one cumulative order-status event.
func (n *LogNotifier) OrderStatus(e domain.OrderEvent) {
	n.logger.Info("order status",
		zap.Uint64("order_seq", e.OrderSeq),
		zap.String("filled_amount_in", e.FilledAmountIn.String()),
		zap.String("received_amount_out", e.ReceivedAmountOut.String()),
		zap.String("accrued_fee", e.AccruedFee.String()),
		zap.String("status", e.Status.String()),
		zap.String("cause", e.Cause),
	)
}
