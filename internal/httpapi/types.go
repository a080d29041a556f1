package httpapi

// StrategyPayload is the wire form of a strategy, amounts as decimal
// strings at 1e18 scale.
type StrategyPayload struct {
	AssetIn  string `json:"asset_in"`
	AssetOut string `json:"asset_out"`
	Venue    string `json:"venue"`
	Oracle   string `json:"oracle"`

	TotalAmountIn string `json:"total_amount_in"`
	SliceAmountIn string `json:"slice_amount_in"`

	StartTime uint64 `json:"start_time"`
	EndTime   uint64 `json:"end_time"`

	MaxSlippageBps       uint16 `json:"max_slippage_bps"`
	MaxPriceDeviationBps uint16 `json:"max_price_deviation_bps"`
}

// SliceState is one slice's schedule state.
type SliceState struct {
	ID          uint64 `json:"id"`
	Done        bool   `json:"done"`
	ScheduledAt uint64 `json:"scheduled_at"`
}

// StatusResponse is the full read-only surface.
type StatusResponse struct {
	Configured bool   `json:"configured"`
	Status     string `json:"status"`
	StatusCode uint8  `json:"status_code"`
	Paused     bool   `json:"paused"`
	OrderSeq   uint64 `json:"order_seq"`

	FilledAmountIn    string `json:"filled_amount_in"`
	ReceivedAmountOut string `json:"received_amount_out"`
	AccruedFee        string `json:"accrued_fee"`

	ReferencePrice string           `json:"reference_price,omitempty"`
	SliceCount     uint64           `json:"slice_count"`
	Strategy       *StrategyPayload `json:"strategy,omitempty"`
	Slices         []SliceState     `json:"slices,omitempty"`
}

// ExecuteRequest submits one slice execution.
type ExecuteRequest struct {
	SliceID uint64 `json:"slice_id"`
}

// SweepRequest recovers an asset balance.
type SweepRequest struct {
	Asset string `json:"asset"`
	To    string `json:"to"`
}

// ExecutorRequest replaces the authorized executor.
type ExecutorRequest struct {
	Executor string `json:"executor"`
}

// ErrorResponse carries the stable failure reason.
type ErrorResponse struct {
	Error string `json:"error"`
}
