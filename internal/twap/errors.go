package twap

import "errors"

// Engine errors. Every failure aborts the whole operation; nothing is
// retried internally. Grouped by the taxonomy: authorization, lifecycle,
// schedule, market.
var (
	// Authorization.
	ErrNotOwner    = errors.New("caller is not the configuration authority")
	ErrNotExecutor = errors.New("caller is not the authorized executor")

	// Lifecycle.
	ErrNotQuiesced  = errors.New("engine must be paused to reconfigure")
	ErrQuiesced     = errors.New("engine is paused")
	ErrNoStrategy   = errors.New("no strategy configured")
	ErrOrderClosed  = errors.New("order already filled or cancelled")
	ErrZeroExecutor = errors.New("executor address is zero")

	// Schedule.
	ErrSliceOutOfRange  = errors.New("slice id out of range")
	ErrSliceAlreadyDone = errors.New("slice already done")
	ErrTooEarly         = errors.New("too early for slice")
	ErrNothingRemaining = errors.New("nothing remaining to fill")

	// Market.
	ErrInvalidOraclePrice = errors.New("oracle price is not positive")
	ErrPriceDeviation     = errors.New("price deviation beyond bound")
	ErrMinOutZero         = errors.New("computed minimum output is zero")
	ErrInvalidFill        = errors.New("venue reported invalid fill")
	ErrSlippage           = errors.New("venue output below minimum")

	// Admin.
	ErrZeroRecipient = errors.New("recipient address is zero")
)
