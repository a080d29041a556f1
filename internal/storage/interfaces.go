package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"twap-engine/internal/domain"
)

// FillStore provides access to per-slice fill records.
type FillStore interface {
	// Insert adds a new fill. Returns ErrDuplicateKey if
	// (order_seq, slice_id) exists.
	Insert(ctx context.Context, f *domain.FillRecord) error

	// GetByOrderSeq retrieves all fills for one configuration, ordered
	// by slice id ASC.
	GetByOrderSeq(ctx context.Context, orderSeq uint64) ([]*domain.FillRecord, error)

	// GetBySlice retrieves one fill. Returns ErrNotFound if not exists.
	GetBySlice(ctx context.Context, orderSeq, sliceID uint64) (*domain.FillRecord, error)
}

// OrderEventStore provides access to the append-only order-status stream.
type OrderEventStore interface {
	// Insert appends a new event.
	Insert(ctx context.Context, e *domain.OrderEvent) error

	// GetByOrderSeq retrieves all events for one configuration in
	// insertion order.
	GetByOrderSeq(ctx context.Context, orderSeq uint64) ([]*domain.OrderEvent, error)

	// Latest retrieves the most recent event for one configuration.
	// Returns ErrNotFound if none exists.
	Latest(ctx context.Context, orderSeq uint64) (*domain.OrderEvent, error)
}

// QuoteStore provides access to the oracle quote timeseries.
type QuoteStore interface {
	// Insert adds one quote observation.
	Insert(ctx context.Context, q *domain.QuotePoint) error

	// InsertBulk adds multiple observations.
	InsertBulk(ctx context.Context, quotes []*domain.QuotePoint) error

	// GetByPair retrieves quotes for an asset pair observed within
	// [start, end] (inclusive, unix seconds), ordered by time ASC.
	GetByPair(ctx context.Context, assetIn, assetOut common.Address, start, end int64) ([]*domain.QuotePoint, error)
}
