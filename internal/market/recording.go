package market

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"twap-engine/internal/domain"
	"twap-engine/internal/observability"
	"twap-engine/internal/storage"
)

// RecordingOracle wraps an Oracle and appends every positive quote to a
// QuoteStore. Persistence failures are logged, never surfaced: the quote
// itself still flows to the engine.
type RecordingOracle struct {
	inner   Oracle
	store   storage.QuoteStore
	source  string
	logger  *zap.Logger
	metrics *observability.Metrics
	timeout time.Duration
}

// NewRecordingOracle creates a recording decorator. source labels the
// observation origin in the timeseries.
func NewRecordingOracle(inner Oracle, store storage.QuoteStore, source string, logger *zap.Logger, metrics *observability.Metrics) *RecordingOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingOracle{
		inner:   inner,
		store:   store,
		source:  source,
		logger:  logger,
		metrics: metrics,
		timeout: 5 * time.Second,
	}
}

// Compile-time interface check.
var _ Oracle = (*RecordingOracle)(nil)

// Price queries the wrapped oracle and records the quote.
func (o *RecordingOracle) Price(ctx context.Context, assetIn, assetOut common.Address) (*big.Int, error) {
	price, err := o.inner.Price(ctx, assetIn, assetOut)
	if err != nil || price == nil || price.Sign() <= 0 {
		return price, err
	}
	if o.metrics != nil {
		o.metrics.OracleQuotes.Inc()
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	q := &domain.QuotePoint{
		AssetIn:    assetIn,
		AssetOut:   assetOut,
		Price:      new(big.Int).Set(price),
		Source:     o.source,
		ObservedAt: time.Now().UTC(),
	}
	if err := o.store.Insert(storeCtx, q); err != nil {
		if o.metrics != nil {
			o.metrics.QuoteStoreErr.Inc()
		}
		o.logger.Warn("record oracle quote",
			zap.String("asset_in", assetIn.Hex()),
			zap.String("asset_out", assetOut.Hex()),
			zap.Error(err),
		)
	}
	return price, nil
}
