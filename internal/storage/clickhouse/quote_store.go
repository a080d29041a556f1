package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"twap-engine/internal/domain"
	"twap-engine/internal/storage"
)

// QuoteStore implements storage.QuoteStore using ClickHouse.
type QuoteStore struct {
	conn *Conn
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(conn *Conn) *QuoteStore {
	return &QuoteStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// Insert adds one quote observation.
func (s *QuoteStore) Insert(ctx context.Context, q *domain.QuotePoint) error {
	return s.InsertBulk(ctx, []*domain.QuotePoint{q})
}

// InsertBulk adds multiple observations via a native batch.
func (s *QuoteStore) InsertBulk(ctx context.Context, quotes []*domain.QuotePoint) error {
	if len(quotes) == 0 {
		return nil
	}
	for _, q := range quotes {
		if q == nil || q.Price == nil {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO oracle_quotes (asset_in, asset_out, price, source, observed_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare quote batch: %w", err)
	}

	for _, q := range quotes {
		err := batch.Append(
			strings.ToLower(q.AssetIn.Hex()),
			strings.ToLower(q.AssetOut.Hex()),
			q.Price,
			q.Source,
			q.ObservedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append quote: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send quote batch: %w", err)
	}
	return nil
}

// GetByPair retrieves quotes for an asset pair observed within
// [start, end] (inclusive, unix seconds), ordered by time ASC.
func (s *QuoteStore) GetByPair(ctx context.Context, assetIn, assetOut common.Address, start, end int64) ([]*domain.QuotePoint, error) {
	query := `
		SELECT asset_in, asset_out, price, source, observed_at
		FROM oracle_quotes
		WHERE asset_in = ? AND asset_out = ?
			AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query,
		strings.ToLower(assetIn.Hex()),
		strings.ToLower(assetOut.Hex()),
		time.Unix(start, 0).UTC(),
		time.Unix(end+1, 0).UTC().Add(-time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var result []*domain.QuotePoint
	for rows.Next() {
		var (
			in, out, source string
			price           big.Int
			observedAt      time.Time
		)
		if err := rows.Scan(&in, &out, &price, &source, &observedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		result = append(result, &domain.QuotePoint{
			AssetIn:    common.HexToAddress(in),
			AssetOut:   common.HexToAddress(out),
			Price:      new(big.Int).Set(&price),
			Source:     source,
			ObservedAt: observedAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}
	return result, nil
}
