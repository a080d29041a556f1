package postgres

import (
	"context"
	"fmt"
	"time"

	"twap-engine/internal/domain"
	"twap-engine/internal/storage"
)

// FillStore implements storage.FillStore using PostgreSQL.
type FillStore struct {
	pool *Pool
}

// NewFillStore creates a new FillStore.
func NewFillStore(pool *Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

// Insert adds a new fill. Returns ErrDuplicateKey if (order_seq, slice_id)
// exists.
func (s *FillStore) Insert(ctx context.Context, f *domain.FillRecord) error {
	if f == nil || f.AmountIn == nil || f.AmountOut == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO fills (
			order_seq, slice_id, amount_in, amount_out, fee, executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.pool.Exec(ctx, query,
		int64(f.OrderSeq), int64(f.SliceID),
		bigToText(f.AmountIn), bigToText(f.AmountOut), bigToText(f.Fee),
		f.ExecutedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}

// GetByOrderSeq retrieves all fills for one configuration, ordered by
// slice id ASC.
func (s *FillStore) GetByOrderSeq(ctx context.Context, orderSeq uint64) ([]*domain.FillRecord, error) {
	query := `
		SELECT order_seq, slice_id, amount_in::text, amount_out::text, fee::text, executed_at
		FROM fills
		WHERE order_seq = $1
		ORDER BY slice_id ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(orderSeq))
	if err != nil {
		return nil, fmt.Errorf("query fills: %w", err)
	}
	defer rows.Close()

	var result []*domain.FillRecord
	for rows.Next() {
		f, err := scanFill(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fills: %w", err)
	}
	return result, nil
}

// GetBySlice retrieves one fill. Returns ErrNotFound if not exists.
func (s *FillStore) GetBySlice(ctx context.Context, orderSeq, sliceID uint64) (*domain.FillRecord, error) {
	query := `
		SELECT order_seq, slice_id, amount_in::text, amount_out::text, fee::text, executed_at
		FROM fills
		WHERE order_seq = $1 AND slice_id = $2
	`

	row := s.pool.QueryRow(ctx, query, int64(orderSeq), int64(sliceID))
	f, err := scanFill(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFill(row rowScanner) (*domain.FillRecord, error) {
	var (
		orderSeq, sliceID        int64
		amountIn, amountOut, fee string
		executedAt               time.Time
	)
	if err := row.Scan(&orderSeq, &sliceID, &amountIn, &amountOut, &fee, &executedAt); err != nil {
		return nil, err
	}

	f := &domain.FillRecord{
		OrderSeq:   uint64(orderSeq),
		SliceID:    uint64(sliceID),
		ExecutedAt: executedAt.UTC(),
	}
	var err error
	if f.AmountIn, err = bigFromText(amountIn); err != nil {
		return nil, err
	}
	if f.AmountOut, err = bigFromText(amountOut); err != nil {
		return nil, err
	}
	if f.Fee, err = bigFromText(fee); err != nil {
		return nil, err
	}
	return f, nil
}
