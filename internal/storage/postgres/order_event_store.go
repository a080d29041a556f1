package postgres

import (
	"context"
	"fmt"
	"time"

	"twap-engine/internal/domain"
	"twap-engine/internal/storage"
)

// OrderEventStore implements storage.OrderEventStore using PostgreSQL.
type OrderEventStore struct {
	pool *Pool
}

// NewOrderEventStore creates a new OrderEventStore.
func NewOrderEventStore(pool *Pool) *OrderEventStore {
	return &OrderEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderEventStore = (*OrderEventStore)(nil)

// Insert appends a new event.
func (s *OrderEventStore) Insert(ctx context.Context, e *domain.OrderEvent) error {
	if e == nil || e.FilledAmountIn == nil || e.ReceivedAmountOut == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO order_events (
			order_seq, filled_amount_in, received_amount_out, accrued_fee,
			status, cause, observed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.pool.Exec(ctx, query,
		int64(e.OrderSeq),
		bigToText(e.FilledAmountIn), bigToText(e.ReceivedAmountOut), bigToText(e.AccruedFee),
		int16(e.Status), e.Cause, e.ObservedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

// GetByOrderSeq retrieves all events for one configuration in insertion
// order.
func (s *OrderEventStore) GetByOrderSeq(ctx context.Context, orderSeq uint64) ([]*domain.OrderEvent, error) {
	query := `
		SELECT order_seq, filled_amount_in::text, received_amount_out::text,
			accrued_fee::text, status, cause, observed_at
		FROM order_events
		WHERE order_seq = $1
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(orderSeq))
	if err != nil {
		return nil, fmt.Errorf("query order events: %w", err)
	}
	defer rows.Close()

	var result []*domain.OrderEvent
	for rows.Next() {
		e, err := scanOrderEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order events: %w", err)
	}
	return result, nil
}

// Latest retrieves the most recent event for one configuration. Returns
// ErrNotFound if none exists.
func (s *OrderEventStore) Latest(ctx context.Context, orderSeq uint64) (*domain.OrderEvent, error) {
	query := `
		SELECT order_seq, filled_amount_in::text, received_amount_out::text,
			accrued_fee::text, status, cause, observed_at
		FROM order_events
		WHERE order_seq = $1
		ORDER BY id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, int64(orderSeq))
	e, err := scanOrderEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func scanOrderEvent(row rowScanner) (*domain.OrderEvent, error) {
	var (
		orderSeq              int64
		filled, received, fee string
		status                int16
		cause                 string
		observedAt            time.Time
	)
	if err := row.Scan(&orderSeq, &filled, &received, &fee, &status, &cause, &observedAt); err != nil {
		return nil, err
	}

	e := &domain.OrderEvent{
		OrderSeq:   uint64(orderSeq),
		Status:     domain.OrderStatus(status),
		Cause:      cause,
		ObservedAt: observedAt.UTC(),
	}
	var err error
	if e.FilledAmountIn, err = bigFromText(filled); err != nil {
		return nil, err
	}
	if e.ReceivedAmountOut, err = bigFromText(received); err != nil {
		return nil, err
	}
	if e.AccruedFee, err = bigFromText(fee); err != nil {
		return nil, err
	}
	return e, nil
}
