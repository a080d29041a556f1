package memory

import (
	"context"
	"math/big"
	"sync"

	"twap-engine/internal/domain"
	"twap-engine/internal/storage"
)

// OrderEventStore is an in-memory implementation of
// storage.OrderEventStore.
type OrderEventStore struct {
	mu   sync.RWMutex
	data map[uint64][]*domain.OrderEvent // keyed by order_seq, insertion order
}

// NewOrderEventStore creates a new in-memory order-event store.
func NewOrderEventStore() *OrderEventStore {
	return &OrderEventStore{data: make(map[uint64][]*domain.OrderEvent)}
}

// Compile-time interface check.
var _ storage.OrderEventStore = (*OrderEventStore)(nil)

// Insert appends a new event.
func (s *OrderEventStore) Insert(_ context.Context, e *domain.OrderEvent) error {
	if e == nil || e.FilledAmountIn == nil || e.ReceivedAmountOut == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[e.OrderSeq] = append(s.data[e.OrderSeq], cloneEvent(e))
	return nil
}

// GetByOrderSeq retrieves all events for one configuration in insertion
// order.
func (s *OrderEventStore) GetByOrderSeq(_ context.Context, orderSeq uint64) ([]*domain.OrderEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.data[orderSeq]
	result := make([]*domain.OrderEvent, 0, len(events))
	for _, e := range events {
		result = append(result, cloneEvent(e))
	}
	return result, nil
}

// Latest retrieves the most recent event for one configuration. Returns
// ErrNotFound if none exists.
func (s *OrderEventStore) Latest(_ context.Context, orderSeq uint64) (*domain.OrderEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.data[orderSeq]
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return cloneEvent(events[len(events)-1]), nil
}

func cloneEvent(e *domain.OrderEvent) *domain.OrderEvent {
	c := *e
	c.FilledAmountIn = bigCopy(e.FilledAmountIn)
	c.ReceivedAmountOut = bigCopy(e.ReceivedAmountOut)
	c.AccruedFee = bigCopy(e.AccruedFee)
	return &c
}

func bigCopy(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
