// Package memory provides in-memory storage implementations for tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"twap-engine/internal/domain"
	"twap-engine/internal/storage"
)

type fillKey struct {
	orderSeq uint64
	sliceID  uint64
}

// FillStore is an in-memory implementation of storage.FillStore.
type FillStore struct {
	mu   sync.RWMutex
	data map[fillKey]*domain.FillRecord
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{data: make(map[fillKey]*domain.FillRecord)}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

// Insert adds a new fill. Returns ErrDuplicateKey if (order_seq, slice_id)
// exists.
func (s *FillStore) Insert(_ context.Context, f *domain.FillRecord) error {
	if f == nil || f.AmountIn == nil || f.AmountOut == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := fillKey{orderSeq: f.OrderSeq, sliceID: f.SliceID}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := cloneFill(f)
	s.data[key] = copy
	return nil
}

// GetByOrderSeq retrieves all fills for one configuration, ordered by
// slice id ASC.
func (s *FillStore) GetByOrderSeq(_ context.Context, orderSeq uint64) ([]*domain.FillRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FillRecord
	for key, f := range s.data {
		if key.orderSeq == orderSeq {
			result = append(result, cloneFill(f))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SliceID < result[j].SliceID
	})
	return result, nil
}

// GetBySlice retrieves one fill. Returns ErrNotFound if not exists.
func (s *FillStore) GetBySlice(_ context.Context, orderSeq, sliceID uint64) (*domain.FillRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.data[fillKey{orderSeq: orderSeq, sliceID: sliceID}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneFill(f), nil
}

func cloneFill(f *domain.FillRecord) *domain.FillRecord {
	c := *f
	c.AmountIn = bigCopy(f.AmountIn)
	c.AmountOut = bigCopy(f.AmountOut)
	c.Fee = bigCopy(f.Fee)
	return &c
}
