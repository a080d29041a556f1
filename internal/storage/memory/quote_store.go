package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"twap-engine/internal/domain"
	"twap-engine/internal/storage"
)

// QuoteStore is an in-memory implementation of storage.QuoteStore.
type QuoteStore struct {
	mu   sync.RWMutex
	data []*domain.QuotePoint
}

// NewQuoteStore creates a new in-memory quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// Insert adds one quote observation.
func (s *QuoteStore) Insert(_ context.Context, q *domain.QuotePoint) error {
	if q == nil || q.Price == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, cloneQuote(q))
	return nil
}

// InsertBulk adds multiple observations.
func (s *QuoteStore) InsertBulk(_ context.Context, quotes []*domain.QuotePoint) error {
	for _, q := range quotes {
		if q == nil || q.Price == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range quotes {
		s.data = append(s.data, cloneQuote(q))
	}
	return nil
}

// GetByPair retrieves quotes for an asset pair observed within
// [start, end] (inclusive, unix seconds), ordered by time ASC.
func (s *QuoteStore) GetByPair(_ context.Context, assetIn, assetOut common.Address, start, end int64) ([]*domain.QuotePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.QuotePoint
	for _, q := range s.data {
		if q.AssetIn != assetIn || q.AssetOut != assetOut {
			continue
		}
		at := q.ObservedAt.Unix()
		if at < start || at > end {
			continue
		}
		result = append(result, cloneQuote(q))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})
	return result, nil
}

func cloneQuote(q *domain.QuotePoint) *domain.QuotePoint {
	c := *q
	c.Price = bigCopy(q.Price)
	return &c
}
