package twap

import (
	"math/big"

	"twap-engine/internal/domain"
)

// SliceCount returns ceil(totalAmountIn / sliceAmountIn) for a validated
// strategy. Amounts are positive by construction.
func SliceCount(s *domain.Strategy) uint64 {
	q, r := new(big.Int).DivMod(s.TotalAmountIn, s.SliceAmountIn, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Uint64()
}

// Interval returns floor((endTime - startTime) / sliceCount). A zero
// interval is valid: every slice becomes eligible at startTime.
func Interval(s *domain.Strategy, sliceCount uint64) uint64 {
	if sliceCount == 0 {
		return 0
	}
	return (s.EndTime - s.StartTime) / sliceCount
}

// ScheduledTime returns the earliest-eligible time for sliceID:
// startTime + interval*sliceID. The caller guarantees
// sliceID < SliceCount(s); out-of-range ids are a caller error.
func ScheduledTime(s *domain.Strategy, sliceID uint64) uint64 {
	return s.StartTime + Interval(s, SliceCount(s))*sliceID
}
