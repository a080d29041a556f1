package twap

import (
	"math/big"

	"twap-engine/internal/domain"
)

var bpsDen = big.NewInt(domain.BpsDenominator)

// CheckDeviation verifies that the quoted price p stays within
// maxDevBps basis points of the reference price r:
//
//	|p - r| * 10000 / r <= maxDevBps
//
// Exact integer arithmetic; returns ErrPriceDeviation on violation.
// Both prices are positive by the time this runs.
func CheckDeviation(p, r *big.Int, maxDevBps uint16) error {
	diff := new(big.Int).Sub(p, r)
	diff.Abs(diff)
	diff.Mul(diff, bpsDen)
	diff.Div(diff, r)
	if diff.Cmp(new(big.Int).SetUint64(uint64(maxDevBps))) > 0 {
		return ErrPriceDeviation
	}
	return nil
}

// MinOut computes the minimum acceptable output for a slice:
//
//	floor(amountIn * p * (10000 - maxSlipBps) / 10000 / 1e18)
//
// A zero result is rejected as degenerate: it would accept a worthless
// fill from the venue.
func MinOut(amountIn, p *big.Int, maxSlipBps uint16) (*big.Int, error) {
	out := new(big.Int).Mul(amountIn, p)
	out.Mul(out, big.NewInt(int64(domain.BpsDenominator-maxSlipBps)))
	out.Div(out, bpsDen)
	out.Div(out, domain.PriceScale)
	if out.Sign() == 0 {
		return nil, ErrMinOutZero
	}
	return out, nil
}
