package twap

import "math/big"

const wordBits = 64

// Ledger holds the cumulative fill accounting for the active strategy and
// the per-slice completion set. Totals are monotone non-decreasing for the
// lifetime of one strategy; a reconfiguration replaces the whole ledger.
// The completion set is a word-array bitmap so a reconfiguration reset is
// O(words) instead of O(prior slice count).
type Ledger struct {
	filledAmountIn    *big.Int
	receivedAmountOut *big.Int
	accruedFee        *big.Int

	sliceCount uint64
	done       []uint64
}

// NewLedger returns a zeroed ledger for sliceCount slices.
func NewLedger(sliceCount uint64) *Ledger {
	return &Ledger{
		filledAmountIn:    new(big.Int),
		receivedAmountOut: new(big.Int),
		accruedFee:        new(big.Int),
		sliceCount:        sliceCount,
		done:              make([]uint64, (sliceCount+wordBits-1)/wordBits),
	}
}

// SliceCount returns the number of slices the ledger tracks.
func (l *Ledger) SliceCount() uint64 { return l.sliceCount }

// Done reports whether slice i has completed. i must be < SliceCount.
func (l *Ledger) Done(i uint64) bool {
	return l.done[i/wordBits]&(1<<(i%wordBits)) != 0
}

// MarkDone sets slice i's completion flag. There is no reverse edge.
func (l *Ledger) MarkDone(i uint64) {
	l.done[i/wordBits] |= 1 << (i % wordBits)
}

// Apply adds one validated fill to the cumulative totals.
func (l *Ledger) Apply(filled, received, fee *big.Int) {
	l.filledAmountIn.Add(l.filledAmountIn, filled)
	l.receivedAmountOut.Add(l.receivedAmountOut, received)
	if fee != nil {
		l.accruedFee.Add(l.accruedFee, fee)
	}
}

// Filled returns a copy of the cumulative input consumed.
func (l *Ledger) Filled() *big.Int { return new(big.Int).Set(l.filledAmountIn) }

// Received returns a copy of the cumulative output received.
func (l *Ledger) Received() *big.Int { return new(big.Int).Set(l.receivedAmountOut) }

// Fee returns a copy of the cumulative fee accrued.
func (l *Ledger) Fee() *big.Int { return new(big.Int).Set(l.accruedFee) }
